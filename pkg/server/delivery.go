package server

import (
	"github.com/NicolasHaas/shadowroom/pkg/directory"
)

// deliver enqueues msg on each recipient's outbox and returns how many
// accepted it. Recipients are snapshots taken under the Directory lock; no
// lock is held here.
func (s *Server) deliver(rs []directory.Recipient, msg string) int {
	n := 0
	for _, r := range rs {
		if r.Send(msg) {
			n++
		}
	}
	return n
}

// broadcast sends msg to every registered user except exclude.
func (s *Server) broadcast(msg string, exclude directory.Recipient) int {
	return s.deliver(s.dir.Recipients(exclude), msg)
}

// private sends msg to the named user. It reports false if the user is not
// registered.
func (s *Server) private(target, msg string) bool {
	r, ok := s.dir.Lookup(target)
	if !ok {
		return false
	}
	r.Send(msg)
	return true
}

// groupMessage sends msg to every member of group except exclude. The
// sender does not have to be a member.
func (s *Server) groupMessage(group, msg string, exclude directory.Recipient) (int, error) {
	rs, err := s.dir.GroupRecipients(group, exclude)
	if err != nil {
		return 0, err
	}
	return s.deliver(rs, msg), nil
}
