package server

import (
	"errors"
	"log/slog"

	"github.com/NicolasHaas/shadowroom/pkg/directory"
	"github.com/NicolasHaas/shadowroom/pkg/protocol"
)

// dispatch executes one command for an authenticated session. It returns
// true when the session should end.
func (s *Server) dispatch(sess *Session, username string, cmd protocol.Command) bool {
	switch cmd.Action {
	case protocol.ActionExit:
		if cmd.HasArgs || cmd.Message != "" {
			sess.Send(protocol.Usage(protocol.ActionExit))
			return false
		}
		return true

	case protocol.ActionMsg:
		s.handlePrivate(sess, username, cmd)

	case protocol.ActionBroadcast:
		n := s.broadcast(protocol.Broadcast(username, cmd.Message), sess)
		s.metrics.BroadcastMessages.Add(1)
		slog.Debug("broadcast", "user", username, "recipients", n)

	case protocol.ActionCreateGroup:
		s.handleCreateGroup(sess, username, cmd)

	case protocol.ActionJoinGroup:
		s.handleJoinGroup(sess, username, cmd)

	case protocol.ActionLeaveGroup:
		s.handleLeaveGroup(sess, username, cmd)

	case protocol.ActionGroupMsg:
		s.handleGroupMsg(sess, username, cmd)

	case protocol.ActionListAllMembers:
		sess.Send(protocol.List(s.dir.Usernames(), "No members online."))

	case protocol.ActionListAllGroups:
		sess.Send(protocol.List(s.dir.GroupNames(), "No groups yet."))

	case protocol.ActionListGroupMembers:
		group, ok := groupArg(sess, cmd)
		if !ok {
			return false
		}
		members, err := s.dir.GroupMembers(group)
		if err != nil {
			sess.Send(protocol.ErrNoSuchGroup)
			return false
		}
		sess.Send(protocol.List(members, "This group has no members."))

	case protocol.ActionHelp:
		sess.Send(protocol.Help())

	default:
		s.metrics.InvalidCommands.Add(1)
		sess.Send(protocol.ErrInvalidAction)
	}
	return false
}

// groupArg extracts the group name token, replying with usage if it is
// missing.
func groupArg(sess *Session, cmd protocol.Command) (string, bool) {
	group, _ := cmd.Token()
	if protocol.IsBlank(group) {
		sess.Send(protocol.Usage(cmd.Action))
		return "", false
	}
	return group, true
}

func (s *Server) handlePrivate(sess *Session, username string, cmd protocol.Command) {
	target, text := cmd.Token()
	if protocol.IsBlank(target) {
		sess.Send(protocol.Usage(protocol.ActionMsg))
		return
	}
	if !s.private(target, protocol.Private(username, text)) {
		sess.Send(protocol.ErrRecipientNotFound)
		return
	}
	s.metrics.PrivateMessages.Add(1)
}

func (s *Server) handleCreateGroup(sess *Session, username string, cmd protocol.Command) {
	group, ok := groupArg(sess, cmd)
	if !ok {
		return
	}
	if err := s.dir.CreateGroup(group, username); err != nil {
		sess.Send(protocol.ErrGroupExists)
		return
	}
	s.metrics.GroupsCreated.Add(1)
	slog.Info("group created", "group", group, "user", username)
	sess.Send(protocol.GroupCreated)
}

func (s *Server) handleJoinGroup(sess *Session, username string, cmd protocol.Command) {
	group, ok := groupArg(sess, cmd)
	if !ok {
		return
	}
	others, err := s.dir.AddMember(group, username)
	switch {
	case errors.Is(err, directory.ErrNoSuchGroup):
		sess.Send(protocol.ErrNoSuchGroup)
		return
	case errors.Is(err, directory.ErrAlreadyMember):
		sess.Send(protocol.AlreadyMember)
		return
	case err != nil:
		slog.Error("join group failed", "group", group, "user", username, "err", err)
		return
	}
	sess.Send(protocol.YouJoined(group))
	s.deliver(others, protocol.MemberJoined(username, group))
}

func (s *Server) handleLeaveGroup(sess *Session, username string, cmd protocol.Command) {
	group, ok := groupArg(sess, cmd)
	if !ok {
		return
	}
	remaining, err := s.dir.RemoveMember(group, username)
	switch {
	case errors.Is(err, directory.ErrNoSuchGroup):
		sess.Send(protocol.ErrNoSuchGroup)
		return
	case errors.Is(err, directory.ErrNotMember):
		sess.Send(protocol.ErrNotMember)
		return
	case err != nil:
		slog.Error("leave group failed", "group", group, "user", username, "err", err)
		return
	}
	sess.Send(protocol.YouLeft(group))
	s.deliver(remaining, protocol.MemberLeft(username, group))
}

func (s *Server) handleGroupMsg(sess *Session, username string, cmd protocol.Command) {
	group, text := cmd.Token()
	if protocol.IsBlank(group) {
		sess.Send(protocol.Usage(protocol.ActionGroupMsg))
		return
	}
	if _, err := s.groupMessage(group, protocol.GroupMessage(username, group, text), sess); err != nil {
		sess.Send(protocol.ErrNoSuchGroup)
		return
	}
	s.metrics.GroupMessages.Add(1)
}
