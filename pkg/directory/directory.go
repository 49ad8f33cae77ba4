// Package directory holds the shared chat state: which user is online on
// which connection, and which users belong to which group.
//
// Every method is one atomic step under a single mutex. The lock is never
// held while writing to a connection; callers take a snapshot of recipients
// and deliver to them after the method returns.
package directory

import (
	"errors"
	"sort"
	"sync"
)

var (
	ErrAlreadyOnline = errors.New("directory: user already online")
	ErrGroupExists   = errors.New("directory: group already exists")
	ErrNoSuchGroup   = errors.New("directory: no such group")
	ErrAlreadyMember = errors.New("directory: already a member")
	ErrNotMember     = errors.New("directory: not a member")
)

// Recipient is a registered connection that can accept outbound messages.
// Implementations must be comparable (pointer types).
type Recipient interface {
	Send(msg string) bool
}

// Departure describes a group a user was removed from on unregister, and
// the members still in it.
type Departure struct {
	Group     string
	Remaining []Recipient
}

// Directory maps usernames to recipients and groups to member sets.
type Directory struct {
	mu     sync.Mutex
	byName map[string]Recipient
	byConn map[Recipient]string
	groups map[string]map[string]struct{}
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		byName: make(map[string]Recipient),
		byConn: make(map[Recipient]string),
		groups: make(map[string]map[string]struct{}),
	}
}

// Register maps username to r. A username that is already online is
// rejected with ErrAlreadyOnline.
func (d *Directory) Register(username string, r Recipient) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.byName[username]; ok {
		return ErrAlreadyOnline
	}
	d.byName[username] = r
	d.byConn[r] = username
	return nil
}

// Unregister removes the mapping for username if it still points at r, and
// scrubs username from every group. It returns one Departure per group the
// user was in, in group-name order, or nil if nothing was registered.
func (d *Directory) Unregister(username string, r Recipient) []Departure {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur, ok := d.byName[username]
	if !ok || cur != r {
		return nil
	}
	delete(d.byName, username)
	delete(d.byConn, r)

	var out []Departure
	for _, name := range d.sortedGroupNames() {
		members := d.groups[name]
		if _, in := members[username]; !in {
			continue
		}
		delete(members, username)
		out = append(out, Departure{Group: name, Remaining: d.recipientsOf(members, nil)})
	}
	return out
}

// Lookup returns the recipient registered for username.
func (d *Directory) Lookup(username string) (Recipient, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.byName[username]
	return r, ok
}

// UsernameOf returns the username registered for r.
func (d *Directory) UsernameOf(r Recipient) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	name, ok := d.byConn[r]
	return name, ok
}

// Usernames returns all registered usernames, sorted.
func (d *Directory) Usernames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]string, 0, len(d.byName))
	for name := range d.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Recipients returns every registered recipient except exclude.
func (d *Directory) Recipients(exclude Recipient) []Recipient {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Recipient, 0, len(d.byConn))
	for r := range d.byConn {
		if r != exclude {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of registered users.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.byName)
}

// CreateGroup creates a group whose only member is creator. An empty
// creator creates a group with no members.
func (d *Directory) CreateGroup(name, creator string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.groups[name]; ok {
		return ErrGroupExists
	}
	members := make(map[string]struct{})
	if creator != "" {
		members[creator] = struct{}{}
	}
	d.groups[name] = members
	return nil
}

// GroupExists reports whether a group is defined.
func (d *Directory) GroupExists(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.groups[name]
	return ok
}

// IsMember reports whether username belongs to group.
func (d *Directory) IsMember(group, username string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.groups[group][username]
	return ok
}

// AddMember adds username to group and returns the recipients of the other
// members at that instant.
func (d *Directory) AddMember(group, username string) ([]Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.groups[group]
	if !ok {
		return nil, ErrNoSuchGroup
	}
	if _, in := members[username]; in {
		return nil, ErrAlreadyMember
	}
	members[username] = struct{}{}
	return d.recipientsOf(members, d.byName[username]), nil
}

// RemoveMember removes username from group and returns the recipients of
// the remaining members.
func (d *Directory) RemoveMember(group, username string) ([]Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.groups[group]
	if !ok {
		return nil, ErrNoSuchGroup
	}
	if _, in := members[username]; !in {
		return nil, ErrNotMember
	}
	delete(members, username)
	return d.recipientsOf(members, nil), nil
}

// GroupNames returns all group names, sorted. Empty groups are included.
func (d *Directory) GroupNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sortedGroupNames()
}

// GroupCount returns the number of groups.
func (d *Directory) GroupCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.groups)
}

// GroupMembers returns the members of group, sorted.
func (d *Directory) GroupMembers(group string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.groups[group]
	if !ok {
		return nil, ErrNoSuchGroup
	}
	out := make([]string, 0, len(members))
	for name := range members {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// GroupRecipients resolves the online members of group to recipients,
// skipping exclude.
func (d *Directory) GroupRecipients(group string, exclude Recipient) ([]Recipient, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	members, ok := d.groups[group]
	if !ok {
		return nil, ErrNoSuchGroup
	}
	return d.recipientsOf(members, exclude), nil
}

// recipientsOf must be called with d.mu held.
func (d *Directory) recipientsOf(members map[string]struct{}, exclude Recipient) []Recipient {
	out := make([]Recipient, 0, len(members))
	for name := range members {
		r, ok := d.byName[name]
		if !ok || r == exclude {
			continue
		}
		out = append(out, r)
	}
	return out
}

// sortedGroupNames must be called with d.mu held.
func (d *Directory) sortedGroupNames() []string {
	out := make([]string, 0, len(d.groups))
	for name := range d.groups {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
