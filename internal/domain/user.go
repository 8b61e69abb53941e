package domain

import (
	"sort"
	"time"
)

// EveryoneName is the broadcast pseudo target. It is never stored in the
// directory; it only appears as the first presence-list entry.
const (
	EveryoneName = "Everyone"
	EveryoneID   = "-1"
)

// ConnectedUser is a live participant of a room. The ConnID changes on
// every reconnect while Token identifies the logical participant across
// reconnects.
type ConnectedUser struct {
	ConnID     string
	Name       string
	Token      string
	Blocked    map[string]struct{}
	JoinedAt   time.Time
	LastSeenAt time.Time
}

// Clone returns a deep copy, so callers can hand out snapshots without
// sharing the blocked set.
func (u *ConnectedUser) Clone() ConnectedUser {
	c := *u
	c.Blocked = make(map[string]struct{}, len(u.Blocked))
	for name := range u.Blocked {
		c.Blocked[name] = struct{}{}
	}
	return c
}

// HasBlocked reports whether the user has blocked the given name.
func (u *ConnectedUser) HasBlocked(name string) bool {
	_, ok := u.Blocked[name]
	return ok
}

// BlockedNames returns the blocked set as a sorted slice for stable
// wire output.
func (u *ConnectedUser) BlockedNames() []string {
	names := make([]string, 0, len(u.Blocked))
	for name := range u.Blocked {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
