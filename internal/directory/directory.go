package directory

import (
	"errors"
	"sync"
	"time"

	"github.com/opentalk/chatroom/internal/domain"
)

// ErrNameTaken is returned by Install when the display name is held by a
// different identity in the room.
var ErrNameTaken = errors.New("display name already taken")

// Directory is the process-wide registry of connected users per room. It
// is an injected dependency of the presence manager, the message router
// and the room listing, never a package global.
//
// All state transitions happen inside single directory calls under one
// lock, so a room never has two writers mutating an entry at the same
// instant. Reads hand out clones; callers must not assume a snapshot is
// still current after any call that may block, and are expected to
// re-validate through the directory instead.
type Directory struct {
	mu     sync.RWMutex
	rooms  map[uint]map[string]*domain.ConnectedUser
	tokens map[uint]map[string]string // identity token -> display name
}

// New creates an empty directory.
func New() *Directory {
	return &Directory{
		rooms:  make(map[uint]map[string]*domain.ConnectedUser),
		tokens: make(map[uint]map[string]string),
	}
}

// UsersOf returns a cloned name->user mapping for the room. Unknown rooms
// yield an empty map.
func (d *Directory) UsersOf(roomID uint) map[string]domain.ConnectedUser {
	d.mu.RLock()
	defer d.mu.RUnlock()

	users := make(map[string]domain.ConnectedUser, len(d.rooms[roomID]))
	for name, u := range d.rooms[roomID] {
		users[name] = u.Clone()
	}
	return users
}

// Get returns a clone of the named user.
func (d *Directory) Get(roomID uint, name string) (domain.ConnectedUser, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.rooms[roomID][name]
	if !ok {
		return domain.ConnectedUser{}, false
	}
	return u.Clone(), true
}

// FindByToken resolves an identity token to its current user in the room.
func (d *Directory) FindByToken(roomID uint, token string) (domain.ConnectedUser, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	name, ok := d.tokens[roomID][token]
	if !ok {
		return domain.ConnectedUser{}, false
	}
	u, ok := d.rooms[roomID][name]
	if !ok {
		return domain.ConnectedUser{}, false
	}
	return u.Clone(), true
}

// Install adds or replaces the user's entry. The name-availability check
// and the write are one atomic step: a name held by a different identity
// yields ErrNameTaken and leaves the directory unchanged. A matching
// identity token replaces its prior entry, even under a changed name.
func (d *Directory) Install(roomID uint, u domain.ConnectedUser) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	users := d.rooms[roomID]
	if existing, ok := users[u.Name]; ok && existing.Token != u.Token {
		return ErrNameTaken
	}

	if users == nil {
		users = make(map[string]*domain.ConnectedUser)
		d.rooms[roomID] = users
		d.tokens[roomID] = make(map[string]string)
	}

	// Drop the prior entry for this identity.
	if oldName, ok := d.tokens[roomID][u.Token]; ok && oldName != u.Name {
		delete(users, oldName)
	}

	clone := u.Clone()
	users[u.Name] = &clone
	d.tokens[roomID][u.Token] = u.Name
	return nil
}

// Remove deletes the named user; the room entry itself is dropped the
// moment it becomes empty. It reports whether a user was removed.
func (d *Directory) Remove(roomID uint, name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.remove(roomID, name)
}

// RemoveConn deletes the named user only while the entry still belongs to
// the given connection. A stale connection closing after a reconnect must
// not evict the fresh entry.
func (d *Directory) RemoveConn(roomID uint, name, connID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.rooms[roomID][name]
	if !ok || u.ConnID != connID {
		return false
	}
	return d.remove(roomID, name)
}

func (d *Directory) remove(roomID uint, name string) bool {
	users, ok := d.rooms[roomID]
	if !ok {
		return false
	}
	u, ok := users[name]
	if !ok {
		return false
	}

	delete(users, name)
	delete(d.tokens[roomID], u.Token)
	if len(users) == 0 {
		delete(d.rooms, roomID)
		delete(d.tokens, roomID)
	}
	return true
}

// RemoveStale deletes the named user only while their last-seen time is
// still before the cutoff, so a heartbeat landing between the purge
// snapshot and the removal wins.
func (d *Directory) RemoveStale(roomID uint, name string, cutoff time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.rooms[roomID][name]
	if !ok || !u.LastSeenAt.Before(cutoff) {
		return false
	}
	return d.remove(roomID, name)
}

// RemoveRoom drops a room and all its users.
func (d *Directory) RemoveRoom(roomID uint) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.rooms, roomID)
	delete(d.tokens, roomID)
}

// Touch updates the user's last-seen timestamp. Unknown room or user is a
// no-op.
func (d *Directory) Touch(roomID uint, name string, t time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.rooms[roomID][name]
	if !ok {
		return false
	}
	u.LastSeenAt = t
	return true
}

// ToggleBlock flips the presence of target in the user's blocked set and
// returns the updated user.
func (d *Directory) ToggleBlock(roomID uint, name, target string) (domain.ConnectedUser, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.rooms[roomID][name]
	if !ok {
		return domain.ConnectedUser{}, false
	}
	if _, blocked := u.Blocked[target]; blocked {
		delete(u.Blocked, target)
	} else {
		u.Blocked[target] = struct{}{}
	}
	return u.Clone(), true
}

// Count returns the number of connected users in the room.
func (d *Directory) Count(roomID uint) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms[roomID])
}

// RoomIDs returns the ids of rooms with at least one connected user.
func (d *Directory) RoomIDs() []uint {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]uint, 0, len(d.rooms))
	for id := range d.rooms {
		ids = append(ids, id)
	}
	return ids
}
