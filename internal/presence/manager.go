package presence

import (
	"context"
	"errors"
	"sort"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/opentalk/chatroom/internal/directory"
	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/repository"
	"github.com/opentalk/chatroom/pkg/log"
)

var (
	// ErrInvalidInput marks a display name that fails the length or
	// charset checks.
	ErrInvalidInput = errors.New("invalid display name")
	// ErrNameTaken marks a join whose display name is held by a
	// different identity. First occupant wins.
	ErrNameTaken = directory.ErrNameTaken
)

// Emitter is the transport side the manager talks to: room membership of
// connections plus event delivery.
type Emitter interface {
	Join(connID string, roomID uint)
	ToRoom(roomID uint, v interface{})
	ToConn(connID string, v interface{})
}

// Config holds the idle-eviction tuning.
type Config struct {
	IdleTimeout   time.Duration
	PurgeInterval time.Duration
}

// Manager owns the join / reconnect / heartbeat / leave / idle-purge
// state transitions of connected users.
type Manager struct {
	dir     *directory.Directory
	rooms   repository.RoomRepository
	msgs    repository.MessageRepository
	emitter Emitter
	cfg     Config
	now     func() time.Time
}

// NewManager creates a presence manager.
func NewManager(dir *directory.Directory, rooms repository.RoomRepository, msgs repository.MessageRepository, emitter Emitter, cfg Config) *Manager {
	return &Manager{
		dir:     dir,
		rooms:   rooms,
		msgs:    msgs,
		emitter: emitter,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Join admits a connection into a room under a display name.
//
// A token matching a stored identity is a reconnect: the prior entry is
// replaced, joinedAt and the blocked set survive, no entry announcement
// is made and the caller gets its message history replayed. Otherwise a
// fresh identity is minted and the room is told about the arrival. In
// both cases the room receives an updated presence list and the caller
// an updateUser event with its resolved identity.
func (m *Manager) Join(ctx context.Context, connID string, ev domain.JoinEvent) error {
	l := log.Ctx(ctx)

	if !validName(ev.Name) {
		return ErrInvalidInput
	}

	if _, err := m.rooms.GetByID(ctx, ev.RoomID); err != nil {
		return err
	}

	// Transport membership first, so the joiner sees its own entry
	// announcement.
	m.emitter.Join(connID, ev.RoomID)

	var prior *domain.ConnectedUser
	if ev.Token != "" {
		if u, ok := m.dir.FindByToken(ev.RoomID, ev.Token); ok {
			prior = &u
		}
	}

	if holder, ok := m.dir.Get(ev.RoomID, ev.Name); ok && holder.Token != ev.Token {
		return ErrNameTaken
	}

	token := ev.Token
	if token == "" {
		token = uuid.NewString()
	}

	if prior != nil {
		// Reconnect: replay history since the identity first joined,
		// no announcement.
		history, err := m.msgs.FindSince(ctx, ev.RoomID, prior.Name, prior.JoinedAt)
		if err != nil {
			return err
		}
		events := lo.Map(history, func(msg domain.ChatMessage, _ int) *domain.MessageEventOut {
			return msg.ToEvent()
		})
		for _, out := range events {
			m.emitter.ToConn(connID, out)
		}
	} else {
		if err := m.announce(ctx, ev.RoomID, ev.Name+" entered the room..."); err != nil {
			return err
		}
	}

	now := m.now()
	entry := domain.ConnectedUser{
		ConnID:     connID,
		Name:       ev.Name,
		Token:      token,
		Blocked:    make(map[string]struct{}),
		JoinedAt:   now,
		LastSeenAt: now,
	}
	if prior != nil {
		entry.Blocked = prior.Blocked
		entry.JoinedAt = prior.JoinedAt
	}

	// The persistence calls above are suspension points, so the name
	// check is repeated atomically with the write.
	if err := m.dir.Install(ev.RoomID, entry); err != nil {
		return err
	}

	l.Info().
		Uint(log.FieldRoomID, ev.RoomID).
		Str(log.FieldUser, ev.Name).
		Bool("reconnect", prior != nil).
		Msg("user joined room")

	m.broadcastPeople(ev.RoomID)
	m.emitter.ToConn(connID, &domain.UpdateUserEventOut{
		Type:    domain.EventUpdateUser,
		ID:      connID,
		Name:    entry.Name,
		Blocked: entry.BlockedNames(),
		Token:   entry.Token,
	})
	return nil
}

// Heartbeat bumps the user's last-seen time. Unknown room or user is a
// silent no-op; the connection may have legitimately raced a disconnect.
func (m *Manager) Heartbeat(roomID uint, name string) {
	m.dir.Touch(roomID, name, m.now())
}

// Logout removes the user on explicit request.
func (m *Manager) Logout(ctx context.Context, roomID uint, name string) error {
	if _, err := m.rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil
		}
		return err
	}

	if !m.dir.Remove(roomID, name) {
		return nil
	}
	return m.announceExit(ctx, roomID, name)
}

// Disconnect handles a transport-level connection loss. The directory
// entry is only removed while it still belongs to the closing connection;
// a reconnect that has already replaced it stays untouched.
func (m *Manager) Disconnect(ctx context.Context, connID string, roomID uint, name string) {
	l := log.Ctx(ctx)

	if !m.dir.RemoveConn(roomID, name, connID) {
		return
	}
	if err := m.announceExit(ctx, roomID, name); err != nil {
		l.Error().Err(err).Uint(log.FieldRoomID, roomID).Str(log.FieldUser, name).Msg("failed to announce disconnect")
	}
}

// ToggleBlock flips the block state between the caller and target and
// pushes the caller's updated identity plus the room's presence list.
// Unknown caller or target is a silent no-op.
func (m *Manager) ToggleBlock(ctx context.Context, roomID uint, name, target string) {
	if _, ok := m.dir.Get(roomID, target); !ok {
		return
	}
	updated, ok := m.dir.ToggleBlock(roomID, name, target)
	if !ok {
		return
	}

	l := log.Ctx(ctx)
	l.Debug().Uint(log.FieldRoomID, roomID).Str(log.FieldUser, name).Str("target", target).Msg("block toggled")

	m.emitter.ToConn(updated.ConnID, &domain.UpdateUserEventOut{
		Type:    domain.EventUpdateUser,
		ID:      updated.ConnID,
		Name:    updated.Name,
		Blocked: updated.BlockedNames(),
		Token:   updated.Token,
	})
	m.broadcastPeople(roomID)
}

// PurgeIdle runs one eviction pass: every user silent for longer than the
// idle timeout is removed with the same sequence as an explicit leave.
// One room's failure never aborts the pass over other rooms.
func (m *Manager) PurgeIdle(ctx context.Context) {
	l := log.Ctx(ctx)
	cutoff := m.now().Add(-m.cfg.IdleTimeout)

	for _, roomID := range m.dir.RoomIDs() {
		for name, u := range m.dir.UsersOf(roomID) {
			if !u.LastSeenAt.Before(cutoff) {
				continue
			}
			// Re-check under the directory lock; a heartbeat or
			// reconnect may have landed since the snapshot.
			if !m.dir.RemoveStale(roomID, name, cutoff) {
				continue
			}
			l.Info().Uint(log.FieldRoomID, roomID).Str(log.FieldUser, name).Msg("idle user purged")
			if err := m.announceExit(ctx, roomID, name); err != nil {
				l.Error().Err(err).Uint(log.FieldRoomID, roomID).Str(log.FieldUser, name).Msg("failed to announce purge")
			}
		}
	}
}

// RunPurgeLoop evaluates idle users on a fixed interval until the context
// is cancelled. The ticker is stopped before returning.
func (m *Manager) RunPurgeLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.PurgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.PurgeIdle(ctx)
		}
	}
}

// announce persists a system message and broadcasts it to the room.
func (m *Manager) announce(ctx context.Context, roomID uint, body string) error {
	msg := &domain.ChatMessage{
		RoomID:   roomID,
		Sender:   domain.SenderSystem,
		Body:     body,
		DateTime: m.now().UTC(),
	}
	if err := m.msgs.Save(ctx, msg); err != nil {
		return err
	}
	m.emitter.ToRoom(roomID, msg.ToEvent())
	return nil
}

// announceExit emits the leave announcement and the shrunken presence
// list. The user is already gone from the directory.
func (m *Manager) announceExit(ctx context.Context, roomID uint, name string) error {
	err := m.announce(ctx, roomID, name+" exited the room...")
	m.broadcastPeople(roomID)
	return err
}

// broadcastPeople pushes the full presence list, Everyone first.
func (m *Manager) broadcastPeople(roomID uint) {
	users := m.dir.UsersOf(roomID)

	names := lo.Keys(users)
	sort.Strings(names)

	people := make([]domain.Person, 0, len(names)+1)
	people = append(people, domain.Person{
		ID:      domain.EveryoneID,
		Name:    domain.EveryoneName,
		Blocked: []string{},
	})
	people = append(people, lo.Map(names, func(name string, _ int) domain.Person {
		u := users[name]
		return domain.Person{
			ID:      u.ConnID,
			Name:    u.Name,
			Blocked: u.BlockedNames(),
		}
	})...)

	m.emitter.ToRoom(roomID, &domain.PeopleEventOut{
		Type:  domain.EventPeople,
		Users: people,
	})
}

// validName enforces the 1-20 character limit and rejects control
// characters; schema validation already covers most of this for events
// that went through the gateway.
func validName(name string) bool {
	runes := []rune(name)
	if len(runes) < 1 || len(runes) > 20 {
		return false
	}
	for _, r := range runes {
		if unicode.IsControl(r) {
			return false
		}
	}
	return true
}
