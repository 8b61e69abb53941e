package presence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opentalk/chatroom/internal/directory"
	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/repository"
)

type fakeRoomRepo struct {
	rooms map[uint]*domain.Room
}

func (f *fakeRoomRepo) Create(ctx context.Context, room *domain.Room) error { return nil }
func (f *fakeRoomRepo) GetByID(ctx context.Context, id uint) (*domain.Room, error) {
	room, ok := f.rooms[id]
	if !ok {
		return nil, repository.ErrRoomNotFound
	}
	return room, nil
}
func (f *fakeRoomRepo) Update(ctx context.Context, room *domain.Room) error { return nil }
func (f *fakeRoomRepo) Delete(ctx context.Context, id uint) error           { return nil }
func (f *fakeRoomRepo) List(ctx context.Context, name string) ([]domain.Room, error) {
	return nil, nil
}

type fakeMsgRepo struct {
	nextID   uint
	saved    []*domain.ChatMessage
	history  []domain.ChatMessage
	failRoom uint // saves for this room fail
}

func (f *fakeMsgRepo) Save(ctx context.Context, msg *domain.ChatMessage) error {
	if f.failRoom != 0 && msg.RoomID == f.failRoom {
		return errors.New("store unavailable")
	}
	f.nextID++
	msg.ID = f.nextID
	stored := *msg
	f.saved = append(f.saved, &stored)
	return nil
}
func (f *fakeMsgRepo) GetByID(ctx context.Context, id uint) (*domain.ChatMessage, error) {
	return nil, repository.ErrMessageNotFound
}
func (f *fakeMsgRepo) MarkDeleted(ctx context.Context, id uint) error { return nil }
func (f *fakeMsgRepo) FindSince(ctx context.Context, roomID uint, name string, since time.Time) ([]domain.ChatMessage, error) {
	return f.history, nil
}

type sentEvent struct {
	connID string      // empty for room-wide
	roomID uint
	event  interface{}
}

type fakeEmitter struct {
	joins  []string
	events []sentEvent
}

func (f *fakeEmitter) Join(connID string, roomID uint) {
	f.joins = append(f.joins, connID)
}
func (f *fakeEmitter) ToRoom(roomID uint, v interface{}) {
	f.events = append(f.events, sentEvent{roomID: roomID, event: v})
}
func (f *fakeEmitter) ToConn(connID string, v interface{}) {
	f.events = append(f.events, sentEvent{connID: connID, event: v})
}

func (f *fakeEmitter) toConn(connID string) []interface{} {
	var out []interface{}
	for _, e := range f.events {
		if e.connID == connID {
			out = append(out, e.event)
		}
	}
	return out
}

func (f *fakeEmitter) lastPeople() *domain.PeopleEventOut {
	for i := len(f.events) - 1; i >= 0; i-- {
		if p, ok := f.events[i].event.(*domain.PeopleEventOut); ok {
			return p
		}
	}
	return nil
}

type fixture struct {
	dir     *directory.Directory
	rooms   *fakeRoomRepo
	msgs    *fakeMsgRepo
	emitter *fakeEmitter
	mgr     *Manager
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		dir:     directory.New(),
		rooms:   &fakeRoomRepo{rooms: map[uint]*domain.Room{1: {ID: 1, Name: "general"}}},
		msgs:    &fakeMsgRepo{},
		emitter: &fakeEmitter{},
		clock:   time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
	f.mgr = NewManager(f.dir, f.rooms, f.msgs, f.emitter, Config{
		IdleTimeout:   90 * time.Second,
		PurgeInterval: 30 * time.Second,
	})
	f.mgr.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) join(t *testing.T, connID, name, token string) domain.JoinEvent {
	t.Helper()
	ev := domain.JoinEvent{Type: domain.EventJoin, RoomID: 1, Name: name, Token: token}
	require.NoError(t, f.mgr.Join(context.Background(), connID, ev))
	return ev
}

func TestManager_Join_FreshUser(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")

	// Transport membership was established before any announcement.
	req.Equal([]string{"c1"}, f.emitter.joins)

	// Entry announcement persisted with the system sender.
	req.Len(f.msgs.saved, 1)
	req.Equal(domain.SenderSystem, f.msgs.saved[0].Sender)
	req.Equal("alice entered the room...", f.msgs.saved[0].Body)

	// Presence list: Everyone first, then alice.
	people := f.emitter.lastPeople()
	req.NotNil(people)
	req.Len(people.Users, 2)
	req.Equal(domain.EveryoneID, people.Users[0].ID)
	req.Equal(domain.EveryoneName, people.Users[0].Name)
	req.Equal("alice", people.Users[1].Name)

	// Caller gets its resolved identity with a minted token.
	var update *domain.UpdateUserEventOut
	for _, e := range f.emitter.toConn("c1") {
		if u, ok := e.(*domain.UpdateUserEventOut); ok {
			update = u
		}
	}
	req.NotNil(update)
	req.Equal("alice", update.Name)
	req.NotEmpty(update.Token)
}

func TestManager_Join_UnknownRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	err := f.mgr.Join(context.Background(), "c1", domain.JoinEvent{RoomID: 9, Name: "alice"})
	req.ErrorIs(err, repository.ErrRoomNotFound)
	req.Empty(f.msgs.saved)
}

func TestManager_Join_InvalidName(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	for _, name := range []string{"", "this name is way too long for a room", "bad\x00name"} {
		err := f.mgr.Join(context.Background(), "c1", domain.JoinEvent{RoomID: 1, Name: name})
		req.ErrorIs(err, ErrInvalidInput)
	}
}

func TestManager_Join_NameTaken(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")

	err := f.mgr.Join(context.Background(), "c2", domain.JoinEvent{RoomID: 1, Name: "alice"})
	req.ErrorIs(err, ErrNameTaken)

	// The first occupant keeps the name.
	got, ok := f.dir.Get(1, "alice")
	req.True(ok)
	req.Equal("c1", got.ConnID)
}

func TestManager_Join_ReconnectReplaysHistoryWithoutAnnouncement(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	u, _ := f.dir.Get(1, "alice")
	token := u.Token

	f.dir.ToggleBlock(1, "alice", "bob")
	f.clock = f.clock.Add(time.Minute)

	f.msgs.history = []domain.ChatMessage{
		{ID: 1, RoomID: 1, Sender: domain.SenderSystem, Body: "alice entered the room...", DateTime: f.clock},
		{ID: 2, RoomID: 1, Sender: "carol", Body: "hi", DateTime: f.clock},
	}
	savedBefore := len(f.msgs.saved)

	f.join(t, "c2", "alice", token)

	// No new entry announcement on reconnect.
	req.Len(f.msgs.saved, savedBefore)

	// History replayed in order to the new connection only.
	var replayed []*domain.MessageEventOut
	for _, e := range f.emitter.toConn("c2") {
		if m, ok := e.(*domain.MessageEventOut); ok {
			replayed = append(replayed, m)
		}
	}
	req.Len(replayed, 2)
	req.Equal(domain.SenderSystemDisplay, replayed[0].Sender)
	req.Equal("hi", replayed[1].Body)

	// Identity survives: same token, blocked set and joinedAt carried over.
	got, ok := f.dir.Get(1, "alice")
	req.True(ok)
	req.Equal("c2", got.ConnID)
	req.Equal(token, got.Token)
	req.True(got.HasBlocked("bob"))
	req.Equal(u.JoinedAt, got.JoinedAt)
}

func TestManager_Heartbeat_BumpsLastSeen(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	before, _ := f.dir.Get(1, "alice")

	f.clock = f.clock.Add(time.Minute)
	f.mgr.Heartbeat(1, "alice")

	after, _ := f.dir.Get(1, "alice")
	req.True(after.LastSeenAt.After(before.LastSeenAt))

	// Unknown user is a silent no-op.
	f.mgr.Heartbeat(1, "ghost")
	f.mgr.Heartbeat(9, "alice")
}

func TestManager_Logout_AnnouncesExit(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	f.join(t, "c2", "bob", "")

	req.NoError(f.mgr.Logout(context.Background(), 1, "alice"))

	_, ok := f.dir.Get(1, "alice")
	req.False(ok)

	last := f.msgs.saved[len(f.msgs.saved)-1]
	req.Equal("alice exited the room...", last.Body)
	req.Equal(domain.SenderSystem, last.Sender)

	people := f.emitter.lastPeople()
	req.Len(people.Users, 2) // Everyone + bob
	req.Equal("bob", people.Users[1].Name)
}

func TestManager_Logout_UnknownRoomOrUserSilent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	req.NoError(f.mgr.Logout(context.Background(), 9, "alice"))
	req.NoError(f.mgr.Logout(context.Background(), 1, "ghost"))
	req.Empty(f.msgs.saved)
}

func TestManager_Disconnect_RemovesOwnEntryOnly(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	u, _ := f.dir.Get(1, "alice")

	// Reconnect on a new connection, then the old one closes.
	f.join(t, "c2", "alice", u.Token)
	savedBefore := len(f.msgs.saved)

	f.mgr.Disconnect(context.Background(), "c1", 1, "alice")

	// The fresh entry stays; no exit announcement.
	got, ok := f.dir.Get(1, "alice")
	req.True(ok)
	req.Equal("c2", got.ConnID)
	req.Len(f.msgs.saved, savedBefore)

	f.mgr.Disconnect(context.Background(), "c2", 1, "alice")
	_, ok = f.dir.Get(1, "alice")
	req.False(ok)
	req.Equal("alice exited the room...", f.msgs.saved[len(f.msgs.saved)-1].Body)
}

func TestManager_ToggleBlock(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	f.join(t, "c2", "bob", "")
	f.emitter.events = nil

	f.mgr.ToggleBlock(context.Background(), 1, "alice", "bob")

	got, _ := f.dir.Get(1, "alice")
	req.True(got.HasBlocked("bob"))

	// Caller got its updated identity, the room got a fresh list.
	var update *domain.UpdateUserEventOut
	for _, e := range f.emitter.toConn("c1") {
		if u, ok := e.(*domain.UpdateUserEventOut); ok {
			update = u
		}
	}
	req.NotNil(update)
	req.Equal([]string{"bob"}, update.Blocked)
	req.NotNil(f.emitter.lastPeople())

	// Toggling again unblocks.
	f.mgr.ToggleBlock(context.Background(), 1, "alice", "bob")
	got, _ = f.dir.Get(1, "alice")
	req.False(got.HasBlocked("bob"))
}

func TestManager_ToggleBlock_UnknownTargetSilent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	f.emitter.events = nil

	f.mgr.ToggleBlock(context.Background(), 1, "alice", "ghost")
	req.Empty(f.emitter.events)
}

func TestManager_PurgeIdle(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	f.join(t, "c2", "bob", "")

	// Bob heartbeats, alice goes silent.
	f.clock = f.clock.Add(2 * time.Minute)
	f.mgr.Heartbeat(1, "bob")

	f.mgr.PurgeIdle(context.Background())

	_, ok := f.dir.Get(1, "alice")
	req.False(ok)
	_, ok = f.dir.Get(1, "bob")
	req.True(ok)

	req.Equal("alice exited the room...", f.msgs.saved[len(f.msgs.saved)-1].Body)
}

func TestManager_PurgeIdle_OneRoomFailureDoesNotAbortOthers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.rooms.rooms[2] = &domain.Room{ID: 2, Name: "lounge"}

	req.NoError(f.mgr.Join(context.Background(), "c1", domain.JoinEvent{RoomID: 1, Name: "alice"}))
	req.NoError(f.mgr.Join(context.Background(), "c2", domain.JoinEvent{RoomID: 2, Name: "bob"}))

	// Room 1's exit announcement will fail at the store.
	f.msgs.failRoom = 1
	f.clock = f.clock.Add(2 * time.Minute)

	f.mgr.PurgeIdle(context.Background())

	// Both rooms were evicted even though one announcement failed.
	req.Equal(0, f.dir.Count(1))
	req.Equal(0, f.dir.Count(2))

	var bodies []string
	for _, m := range f.msgs.saved {
		bodies = append(bodies, m.Body)
	}
	req.Contains(bodies, "bob exited the room...")
	req.NotContains(bodies, "alice exited the room...")
}

func TestManager_PurgeIdle_NobodyIdle(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.join(t, "c1", "alice", "")
	savedBefore := len(f.msgs.saved)

	f.mgr.PurgeIdle(context.Background())

	_, ok := f.dir.Get(1, "alice")
	req.True(ok)
	req.Len(f.msgs.saved, savedBefore)
}
