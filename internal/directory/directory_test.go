package directory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opentalk/chatroom/internal/domain"
)

func user(connID, name, token string) domain.ConnectedUser {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	return domain.ConnectedUser{
		ConnID:     connID,
		Name:       name,
		Token:      token,
		Blocked:    make(map[string]struct{}),
		JoinedAt:   now,
		LastSeenAt: now,
	}
}

func TestDirectory_Install_And_Get(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))

	got, ok := d.Get(1, "alice")
	req.True(ok)
	req.Equal("alice", got.Name)
	req.Equal("c1", got.ConnID)
	req.Equal(1, d.Count(1))
}

func TestDirectory_Install_NameHeldByOtherIdentity(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))
	err := d.Install(1, user("c2", "alice", "t2"))
	req.ErrorIs(err, ErrNameTaken)

	// Original entry is untouched.
	got, ok := d.Get(1, "alice")
	req.True(ok)
	req.Equal("c1", got.ConnID)
}

func TestDirectory_Install_SameNameInDifferentRooms(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))
	req.NoError(d.Install(2, user("c2", "alice", "t2")))

	req.Equal(1, d.Count(1))
	req.Equal(1, d.Count(2))
}

func TestDirectory_Install_ReconnectReplacesPriorEntry(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))
	req.NoError(d.Install(1, user("c2", "alice", "t1")))

	got, ok := d.Get(1, "alice")
	req.True(ok)
	req.Equal("c2", got.ConnID)
	req.Equal(1, d.Count(1))
}

func TestDirectory_Install_ReconnectUnderNewNameDropsOldName(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))
	req.NoError(d.Install(1, user("c2", "alicia", "t1")))

	_, ok := d.Get(1, "alice")
	req.False(ok)
	got, ok := d.Get(1, "alicia")
	req.True(ok)
	req.Equal("c2", got.ConnID)
	req.Equal(1, d.Count(1))

	// The old name is free for someone else.
	req.NoError(d.Install(1, user("c3", "alice", "t3")))
}

func TestDirectory_FindByToken(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))

	got, ok := d.FindByToken(1, "t1")
	req.True(ok)
	req.Equal("alice", got.Name)

	_, ok = d.FindByToken(1, "unknown")
	req.False(ok)
	_, ok = d.FindByToken(2, "t1")
	req.False(ok)
}

func TestDirectory_Remove(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))
	req.True(d.Remove(1, "alice"))
	req.False(d.Remove(1, "alice"))
	req.Equal(0, d.Count(1))

	// Token index is cleaned up with the entry.
	_, ok := d.FindByToken(1, "t1")
	req.False(ok)
}

func TestDirectory_RemoveConn_StaleConnectionCannotEvictFreshEntry(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))
	req.NoError(d.Install(1, user("c2", "alice", "t1")))

	// The old connection closing must not remove the reconnected user.
	req.False(d.RemoveConn(1, "alice", "c1"))
	req.Equal(1, d.Count(1))

	req.True(d.RemoveConn(1, "alice", "c2"))
	req.Equal(0, d.Count(1))
}

func TestDirectory_RemoveStale_HeartbeatWins(t *testing.T) {
	req := require.New(t)
	d := New()

	u := user("c1", "alice", "t1")
	req.NoError(d.Install(1, u))

	cutoff := u.LastSeenAt.Add(time.Second)
	req.True(d.Touch(1, "alice", cutoff.Add(time.Minute)))

	// A touch after the purge snapshot keeps the user.
	req.False(d.RemoveStale(1, "alice", cutoff))
	req.Equal(1, d.Count(1))

	req.True(d.RemoveStale(1, "alice", cutoff.Add(2*time.Minute)))
	req.Equal(0, d.Count(1))
}

func TestDirectory_RemoveRoom(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))
	req.NoError(d.Install(1, user("c2", "bob", "t2")))

	d.RemoveRoom(1)
	req.Equal(0, d.Count(1))
	req.Empty(d.RoomIDs())
}

func TestDirectory_ToggleBlock(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))

	got, ok := d.ToggleBlock(1, "alice", "bob")
	req.True(ok)
	req.True(got.HasBlocked("bob"))

	got, ok = d.ToggleBlock(1, "alice", "bob")
	req.True(ok)
	req.False(got.HasBlocked("bob"))

	_, ok = d.ToggleBlock(1, "nobody", "bob")
	req.False(ok)
}

func TestDirectory_UsersOf_ReturnsClones(t *testing.T) {
	req := require.New(t)
	d := New()

	req.NoError(d.Install(1, user("c1", "alice", "t1")))

	users := d.UsersOf(1)
	req.Len(users, 1)

	// Mutating the snapshot must not reach the directory.
	u := users["alice"]
	u.Blocked["bob"] = struct{}{}

	got, _ := d.Get(1, "alice")
	req.False(got.HasBlocked("bob"))
}
