package routing

import (
	"context"
	"errors"
	"time"

	"github.com/opentalk/chatroom/internal/directory"
	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/repository"
	"github.com/opentalk/chatroom/pkg/log"
)

// ErrForbidden is returned when a delete is requested by someone other
// than the original sender.
var ErrForbidden = errors.New("only the sender may delete a message")

// Emitter delivers outbound events. Delivery to a connection that no
// longer exists is skipped by the implementation.
type Emitter interface {
	ToRoom(roomID uint, v interface{})
	ToConn(connID string, v interface{})
}

// Router computes recipient sets, persists messages and emits delivery
// events. Persist-then-emit is sequential inside every call, so persisted
// order and delivered order never diverge for a message.
type Router struct {
	dir     *directory.Directory
	rooms   repository.RoomRepository
	msgs    repository.MessageRepository
	emitter Emitter
	now     func() time.Time
}

// NewRouter creates a message router.
func NewRouter(dir *directory.Directory, rooms repository.RoomRepository, msgs repository.MessageRepository, emitter Emitter) *Router {
	return &Router{
		dir:     dir,
		rooms:   rooms,
		msgs:    msgs,
		emitter: emitter,
		now:     time.Now,
	}
}

// SendPublic routes a room-wide message. The message is persisted once,
// always echoed to the sender, and delivered to every other connected
// user the block rules allow. When an explicit target is named, a block
// between sender and the target's holder also withholds the message from
// all third parties.
func (r *Router) SendPublic(ctx context.Context, roomID uint, senderName, body, target string) error {
	l := log.Ctx(ctx)

	if _, err := r.rooms.GetByID(ctx, roomID); err != nil {
		return err
	}

	sender, ok := r.dir.Get(roomID, senderName)
	if !ok {
		// Sender raced a disconnect; the message is dropped.
		l.Debug().Uint(log.FieldRoomID, roomID).Str(log.FieldUser, senderName).Msg("public message from absent sender dropped")
		return nil
	}

	msg := &domain.ChatMessage{
		RoomID:   roomID,
		Sender:   sender.Name,
		Receiver: target,
		Body:     body,
		DateTime: r.now().UTC(),
	}
	if err := r.msgs.Save(ctx, msg); err != nil {
		return err
	}

	// The save is a suspension point; re-fetch room state before fan-out.
	users := r.dir.UsersOf(roomID)
	if s, ok := users[senderName]; ok {
		sender = s
	}

	out := msg.ToEvent()
	r.emitter.ToConn(sender.ConnID, out)

	var recipient *domain.ConnectedUser
	if target != "" {
		if t, ok := users[target]; ok {
			recipient = &t
		}
	}

	for name, u := range users {
		if name == sender.Name {
			continue
		}
		if recipient != nil {
			if !Visible(&sender, recipient) || !Visible(&sender, &u) {
				continue
			}
		} else if !Visible(&sender, &u) {
			continue
		}
		r.emitter.ToConn(u.ConnID, out)
	}
	return nil
}

// SendPrivate routes a message to a single recipient. An unresolvable
// recipient drops the message. The sender always gets the echo; the
// recipient only when neither side blocks the other.
func (r *Router) SendPrivate(ctx context.Context, roomID uint, senderName, recipientName, body string) error {
	l := log.Ctx(ctx)

	if _, err := r.rooms.GetByID(ctx, roomID); err != nil {
		return err
	}

	sender, ok := r.dir.Get(roomID, senderName)
	if !ok {
		l.Debug().Uint(log.FieldRoomID, roomID).Str(log.FieldUser, senderName).Msg("private message from absent sender dropped")
		return nil
	}
	recipient, ok := r.dir.Get(roomID, recipientName)
	if !ok {
		l.Debug().Uint(log.FieldRoomID, roomID).Str(log.FieldUser, recipientName).Msg("private message to absent recipient dropped")
		return nil
	}

	msg := &domain.ChatMessage{
		RoomID:   roomID,
		Sender:   sender.Name,
		Receiver: recipient.Name,
		Body:     body,
		DateTime: r.now().UTC(),
		Private:  true,
	}
	if err := r.msgs.Save(ctx, msg); err != nil {
		return err
	}

	// Re-fetch both parties after the save.
	users := r.dir.UsersOf(roomID)
	if s, ok := users[senderName]; ok {
		sender = s
	}

	out := msg.ToEvent()
	r.emitter.ToConn(sender.ConnID, out)

	recipient, ok = users[recipientName]
	if !ok {
		return nil
	}
	if Visible(&sender, &recipient) {
		r.emitter.ToConn(recipient.ConnID, out)
	}
	return nil
}

// Delete soft-deletes a message on behalf of its original sender and
// broadcasts the deletion to the room. The stored body is kept. An
// unknown message is a silent no-op; a non-sender gets ErrForbidden and
// nothing changes.
func (r *Router) Delete(ctx context.Context, roomID, messageID uint, requesterName string) error {
	l := log.Ctx(ctx)

	msg, err := r.msgs.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return nil
		}
		return err
	}
	if msg.RoomID != roomID {
		return nil
	}
	if msg.Sender != requesterName {
		return ErrForbidden
	}

	if err := r.msgs.MarkDeleted(ctx, messageID); err != nil {
		return err
	}

	l.Debug().Uint(log.FieldRoomID, roomID).Uint("message_id", messageID).Msg("message soft-deleted")
	r.emitter.ToRoom(roomID, &domain.MessageDeletedEventOut{
		Type: domain.EventMessageDeleted,
		ID:   messageID,
	})
	return nil
}
