package routing

import (
	"github.com/opentalk/chatroom/internal/domain"
)

// Visible reports whether a message from sender may be seen by recipient.
// A block in either direction suppresses delivery both ways; a user always
// sees their own messages.
func Visible(sender, recipient *domain.ConnectedUser) bool {
	if sender.Name == recipient.Name {
		return true
	}
	return !sender.HasBlocked(recipient.Name) && !recipient.HasBlocked(sender.Name)
}
