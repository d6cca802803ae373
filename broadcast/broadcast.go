// broadcast/broadcast.go
package broadcast

import (
	"github.com/spinhall/casino-server/session"
)

// Broadcaster is the capability the round engine gets for pushing events out:
// a targeted send and a roster fan-out. Rooms own their rosters, so fan-out
// takes explicit user ids rather than a room id.
type Broadcaster interface {
	SendToUser(userID int64, msgID uint16, payload interface{}) error
	BroadcastToUsers(userIDs []int64, msgID uint16, payload interface{})
}

// RegistryBroadcaster implements Broadcaster over the session registry.
type RegistryBroadcaster struct {
	sessions *session.Manager
}

func NewRegistryBroadcaster(sessions *session.Manager) *RegistryBroadcaster {
	return &RegistryBroadcaster{sessions: sessions}
}

func (b *RegistryBroadcaster) SendToUser(userID int64, msgID uint16, payload interface{}) error {
	return b.sessions.SendToUser(userID, msgID, payload)
}

func (b *RegistryBroadcaster) BroadcastToUsers(userIDs []int64, msgID uint16, payload interface{}) {
	b.sessions.BroadcastToUsers(userIDs, msgID, payload)
}
