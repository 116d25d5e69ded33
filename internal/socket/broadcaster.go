package socket

import "fmt"

// Broadcaster provides high-level methods for pushing events to connected
// clients. Pushes to offline users are silent no-ops.
type Broadcaster struct {
	hub *Hub
}

func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// SendNotification pushes a persisted notification to every live connection
// of a user.
func (b *Broadcaster) SendNotification(userID string, notification map[string]interface{}) {
	b.hub.SendToUser(userID, MessageNotification, notification)
}

// SendNotificationCount updates notification counters for a user.
func (b *Broadcaster) SendNotificationCount(userID string, total, unread int) {
	b.hub.SendToUser(userID, MessageNotificationCount, map[string]interface{}{
		"total":  total,
		"unread": unread,
	})
}

// BroadcastMemberAdded announces a new member to everyone in the team room.
func (b *Broadcaster) BroadcastMemberAdded(teamID, userID, role string) {
	room := fmt.Sprintf("team:%s", teamID)
	b.hub.SendToRoom(room, MessageMemberAdded, map[string]interface{}{
		"teamId": teamID,
		"userId": userID,
		"role":   role,
	}, "")
}

// BroadcastMemberRemoved announces a member's removal to the team room.
func (b *Broadcaster) BroadcastMemberRemoved(teamID, userID string) {
	room := fmt.Sprintf("team:%s", teamID)
	b.hub.SendToRoom(room, MessageMemberRemoved, map[string]interface{}{
		"teamId": teamID,
		"userId": userID,
	}, "")
}
