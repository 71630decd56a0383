package ws

import (
	"log"

	"github.com/manpreetbhatti/inkboard/internal/protocol"
)

// Who receives an outbound message, relative to the connection that caused it
type Audience int

const (
	AudienceSender Audience = iota
	AudienceOthers
	AudienceEveryone
)

func (a Audience) String() string {
	switch a {
	case AudienceSender:
		return "sender"
	case AudienceOthers:
		return "others"
	case AudienceEveryone:
		return "everyone"
	}
	return "unknown"
}

// Live drawing goes to peers only; anything that changes the shared history
// or the roster goes to the whole room as a full snapshot.
var routes = map[protocol.MessageType]Audience{
	protocol.MessageInit:          AudienceSender,
	protocol.MessageRemoteStart:   AudienceOthers,
	protocol.MessageRemotePoint:   AudienceOthers,
	protocol.MessageRemoteCursor:  AudienceOthers,
	protocol.MessageRemoteEnd:     AudienceEveryone,
	protocol.MessageHistoryUpdate: AudienceEveryone,
	protocol.MessageUserUpdate:    AudienceEveryone,
}

// RouteOf returns the audience of an outbound message type
func RouteOf(t protocol.MessageType) (Audience, bool) {
	a, ok := routes[t]
	return a, ok
}

// emit encodes once and queues the frame on every recipient in the room.
// Must be called from the Run goroutine.
//
// A full send buffer drops lossy frames for that recipient only. For anything
// else the recipient is evicted: it would otherwise miss a history change,
// and on reconnect init gives it the full state again.
func (h *Hub) emit(roomID string, sender *Client, t protocol.MessageType, payload any) {
	audience, ok := routes[t]
	if !ok {
		log.Printf("⚠️ No route for message type %s", t)
		return
	}

	data, err := protocol.Encode(t, payload)
	if err != nil {
		log.Printf("⚠️ Failed to encode %s: %v", t, err)
		return
	}

	var slow []*Client
	for _, client := range h.recipients(roomID, sender, audience) {
		select {
		case client.send <- data:
		default:
			if t.Lossy() {
				continue
			}
			slow = append(slow, client)
		}
	}

	for _, client := range slow {
		log.Printf("🐢 Evicting slow client %s from room %s", client.id, roomID)
		h.leave(client)
	}
}

func (h *Hub) recipients(roomID string, sender *Client, audience Audience) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.clients[roomID]
	if !ok {
		return nil
	}

	switch audience {
	case AudienceSender:
		if sender != nil && members.Contains(sender) {
			return []*Client{sender}
		}
		return nil
	case AudienceOthers:
		out := make([]*Client, 0, members.Cardinality())
		for _, c := range members.ToSlice() {
			if c != sender {
				out = append(out, c)
			}
		}
		return out
	default:
		return members.ToSlice()
	}
}
