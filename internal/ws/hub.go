package ws

import (
	"log"
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/manpreetbhatti/inkboard/internal/board"
	"github.com/manpreetbhatti/inkboard/internal/db"
	"github.com/manpreetbhatti/inkboard/internal/protocol"
	"github.com/manpreetbhatti/inkboard/internal/room"
)

// The set of connected clients per room. Run is the single goroutine that
// applies every inbound event and queues the resulting broadcasts, so clients
// observe history changes in the order they were applied.
type Hub struct {
	rooms *room.Manager

	// Connected clients by room
	clients map[string]mapset.Set[*Client]

	// Decoded messages from clients
	inbound chan *Event

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	done     chan struct{}
	stopOnce sync.Once

	database *db.Database

	mu sync.RWMutex
}

// One inbound message from a client
type Event struct {
	Client  *Client
	Message protocol.Inbound
}

// database may be nil, in which case sessions are not recorded.
func NewHub(database *db.Database, opts ...board.Option) *Hub {
	return &Hub{
		rooms:      room.NewManager(opts...),
		clients:    make(map[string]mapset.Set[*Client]),
		inbound:    make(chan *Event),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		database:   database,
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.join(client)

		case client := <-h.unregister:
			h.leave(client)

		case event := <-h.inbound:
			h.handle(event)

		case <-h.done:
			return
		}
	}
}

// Stop ends Run. Pumps blocked on the hub give up.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

func (h *Hub) join(client *Client) {
	h.mu.Lock()
	r := h.rooms.GetOrCreate(client.roomID)
	members, ok := h.clients[client.roomID]
	if !ok {
		members = mapset.NewThreadUnsafeSet[*Client]()
		h.clients[client.roomID] = members
	}
	members.Add(client)
	clientCount := members.Cardinality()
	h.mu.Unlock()

	welcome := r.Board.Join(client.id)

	if h.database != nil {
		if err := h.database.StartSession(client.roomID, client.id, welcome.Color); err != nil {
			log.Printf("Failed to record session for %s: %v", client.id, err)
		}
	}

	h.emit(client.roomID, client, protocol.MessageInit, protocol.InitData{
		History:       welcome.History,
		SelfID:        client.id,
		AssignedColor: welcome.Color,
	})
	h.emit(client.roomID, client, protocol.MessageUserUpdate, protocol.UserUpdateData{Roster: welcome.Roster})

	log.Printf("Client %s joined room %s (total: %d)", client.id, client.roomID, clientCount)
}

// leave is idempotent; a client can be evicted and then unregister itself.
func (h *Hub) leave(client *Client) {
	h.mu.Lock()
	members, ok := h.clients[client.roomID]
	if !ok || !members.Contains(client) {
		h.mu.Unlock()
		return
	}
	members.Remove(client)
	close(client.send)
	remaining := members.Cardinality()
	if remaining == 0 {
		delete(h.clients, client.roomID)
	}
	h.mu.Unlock()

	if r, ok := h.rooms.Get(client.roomID); ok {
		if departure, ok := r.Board.Leave(client.id); ok {
			if departure.DiscardedDraft {
				h.emit(client.roomID, client, protocol.MessageRemoteEnd, protocol.RemoteEndData{OwnerID: client.id})
			}
			h.emit(client.roomID, client, protocol.MessageUserUpdate, protocol.UserUpdateData{Roster: departure.Roster})
		}
	}

	if h.database != nil {
		if err := h.database.EndSession(client.id); err != nil {
			log.Printf("Failed to close session for %s: %v", client.id, err)
		}
	}

	if remaining == 0 {
		log.Printf("Room %s idle (no clients)", client.roomID)
	} else {
		log.Printf("Client %s left room %s (remaining: %d)", client.id, client.roomID, remaining)
	}
}

func (h *Hub) isMember(client *Client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	members, ok := h.clients[client.roomID]
	return ok && members.Contains(client)
}

func (h *Hub) handle(event *Event) {
	client := event.Client
	if !h.isMember(client) {
		return
	}
	r, ok := h.rooms.Get(client.roomID)
	if !ok {
		return
	}
	b := r.Board
	msg := event.Message

	switch msg.Type {
	case protocol.MessageStartStroke:
		first := board.Point{X: msg.Start.X, Y: msg.Start.Y}
		if stroke, ok := b.BeginStroke(client.id, first, msg.Style()); ok {
			h.emit(client.roomID, client, protocol.MessageRemoteStart, protocol.RemoteStartData{
				OwnerID: client.id,
				Stroke:  stroke,
			})
		}

	case protocol.MessageDrawPoint:
		p := board.Point{X: msg.Point.X, Y: msg.Point.Y}
		if b.AppendPoint(client.id, p) {
			h.emit(client.roomID, client, protocol.MessageRemotePoint, protocol.RemotePointData{
				OwnerID: client.id,
				X:       p.X,
				Y:       p.Y,
			})
		}

	case protocol.MessageEndStroke:
		if commit, ok := b.EndStroke(client.id); ok {
			h.emit(client.roomID, client, protocol.MessageRemoteEnd, protocol.RemoteEndData{OwnerID: client.id})
			h.emit(client.roomID, client, protocol.MessageHistoryUpdate, protocol.HistoryData{History: commit.History})
		}

	case protocol.MessageCursorMove:
		if b.UpdateCursor(client.id, msg.Point.X, msg.Point.Y) {
			h.emit(client.roomID, client, protocol.MessageRemoteCursor, protocol.RemotePointData{
				OwnerID: client.id,
				X:       msg.Point.X,
				Y:       msg.Point.Y,
			})
		}

	case protocol.MessageUndo:
		if history, ok := b.Undo(client.id); ok {
			h.emit(client.roomID, client, protocol.MessageHistoryUpdate, protocol.HistoryData{History: history})
		}

	case protocol.MessageRedo:
		if history, ok := b.Redo(client.id); ok {
			h.emit(client.roomID, client, protocol.MessageHistoryUpdate, protocol.HistoryData{History: history})
		}
	}
}

// Room returns the live room, if any client ever joined it
func (h *Hub) Room(id string) (*room.Room, bool) {
	return h.rooms.Get(id)
}

// RemoveRoom drops an idle room's board. Rooms with connected clients are
// kept and false is returned.
func (h *Hub) RemoveRoom(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.clients[id]; busy {
		return false
	}
	h.rooms.Remove(id)
	return true
}

// RoomIDs returns every live room, including idle ones
func (h *Hub) RoomIDs() []string {
	return h.rooms.IDs()
}

// Rooms with at least one connected client
func (h *Hub) GetRoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, members := range h.clients {
		total += members.Cardinality()
	}
	return total
}

// GetActiveRooms maps room id to connected client count
func (h *Hub) GetActiveRooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	active := make(map[string]int, len(h.clients))
	for id, members := range h.clients {
		active[id] = members.Cardinality()
	}
	return active
}

// ActiveRoomIDs returns rooms with connected clients, sorted
func (h *Hub) ActiveRoomIDs() []string {
	active := h.GetActiveRooms()
	ids := make([]string, 0, len(active))
	for id := range active {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
