package room

import (
	"sort"
	"sync"
	"time"

	"github.com/manpreetbhatti/inkboard/internal/board"
)

// A shared drawing session
type Room struct {
	ID        string
	Board     *board.Board
	CreatedAt time.Time
}

// Creates a new room with an empty board
func NewRoom(id string, opts ...board.Option) *Room {
	return &Room{
		ID:        id,
		Board:     board.New(opts...),
		CreatedAt: time.Now().UTC(),
	}
}

// Manager owns the rooms of this process. Rooms are created on first use and
// live until Remove; boards are not persisted across restarts.
type Manager struct {
	rooms map[string]*Room
	opts  []board.Option
	mu    sync.RWMutex
}

func NewManager(opts ...board.Option) *Manager {
	return &Manager{
		rooms: make(map[string]*Room),
		opts:  opts,
	}
}

// Returns the room, creating it if needed
func (m *Manager) GetOrCreate(id string) *Room {
	m.mu.RLock()
	r, ok := m.rooms[id]
	m.mu.RUnlock()
	if ok {
		return r
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		return r
	}
	r = NewRoom(id, m.opts...)
	m.rooms[id] = r
	return r
}

func (m *Manager) Get(id string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Drops the room and its board
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, id)
}

// Returns room ids in sorted order
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.rooms))
	for id := range m.rooms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}
