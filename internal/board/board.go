// Package board holds the authoritative drawing state of one room: the stroke
// log, drafts in progress, per-owner undo stacks and the participant registry.
//
// Every exported Board method takes the board lock for its whole
// read-modify-write sequence, and history-changing methods return the snapshot
// taken under that same lock, so what gets broadcast is exactly the post-state
// of the mutation.
package board

import (
	"log"
	"sync"
)

type Board struct {
	mu       sync.Mutex
	log      *Log
	active   *Tracker
	undo     *UndoStacks
	registry *Registry
	commits  int
}

type Option func(*config)

type config struct {
	newID func() string
}

// WithIDGenerator replaces the stroke id source
func WithIDGenerator(newID func() string) Option {
	return func(c *config) {
		c.newID = newID
	}
}

func New(opts ...Option) *Board {
	cfg := config{newID: NewStrokeID}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Board{
		log:      NewLog(),
		active:   NewTracker(cfg.newID),
		undo:     NewUndoStacks(),
		registry: NewRegistry(),
	}
}

// What a joining participant needs to catch up
type Welcome struct {
	Color   string
	History []Stroke
	Roster  []RosterEntry
}

type Departure struct {
	Roster         []RosterEntry
	DiscardedDraft bool
}

// Result of a stroke commit
type Commit struct {
	Stroke  Stroke
	History []Stroke
}

type Stats struct {
	Participants int `json:"participants"`
	Strokes      int `json:"strokes"`
	Hidden       int `json:"hidden"`
	Drafts       int `json:"drafts"`
	Commits      int `json:"commits"`
}

func (b *Board) Join(id string) Welcome {
	b.mu.Lock()
	defer b.mu.Unlock()

	color := b.registry.Join(id)
	return Welcome{
		Color:   color,
		History: b.log.Snapshot(),
		Roster:  b.registry.Roster(),
	}
}

// Leave removes the participant and throws away its open draft. Committed
// history and the owner's undo stack are left untouched.
func (b *Board) Leave(id string) (Departure, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Leave(id) {
		return Departure{}, false
	}
	discarded := b.active.Discard(id)
	return Departure{
		Roster:         b.registry.Roster(),
		DiscardedDraft: discarded,
	}, true
}

func (b *Board) UpdateCursor(id string, x, y float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.UpdateCursor(id, x, y)
}

func (b *Board) BeginStroke(ownerID string, first Point, style Style) (Stroke, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Has(ownerID) {
		return Stroke{}, false
	}
	return b.active.Begin(ownerID, first, style)
}

func (b *Board) AppendPoint(ownerID string, p Point) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Has(ownerID) {
		return false
	}
	return b.active.Append(ownerID, p)
}

// EndStroke moves the owner's draft into the log and clears the owner's redo
// future.
func (b *Board) EndStroke(ownerID string) (Commit, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Has(ownerID) {
		return Commit{}, false
	}
	draft, ok := b.active.End(ownerID)
	if !ok {
		return Commit{}, false
	}
	if err := b.log.Commit(draft); err != nil {
		log.Printf("⚠️ dropping stroke from %s: %v", ownerID, err)
		return Commit{}, false
	}
	b.undo.Invalidate(ownerID)
	b.commits++

	return Commit{
		Stroke:  draft.Clone(),
		History: b.log.Snapshot(),
	}, true
}

// Undo hides the owner's newest visible stroke and returns the new history.
func (b *Board) Undo(ownerID string) ([]Stroke, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Has(ownerID) {
		return nil, false
	}
	if _, ok := b.undo.Undo(b.log, ownerID); !ok {
		return nil, false
	}
	return b.log.Snapshot(), true
}

// Redo restores the owner's most recently undone stroke in place.
func (b *Board) Redo(ownerID string) ([]Stroke, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registry.Has(ownerID) {
		return nil, false
	}
	if _, ok := b.undo.Redo(b.log, ownerID); !ok {
		return nil, false
	}
	return b.log.Snapshot(), true
}

func (b *Board) Snapshot() []Stroke {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.log.Snapshot()
}

// Visible returns the committed strokes a renderer should draw, in z-order.
func (b *Board) Visible() []Stroke {
	b.mu.Lock()
	defer b.mu.Unlock()

	all := b.log.Snapshot()
	visible := make([]Stroke, 0, len(all))
	for _, s := range all {
		if !s.Hidden {
			visible = append(visible, s)
		}
	}
	return visible
}

func (b *Board) Roster() []RosterEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registry.Roster()
}

func (b *Board) UndoStack(ownerID string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.undo.Stack(ownerID)
}

func (b *Board) HasDraft(ownerID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active.Has(ownerID)
}

func (b *Board) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		Participants: b.registry.Len(),
		Strokes:      b.log.Len(),
		Hidden:       b.log.HiddenCount(),
		Drafts:       b.active.Len(),
		Commits:      b.commits,
	}
}
