package board

import (
	"errors"
	"fmt"
)

var (
	ErrStrokeNotFound  = errors.New("stroke not found")
	ErrDuplicateStroke = errors.New("duplicate stroke id")
)

// Log is the ordered collection of committed strokes. Append position is the
// z-order: later entries render on top. Entries are never removed; undo only
// flips Hidden.
//
// Log is not safe for concurrent use; Board serializes access to it.
type Log struct {
	strokes []*Stroke
	index   map[string]int
}

func NewLog() *Log {
	return &Log{
		strokes: make([]*Stroke, 0),
		index:   make(map[string]int),
	}
}

// Appends a committed stroke in arrival order
func (l *Log) Commit(s Stroke) error {
	if _, ok := l.index[s.ID]; ok {
		return fmt.Errorf("commit %s: %w", s.ID, ErrDuplicateStroke)
	}
	stored := s.Clone()
	l.index[s.ID] = len(l.strokes)
	l.strokes = append(l.strokes, &stored)
	return nil
}

// Snapshot returns copies of every entry, hidden ones included, in log order.
func (l *Log) Snapshot() []Stroke {
	out := make([]Stroke, len(l.strokes))
	for i, s := range l.strokes {
		out[i] = s.Clone()
	}
	return out
}

func (l *Log) SetHidden(id string, hidden bool) error {
	i, ok := l.index[id]
	if !ok {
		return fmt.Errorf("set hidden %s: %w", id, ErrStrokeNotFound)
	}
	l.strokes[i].Hidden = hidden
	return nil
}

// Get returns a copy of the entry with the given id
func (l *Log) Get(id string) (Stroke, bool) {
	i, ok := l.index[id]
	if !ok {
		return Stroke{}, false
	}
	return l.strokes[i].Clone(), true
}

// Position returns the z-order slot of id, or -1
func (l *Log) Position(id string) int {
	if i, ok := l.index[id]; ok {
		return i
	}
	return -1
}

// latestVisible scans newest to oldest for the owner's newest visible stroke.
func (l *Log) latestVisible(ownerID string) (*Stroke, bool) {
	for i := len(l.strokes) - 1; i >= 0; i-- {
		s := l.strokes[i]
		if s.OwnerID == ownerID && !s.Hidden {
			return s, true
		}
	}
	return nil, false
}

func (l *Log) Len() int {
	return len(l.strokes)
}

// HiddenCount returns how many entries are currently soft-deleted
func (l *Log) HiddenCount() int {
	n := 0
	for _, s := range l.strokes {
		if s.Hidden {
			n++
		}
	}
	return n
}
