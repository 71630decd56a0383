package board

import (
	"github.com/google/uuid"
)

// Tool is the kind of instrument a stroke was drawn with
type Tool string

const (
	ToolBrush  Tool = "brush"
	ToolEraser Tool = "eraser"
)

// Valid reports whether t is one of the known tools
func (t Tool) Valid() bool {
	return t == ToolBrush || t == ToolEraser
}

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Render attributes chosen by the owner when a stroke begins
type Style struct {
	Color string
	Size  float64
	Tool  Tool
}

// One continuous drawing action by one owner.
// Points only grow while the stroke is a draft and are frozen once committed;
// after that only Hidden changes.
type Stroke struct {
	ID      string  `json:"id"`
	OwnerID string  `json:"ownerId"`
	Points  []Point `json:"points"`
	Color   string  `json:"color"`
	Size    float64 `json:"size"`
	Type    Tool    `json:"type"`
	Hidden  bool    `json:"hidden"`
}

// Returns a deep copy so callers never share the point slice with the board
func (s *Stroke) Clone() Stroke {
	c := *s
	c.Points = make([]Point, len(s.Points))
	copy(c.Points, s.Points)
	return c
}

// NewStrokeID returns a time-ordered UUIDv7, falling back to a random v4
// if the v7 generator fails.
func NewStrokeID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
