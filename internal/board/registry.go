package board

import (
	"encoding/json"
	"fmt"
	"math"
)

type Participant struct {
	Color string  `json:"color"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

// RosterEntry encodes as the two element array [id, participant]
type RosterEntry struct {
	ID          string
	Participant Participant
}

func (e RosterEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ID, e.Participant})
}

func (e *RosterEntry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 2 {
		return fmt.Errorf("roster entry: want 2 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &e.ID); err != nil {
		return err
	}
	return json.Unmarshal(raw[1], &e.Participant)
}

// Registry tracks connected participants in join order.
type Registry struct {
	participants map[string]*Participant
	order        []string
	joins        int
}

func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]*Participant),
	}
}

// Join inserts the participant and assigns its color. Joining twice keeps the
// first color.
func (r *Registry) Join(id string) string {
	if p, ok := r.participants[id]; ok {
		return p.Color
	}
	color := colorFor(r.joins)
	r.joins++
	r.participants[id] = &Participant{Color: color}
	r.order = append(r.order, id)
	return color
}

func (r *Registry) UpdateCursor(id string, x, y float64) bool {
	p, ok := r.participants[id]
	if !ok {
		return false
	}
	p.X, p.Y = x, y
	return true
}

func (r *Registry) Leave(id string) bool {
	if _, ok := r.participants[id]; !ok {
		return false
	}
	delete(r.participants, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) Has(id string) bool {
	_, ok := r.participants[id]
	return ok
}

func (r *Registry) Get(id string) (Participant, bool) {
	p, ok := r.participants[id]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

func (r *Registry) Roster() []RosterEntry {
	roster := make([]RosterEntry, 0, len(r.order))
	for _, id := range r.order {
		roster = append(roster, RosterEntry{ID: id, Participant: *r.participants[id]})
	}
	return roster
}

func (r *Registry) Len() int {
	return len(r.participants)
}

// golden angle in degrees; consecutive hues land far apart on the wheel
const goldenAngle = 137.50776405003785

func colorFor(n int) string {
	hue := math.Mod(float64(n)*goldenAngle, 360)
	red, green, blue := hslToRGB(hue, 0.65, 0.5)
	return fmt.Sprintf("#%02x%02x%02x", red, green, blue)
}

func hslToRGB(h, s, l float64) (uint8, uint8, uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}

	return toByte(r + m), toByte(g + m), toByte(b + m)
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
