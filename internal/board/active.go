package board

// Tracker holds in-progress strokes, at most one per owner, before they are
// committed to the Log.
type Tracker struct {
	drafts map[string]*Stroke
	newID  func() string
}

func NewTracker(newID func() string) *Tracker {
	if newID == nil {
		newID = NewStrokeID
	}
	return &Tracker{
		drafts: make(map[string]*Stroke),
		newID:  newID,
	}
}

// Begin opens a draft for the owner. Returns false if one is already open.
func (t *Tracker) Begin(ownerID string, first Point, style Style) (Stroke, bool) {
	if _, ok := t.drafts[ownerID]; ok {
		return Stroke{}, false
	}

	tool := style.Tool
	if !tool.Valid() {
		tool = ToolBrush
	}

	draft := &Stroke{
		ID:      t.newID(),
		OwnerID: ownerID,
		Points:  []Point{first},
		Color:   style.Color,
		Size:    style.Size,
		Type:    tool,
	}
	t.drafts[ownerID] = draft
	return draft.Clone(), true
}

// Append is a no-op without an open draft, which absorbs points that arrive
// after end_stroke or disconnect.
func (t *Tracker) Append(ownerID string, p Point) bool {
	draft, ok := t.drafts[ownerID]
	if !ok {
		return false
	}
	draft.Points = append(draft.Points, p)
	return true
}

// End removes and returns the owner's draft for commit.
func (t *Tracker) End(ownerID string) (Stroke, bool) {
	draft, ok := t.drafts[ownerID]
	if !ok {
		return Stroke{}, false
	}
	delete(t.drafts, ownerID)
	return *draft, true
}

// Discard drops the owner's draft without committing it.
func (t *Tracker) Discard(ownerID string) bool {
	if _, ok := t.drafts[ownerID]; !ok {
		return false
	}
	delete(t.drafts, ownerID)
	return true
}

func (t *Tracker) Has(ownerID string) bool {
	_, ok := t.drafts[ownerID]
	return ok
}

func (t *Tracker) Len() int {
	return len(t.drafts)
}
