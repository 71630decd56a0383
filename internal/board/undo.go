package board

import (
	"errors"
	"log"
)

// UndoStacks keeps, per owner, the ids of strokes that owner hid via undo,
// most recent last. Every id on an owner's stack refers to a hidden stroke
// owned by that owner.
type UndoStacks struct {
	stacks map[string][]string
}

func NewUndoStacks() *UndoStacks {
	return &UndoStacks{stacks: make(map[string][]string)}
}

// Undo hides the owner's newest visible stroke and remembers it for redo.
// Returns the hidden stroke id, or false when there is nothing to undo.
func (u *UndoStacks) Undo(l *Log, ownerID string) (string, bool) {
	s, ok := l.latestVisible(ownerID)
	if !ok {
		return "", false
	}
	s.Hidden = true
	u.stacks[ownerID] = append(u.stacks[ownerID], s.ID)
	return s.ID, true
}

// Redo un-hides the most recently undone stroke of the owner in its original
// slot. Returns false when the stack is empty or the id is gone from the log.
func (u *UndoStacks) Redo(l *Log, ownerID string) (string, bool) {
	stack := u.stacks[ownerID]
	if len(stack) == 0 {
		return "", false
	}

	id := stack[len(stack)-1]
	u.stacks[ownerID] = stack[:len(stack)-1]

	if err := l.SetHidden(id, false); err != nil {
		if errors.Is(err, ErrStrokeNotFound) {
			log.Printf("⚠️ invariant violation: redo for %s references missing stroke: %v", ownerID, err)
		}
		return "", false
	}
	return id, true
}

// Invalidate drops the owner's redo future after a new commit.
func (u *UndoStacks) Invalidate(ownerID string) {
	if _, ok := u.stacks[ownerID]; ok {
		u.stacks[ownerID] = nil
	}
}

// Depth returns the number of redoable strokes for the owner
func (u *UndoStacks) Depth(ownerID string) int {
	return len(u.stacks[ownerID])
}

// Stack returns a copy of the owner's stack, oldest undo first
func (u *UndoStacks) Stack(ownerID string) []string {
	stack := u.stacks[ownerID]
	out := make([]string, len(stack))
	copy(out, stack)
	return out
}
