// Package archive turns live stroke logs into stored snapshots and compares
// them. Snapshots are an archive only; they are never loaded back into a live
// board.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/manpreetbhatti/inkboard/internal/board"
)

// Encode serializes a log snapshot and returns it with its content hash
func Encode(strokes []board.Stroke) (string, string, error) {
	if strokes == nil {
		strokes = []board.Stroke{}
	}
	data, err := json.Marshal(strokes)
	if err != nil {
		return "", "", fmt.Errorf("encode snapshot: %w", err)
	}
	content := string(data)
	return content, HashContent(content), nil
}

func Decode(content string) ([]board.Stroke, error) {
	var strokes []board.Stroke
	if err := json.Unmarshal([]byte(content), &strokes); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return strokes, nil
}

func HashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:8])
}

// Stroke-level changes between two snapshots of the same room
type Diff struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
	Hidden  []string `json:"hidden"`
	Shown   []string `json:"shown"`
}

func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Hidden) == 0 && len(d.Shown) == 0
}

// Compare lists ids in log order of the snapshot they appear in. Removed can
// only be non-empty when from is newer than to, since logs never shrink.
func Compare(from, to []board.Stroke) Diff {
	fromIDs := mapset.NewThreadUnsafeSet[string]()
	fromHidden := make(map[string]bool, len(from))
	for _, s := range from {
		fromIDs.Add(s.ID)
		fromHidden[s.ID] = s.Hidden
	}
	toIDs := mapset.NewThreadUnsafeSet[string]()
	for _, s := range to {
		toIDs.Add(s.ID)
	}

	diff := Diff{
		Added:   []string{},
		Removed: []string{},
		Hidden:  []string{},
		Shown:   []string{},
	}

	added := toIDs.Difference(fromIDs)
	for _, s := range to {
		switch {
		case added.Contains(s.ID):
			diff.Added = append(diff.Added, s.ID)
		case s.Hidden && !fromHidden[s.ID]:
			diff.Hidden = append(diff.Hidden, s.ID)
		case !s.Hidden && fromHidden[s.ID]:
			diff.Shown = append(diff.Shown, s.ID)
		}
	}

	removed := fromIDs.Difference(toIDs)
	for _, s := range from {
		if removed.Contains(s.ID) {
			diff.Removed = append(diff.Removed, s.ID)
		}
	}

	return diff
}
