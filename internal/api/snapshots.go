package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/manpreetbhatti/inkboard/internal/archive"
	"github.com/manpreetbhatti/inkboard/internal/board"
	"github.com/manpreetbhatti/inkboard/internal/db"
)

type CreateSnapshotRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by"`
}

type SnapshotResponse struct {
	ID          int            `json:"id"`
	RoomID      string         `json:"room_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ContentHash string         `json:"content_hash"`
	StrokeCount int            `json:"stroke_count"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	IsAuto      bool           `json:"is_auto"`
	Strokes     []board.Stroke `json:"strokes,omitempty"` // Omit in list view
}

func toSnapshotResponse(s *db.Snapshot) SnapshotResponse {
	return SnapshotResponse{
		ID:          s.ID,
		RoomID:      s.RoomID,
		Name:        s.Name,
		Description: s.Description,
		ContentHash: s.ContentHash,
		StrokeCount: s.StrokeCount,
		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt,
		IsAuto:      s.IsAuto,
	}
}

// ListSnapshotsHandler returns a room's snapshots, newest first
func (a *API) ListSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]
	limit, offset := pagination(r, 50)

	snapshots, err := a.database.ListSnapshots(roomID, limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list snapshots")
		return
	}

	response := make([]SnapshotResponse, len(snapshots))
	for i := range snapshots {
		response[i] = toSnapshotResponse(&snapshots[i])
	}

	total, _ := a.database.GetSnapshotCount(roomID)

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"snapshots": response,
		"total":     total,
		"limit":     limit,
		"offset":    offset,
	})
}

// CreateSnapshotHandler stores the live room's current log
func (a *API) CreateSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	var req CreateSnapshotRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			errorResponse(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	live, ok := a.hub.Room(roomID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Room is not live")
		return
	}

	strokes := live.Board.Snapshot()
	content, hash, err := archive.Encode(strokes)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to encode board")
		return
	}

	if req.Name == "" {
		req.Name = fmt.Sprintf("Snapshot %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	snapshot, err := a.database.CreateSnapshot(db.Snapshot{
		RoomID:      roomID,
		Name:        req.Name,
		Description: req.Description,
		Content:     content,
		ContentHash: hash,
		StrokeCount: len(strokes),
		CreatedBy:   req.CreatedBy,
	})
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to create snapshot")
		return
	}

	log.Printf("📸 Snapshot %d of room %s (%d strokes)", snapshot.ID, roomID, len(strokes))
	jsonResponse(w, http.StatusCreated, toSnapshotResponse(snapshot))
}

// loadSnapshot parses an id and fetches the snapshot, writing the error
// response itself on failure.
func (a *API) loadSnapshot(w http.ResponseWriter, raw string) (*db.Snapshot, bool) {
	id, err := strconv.Atoi(raw)
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid snapshot ID")
		return nil, false
	}

	snapshot, err := a.database.GetSnapshot(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get snapshot")
		return nil, false
	}
	if snapshot == nil {
		errorResponse(w, http.StatusNotFound, "Snapshot not found")
		return nil, false
	}
	return snapshot, true
}

func (a *API) GetSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := a.loadSnapshot(w, mux.Vars(r)["sid"])
	if !ok {
		return
	}

	strokes, err := archive.Decode(snapshot.Content)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Snapshot content is corrupt")
		return
	}

	response := toSnapshotResponse(snapshot)
	response.Strokes = strokes
	jsonResponse(w, http.StatusOK, response)
}

func (a *API) DeleteSnapshotHandler(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := a.loadSnapshot(w, mux.Vars(r)["sid"])
	if !ok {
		return
	}

	if err := a.database.DeleteSnapshot(snapshot.ID); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete snapshot")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Snapshot deleted"})
}

// DiffSnapshotsHandler compares two snapshots stroke by stroke
func (a *API) DiffSnapshotsHandler(w http.ResponseWriter, r *http.Request) {
	fromRaw := r.URL.Query().Get("from")
	toRaw := r.URL.Query().Get("to")
	if fromRaw == "" || toRaw == "" {
		errorResponse(w, http.StatusBadRequest, "from and to are required")
		return
	}

	from, ok := a.loadSnapshot(w, fromRaw)
	if !ok {
		return
	}
	to, ok := a.loadSnapshot(w, toRaw)
	if !ok {
		return
	}

	fromStrokes, err := archive.Decode(from.Content)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Snapshot content is corrupt")
		return
	}
	toStrokes, err := archive.Decode(to.Content)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Snapshot content is corrupt")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"from":      toSnapshotResponse(from),
		"to":        toSnapshotResponse(to),
		"same_room": from.RoomID == to.RoomID,
		"diff":      archive.Compare(fromStrokes, toStrokes),
	})
}
