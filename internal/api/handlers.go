package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sanity-io/litter"

	"github.com/manpreetbhatti/inkboard/internal/board"
	"github.com/manpreetbhatti/inkboard/internal/db"
	"github.com/manpreetbhatti/inkboard/internal/export"
	"github.com/manpreetbhatti/inkboard/internal/room"
	"github.com/manpreetbhatti/inkboard/internal/ws"
)

const maxRoomIDLength = 64

type API struct {
	hub      *ws.Hub
	database *db.Database
	debug    bool
}

// debug enables the /api/rooms/{id}/debug dump.
func New(hub *ws.Hub, database *db.Database, debug bool) *API {
	return &API{
		hub:      hub,
		database: database,
		debug:    debug,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func pagination(r *http.Request, defaultLimit int) (int, int) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = defaultLimit
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	liveRooms := a.hub.RoomIDs()
	strokes, hidden := 0, 0
	for _, id := range liveRooms {
		if rm, ok := a.hub.Room(id); ok {
			s := rm.Board.Stats()
			strokes += s.Strokes
			hidden += s.Hidden
		}
	}

	stats := map[string]interface{}{
		"active_rooms":   a.hub.GetRoomCount(),
		"active_clients": a.hub.GetClientCount(),
		"live_rooms":     len(liveRooms),
		"strokes":        strokes,
		"hidden_strokes": hidden,
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if a.database != nil {
		dbStats, err := a.database.GetStats()
		if err == nil {
			stats["total_rooms"] = dbStats["room_count"]
			stats["total_snapshots"] = dbStats["snapshot_count"]
			stats["total_sessions"] = dbStats["session_count"]
		}
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

type RoomResponse struct {
	ID            string       `json:"id"`
	Name          string       `json:"name,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
	ActiveUsers   int          `json:"active_users"`
	Live          bool         `json:"live"`
	Board         *board.Stats `json:"board,omitempty"`
	SnapshotCount int          `json:"snapshot_count,omitempty"`
}

type CreateRoomRequest struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r, 20)

	rooms, err := a.database.ListRooms(limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list rooms")
		return
	}

	activeRooms := a.hub.GetActiveRooms()

	response := make([]RoomResponse, len(rooms))
	for i, rm := range rooms {
		_, live := a.hub.Room(rm.ID)
		response[i] = RoomResponse{
			ID:          rm.ID,
			Name:        rm.Name,
			CreatedAt:   rm.CreatedAt,
			UpdatedAt:   rm.UpdatedAt,
			ActiveUsers: activeRooms[rm.ID],
			Live:        live,
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"rooms":  response,
		"limit":  limit,
		"offset": offset,
	})
}

func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.ID == "" {
		errorResponse(w, http.StatusBadRequest, "Room ID is required")
		return
	}
	if len(req.ID) > maxRoomIDLength {
		errorResponse(w, http.StatusBadRequest, "Room ID is too long")
		return
	}

	if err := a.database.CreateRoom(req.ID, req.Name); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to create room")
		return
	}

	rm, err := a.database.GetRoom(req.ID)
	if err != nil || rm == nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return
	}

	jsonResponse(w, http.StatusCreated, RoomResponse{
		ID:        rm.ID,
		Name:      rm.Name,
		CreatedAt: rm.CreatedAt,
		UpdatedAt: rm.UpdatedAt,
	})
}

// findRoom resolves a room id to its live board, if any. It writes a 404 and
// returns false when the room is neither live nor stored.
func (a *API) findRoom(w http.ResponseWriter, id string) (*room.Room, *db.Room, bool) {
	live, _ := a.hub.Room(id)

	stored, err := a.database.GetRoom(id)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to get room")
		return nil, nil, false
	}

	if live == nil && stored == nil {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return nil, nil, false
	}
	return live, stored, true
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	live, stored, ok := a.findRoom(w, roomID)
	if !ok {
		return
	}

	response := RoomResponse{
		ID:          roomID,
		ActiveUsers: a.hub.GetActiveRooms()[roomID],
		Live:        live != nil,
	}
	if stored != nil {
		response.Name = stored.Name
		response.CreatedAt = stored.CreatedAt
		response.UpdatedAt = stored.UpdatedAt
	} else {
		response.CreatedAt = live.CreatedAt
		response.UpdatedAt = live.CreatedAt
	}
	if live != nil {
		stats := live.Board.Stats()
		response.Board = &stats
	}
	response.SnapshotCount, _ = a.database.GetSnapshotCount(roomID)

	jsonResponse(w, http.StatusOK, response)
}

func (a *API) DeleteRoomHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	if !a.hub.RemoveRoom(roomID) {
		errorResponse(w, http.StatusConflict, "Room has connected clients")
		return
	}

	if err := a.database.DeleteRoom(roomID); err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to delete room")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]string{"message": "Room deleted"})
}

// HistoryHandler returns the room's log in order, hidden strokes included
// unless ?visible=true.
func (a *API) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	live, _, ok := a.findRoom(w, roomID)
	if !ok {
		return
	}

	history := []board.Stroke{}
	if live != nil {
		if r.URL.Query().Get("visible") == "true" {
			history = live.Board.Visible()
		} else {
			history = live.Board.Snapshot()
		}
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"room_id": roomID,
		"history": history,
	})
}

func (a *API) ParticipantsHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	live, _, ok := a.findRoom(w, roomID)
	if !ok {
		return
	}

	roster := []board.RosterEntry{}
	if live != nil {
		roster = live.Board.Roster()
	}

	jsonResponse(w, http.StatusOK, map[string]interface{}{
		"room_id":      roomID,
		"participants": roster,
	})
}

// Export handlers

func exportOptions(r *http.Request) export.Options {
	width, _ := strconv.ParseFloat(r.URL.Query().Get("width"), 64)
	height, _ := strconv.ParseFloat(r.URL.Query().Get("height"), 64)
	return export.Options{Width: width, Height: height}
}

type renderer func(w *bytes.Buffer, strokes []board.Stroke, opts export.Options) error

func (a *API) exportRoom(w http.ResponseWriter, r *http.Request, contentType, ext string, render renderer) {
	roomID := mux.Vars(r)["id"]

	live, _, ok := a.findRoom(w, roomID)
	if !ok {
		return
	}

	var strokes []board.Stroke
	if live != nil {
		strokes = live.Board.Visible()
	}

	var buf bytes.Buffer
	if err := render(&buf, strokes, exportOptions(r)); err != nil {
		log.Printf("Export of room %s failed: %v", roomID, err)
		errorResponse(w, http.StatusInternalServerError, "Failed to render board")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+roomID+ext+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Printf("Error writing export: %v", err)
	}
}

func (a *API) ExportPNGHandler(w http.ResponseWriter, r *http.Request) {
	a.exportRoom(w, r, "image/png", ".png", func(buf *bytes.Buffer, strokes []board.Stroke, opts export.Options) error {
		return export.PNG(buf, strokes, opts)
	})
}

func (a *API) ExportPDFHandler(w http.ResponseWriter, r *http.Request) {
	a.exportRoom(w, r, "application/pdf", ".pdf", func(buf *bytes.Buffer, strokes []board.Stroke, opts export.Options) error {
		return export.PDF(buf, strokes, opts)
	})
}

type debugDump struct {
	Room       string
	Stats      board.Stats
	Roster     []board.RosterEntry
	UndoStacks map[string][]string
	Log        []board.Stroke
}

var dumper = litter.Options{
	StripPackageNames: true,
	HideZeroValues:    true,
}

// DebugHandler dumps the live board as Go literal text
func (a *API) DebugHandler(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	live, ok := a.hub.Room(roomID)
	if !ok {
		errorResponse(w, http.StatusNotFound, "Room is not live")
		return
	}

	dump := debugDump{
		Room:       roomID,
		Stats:      live.Board.Stats(),
		Roster:     live.Board.Roster(),
		UndoStacks: make(map[string][]string),
		Log:        live.Board.Snapshot(),
	}
	for _, entry := range dump.Roster {
		dump.UndoStacks[entry.ID] = live.Board.UndoStack(entry.ID)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(dumper.Sdump(dump))); err != nil {
		log.Printf("Error writing debug dump: %v", err)
	}
}
