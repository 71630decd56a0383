package api

import (
	"log"
	"net/http"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"

	"github.com/manpreetbhatti/inkboard/internal/ws"
)

// Router registers every REST route and the WebSocket endpoint
func (a *API) Router() *mux.Router {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(a.hub, w, req)
	})

	r.Methods(http.MethodGet).Path("/health").HandlerFunc(a.HealthHandler)
	r.Methods(http.MethodGet).Path("/api/stats").HandlerFunc(a.StatsHandler)

	r.Methods(http.MethodGet).Path("/api/rooms").HandlerFunc(a.ListRoomsHandler)
	r.Methods(http.MethodPost).Path("/api/rooms").HandlerFunc(a.CreateRoomHandler)
	r.Methods(http.MethodGet).Path("/api/rooms/{id}").HandlerFunc(a.GetRoomHandler)
	r.Methods(http.MethodDelete).Path("/api/rooms/{id}").HandlerFunc(a.DeleteRoomHandler)
	r.Methods(http.MethodGet).Path("/api/rooms/{id}/history").HandlerFunc(a.HistoryHandler)
	r.Methods(http.MethodGet).Path("/api/rooms/{id}/participants").HandlerFunc(a.ParticipantsHandler)
	r.Methods(http.MethodGet).Path("/api/rooms/{id}/export.png").HandlerFunc(a.ExportPNGHandler)
	r.Methods(http.MethodGet).Path("/api/rooms/{id}/export.pdf").HandlerFunc(a.ExportPDFHandler)
	if a.debug {
		r.Methods(http.MethodGet).Path("/api/rooms/{id}/debug").HandlerFunc(a.DebugHandler)
	}

	r.Methods(http.MethodGet).Path("/api/rooms/{id}/snapshots").HandlerFunc(a.ListSnapshotsHandler)
	r.Methods(http.MethodPost).Path("/api/rooms/{id}/snapshots").HandlerFunc(a.CreateSnapshotHandler)
	r.Methods(http.MethodGet).Path("/api/snapshots/diff").HandlerFunc(a.DiffSnapshotsHandler)
	r.Methods(http.MethodGet).Path("/api/snapshots/{sid:[0-9]+}").HandlerFunc(a.GetSnapshotHandler)
	r.Methods(http.MethodDelete).Path("/api/snapshots/{sid:[0-9]+}").HandlerFunc(a.DeleteSnapshotHandler)

	return r
}

// Handler is the router wrapped in access logging and CORS
func (a *API) Handler() http.Handler {
	return logRequests(corsMiddleware(a.Router()))
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		log.Printf("%s %s %d %v (%d bytes)", r.Method, r.URL.Path, m.Code, m.Duration, m.Written)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
