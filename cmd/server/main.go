package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manpreetbhatti/inkboard/internal/api"
	"github.com/manpreetbhatti/inkboard/internal/archive"
	"github.com/manpreetbhatti/inkboard/internal/config"
	"github.com/manpreetbhatti/inkboard/internal/db"
	"github.com/manpreetbhatti/inkboard/internal/discovery"
	"github.com/manpreetbhatti/inkboard/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if closed, err := database.CloseOpenSessions(); err != nil {
		log.Printf("Failed to close stale sessions: %v", err)
	} else if closed > 0 {
		log.Printf("Closed %d sessions left open by a previous run", closed)
	}

	hub := ws.NewHub(database)
	go hub.Run()

	autosave := archive.NewAutosave(database, hub, cfg.Autosave)
	autosave.Start()

	if cfg.MDNS {
		server, err := discovery.Advertise(cfg.PortNumber(), "")
		if err != nil {
			log.Printf("mDNS advertisement failed: %v", err)
		} else {
			defer server.Shutdown()
			log.Printf("📡 Advertising %s on the local network", discovery.ServiceType)
		}
	}

	apiHandler := api.New(hub, database, cfg.Debug)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: apiHandler.Handler(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("ListenAndServe: ", err)
		}
	}()

	log.Printf("🎨 Inkboard server starting on :%s", cfg.Port)
	log.Printf("📁 Database: %s", cfg.DBPath)
	log.Println("Endpoints:")
	log.Println("  - WebSocket:    /ws?room={roomId}")
	log.Println("  - Health:       GET /health")
	log.Println("  - Stats:        GET /api/stats")
	log.Println("  - Rooms:        GET/POST /api/rooms")
	log.Println("  - Room:         GET/DELETE /api/rooms/{id}")
	log.Println("  - History:      GET /api/rooms/{id}/history")
	log.Println("  - Participants: GET /api/rooms/{id}/participants")
	log.Println("  - Export:       GET /api/rooms/{id}/export.png|export.pdf")
	log.Println("  - Snapshots:    GET/POST /api/rooms/{id}/snapshots")
	log.Println("  - Snapshot:     GET/DELETE /api/snapshots/{id}")
	log.Println("  - Diff:         GET /api/snapshots/diff?from=X&to=Y")
	if cfg.Debug {
		log.Println("  - Debug:        GET /api/rooms/{id}/debug")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	hub.Stop()
	autosave.Stop()
}
