package archive

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/manpreetbhatti/inkboard/internal/db"
	"github.com/manpreetbhatti/inkboard/internal/room"
)

type Config struct {
	Interval time.Duration
	KeepAuto int
}

func DefaultConfig() Config {
	return Config{
		Interval: time.Minute,
		KeepAuto: 20,
	}
}

// Source exposes the live rooms to archive
type Source interface {
	RoomIDs() []string
	Room(id string) (*room.Room, bool)
}

// Autosave periodically stores a snapshot of every room whose log changed
// since its last stored snapshot.
type Autosave struct {
	database *db.Database
	source   Source
	config   Config
	stop     chan struct{}
	wg       sync.WaitGroup
}

func NewAutosave(database *db.Database, source Source, config Config) *Autosave {
	return &Autosave{
		database: database,
		source:   source,
		config:   config,
		stop:     make(chan struct{}),
	}
}

func (s *Autosave) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("💾 Autosave started (interval: %v, keeping %d autosaves per room)",
		s.config.Interval, s.config.KeepAuto)
}

// Stop waits for the loop to exit, then takes one final pass
func (s *Autosave) Stop() {
	close(s.stop)
	s.wg.Wait()
	s.saveAllRooms()
	log.Println("💾 Autosave stopped")
}

func (s *Autosave) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.saveAllRooms()
		}
	}
}

func (s *Autosave) saveAllRooms() {
	savedCount := 0
	for _, id := range s.source.RoomIDs() {
		saved, err := s.SaveNow(id)
		if err != nil {
			log.Printf("Autosave: failed for room %s: %v", id, err)
			continue
		}
		if saved {
			savedCount++
		}
	}

	if savedCount > 0 {
		log.Printf("💾 Autosaved %d rooms", savedCount)
	}
}

// SaveNow stores an automatic snapshot of the room unless its log is empty
// or identical to the latest stored snapshot.
func (s *Autosave) SaveNow(roomID string) (bool, error) {
	r, ok := s.source.Room(roomID)
	if !ok {
		return false, nil
	}

	strokes := r.Board.Snapshot()
	if len(strokes) == 0 {
		return false, nil
	}

	content, hash, err := Encode(strokes)
	if err != nil {
		return false, err
	}

	latest, err := s.database.GetLatestSnapshot(roomID)
	if err != nil {
		return false, err
	}
	if latest != nil && latest.ContentHash == hash {
		return false, nil
	}

	now := time.Now().UTC()
	if _, err := s.database.CreateSnapshot(db.Snapshot{
		RoomID:      roomID,
		Name:        "Autosave " + now.Format(time.RFC3339),
		Description: fmt.Sprintf("%d strokes", len(strokes)),
		Content:     content,
		ContentHash: hash,
		StrokeCount: len(strokes),
		IsAuto:      true,
	}); err != nil {
		return false, err
	}

	if err := s.database.DeleteOldAutoSnapshots(roomID, s.config.KeepAuto); err != nil {
		return true, err
	}
	return true, nil
}
