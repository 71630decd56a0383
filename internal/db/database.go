package db

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type Database struct {
	db *sql.DB
}

type Room struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// A saved copy of a room's stroke log. Content is the JSON encoded log,
// hidden strokes included.
type Snapshot struct {
	ID          int       `json:"id"`
	RoomID      string    `json:"room_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	StrokeCount int       `json:"stroke_count"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	IsAuto      bool      `json:"is_auto"` // Autosaved vs manual
}

// One participant connection to a room
type Session struct {
	ID            int
	RoomID        string
	ParticipantID string
	Color         string
	JoinedAt      time.Time
	LeftAt        *time.Time
}

func New(dbPath string) (*Database, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Hub, autosave and API writers share one connection
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Database initialized at %s", dbPath)
	return &Database{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS board_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT DEFAULT '',
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		stroke_count INTEGER DEFAULT 0,
		created_by TEXT DEFAULT '',
		is_auto BOOLEAN DEFAULT FALSE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_board_snapshots_room_id ON board_snapshots(room_id, id DESC);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		participant_id TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL DEFAULT '',
		joined_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		left_at DATETIME,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_room_id ON sessions(room_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (d *Database) Close() error {
	return d.db.Close()
}

// Room operations

func (d *Database) CreateRoom(id, name string) error {
	_, err := d.db.Exec(
		"INSERT OR IGNORE INTO rooms (id, name) VALUES (?, ?)",
		id, name,
	)
	return err
}

func (d *Database) GetRoom(id string) (*Room, error) {
	row := d.db.QueryRow(
		"SELECT id, name, created_at, updated_at FROM rooms WHERE id = ?",
		id,
	)

	var room Room
	err := row.Scan(&room.ID, &room.Name, &room.CreatedAt, &room.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (d *Database) ListRooms(limit, offset int) ([]Room, error) {
	rows, err := d.db.Query(
		"SELECT id, name, created_at, updated_at FROM rooms ORDER BY updated_at DESC, id ASC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.Name, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (d *Database) UpdateRoomTimestamp(id string) error {
	_, err := d.db.Exec(
		"UPDATE rooms SET updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		id,
	)
	return err
}

// DeleteRoom removes the room with its snapshots and sessions
func (d *Database) DeleteRoom(id string) error {
	tx, err := d.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		"DELETE FROM board_snapshots WHERE room_id = ?",
		"DELETE FROM sessions WHERE room_id = ?",
		"DELETE FROM rooms WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Snapshot operations

const snapshotColumns = "id, room_id, name, description, content, content_hash, stroke_count, created_by, is_auto, created_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*Snapshot, error) {
	var s Snapshot
	err := row.Scan(&s.ID, &s.RoomID, &s.Name, &s.Description, &s.Content, &s.ContentHash, &s.StrokeCount, &s.CreatedBy, &s.IsAuto, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSnapshot saves a copy of a room's log, creating the room row if needed
func (d *Database) CreateSnapshot(s Snapshot) (*Snapshot, error) {
	if err := d.CreateRoom(s.RoomID, ""); err != nil {
		return nil, err
	}

	result, err := d.db.Exec(`
		INSERT INTO board_snapshots (room_id, name, description, content, content_hash, stroke_count, created_by, is_auto)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, s.RoomID, s.Name, s.Description, s.Content, s.ContentHash, s.StrokeCount, s.CreatedBy, s.IsAuto)
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	if err := d.UpdateRoomTimestamp(s.RoomID); err != nil {
		return nil, err
	}

	return d.GetSnapshot(int(id))
}

// GetSnapshot retrieves a snapshot by ID
func (d *Database) GetSnapshot(id int) (*Snapshot, error) {
	row := d.db.QueryRow("SELECT "+snapshotColumns+" FROM board_snapshots WHERE id = ?", id)

	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ListSnapshots returns a room's snapshots, newest first
func (d *Database) ListSnapshots(roomID string, limit, offset int) ([]Snapshot, error) {
	rows, err := d.db.Query(
		"SELECT "+snapshotColumns+" FROM board_snapshots WHERE room_id = ? ORDER BY id DESC LIMIT ? OFFSET ?",
		roomID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	return snapshots, rows.Err()
}

func (d *Database) GetSnapshotCount(roomID string) (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM board_snapshots WHERE room_id = ?", roomID).Scan(&count)
	return count, err
}

// GetLatestSnapshot returns the most recent snapshot for a room
func (d *Database) GetLatestSnapshot(roomID string) (*Snapshot, error) {
	row := d.db.QueryRow(
		"SELECT "+snapshotColumns+" FROM board_snapshots WHERE room_id = ? ORDER BY id DESC LIMIT 1",
		roomID,
	)

	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

func (d *Database) DeleteSnapshot(id int) error {
	_, err := d.db.Exec("DELETE FROM board_snapshots WHERE id = ?", id)
	return err
}

// DeleteOldAutoSnapshots keeps only the most recent keepCount autosaves
func (d *Database) DeleteOldAutoSnapshots(roomID string, keepCount int) error {
	_, err := d.db.Exec(`
		DELETE FROM board_snapshots
		WHERE room_id = ? AND is_auto = TRUE AND id NOT IN (
			SELECT id FROM board_snapshots
			WHERE room_id = ? AND is_auto = TRUE
			ORDER BY id DESC
			LIMIT ?
		)
	`, roomID, roomID, keepCount)
	return err
}

// Session operations

func (d *Database) StartSession(roomID, participantID, color string) error {
	if err := d.CreateRoom(roomID, ""); err != nil {
		return err
	}
	_, err := d.db.Exec(
		"INSERT INTO sessions (room_id, participant_id, color) VALUES (?, ?, ?)",
		roomID, participantID, color,
	)
	if err != nil {
		return err
	}
	return d.UpdateRoomTimestamp(roomID)
}

func (d *Database) EndSession(participantID string) error {
	_, err := d.db.Exec(
		"UPDATE sessions SET left_at = CURRENT_TIMESTAMP WHERE participant_id = ? AND left_at IS NULL",
		participantID,
	)
	return err
}

func (d *Database) GetSession(participantID string) (*Session, error) {
	row := d.db.QueryRow(
		"SELECT id, room_id, participant_id, color, joined_at, left_at FROM sessions WHERE participant_id = ?",
		participantID,
	)

	var s Session
	var leftAt sql.NullTime
	err := row.Scan(&s.ID, &s.RoomID, &s.ParticipantID, &s.Color, &s.JoinedAt, &leftAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if leftAt.Valid {
		s.LeftAt = &leftAt.Time
	}
	return &s, nil
}

// CloseOpenSessions marks every unfinished session as ended, used at startup
// and shutdown since live boards do not survive a restart.
func (d *Database) CloseOpenSessions() (int64, error) {
	res, err := d.db.Exec("UPDATE sessions SET left_at = CURRENT_TIMESTAMP WHERE left_at IS NULL")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Stats

func (d *Database) GetStats() (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var roomCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var snapshotCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM board_snapshots").Scan(&snapshotCount); err != nil {
		return nil, err
	}
	stats["snapshot_count"] = snapshotCount

	var sessionCount int
	if err := d.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&sessionCount); err != nil {
		return nil, err
	}
	stats["session_count"] = sessionCount

	return stats, nil
}
