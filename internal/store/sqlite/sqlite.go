package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/huddle-server/internal/core"
)

const schema = `
	CREATE TABLE IF NOT EXISTS messages (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		room       TEXT    NOT NULL,
		username   TEXT    NOT NULL,
		body       TEXT    NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, id DESC);
`

// SQLiteStore implements core.MessageStore for SQLite.
// AUTOINCREMENT guarantees ids are never reused, even after the newest row is gone.
type SQLiteStore struct {
	db *sql.DB

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// New opens (or creates) the database at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with single connection; it also keeps :memory: databases shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, now: time.Now}

	var lastNanos int64
	if err := db.QueryRow(`SELECT COALESCE(MAX(created_at), 0) FROM messages`).Scan(&lastNanos); err != nil {
		db.Close()
		return nil, fmt.Errorf("load last timestamp: %w", err)
	}
	if lastNanos > 0 {
		s.last = time.Unix(0, lastNanos).UTC()
	}

	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Append persists a message and returns it with its sequence number.
func (s *SQLiteStore) Append(ctx context.Context, room, from, text string) (core.Message, error) {
	body, err := core.NormalizeBody(text)
	if err != nil {
		return core.Message{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := s.now().UTC()
	if createdAt.Before(s.last) {
		createdAt = s.last
	}

	query := `
		INSERT INTO messages (room, username, body, created_at)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, room, from, body, createdAt.UnixNano())
	if err != nil {
		return core.Message{}, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return core.Message{}, fmt.Errorf("get last insert id: %w", err)
	}

	s.last = createdAt
	return core.Message{
		ID:        id,
		Room:      room,
		From:      from,
		Text:      body,
		CreatedAt: createdAt,
	}, nil
}

// Recent retrieves up to limit newest messages of a room in chronological order.
func (s *SQLiteStore) Recent(ctx context.Context, room string, limit int) ([]core.Message, error) {
	limit = core.ClampLimit(limit)
	if limit == 0 {
		return []core.Message{}, nil
	}

	query := `
		SELECT id, room, username, body, created_at
		FROM messages
		WHERE room = ?
		ORDER BY id DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, room, limit)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]core.Message, 0, limit)
	for rows.Next() {
		var (
			msg   core.Message
			nanos int64
		)
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.From, &msg.Text, &nanos); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.CreatedAt = time.Unix(0, nanos).UTC()
		messages = append(messages, msg)
	}

	// Reverse to get chronological order
	for i := range len(messages) / 2 {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}
