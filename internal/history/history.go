// Package history provides SQLite-based persistence for conversation
// messages and known-event snapshots, keyed by session id. If opening the DB
// fails the store degrades to in-memory storage so a broken disk never takes
// the assistant down.
package history

import (
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/joacortez/kai-go/internal/gcal"
	"github.com/joacortez/kai-go/internal/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	role TEXT,
	content TEXT,
	created_at DATETIME
);
CREATE TABLE IF NOT EXISTS session_events (
	session_id TEXT PRIMARY KEY,
	events TEXT,
	updated_at DATETIME
);`

// Store persists session state to a SQLite file.
type Store struct {
	db *sql.DB

	mu       sync.Mutex
	messages []Message               // in-memory fallback
	events   map[string][]gcal.Event // in-memory fallback
}

// NewStore opens (or creates) the database at path. The store is usable even
// when the error is non-nil: it falls back to memory.
func NewStore(path string) (*Store, error) {
	s := &Store{events: make(map[string][]gcal.Event)}

	db, err := sql.Open("sqlite", "file:"+path+"?_busy_timeout=10000&_fk=1")
	if err != nil {
		logger.L.Warn("sqlite open failed; using in-memory history", "path", path, "error", err)
		return s, err
	}
	if _, err := db.Exec(schema); err != nil {
		logger.L.Warn("sqlite schema creation failed; using in-memory history", "path", path, "error", err)
		db.Close()
		return s, err
	}

	s.db = db
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveMessage appends a conversation message for the session.
func (s *Store) SaveMessage(msg Message) {
	if s.db != nil {
		_, err := s.db.Exec(
			`INSERT INTO messages (session_id, role, content, created_at) VALUES (?,?,?,?);`,
			msg.SessionID, msg.Role, msg.Content, msg.CreatedAt)
		if err == nil {
			return
		}
		logger.L.Error("failed to store message in sqlite; falling back to memory", "error", err)
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// Messages returns all messages of a session in chronological order.
func (s *Store) Messages(sessionID string) []Message {
	if s.db != nil {
		rows, err := s.db.Query(
			`SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC;`,
			sessionID)
		if err == nil {
			defer rows.Close()
			var out []Message
			for rows.Next() {
				var m Message
				if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err == nil {
					out = append(out, m)
				}
			}
			return out
		}
		logger.L.Error("failed to read messages from sqlite; falling back to memory", "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Message
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

// SaveEvents replaces the known-event snapshot for the session.
func (s *Store) SaveEvents(sessionID string, events []gcal.Event) {
	data, err := json.Marshal(events)
	if err != nil {
		logger.L.Error("failed to marshal session events", "error", err)
		return
	}

	if s.db != nil {
		_, err := s.db.Exec(
			`INSERT INTO session_events (session_id, events, updated_at) VALUES (?,?,?)
			 ON CONFLICT(session_id) DO UPDATE SET events=excluded.events, updated_at=excluded.updated_at;`,
			sessionID, string(data), time.Now())
		if err == nil {
			return
		}
		logger.L.Error("failed to store session events in sqlite; falling back to memory", "error", err)
	}

	s.mu.Lock()
	s.events[sessionID] = append([]gcal.Event(nil), events...)
	s.mu.Unlock()
}

// Events returns the persisted known-event snapshot for the session, or nil.
func (s *Store) Events(sessionID string) []gcal.Event {
	if s.db != nil {
		var data string
		err := s.db.QueryRow(
			`SELECT events FROM session_events WHERE session_id = ?;`, sessionID).Scan(&data)
		switch err {
		case nil:
			var events []gcal.Event
			if err := json.Unmarshal([]byte(data), &events); err != nil {
				logger.L.Error("corrupt session events row", "session_id", sessionID, "error", err)
				return nil
			}
			return events
		case sql.ErrNoRows:
			return nil
		default:
			logger.L.Error("failed to read session events from sqlite; falling back to memory", "error", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]gcal.Event(nil), s.events[sessionID]...)
}
