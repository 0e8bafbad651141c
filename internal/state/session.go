package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/deepthink/internal/orchestrator"
)

// titleRunes is the length of a session title derived from the first query.
const titleRunes = 40

// Session is one chat conversation.
type Session struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	Model     string    `json:"model" yaml:"model"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Message is one stored conversation turn. Model messages carry the
// analysis, expert results and synthesis thoughts of the run that
// produced them.
type Message struct {
	ID                string                       `json:"id" yaml:"id"`
	SessionID         string                       `json:"session_id" yaml:"session_id"`
	Role              orchestrator.Role            `json:"role" yaml:"role"`
	Content           string                       `json:"content" yaml:"content"`
	Analysis          *orchestrator.AnalysisResult `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Experts           []orchestrator.TaskResult    `json:"experts,omitempty" yaml:"experts,omitempty"`
	SynthesisThoughts string                       `json:"synthesis_thoughts,omitempty" yaml:"synthesis_thoughts,omitempty"`
	TotalDuration     time.Duration                `json:"total_duration,omitempty" yaml:"total_duration,omitempty"`
	CreatedAt         time.Time                    `json:"created_at" yaml:"created_at"`
}

// ModelMessage builds the stored form of a completed run.
func ModelMessage(o *orchestrator.Outcome) *Message {
	analysis := o.Analysis
	return &Message{
		Role:              orchestrator.RoleModel,
		Content:           o.FinalText,
		Analysis:          &analysis,
		Experts:           o.Tasks,
		SynthesisThoughts: o.SynthesisThoughts,
		TotalDuration:     o.TotalDuration,
	}
}

// History converts stored messages to engine history.
func History(msgs []Message) []orchestrator.Message {
	out := make([]orchestrator.Message, len(msgs))
	for i, m := range msgs {
		out[i] = orchestrator.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Title derives a session title from the first user message.
func Title(query string) string {
	q := strings.Join(strings.Fields(query), " ")
	r := []rune(q)
	if len(r) > titleRunes {
		return string(r[:titleRunes])
	}
	return q
}

// Session CRUD operations

// CreateSession creates a new session. ID and timestamps are filled in
// when empty.
func (db *DB) CreateSession(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = s.CreatedAt
	}
	_, err := db.Exec(`
		INSERT INTO sessions (id, title, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, s.ID, s.Title, s.Model, formatTime(s.CreatedAt), formatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID. Returns nil, nil if it does not exist.
func (db *DB) GetSession(id string) (*Session, error) {
	row := db.QueryRow(`
		SELECT id, title, model, created_at, updated_at
		FROM sessions WHERE id = ?
	`, id)

	s, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// FindSession resolves a full ID or a unique ID prefix.
func (db *DB) FindSession(idOrPrefix string) (*Session, error) {
	rows, err := db.Query(`
		SELECT id, title, model, created_at, updated_at
		FROM sessions WHERE id LIKE ? || '%' ORDER BY updated_at DESC LIMIT 2
	`, idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	defer rows.Close()

	var found []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		found = append(found, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	switch {
	case len(found) == 0:
		return nil, fmt.Errorf("session %s: %w", idOrPrefix, ErrNotFound)
	case len(found) > 1 && found[0].ID != idOrPrefix:
		return nil, fmt.Errorf("session prefix %q is ambiguous", idOrPrefix)
	}
	return found[0], nil
}

// ListSessions returns sessions, most recently updated first. limit <= 0
// returns all.
func (db *DB) ListSessions(limit int) ([]Session, error) {
	query := `
		SELECT id, title, model, created_at, updated_at
		FROM sessions ORDER BY updated_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// DeleteSession removes a session and its messages.
func (db *DB) DeleteSession(id string) error {
	var affected int64
	err := db.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM messages WHERE session_id = ?`, id); err != nil {
			return err
		}
		result, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendMessage stores m at the end of its session and bumps the session's
// updated_at. The first user message of an untitled session sets its title.
func (db *DB) AppendMessage(m *Message) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}

	var analysis, experts sql.NullString
	if m.Analysis != nil {
		data, err := json.Marshal(m.Analysis)
		if err != nil {
			return fmt.Errorf("marshal analysis: %w", err)
		}
		analysis = sql.NullString{String: string(data), Valid: true}
	}
	if len(m.Experts) > 0 {
		data, err := json.Marshal(m.Experts)
		if err != nil {
			return fmt.Errorf("marshal experts: %w", err)
		}
		experts = sql.NullString{String: string(data), Valid: true}
	}

	err := db.Transaction(func(tx *sql.Tx) error {
		var title string
		if err := tx.QueryRow(`SELECT title FROM sessions WHERE id = ?`, m.SessionID).Scan(&title); err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("session %s: %w", m.SessionID, ErrNotFound)
			}
			return err
		}

		_, err := tx.Exec(`
			INSERT INTO messages (id, session_id, seq, role, content, analysis, experts,
				synthesis_thoughts, total_duration_ms, created_at)
			VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?),
				?, ?, ?, ?, ?, ?, ?)
		`, m.ID, m.SessionID, m.SessionID, string(m.Role), m.Content, analysis, experts,
			m.SynthesisThoughts, m.TotalDuration.Milliseconds(), formatTime(m.CreatedAt))
		if err != nil {
			return err
		}

		if title == "" && m.Role == orchestrator.RoleUser {
			title = Title(m.Content)
		}
		_, err = tx.Exec(`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
			title, formatTime(m.CreatedAt), m.SessionID)
		return err
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

// ListMessages returns the messages of a session in conversation order.
func (db *DB) ListMessages(sessionID string) ([]Message, error) {
	rows, err := db.Query(`
		SELECT id, session_id, role, content, analysis, experts,
			synthesis_thoughts, total_duration_ms, created_at
		FROM messages WHERE session_id = ? ORDER BY seq
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var role, createdAt string
		var analysis, experts, thoughts sql.NullString
		var durationMS int64
		if err := rows.Scan(&m.ID, &m.SessionID, &role, &m.Content, &analysis, &experts,
			&thoughts, &durationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		m.Role = orchestrator.Role(role)
		m.SynthesisThoughts = thoughts.String
		m.TotalDuration = time.Duration(durationMS) * time.Millisecond
		m.CreatedAt, _ = parseTime(createdAt)

		if analysis.Valid {
			var a orchestrator.AnalysisResult
			if err := json.Unmarshal([]byte(analysis.String), &a); err != nil {
				return nil, fmt.Errorf("unmarshal analysis of %s: %w", m.ID, err)
			}
			m.Analysis = &a
		}
		if experts.Valid {
			if err := json.Unmarshal([]byte(experts.String), &m.Experts); err != nil {
				return nil, fmt.Errorf("unmarshal experts of %s: %w", m.ID, err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var createdAt, updatedAt string
	if err := row.Scan(&s.ID, &s.Title, &s.Model, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	s.CreatedAt, _ = parseTime(createdAt)
	s.UpdatedAt, _ = parseTime(updatedAt)
	return &s, nil
}
