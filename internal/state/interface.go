package state

import "io"

// SessionStore handles session-related persistence operations.
type SessionStore interface {
	CreateSession(s *Session) error
	GetSession(id string) (*Session, error)
	FindSession(idOrPrefix string) (*Session, error)
	ListSessions(limit int) ([]Session, error)
	DeleteSession(id string) error
}

// MessageStore handles message-related persistence operations.
type MessageStore interface {
	AppendMessage(m *Message) error
	ListMessages(sessionID string) ([]Message, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store is what the CLI needs from persistence. The engine itself never
// touches it; completed runs are appended by the caller.
type Store interface {
	io.Closer
	Migrator
	SessionStore
	MessageStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ Migrator     = (*DB)(nil)
	_ SessionStore = (*DB)(nil)
	_ MessageStore = (*DB)(nil)
)
