package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/RichardoC/insurance-assistant/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    seq INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE (session_id, seq)
);

CREATE INDEX IF NOT EXISTS messages_session ON messages (session_id, seq);`

var (
	ErrMissingSession = errors.New("session id is required")
	ErrInvalidRole    = errors.New("invalid message role")
)

// Database is the append-only session log. History is never updated or
// deleted; a session is reset by switching to a new id.
type Database struct {
	db *sql.DB
}

func New(dbPath string) (*Database, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serializes writers, so concurrent appends never
	// race for the same seq and ":memory:" databases stay shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Database{db: db}, nil
}

func (db *Database) Close() error {
	return db.db.Close()
}

// Append adds one message at the end of the session's sequence.
func (db *Database) Append(ctx context.Context, sessionID string, role models.Role, content string) (models.Message, error) {
	if err := validate(sessionID, role); err != nil {
		return models.Message{}, err
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer tx.Rollback()

	msg, err := insert(ctx, tx, sessionID, role, content)
	if err != nil {
		return models.Message{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Message{}, fmt.Errorf("failed to commit message: %w", err)
	}
	return msg, nil
}

// AppendTurn stores a user message and the assistant reply to it in one
// transaction. Either both become visible to Replay or neither does.
func (db *Database) AppendTurn(ctx context.Context, sessionID, userText, reply string) error {
	if sessionID == "" {
		return ErrMissingSession
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := insert(ctx, tx, sessionID, models.RoleUser, userText); err != nil {
		return err
	}
	if _, err := insert(ctx, tx, sessionID, models.RoleAssistant, reply); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

func insert(ctx context.Context, tx *sql.Tx, sessionID string, role models.Role, content string) (models.Message, error) {
	query := `
        INSERT INTO messages (session_id, seq, role, content, created_at)
        VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?), ?, ?, ?)
        RETURNING id, seq`

	msg := models.Message{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	err := tx.QueryRowContext(ctx, query, sessionID, sessionID, string(role), content, msg.CreatedAt).
		Scan(&msg.ID, &msg.Seq)
	if err != nil {
		return models.Message{}, fmt.Errorf("failed to save message: %w", err)
	}
	return msg, nil
}

// Replay returns every message of the session in append order. An unknown
// session has an empty history.
func (db *Database) Replay(ctx context.Context, sessionID string) ([]models.Message, error) {
	query := `
        SELECT id, session_id, seq, role, content, created_at
        FROM messages
        WHERE session_id = ?
        ORDER BY seq ASC`

	rows, err := db.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		var role string
		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Seq, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = models.Role(role)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	return messages, nil
}

// ListSessions summarizes every session in the log, most recently active
// first.
func (db *Database) ListSessions(ctx context.Context) ([]models.Session, error) {
	query := `
        SELECT m.session_id, s.message_count, m.created_at
        FROM messages m
        JOIN (
            SELECT session_id, COUNT(*) AS message_count, MAX(id) AS last_id
            FROM messages
            GROUP BY session_id
        ) s ON m.id = s.last_id
        ORDER BY m.id DESC`

	rows, err := db.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]models.Session, 0)
	for rows.Next() {
		var s models.Session
		if err := rows.Scan(&s.ID, &s.MessageCount, &s.LastActivity); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return sessions, nil
}

func validate(sessionID string, role models.Role) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	if !role.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	return nil
}
