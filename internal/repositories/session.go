package repositories

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/joip/internal/models"
	"github.com/desertthunder/joip/internal/shared"
)

// SessionRepository persists slideshow sessions.
//
// Sessions are soft deleted and listed most recently updated first. Channels are stored as a JSON array.
type SessionRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSessionRepository creates a new SessionRepository with the given database connection
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const sessionColumns = `id, sequence, title, thumbnail, channels, interval_seconds, transition, caption_prompt,
		is_favorite, is_public, user_id, created_at, updated_at`

// Create validates the session, assigns its ID, sequence and timestamps, and inserts it.
func (r *SessionRepository) Create(s *models.Session) error {
	s.Channels = models.ParseChannels(strings.Join(s.Channels, ","))
	s.ApplyDefaults()
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "sessions")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	channels, err := encodeChannels(s.Channels)
	if err != nil {
		return err
	}

	now := r.now()
	s.ID = shared.GenerateID()
	s.Sequence = sequence
	s.CreatedAt = now
	s.UpdatedAt = now

	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		s.ID,
		s.Sequence,
		s.Title,
		s.Thumbnail,
		channels,
		s.Interval,
		string(s.Transition),
		s.CaptionPrompt,
		s.IsFavorite,
		s.IsPublic,
		s.UserID,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID, excluding soft-deleted sessions.
func (r *SessionRepository) Get(id string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ? AND deleted_at IS NULL`

	s, err := scanSession(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return s, nil
}

// List returns every live session, most recently updated first.
func (r *SessionRepository) List() ([]*models.Session, error) {
	return r.ListBy(nil)
}

// ListBy returns live sessions matching criteria, most recently updated first.
//
// Supported criteria: "user_id" (string), "favorite" (bool), "public" (bool).
func (r *SessionRepository) ListBy(criteria map[string]any) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE deleted_at IS NULL`
	args := []any{}

	if userID, ok := criteria["user_id"].(string); ok && userID != "" {
		query += " AND user_id = ?"
		args = append(args, userID)
	}
	if favorite, ok := criteria["favorite"].(bool); ok {
		query += " AND is_favorite = ?"
		args = append(args, favorite)
	}
	if public, ok := criteria["public"].(bool); ok {
		query += " AND is_public = ?"
		args = append(args, public)
	}

	query += " ORDER BY updated_at DESC, sequence DESC"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return sessions, nil
}

// Update applies patch to the session with the given ID and returns the stored result.
func (r *SessionRepository) Update(id string, patch models.SessionPatch) (*models.Session, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if patch.Empty() {
		return s, nil
	}

	patch.Apply(s)
	if patch.Channels != nil {
		s.Channels = models.ParseChannels(strings.Join(s.Channels, ","))
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	channels, err := encodeChannels(s.Channels)
	if err != nil {
		return nil, err
	}
	s.UpdatedAt = r.now()

	query := `
		UPDATE sessions
		SET title = ?, thumbnail = ?, channels = ?, interval_seconds = ?, transition = ?, caption_prompt = ?,
			is_favorite = ?, is_public = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		s.Title,
		s.Thumbnail,
		channels,
		s.Interval,
		string(s.Transition),
		s.CaptionPrompt,
		s.IsFavorite,
		s.IsPublic,
		s.UpdatedAt,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update session: %w", err)
	}
	if err := expectRow(result, id); err != nil {
		return nil, err
	}
	return s, nil
}

// Delete soft-deletes a session. It reports false when no live session had the ID.
func (r *SessionRepository) Delete(id string) (bool, error) {
	result, err := r.db.Exec(`UPDATE sessions SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`, r.now(), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}
	return affected(result)
}

// SetFavorite flags or unflags a session. It reports false when no live session had the ID.
func (r *SessionRepository) SetFavorite(id string, favorite bool) (bool, error) {
	result, err := r.db.Exec(
		`UPDATE sessions SET is_favorite = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		favorite, r.now(), id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update favorite: %w", err)
	}
	return affected(result)
}

// Import creates every session in a single transaction; either all are stored or none are.
func (r *SessionRepository) Import(sessions []*models.Session) error {
	for _, s := range sessions {
		s.Channels = models.ParseChannels(strings.Join(s.Channels, ","))
		s.ApplyDefaults()
		if err := s.Validate(); err != nil {
			return fmt.Errorf("validation failed for %q: %w", s.Title, err)
		}
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range sessions {
		if _, err := tx.Exec("UPDATE sessions_sequence SET value = value + 1 WHERE id = 1"); err != nil {
			return fmt.Errorf("failed to increment sequence: %w", err)
		}
		if err := tx.QueryRow("SELECT value FROM sessions_sequence WHERE id = 1").Scan(&s.Sequence); err != nil {
			return fmt.Errorf("failed to get sequence value: %w", err)
		}

		channels, err := encodeChannels(s.Channels)
		if err != nil {
			return err
		}

		now := r.now()
		s.ID = shared.GenerateID()
		s.CreatedAt, s.UpdatedAt = now, now

		_, err = tx.Exec(`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Sequence, s.Title, s.Thumbnail, channels, s.Interval, string(s.Transition), s.CaptionPrompt,
			s.IsFavorite, s.IsPublic, s.UserID, s.CreatedAt, s.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert session %q: %w", s.Title, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit import: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanSession scans a row from either [sql.Row] or [sql.Rows] into a [models.Session]
func scanSession(row scanner) (*models.Session, error) {
	var (
		s          models.Session
		channels   string
		transition string
	)

	err := row.Scan(
		&s.ID, &s.Sequence, &s.Title, &s.Thumbnail, &channels, &s.Interval, &transition, &s.CaptionPrompt,
		&s.IsFavorite, &s.IsPublic, &s.UserID, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(channels), &s.Channels); err != nil {
		return nil, fmt.Errorf("corrupt channel list for session %s: %w", s.ID, err)
	}
	if s.Channels == nil {
		s.Channels = []string{}
	}
	s.Transition = models.TransitionMode(transition)
	return &s, nil
}

func encodeChannels(channels []string) (string, error) {
	if channels == nil {
		channels = []string{}
	}
	data, err := json.Marshal(channels)
	if err != nil {
		return "", fmt.Errorf("failed to encode channels: %w", err)
	}
	return string(data), nil
}

func affected(result sql.Result) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}

func expectRow(result sql.Result, id string) error {
	ok, err := affected(result)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrSessionNotFound, id)
	}
	return nil
}
