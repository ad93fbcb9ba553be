package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pdf-share-relay/backend/internal/model"
)

// DefaultListLimit bounds List when no limit is given.
const DefaultListLimit = 100

// SessionRepository provides data access for session history.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create records a new session. A session id seen before (the lobby is
// recreated under the same id) starts a fresh record.
func (r *SessionRepository) Create(ctx context.Context, info model.SessionInfo) error {
	query := `
		INSERT INTO shared_sessions (id, file_name, file_size, position, created_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			file_name = excluded.file_name,
			file_size = excluded.file_size,
			artifact_size = 0,
			artifact_digest = NULL,
			position = excluded.position,
			uploads = 0,
			created_at = excluded.created_at,
			last_activity = excluded.last_activity,
			reaped_at = NULL
	`

	_, err := r.db.ExecContext(ctx, query,
		info.ID,
		info.FileName,
		info.FileSize,
		info.Position,
		info.CreatedAt.UTC(),
		info.LastActivity.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create session record: %w", err)
	}

	return nil
}

// UpdateArtifact records an upload.
func (r *SessionRepository) UpdateArtifact(ctx context.Context, info model.SessionInfo) error {
	query := `
		UPDATE shared_sessions
		SET artifact_size = ?, artifact_digest = ?, position = ?, uploads = uploads + 1, last_activity = ?
		WHERE id = ?
	`

	return r.update(ctx, "artifact", query,
		info.ArtifactSize,
		info.ArtifactDigest,
		info.Position,
		info.LastActivity.UTC(),
		info.ID,
	)
}

// UpdatePosition records a page change.
func (r *SessionRepository) UpdatePosition(ctx context.Context, id string, position int, at time.Time) error {
	query := `UPDATE shared_sessions SET position = ?, last_activity = ? WHERE id = ?`
	return r.update(ctx, "position", query, position, at.UTC(), id)
}

// MarkReaped stamps the time a session was removed.
func (r *SessionRepository) MarkReaped(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE shared_sessions SET reaped_at = ? WHERE id = ? AND reaped_at IS NULL`
	return r.update(ctx, "reaped", query, at.UTC(), id)
}

func (r *SessionRepository) update(ctx context.Context, what, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", what, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return model.ErrSessionNotFound
	}

	return nil
}

const selectColumns = `
	SELECT id, file_name, file_size, artifact_size, artifact_digest, position, uploads, created_at, last_activity, reaped_at
	FROM shared_sessions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.SessionRecord, error) {
	record := &model.SessionRecord{}
	var digest sql.NullString
	var reapedAt sql.NullTime

	err := row.Scan(
		&record.ID,
		&record.FileName,
		&record.FileSize,
		&record.ArtifactSize,
		&digest,
		&record.Position,
		&record.Uploads,
		&record.CreatedAt,
		&record.LastActivity,
		&reapedAt,
	)
	if err != nil {
		return nil, err
	}

	if digest.Valid {
		record.ArtifactDigest = digest.String
	}
	if reapedAt.Valid {
		t := reapedAt.Time
		record.ReapedAt = &t
	}
	return record, nil
}

// GetByID retrieves a session record by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*model.SessionRecord, error) {
	record, err := scanRecord(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session record: %w", err)
	}
	return record, nil
}

// List returns the most recently created records first.
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*model.SessionRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session records: %w", err)
	}
	defer rows.Close()

	records := []*model.SessionRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session records: %w", err)
	}

	return records, nil
}
