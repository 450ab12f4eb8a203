package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

var _ repository.SavedRepository = (*DB)(nil)

// CreateSaved records a bookmark. User.Saved and Post.Saved are derived
// from this table, so the save shows up on both sides immediately.
func (db *DB) CreateSaved(ctx context.Context, saved *model.Saved) error {
	saved.ID = xid.New().String()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO saves (id, user_id, post_id, created_at) VALUES (?, ?, ?, ?)`,
		saved.ID, saved.User, saved.PostID, saved.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating save: %w", err)
	}
	return nil
}

func (db *DB) GetSavedByID(ctx context.Context, id string) (*model.Saved, error) {
	var s model.Saved
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, post_id, created_at FROM saves WHERE id = ?`, id,
	).Scan(&s.ID, &s.User, &s.PostID, &s.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("save", id)
		}
		return nil, fmt.Errorf("sqlite: getting save %s: %w", id, err)
	}
	return &s, nil
}

// ListSavedByUser returns a user's saves, oldest first.
func (db *DB) ListSavedByUser(ctx context.Context, userID string) ([]model.Saved, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, post_id, created_at FROM saves
		 WHERE user_id = ? ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing saves of %s: %w", userID, err)
	}
	defer rows.Close()

	saves := []model.Saved{}
	for rows.Next() {
		var s model.Saved
		if err := rows.Scan(&s.ID, &s.User, &s.PostID, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning save row: %w", err)
		}
		saves = append(saves, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating saves: %w", err)
	}
	return saves, nil
}

func (db *DB) DeleteSaved(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM saves WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting save %s: %w", id, err)
	}
	return requireAffected(result, "save", id)
}
