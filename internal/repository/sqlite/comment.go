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

var _ repository.CommentRepository = (*DB)(nil)

const commentColumns = `id, user_id, post_id, comment, created_at`

// CreateComment inserts a comment. The post's comment list is derived from
// post_id, so nothing on the post row changes.
func (db *DB) CreateComment(ctx context.Context, comment *model.Comment) error {
	comment.ID = xid.New().String()
	comment.Likes = normalizeSet(comment.Likes)

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO comments (`+commentColumns+`) VALUES (?, ?, ?, ?, ?)`,
			comment.ID, comment.User, comment.PostID, comment.Comment, comment.CreatedAt,
		); err != nil {
			return fmt.Errorf("sqlite: creating comment: %w", err)
		}
		return insertCommentLikes(ctx, tx, comment.ID, comment.Likes)
	})
}

// GetCommentByID retrieves a comment with its likes.
func (db *DB) GetCommentByID(ctx context.Context, id string) (*model.Comment, error) {
	return getComment(ctx, db.conn, id)
}

func getComment(ctx context.Context, q querier, id string) (*model.Comment, error) {
	var c model.Comment
	err := q.QueryRowContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE id = ?`, id,
	).Scan(&c.ID, &c.User, &c.PostID, &c.Comment, &c.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("comment", id)
		}
		return nil, fmt.Errorf("sqlite: getting comment %s: %w", id, err)
	}
	c.Likes, err = queryStrings(ctx, q,
		`SELECT user_id FROM comment_likes WHERE comment_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: loading likes of comment %s: %w", id, err)
	}
	return &c, nil
}

// ListCommentsByPost returns a post's comments, oldest first.
func (db *DB) ListCommentsByPost(ctx context.Context, postID string) ([]model.Comment, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE post_id = ? ORDER BY created_at, id`,
		postID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing comments of post %s: %w", postID, err)
	}

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(&c.ID, &c.User, &c.PostID, &c.Comment, &c.CreatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning comment row: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating comments: %w", err)
	}
	rows.Close()

	for i := range comments {
		comments[i].Likes, err = queryStrings(ctx, db.conn,
			`SELECT user_id FROM comment_likes WHERE comment_id = ? ORDER BY rowid`, comments[i].ID)
		if err != nil {
			return nil, fmt.Errorf("sqlite: loading likes of comment %s: %w", comments[i].ID, err)
		}
	}
	return comments, nil
}

// AddCommentLikes unions userIDs into the comment's like set.
func (db *DB) AddCommentLikes(ctx context.Context, id string, userIDs []string) (*model.Comment, error) {
	var updated *model.Comment
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "comments", id)
		if err != nil {
			return fmt.Errorf("sqlite: checking comment %s: %w", id, err)
		}
		if !ok {
			return apperror.NotFound("comment", id)
		}
		if err := insertCommentLikes(ctx, tx, id, normalizeSet(userIDs)); err != nil {
			return err
		}
		updated, err = getComment(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteComment removes a comment; its likes cascade.
func (db *DB) DeleteComment(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM comments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting comment %s: %w", id, err)
	}
	return requireAffected(result, "comment", id)
}

func insertCommentLikes(ctx context.Context, tx *sql.Tx, commentID string, userIDs []string) error {
	for _, userID := range userIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO comment_likes (comment_id, user_id) VALUES (?, ?)`,
			commentID, userID,
		); err != nil {
			return fmt.Errorf("sqlite: liking comment %s: %w", commentID, err)
		}
	}
	return nil
}
