package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

var _ repository.PostRepository = (*DB)(nil)

const postColumns = `id, creator_id, caption, image_url, location, tags, created_at`

// CreatePost inserts a post as given; callers stamp CreatedAt (the feed is
// ordered by it). A new post has no likes, comments or saves.
func (db *DB) CreatePost(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	post.Tags = normalizeSet(post.Tags)

	tags, err := json.Marshal(post.Tags)
	if err != nil {
		return fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	if _, err := db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.Creator,
		post.Caption,
		post.ImageURL,
		post.Location,
		string(tags),
		post.CreatedAt,
	); err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	post.Likes = []string{}
	post.Comments = []string{}
	post.Saved = []string{}
	return nil
}

// GetPostByID retrieves a single post with its like, comment and save ids.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	return getPost(ctx, db.conn, id)
}

func getPost(ctx context.Context, q querier, id string) (*model.Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	if err := hydratePost(ctx, q, p); err != nil {
		return nil, err
	}
	return p, nil
}

// ListPosts returns the newest posts first.
func (db *DB) ListPosts(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := clampPage(opts)
	return db.listPosts(ctx,
		`SELECT `+postColumns+` FROM posts
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
}

// ListPostsByCreator returns one user's posts, newest first.
func (db *DB) ListPostsByCreator(ctx context.Context, creatorID string, opts repository.ListOptions) ([]model.Post, error) {
	limit, offset := clampPage(opts)
	return db.listPosts(ctx,
		`SELECT `+postColumns+` FROM posts WHERE creator_id = ?
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		creatorID, limit, offset,
	)
}

func (db *DB) listPosts(ctx context.Context, query string, args ...any) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts: %w", err)
	}

	posts := []model.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, *p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	rows.Close()

	for i := range posts {
		if err := hydratePost(ctx, db.conn, &posts[i]); err != nil {
			return nil, err
		}
	}
	return posts, nil
}

// UpdatePost replaces the editable fields of a post.
func (db *DB) UpdatePost(ctx context.Context, id string, edit model.PostEdit) (*model.Post, error) {
	tags, err := json.Marshal(normalizeSet(edit.Tags))
	if err != nil {
		return nil, fmt.Errorf("sqlite: encoding tags: %w", err)
	}

	var updated *model.Post
	err = db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE posts SET caption = ?, image_url = ?, location = ?, tags = ? WHERE id = ?`,
			edit.Caption, edit.ImageURL, edit.Location, string(tags), id,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating post %s: %w", id, err)
		}
		if err := requireAffected(result, "post", id); err != nil {
			return err
		}
		updated, err = getPost(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetPostLike adds or removes userID from the post's like set.
func (db *DB) SetPostLike(ctx context.Context, postID, userID string, liked bool) (*model.Post, error) {
	var updated *model.Post
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		ok, err := exists(ctx, tx, "posts", postID)
		if err != nil {
			return fmt.Errorf("sqlite: checking post %s: %w", postID, err)
		}
		if !ok {
			return apperror.NotFound("post", postID)
		}

		stmt := `DELETE FROM post_likes WHERE post_id = ? AND user_id = ?`
		if liked {
			stmt = `INSERT OR IGNORE INTO post_likes (post_id, user_id) VALUES (?, ?)`
		}
		if _, err := tx.ExecContext(ctx, stmt, postID, userID); err != nil {
			return fmt.Errorf("sqlite: setting like on post %s: %w", postID, err)
		}
		updated, err = getPost(ctx, tx, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeletePost removes a single post.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return requireAffected(result, "post", id)
}

// DeletePostsByCreator removes every post of creatorID in one transaction
// and returns the removed ids. Deleting zero posts is not an error.
func (db *DB) DeletePostsByCreator(ctx context.Context, creatorID string) ([]string, error) {
	var ids []string
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		ids, err = queryStrings(ctx, tx, `SELECT id FROM posts WHERE creator_id = ?`, creatorID)
		if err != nil {
			return fmt.Errorf("sqlite: selecting posts of %s: %w", creatorID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM posts WHERE creator_id = ?`, creatorID); err != nil {
			return fmt.Errorf("sqlite: deleting posts of %s: %w", creatorID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p    model.Post
		tags string
	)
	if err := row.Scan(
		&p.ID, &p.Creator, &p.Caption, &p.ImageURL, &p.Location, &tags, &p.CreatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
		return nil, fmt.Errorf("decoding tags of post %s: %w", p.ID, err)
	}
	if p.Tags == nil {
		p.Tags = []string{}
	}
	return &p, nil
}

func hydratePost(ctx context.Context, q querier, p *model.Post) error {
	var err error
	p.Likes, err = queryStrings(ctx, q,
		`SELECT user_id FROM post_likes WHERE post_id = ? ORDER BY rowid`, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading likes of post %s: %w", p.ID, err)
	}
	p.Comments, err = queryStrings(ctx, q,
		`SELECT id FROM comments WHERE post_id = ? ORDER BY created_at, id`, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading comments of post %s: %w", p.ID, err)
	}
	p.Saved, err = queryStrings(ctx, q,
		`SELECT id FROM saves WHERE post_id = ? ORDER BY created_at, id`, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading saves of post %s: %w", p.ID, err)
	}
	return nil
}

func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}

// normalizeSet trims, drops empties and removes duplicates, keeping the
// first occurrence's position.
func normalizeSet(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
