package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, external_identity_id, email, username, first_name, last_name,
	photo_url, created_at, updated_at`

// CreateUser inserts a new user and fills in ID and timestamps.
//
// The UNIQUE indexes on external_identity_id and email are what make two
// concurrent creates for the same account safe: the second INSERT fails and
// is reported as apperror.ErrConflict.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.ExternalIdentityID,
		user.Email,
		user.Username,
		user.FirstName,
		user.LastName,
		user.PhotoURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.ExternalIdentityID)
		}
		return fmt.Errorf("sqlite: inserting user (externalID=%s): %w", user.ExternalIdentityID, err)
	}

	user.Following = []string{}
	user.Followers = []string{}
	user.Saved = []string{}
	return nil
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, db.conn, "id", id)
}

// GetUserByExternalID looks a user up by the identity provider's account id.
func (db *DB) GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return db.getUser(ctx, db.conn, "external_identity_id", externalID)
}

// GetUserByEmail looks a user up by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, db.conn, "email", email)
}

// getUser loads one user by a unique column and hydrates its sets.
// column is always one of the constants above.
func (db *DB) getUser(ctx context.Context, q querier, column, value string) (*model.User, error) {
	var u model.User
	err := q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE `+column+` = ?`,
		value,
	).Scan(
		&u.ID,
		&u.ExternalIdentityID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.PhotoURL,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", value)
		}
		return nil, fmt.Errorf("sqlite: getting user by %s %s: %w", column, value, err)
	}

	if err := hydrateUser(ctx, q, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// hydrateUser fills the derived set fields of u.
func hydrateUser(ctx context.Context, q querier, u *model.User) error {
	var err error
	u.Following, err = queryStrings(ctx, q,
		`SELECT followee_id FROM follows WHERE follower_id = ? ORDER BY rowid`, u.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading following of %s: %w", u.ID, err)
	}
	u.Followers, err = queryStrings(ctx, q,
		`SELECT follower_id FROM follows WHERE followee_id = ? ORDER BY rowid`, u.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading followers of %s: %w", u.ID, err)
	}
	u.Saved, err = queryStrings(ctx, q,
		`SELECT id FROM saves WHERE user_id = ? ORDER BY created_at, id`, u.ID)
	if err != nil {
		return fmt.Errorf("sqlite: loading saves of %s: %w", u.ID, err)
	}
	return nil
}

// ListUsers returns users ordered by creation time.
func (db *DB) ListUsers(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	limit, offset := clampPage(opts)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at, id LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}

	users := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := rows.Scan(
			&u.ID, &u.ExternalIdentityID, &u.Email, &u.Username,
			&u.FirstName, &u.LastName, &u.PhotoURL, &u.CreatedAt, &u.UpdatedAt,
		); err != nil {
			rows.Close()
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	rows.Close()

	for i := range users {
		if err := hydrateUser(ctx, db.conn, &users[i]); err != nil {
			return nil, err
		}
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of patch and returns the new record.
// An empty patch returns the current record unchanged.
func (db *DB) UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	if patch.Empty() {
		return db.GetUserByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	add := func(column string, v *string) {
		if v != nil {
			sets = append(sets, column+" = ?")
			args = append(args, *v)
		}
	}
	add("username", patch.Username)
	add("first_name", patch.FirstName)
	add("last_name", patch.LastName)
	add("photo_url", patch.PhotoURL)
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now(), id)

	var updated *model.User
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}
		updated, err = db.getUser(ctx, tx, "id", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteUser removes a user. Follow edges go with it (ON DELETE CASCADE);
// posts do not, see PostRepository.DeletePostsByCreator.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", id)
	}
	return nil
}

// Follow adds the edge follower → followee. Following someone twice is a
// no-op; both users must exist.
func (db *DB) Follow(ctx context.Context, followerID, followeeID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUsers(ctx, tx, followerID, followeeID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO follows (follower_id, followee_id) VALUES (?, ?)`,
			followerID, followeeID,
		); err != nil {
			return fmt.Errorf("sqlite: following %s -> %s: %w", followerID, followeeID, err)
		}
		return nil
	})
}

// Unfollow removes the edge follower → followee if present.
func (db *DB) Unfollow(ctx context.Context, followerID, followeeID string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := requireUsers(ctx, tx, followerID, followeeID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM follows WHERE follower_id = ? AND followee_id = ?`,
			followerID, followeeID,
		); err != nil {
			return fmt.Errorf("sqlite: unfollowing %s -> %s: %w", followerID, followeeID, err)
		}
		return nil
	})
}

func requireUsers(ctx context.Context, q querier, ids ...string) error {
	for _, id := range ids {
		ok, err := exists(ctx, q, "users", id)
		if err != nil {
			return fmt.Errorf("sqlite: checking user %s: %w", id, err)
		}
		if !ok {
			return apperror.NotFound("user", id)
		}
	}
	return nil
}

// clampPage applies the default and maximum page sizes.
func clampPage(opts repository.ListOptions) (limit, offset int) {
	limit = opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset = opts.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
