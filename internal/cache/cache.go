// Package cache puts a Redis read-through cache in front of single-post
// reads. The post detail route is the hottest read and a post's derived
// lists (comments, saves) change through three different repositories, so
// the decorator wraps all three and drops the cached post whenever any of
// them touches it.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

// DefaultTTL bounds how stale a cached post can get if an invalidation is
// lost (for example Redis was briefly unreachable during a write).
const DefaultTTL = 5 * time.Minute

// Backend is the storage being cached.
type Backend interface {
	repository.PostRepository
	repository.CommentRepository
	repository.SavedRepository
}

// Store decorates a Backend. Methods it does not override go straight to
// the backend.
//
// Redis failures never fail a request: reads fall through to the backend
// and failed invalidations are logged.
//
// Every post has a version key that invalidation bumps. A reader notes the
// version before loading from the backend and fills the cache only if it is
// unchanged, so a fill never overwrites a newer invalidation.
type Store struct {
	Backend
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

var _ Backend = (*Store)(nil)

// NewRedisClient connects to addr and checks the connection.
func NewRedisClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

func New(backend Backend, rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{Backend: backend, rdb: rdb, ttl: ttl, logger: logger}
}

func postKey(id string) string    { return "post:" + id }
func versionKey(id string) string { return "post:" + id + ":v" }

// GetPostByID serves from Redis when it can and fills the cache on a miss.
func (s *Store) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	raw, err := s.rdb.Get(ctx, postKey(id)).Bytes()
	switch {
	case err == nil:
		var p model.Post
		if jsonErr := json.Unmarshal(raw, &p); jsonErr == nil {
			return &p, nil
		}
		s.logger.Warn("dropping undecodable cached post", slog.String("postId", id))
		s.invalidate(ctx, id)
	case !errors.Is(err, redis.Nil):
		s.logger.Warn("post cache read failed", slog.String("postId", id), slog.String("error", err.Error()))
	}

	version, err := s.rdb.Get(ctx, versionKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		// Without a version the fill cannot be checked; serve uncached.
		return s.Backend.GetPostByID(ctx, id)
	}

	p, err := s.Backend.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, p, version)
	return p, nil
}

// fill caches p if the post's version is still the one seen before the
// backend read.
func (s *Store) fill(ctx context.Context, p *model.Post, version string) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, versionKey(p.ID)).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != version {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, postKey(p.ID), data, s.ttl)
			return nil
		})
		return err
	}, versionKey(p.ID))

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("post changed while loading, not caching", slog.String("postId", p.ID))
	default:
		s.logger.Warn("post cache fill failed", slog.String("postId", p.ID), slog.String("error", err.Error()))
	}
}

var errStale = errors.New("cache: post version changed")

func (s *Store) UpdatePost(ctx context.Context, id string, edit model.PostEdit) (*model.Post, error) {
	p, err := s.Backend.UpdatePost(ctx, id, edit)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return p, nil
}

func (s *Store) SetPostLike(ctx context.Context, postID, userID string, liked bool) (*model.Post, error) {
	p, err := s.Backend.SetPostLike(ctx, postID, userID, liked)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, postID)
	return p, nil
}

func (s *Store) DeletePost(ctx context.Context, id string) error {
	if err := s.Backend.DeletePost(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *Store) DeletePostsByCreator(ctx context.Context, creatorID string) ([]string, error) {
	ids, err := s.Backend.DeletePostsByCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, ids...)
	return ids, nil
}

func (s *Store) CreateComment(ctx context.Context, c *model.Comment) error {
	if err := s.Backend.CreateComment(ctx, c); err != nil {
		return err
	}
	s.invalidate(ctx, c.PostID)
	return nil
}

func (s *Store) DeleteComment(ctx context.Context, id string) error {
	c, err := s.Backend.GetCommentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Backend.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, c.PostID)
	return nil
}

func (s *Store) CreateSaved(ctx context.Context, saved *model.Saved) error {
	if err := s.Backend.CreateSaved(ctx, saved); err != nil {
		return err
	}
	s.invalidate(ctx, saved.PostID)
	return nil
}

func (s *Store) DeleteSaved(ctx context.Context, id string) error {
	saved, err := s.Backend.GetSavedByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.Backend.DeleteSaved(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, saved.PostID)
	return nil
}

// invalidate bumps each post's version and drops its cached copy. The
// version key outlives any in-flight read by living as long as a cached
// entry would.
func (s *Store) invalidate(ctx context.Context, postIDs ...string) {
	if len(postIDs) == 0 {
		return
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range postIDs {
			pipe.Incr(ctx, versionKey(id))
			pipe.Expire(ctx, versionKey(id), s.ttl)
			pipe.Del(ctx, postKey(id))
		}
		return nil
	})
	if err != nil {
		s.logger.Warn("post cache invalidation failed",
			slog.Any("postIds", postIDs),
			slog.String("error", err.Error()),
		)
	}
}
