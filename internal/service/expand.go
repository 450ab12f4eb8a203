package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

// Expander resolves reference fields into embedded records for responses.
//
// It is a read-side join kept out of the repositories: references are plain
// ids there, and nothing stops a comment or save from outliving the record it
// points at. A reference that no longer resolves becomes nil (single
// references) or is skipped (lists); only real storage failures are errors.
//
// One Expander call memoises user lookups, so a page of posts by the same
// creator costs a single user read.
type Expander struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	saves    repository.SavedRepository
}

func NewExpander(
	users repository.UserRepository,
	posts repository.PostRepository,
	comments repository.CommentRepository,
	saves repository.SavedRepository,
) *Expander {
	return &Expander{users: users, posts: posts, comments: comments, saves: saves}
}

type userCache map[string]*model.User

func (e *Expander) user(ctx context.Context, cache userCache, id string) (*model.User, error) {
	if u, ok := cache[id]; ok {
		return u, nil
	}
	u, err := e.users.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("expanding user %s: %w", id, err)
		}
		u = nil
	}
	cache[id] = u
	return u, nil
}

// WithCreators resolves the creator of every post.
func (e *Expander) WithCreators(ctx context.Context, posts []model.Post) ([]model.PostWithCreator, error) {
	cache := userCache{}
	out := make([]model.PostWithCreator, 0, len(posts))
	for _, p := range posts {
		creator, err := e.user(ctx, cache, p.Creator)
		if err != nil {
			return nil, err
		}
		out = append(out, model.PostWithCreator{Post: p, Creator: creator})
	}
	return out, nil
}

// Detail resolves the creator, comments (with their authors) and saves
// (with their user and post) of a single post.
func (e *Expander) Detail(ctx context.Context, p *model.Post) (*model.PostDetail, error) {
	cache := userCache{}

	creator, err := e.user(ctx, cache, p.Creator)
	if err != nil {
		return nil, err
	}

	detail := &model.PostDetail{
		Post:     *p,
		Creator:  creator,
		Comments: []*model.CommentView{},
		Saved:    []*model.SavedView{},
	}

	for _, id := range p.Comments {
		c, err := e.comments.GetCommentByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("expanding comment %s: %w", id, err)
		}
		view, err := e.comment(ctx, cache, *c)
		if err != nil {
			return nil, err
		}
		detail.Comments = append(detail.Comments, view)
	}

	for _, id := range p.Saved {
		s, err := e.saves.GetSavedByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("expanding save %s: %w", id, err)
		}
		u, err := e.user(ctx, cache, s.User)
		if err != nil {
			return nil, err
		}
		// The save points at the post being expanded; no second read.
		detail.Saved = append(detail.Saved, &model.SavedView{Saved: *s, User: u, Post: p})
	}

	return detail, nil
}

// Comments resolves the author of every comment.
func (e *Expander) Comments(ctx context.Context, comments []model.Comment) ([]*model.CommentView, error) {
	cache := userCache{}
	out := make([]*model.CommentView, 0, len(comments))
	for _, c := range comments {
		view, err := e.comment(ctx, cache, c)
		if err != nil {
			return nil, err
		}
		out = append(out, view)
	}
	return out, nil
}

func (e *Expander) comment(ctx context.Context, cache userCache, c model.Comment) (*model.CommentView, error) {
	u, err := e.user(ctx, cache, c.User)
	if err != nil {
		return nil, err
	}
	return &model.CommentView{Comment: c, User: u}, nil
}

// Saves resolves the post of every save. The user is not expanded: every
// save in a per-user listing belongs to the same, already known, user.
func (e *Expander) Saves(ctx context.Context, saves []model.Saved) ([]*model.SavedView, error) {
	out := make([]*model.SavedView, 0, len(saves))
	for _, s := range saves {
		p, err := e.posts.GetPostByID(ctx, s.PostID)
		if err != nil {
			if !errors.Is(err, apperror.ErrNotFound) {
				return nil, fmt.Errorf("expanding post %s: %w", s.PostID, err)
			}
			p = nil
		}
		out = append(out, &model.SavedView{Saved: s, Post: p})
	}
	return out, nil
}
