package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

// CommentService handles comments and saves: the two record types that hang
// off a post and are owned by the user who made them.
type CommentService struct {
	comments repository.CommentRepository
	saves    repository.SavedRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	expander *Expander
	logger   *slog.Logger
}

func NewCommentService(
	comments repository.CommentRepository,
	saves repository.SavedRepository,
	posts repository.PostRepository,
	users repository.UserRepository,
	expander *Expander,
	logger *slog.Logger,
) *CommentService {
	return &CommentService{
		comments: comments,
		saves:    saves,
		posts:    posts,
		users:    users,
		expander: expander,
		logger:   logger,
	}
}

type CreateCommentInput struct {
	User    string
	PostID  string
	Comment string
}

// Create adds a comment to an existing post. The post's comment list is
// derived from the comment's post id, so the post itself is not rewritten.
func (s *CommentService) Create(ctx context.Context, input CreateCommentInput) (*model.Comment, error) {
	input.Comment = strings.TrimSpace(input.Comment)
	switch {
	case input.User == "":
		return nil, apperror.ValidationFailed("user", "user is required")
	case input.PostID == "":
		return nil, apperror.ValidationFailed("postId", "postId is required")
	case input.Comment == "":
		return nil, apperror.ValidationFailed("comment", "comment cannot be empty")
	}

	if err := authorize(ctx, s.users, input.User); err != nil {
		return nil, err
	}
	if err := s.requirePost(ctx, input.PostID); err != nil {
		return nil, err
	}

	c := &model.Comment{
		User:      input.User,
		PostID:    input.PostID,
		Comment:   input.Comment,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.comments.CreateComment(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("comment created", slog.String("commentId", c.ID), slog.String("postId", c.PostID))
	return c, nil
}

// ListByPost returns the comments on postID, oldest first, with authors.
func (s *CommentService) ListByPost(ctx context.Context, postID string) ([]*model.CommentView, error) {
	if postID == "" {
		return nil, apperror.ValidationFailed("postId", "postId query parameter is required")
	}
	comments, err := s.comments.ListCommentsByPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.expander.Comments(ctx, comments)
}

// AddLikes adds userIDs to the comment's like set. A caller with a session
// may only add themself.
func (s *CommentService) AddLikes(ctx context.Context, id string, userIDs []string) (*model.Comment, error) {
	if len(userIDs) == 0 {
		return nil, apperror.ValidationFailed("likes", "likes must list at least one user")
	}
	for _, u := range userIDs {
		if err := authorize(ctx, s.users, u); err != nil {
			return nil, err
		}
	}
	return s.comments.AddCommentLikes(ctx, id, userIDs)
}

// Delete removes a comment. Only its author may delete it.
func (s *CommentService) Delete(ctx context.Context, id string) error {
	c, err := s.comments.GetCommentByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(ctx, s.users, c.User); err != nil {
		return err
	}
	return s.comments.DeleteComment(ctx, id)
}

// Save bookmarks postID for userID.
func (s *CommentService) Save(ctx context.Context, userID, postID string) (*model.Saved, error) {
	switch {
	case userID == "":
		return nil, apperror.ValidationFailed("user", "user is required")
	case postID == "":
		return nil, apperror.ValidationFailed("postId", "postId is required")
	}
	if err := authorize(ctx, s.users, userID); err != nil {
		return nil, err
	}
	if err := s.requirePost(ctx, postID); err != nil {
		return nil, err
	}

	saved := &model.Saved{User: userID, PostID: postID, CreatedAt: time.Now().UnixMilli()}
	if err := s.saves.CreateSaved(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// Unsave removes a bookmark. Only the user who saved it may remove it.
func (s *CommentService) Unsave(ctx context.Context, id string) error {
	saved, err := s.saves.GetSavedByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(ctx, s.users, saved.User); err != nil {
		return err
	}
	return s.saves.DeleteSaved(ctx, id)
}

func (s *CommentService) requirePost(ctx context.Context, postID string) error {
	if _, err := s.posts.GetPostByID(ctx, postID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("postId", "post does not exist")
		}
		return err
	}
	return nil
}
