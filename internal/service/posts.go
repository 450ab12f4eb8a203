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

// FeedPageSize is the fixed number of posts per feed page.
const FeedPageSize = 10

type PostService struct {
	posts    repository.PostRepository
	users    repository.UserRepository
	expander *Expander
	logger   *slog.Logger
}

func NewPostService(
	posts repository.PostRepository,
	users repository.UserRepository,
	expander *Expander,
	logger *slog.Logger,
) *PostService {
	return &PostService{posts: posts, users: users, expander: expander, logger: logger}
}

type CreatePostInput struct {
	Creator  string
	Caption  string
	ImageURL string
	Location string
	Tags     []string
}

// EditPostInput lists the fields to change; nil leaves the field as is.
type EditPostInput struct {
	Caption  *string
	ImageURL *string
	Location *string
	Tags     []string // nil = unchanged, empty = clear
}

// Create publishes a post for input.Creator, who must be the caller.
func (s *PostService) Create(ctx context.Context, input CreatePostInput) (*model.Post, error) {
	input.Creator = strings.TrimSpace(input.Creator)
	input.ImageURL = strings.TrimSpace(input.ImageURL)
	if input.Creator == "" {
		return nil, apperror.ValidationFailed("creator", "creator is required")
	}
	if input.ImageURL == "" {
		return nil, apperror.ValidationFailed("imageUrl", "imageUrl is required")
	}

	if _, err := s.users.GetUserByID(ctx, input.Creator); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ValidationFailed("creator", "creator does not exist")
		}
		return nil, err
	}
	if err := authorize(ctx, s.users, input.Creator); err != nil {
		return nil, err
	}

	post := &model.Post{
		Creator:   input.Creator,
		Caption:   strings.TrimSpace(input.Caption),
		ImageURL:  input.ImageURL,
		Location:  strings.TrimSpace(input.Location),
		Tags:      input.Tags,
		CreatedAt: time.Now().UnixMilli(),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Info("post created", slog.String("postId", post.ID), slog.String("creator", post.Creator))
	return post, nil
}

// Feed returns the page of newest posts starting at offset cursor.
func (s *PostService) Feed(ctx context.Context, cursor int) ([]model.PostWithCreator, error) {
	if cursor < 0 {
		return nil, apperror.ValidationFailed("cursor", "cursor cannot be negative")
	}
	posts, err := s.posts.ListPosts(ctx, repository.ListOptions{Limit: FeedPageSize, Offset: cursor})
	if err != nil {
		return nil, err
	}
	return s.expander.WithCreators(ctx, posts)
}

// ListByCreator pages through the posts of one user, newest first.
func (s *PostService) ListByCreator(ctx context.Context, userID string, cursor int) ([]model.PostWithCreator, error) {
	if cursor < 0 {
		return nil, apperror.ValidationFailed("cursor", "cursor cannot be negative")
	}
	posts, err := s.posts.ListPostsByCreator(ctx, userID, repository.ListOptions{Limit: FeedPageSize, Offset: cursor})
	if err != nil {
		return nil, err
	}
	return s.expander.WithCreators(ctx, posts)
}

// Detail returns one post with all its references resolved.
func (s *PostService) Detail(ctx context.Context, id string) (*model.PostDetail, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expander.Detail(ctx, post)
}

// Edit changes caption, image, location or tags. Only the creator may edit.
func (s *PostService) Edit(ctx context.Context, id string, input EditPostInput) (*model.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(ctx, s.users, post.Creator); err != nil {
		return nil, err
	}

	edit := model.PostEdit{
		Caption:  post.Caption,
		ImageURL: post.ImageURL,
		Location: post.Location,
		Tags:     post.Tags,
	}
	if input.Caption != nil {
		edit.Caption = strings.TrimSpace(*input.Caption)
	}
	if input.ImageURL != nil {
		edit.ImageURL = strings.TrimSpace(*input.ImageURL)
		if edit.ImageURL == "" {
			return nil, apperror.ValidationFailed("imageUrl", "imageUrl cannot be empty")
		}
	}
	if input.Location != nil {
		edit.Location = strings.TrimSpace(*input.Location)
	}
	if input.Tags != nil {
		edit.Tags = input.Tags
	}

	return s.posts.UpdatePost(ctx, id, edit)
}

// SetLike adds (liked) or removes userID from the post's likes. The caller
// can only like on their own behalf.
func (s *PostService) SetLike(ctx context.Context, postID, userID string, liked bool) (*model.Post, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperror.ValidationFailed("userId", "userId is required")
	}
	if err := authorize(ctx, s.users, userID); err != nil {
		return nil, err
	}
	return s.posts.SetPostLike(ctx, postID, userID, liked)
}

// Delete removes a post. Only the creator may delete it.
func (s *PostService) Delete(ctx context.Context, id string) error {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if err := authorize(ctx, s.users, post.Creator); err != nil {
		return err
	}
	if err := s.posts.DeletePost(ctx, id); err != nil {
		return err
	}
	s.logger.Info("post deleted", slog.String("postId", id))
	return nil
}
