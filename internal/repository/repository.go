// Package repository declares the storage contracts the services depend on.
// Every lookup that finds nothing returns an apperror.NotFound; callers never
// receive a nil record with a nil error.
package repository

import (
	"context"

	"github.com/sakif/snapgram/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// UserRepository stores user records and the follow graph.
//
// Create must fail with apperror.ErrConflict when the external identity id
// or email is already taken. The check is a UNIQUE index, not a prior read.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	ListUsers(ctx context.Context, opts ListOptions) ([]model.User, error)
	UpdateUser(ctx context.Context, id string, patch model.UserPatch) (*model.User, error)
	DeleteUser(ctx context.Context, id string) error

	Follow(ctx context.Context, followerID, followeeID string) error
	Unfollow(ctx context.Context, followerID, followeeID string) error
}

type PostRepository interface {
	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	ListPosts(ctx context.Context, opts ListOptions) ([]model.Post, error)
	ListPostsByCreator(ctx context.Context, creatorID string, opts ListOptions) ([]model.Post, error)
	UpdatePost(ctx context.Context, id string, edit model.PostEdit) (*model.Post, error)
	SetPostLike(ctx context.Context, postID, userID string, liked bool) (*model.Post, error)
	DeletePost(ctx context.Context, id string) error

	// DeletePostsByCreator removes every post whose creator is creatorID and
	// returns the ids it removed.
	DeletePostsByCreator(ctx context.Context, creatorID string) ([]string, error)
}

type CommentRepository interface {
	CreateComment(ctx context.Context, comment *model.Comment) error
	GetCommentByID(ctx context.Context, id string) (*model.Comment, error)
	ListCommentsByPost(ctx context.Context, postID string) ([]model.Comment, error)
	AddCommentLikes(ctx context.Context, id string, userIDs []string) (*model.Comment, error)
	DeleteComment(ctx context.Context, id string) error
}

type SavedRepository interface {
	CreateSaved(ctx context.Context, saved *model.Saved) error
	GetSavedByID(ctx context.Context, id string) (*model.Saved, error)
	ListSavedByUser(ctx context.Context, userID string) ([]model.Saved, error)
	DeleteSaved(ctx context.Context, id string) error
}
