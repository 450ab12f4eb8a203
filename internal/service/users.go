package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/events"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

// UserService serves the profile routes. Account creation is not here: users
// only come into existence through IdentityService.
type UserService struct {
	users    repository.UserRepository
	posts    repository.PostRepository
	saves    repository.SavedRepository
	expander *Expander
	events   events.Publisher
	logger   *slog.Logger
}

func NewUserService(
	users repository.UserRepository,
	posts repository.PostRepository,
	saves repository.SavedRepository,
	expander *Expander,
	publisher events.Publisher,
	logger *slog.Logger,
) *UserService {
	return &UserService{
		users:    users,
		posts:    posts,
		saves:    saves,
		expander: expander,
		events:   publisher,
		logger:   logger,
	}
}

// UpdateProfileInput holds the editable profile fields. Nil means unchanged.
// Email is owned by the identity provider and only changes via webhook.
type UpdateProfileInput struct {
	Username  *string
	FirstName *string
	LastName  *string
	PhotoURL  *string
}

func (s *UserService) List(ctx context.Context, opts repository.ListOptions) ([]model.User, error) {
	return s.users.ListUsers(ctx, opts)
}

func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) GetByExternalID(ctx context.Context, externalID string) (*model.User, error) {
	return s.users.GetUserByExternalID(ctx, externalID)
}

// UpdateProfile applies input to user id. Only the user themself may do so.
func (s *UserService) UpdateProfile(ctx context.Context, id string, input UpdateProfileInput) (*model.User, error) {
	patch := model.UserPatch{
		Username:  trimmed(input.Username),
		FirstName: trimmed(input.FirstName),
		LastName:  trimmed(input.LastName),
		PhotoURL:  trimmed(input.PhotoURL),
	}
	if patch.Username != nil && *patch.Username == "" {
		return nil, apperror.ValidationFailed("username", "username cannot be empty")
	}
	if patch.FirstName != nil && *patch.FirstName == "" {
		return nil, apperror.ValidationFailed("firstName", "firstName cannot be empty")
	}

	if err := authorize(ctx, s.users, id); err != nil {
		return nil, err
	}

	user, err := s.users.UpdateUser(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("profile updated", slog.String("userId", id))
	return user, nil
}

// Delete removes user id and every post they created. Returns the number of
// posts removed.
func (s *UserService) Delete(ctx context.Context, id string) (int, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if err := authorize(ctx, s.users, id); err != nil {
		return 0, err
	}

	logger := s.logger.With(slog.String("userId", id))
	removed, err := deleteUserCascade(ctx, s.users, s.posts, logger, user)
	if err != nil {
		return 0, err
	}

	if err := s.events.Publish(ctx, events.SubjectUserDeleted, events.UserLifecycle{
		UserID:             user.ID,
		ExternalIdentityID: user.ExternalIdentityID,
		DeletedPosts:       removed,
		OccurredAt:         time.Now().UTC(),
	}); err != nil {
		logger.Warn("publishing lifecycle event failed", slog.String("error", err.Error()))
	}

	logger.Info("user deleted via api", slog.Int("deletedPosts", removed))
	return removed, nil
}

// Follow makes id follow targetID and returns the updated follower.
func (s *UserService) Follow(ctx context.Context, id, targetID string) (*model.User, error) {
	if err := s.checkFollow(ctx, id, targetID); err != nil {
		return nil, err
	}
	if err := s.users.Follow(ctx, id, targetID); err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, id)
}

// Unfollow removes the edge id → targetID, if any, and returns the follower.
func (s *UserService) Unfollow(ctx context.Context, id, targetID string) (*model.User, error) {
	if err := s.checkFollow(ctx, id, targetID); err != nil {
		return nil, err
	}
	if err := s.users.Unfollow(ctx, id, targetID); err != nil {
		return nil, err
	}
	return s.users.GetUserByID(ctx, id)
}

func (s *UserService) checkFollow(ctx context.Context, id, targetID string) error {
	if id == targetID {
		return apperror.ValidationFailed("targetId", "users cannot follow themselves")
	}
	return authorize(ctx, s.users, id)
}

// ListSaves returns the saves of userID with their posts resolved.
func (s *UserService) ListSaves(ctx context.Context, userID string) ([]*model.SavedView, error) {
	if _, err := s.users.GetUserByID(ctx, userID); err != nil {
		return nil, err
	}
	saves, err := s.saves.ListSavedByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing saves of %s: %w", userID, err)
	}
	return s.expander.Saves(ctx, saves)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
