// Package service contains the business logic layer of the application.
//
//	Handler (HTTP)  → parses requests, writes responses
//	Service         → validates, enforces rules, orchestrates
//	Repository      → reads/writes the store
//
// Services take repository interfaces, never the concrete SQLite type, and
// return apperror values that handlers translate into status codes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/events"
	"github.com/sakif/snapgram/internal/identity"
	"github.com/sakif/snapgram/internal/model"
	"github.com/sakif/snapgram/internal/repository"
)

// WebhookResult is the body returned to the identity provider.
type WebhookResult struct {
	Message string      `json:"message"`
	User    *model.User `json:"user,omitempty"`
}

// IdentityService reconciles local user records with lifecycle events from
// the identity provider.
//
// THE ONE RULE:
// Nothing is read from or written to the store until the verifier has
// accepted the payload. Missing headers and bad signatures return before
// any repository call.
//
// DELIVERY SEMANTICS:
// The provider delivers at least once and events are not deduplicated by id.
//   - a replayed user.created hits the email check (or the UNIQUE index if two
//     copies race) and is answered with Conflict
//   - a replayed user.deleted finds no user and is answered with NotFound;
//     the sender should treat that as success
//   - user.updated racing user.deleted for the same identity is a lost-update
//     hazard: whichever write the store serialises last wins
type IdentityService struct {
	verifier identity.Verifier
	users    repository.UserRepository
	posts    repository.PostRepository
	metadata identity.MetadataUpdater
	events   events.Publisher
	logger   *slog.Logger
}

func NewIdentityService(
	verifier identity.Verifier,
	users repository.UserRepository,
	posts repository.PostRepository,
	metadata identity.MetadataUpdater,
	publisher events.Publisher,
	logger *slog.Logger,
) *IdentityService {
	return &IdentityService{
		verifier: verifier,
		users:    users,
		posts:    posts,
		metadata: metadata,
		events:   publisher,
		logger:   logger,
	}
}

// HandleWebhook verifies payload against headers and applies the event.
// payload must be the raw request body, byte for byte.
func (s *IdentityService) HandleWebhook(ctx context.Context, payload []byte, headers http.Header) (*WebhookResult, error) {
	evt, err := s.verifier.Verify(payload, headers)
	if err != nil {
		s.logger.Warn("webhook rejected",
			slog.String("eventId", headers.Get(identity.HeaderID)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	logger := s.logger.With(
		slog.String("eventId", headers.Get(identity.HeaderID)),
		slog.String("eventType", evt.Type),
		slog.String("identityId", evt.Data.ID),
	)

	switch evt.Type {
	case identity.EventUserCreated:
		return s.userCreated(ctx, logger, evt.Data)
	case identity.EventUserUpdated:
		return s.userUpdated(ctx, logger, evt.Data)
	case identity.EventUserDeleted:
		return s.userDeleted(ctx, logger, evt.Data)
	default:
		logger.Info("webhook event ignored")
		return &WebhookResult{Message: "event ignored"}, nil
	}
}

func (s *IdentityService) userCreated(ctx context.Context, logger *slog.Logger, data identity.UserData) (*WebhookResult, error) {
	if data.ID == "" {
		return nil, apperror.ValidationFailed("data.id", "user.created event has no identity id")
	}
	email := data.PrimaryEmail()
	if email == "" {
		return nil, apperror.ValidationFailed("data.email_addresses", "user.created event has no email address")
	}

	// Fast path for replays. The UNIQUE index below is what actually
	// guarantees a single record when two deliveries race.
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		logger.Info("user.created for existing email, not creating a duplicate")
		return nil, duplicateUser(email)
	} else if !errors.Is(err, apperror.ErrNotFound) {
		logger.Error("looking up user by email failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("checking existing user: %w", err)
	}

	first := data.FirstName.Value
	user := &model.User{
		ExternalIdentityID: data.ID,
		Email:              email,
		FirstName:          first,
		LastName:           orDefault(data.LastName.Value, first),
		Username:           orDefault(data.Username.Value, first),
		PhotoURL:           data.ImageURL.Value,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			logger.Info("user.created lost a race with a concurrent create")
			return nil, duplicateUser(email)
		}
		logger.Error("persisting new user failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("creating user: %w", err)
	}

	// Best-effort: store our id on the provider side so later requests can be
	// correlated. The local record stays even if this fails.
	if err := s.metadata.UpdatePublicMetadata(ctx, data.ID, map[string]any{"userId": user.ID}); err != nil {
		logger.Error("writing local user id to provider metadata failed",
			slog.String("userId", user.ID),
			slog.String("error", err.Error()),
		)
	}

	s.publish(ctx, logger, events.SubjectUserCreated, user, 0)
	logger.Info("user created", slog.String("userId", user.ID))

	return &WebhookResult{Message: "New user created", User: user}, nil
}

// userUpdated applies only the fields present in the event. An identity we
// have no record of is not an error: there is nothing to update.
func (s *IdentityService) userUpdated(ctx context.Context, logger *slog.Logger, data identity.UserData) (*WebhookResult, error) {
	existing, err := s.users.GetUserByExternalID(ctx, data.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			logger.Info("user.updated for unknown identity, nothing changed")
			return &WebhookResult{Message: "no matching user, nothing updated"}, nil
		}
		logger.Error("looking up user failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("finding user to update: %w", err)
	}

	patch := profilePatch(existing, data)
	updated, err := s.users.UpdateUser(ctx, existing.ID, patch)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			logger.Info("user removed before update applied, nothing changed")
			return &WebhookResult{Message: "no matching user, nothing updated"}, nil
		}
		logger.Error("updating user failed", slog.String("userId", existing.ID), slog.String("error", err.Error()))
		return nil, fmt.Errorf("updating user: %w", err)
	}

	s.publish(ctx, logger, events.SubjectUserUpdated, updated, 0)
	logger.Info("user updated", slog.String("userId", updated.ID))

	return &WebhookResult{Message: "User updated", User: updated}, nil
}

func (s *IdentityService) userDeleted(ctx context.Context, logger *slog.Logger, data identity.UserData) (*WebhookResult, error) {
	user, err := s.users.GetUserByExternalID(ctx, data.ID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			logger.Info("user.deleted for unknown identity")
			return nil, err
		}
		logger.Error("looking up user failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("finding user to delete: %w", err)
	}

	removed, err := deleteUserCascade(ctx, s.users, s.posts, logger, user)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, logger, events.SubjectUserDeleted, user, removed)
	logger.Info("user deleted", slog.String("userId", user.ID), slog.Int("deletedPosts", removed))

	return &WebhookResult{Message: "User deleted", User: user}, nil
}

func (s *IdentityService) publish(ctx context.Context, logger *slog.Logger, subject string, user *model.User, deletedPosts int) {
	err := s.events.Publish(ctx, subject, events.UserLifecycle{
		UserID:             user.ID,
		ExternalIdentityID: user.ExternalIdentityID,
		DeletedPosts:       deletedPosts,
		OccurredAt:         time.Now().UTC(),
	})
	if err != nil {
		logger.Warn("publishing lifecycle event failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
	}
}

// deleteUserCascade removes the user and then every post they created.
//
// The two steps are not atomic. If the post delete fails the user is already
// gone and their posts are orphaned; the failure is logged with enough
// context to re-run the cleanup and surfaced to the caller as an internal
// error. Nothing is rolled back.
func deleteUserCascade(
	ctx context.Context,
	users repository.UserRepository,
	posts repository.PostRepository,
	logger *slog.Logger,
	user *model.User,
) (int, error) {
	if err := users.DeleteUser(ctx, user.ID); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			logger.Error("deleting user failed", slog.String("userId", user.ID), slog.String("error", err.Error()))
		}
		return 0, err
	}

	removed, err := posts.DeletePostsByCreator(ctx, user.ID)
	if err != nil {
		logger.Error("user deleted but removing their posts failed; posts are orphaned",
			slog.String("userId", user.ID),
			slog.String("externalIdentityId", user.ExternalIdentityID),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("deleting posts of user %s: %w", user.ID, err)
	}
	return len(removed), nil
}

// profilePatch maps provider fields onto a patch. Keys missing from the
// payload are left alone; a key sent as null clears the field. lastName and
// username fall back to the first name whenever they would otherwise end up
// empty.
func profilePatch(existing *model.User, data identity.UserData) model.UserPatch {
	var patch model.UserPatch

	first := existing.FirstName
	if data.FirstName.Set {
		first = data.FirstName.Value
		patch.FirstName = &first
	}
	if data.ImageURL.Set {
		photo := data.ImageURL.Value
		patch.PhotoURL = &photo
	}
	patch.LastName = fallback(data.LastName, existing.LastName, first)
	patch.Username = fallback(data.Username, existing.Username, first)
	return patch
}

// fallback returns the patch value for a field that defaults to the first
// name: the incoming value if non-empty, otherwise first if the field would
// end up empty, otherwise unchanged (nil).
func fallback(incoming identity.Optional[string], current, first string) *string {
	if incoming.Set && incoming.Value != "" {
		v := incoming.Value
		return &v
	}
	if !incoming.Set && current != "" {
		return nil
	}
	if first == "" {
		if !incoming.Set {
			return nil
		}
		empty := ""
		return &empty
	}
	return &first
}

func duplicateUser(email string) *apperror.AppError {
	return &apperror.AppError{
		Err:     apperror.ErrConflict,
		Message: "user already exists",
		Field:   "email",
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
