package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sakif/snapgram/internal/apperror"
	"github.com/sakif/snapgram/internal/auth"
	"github.com/sakif/snapgram/internal/repository"
)

// authorize checks that the caller is the local user ownerID.
//
// The caller is identified by the external identity id RequireAuth put in
// the context. When there is none (session auth disabled) the check passes.
func authorize(ctx context.Context, users repository.UserRepository, ownerID string) error {
	identityID, ok := auth.IdentityFromContext(ctx)
	if !ok {
		return nil
	}

	actor, err := users.GetUserByExternalID(ctx, identityID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.Forbidden("no local user for this session")
		}
		return fmt.Errorf("resolving session user: %w", err)
	}
	if actor.ID != ownerID {
		return apperror.Forbidden("you can only change your own records")
	}
	return nil
}
