// internal/app/system/auth/fetcher.go
package auth

import (
	"context"
	"fmt"

	"github.com/ciaranj/piglet/internal/app/store/admins"
	"github.com/ciaranj/piglet/internal/app/store/sessions"
	"github.com/ciaranj/piglet/internal/app/store/users"
)

// StoreFetcher resolves session IDs against the Mongo-backed stores.
type StoreFetcher struct {
	Sessions *sessions.Store
	Users    *users.Store
	Admins   *admins.Store
}

// FetchIdentity implements IdentityFetcher. An unknown or expired session
// resolves to (nil, nil); store failures are real errors.
func (f *StoreFetcher) FetchIdentity(ctx context.Context, sessionID string) (*Identity, error) {
	sess, err := f.Sessions.Get(ctx, sessionID)
	if err == sessions.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	user, err := f.Users.GetByID(ctx, sess.UserID)
	if err == users.ErrNotFound {
		// Account deleted after the session was issued.
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	isAdmin, err := f.Admins.IsGlobalAdmin(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("check global admin: %w", err)
	}

	return &Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		AuthType:    sess.AuthType,
		SiteID:      sess.SiteID,
		SessionID:   sess.ID,
		GlobalAdmin: isAdmin,
	}, nil
}
