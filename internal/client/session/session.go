// Package session keeps the signed-in account and this device's identity in
// the local metadata table.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/gophjournal/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/timex"
)

type Session struct {
	meta   metadata.Repository
	logger logging.Logger

	mu       sync.Mutex
	deviceID string
}

func New(meta metadata.Repository, l logging.Logger) *Session {
	return &Session{meta: meta, logger: l.With("module", "session")}
}

// UserID reports the signed-in user. A read error counts as signed out.
func (s *Session) UserID(ctx context.Context) (string, bool) {
	id, err := s.meta.GetString(ctx, metadata.KeyUserID)
	if err != nil {
		s.logger.Warn(ctx, "reading session failed", "error", err)
		return "", false
	}
	return id, id != ""
}

func (s *Session) Username(ctx context.Context) string {
	name, _ := s.meta.GetString(ctx, metadata.KeyUsername)
	return name
}

// DeviceID returns the device's stable id, creating it on first use.
func (s *Session) DeviceID(ctx context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deviceID != "" {
		return s.deviceID
	}
	id, err := s.meta.GetString(ctx, metadata.KeyDeviceID)
	if err == nil && id != "" {
		s.deviceID = id
		return id
	}

	id = uuid.NewString()
	if err := s.meta.SetString(ctx, metadata.KeyDeviceID, id); err != nil {
		s.logger.Warn(ctx, "persisting device id failed", "error", err)
	}
	s.deviceID = id
	return id
}

// SignIn stores the account and its tokens.
func (s *Session) SignIn(ctx context.Context, userID, username, accessToken, refreshToken string) error {
	for k, v := range map[string]string{
		metadata.KeyUserID:       userID,
		metadata.KeyUsername:     username,
		metadata.KeyAccessToken:  accessToken,
		metadata.KeyRefreshToken: refreshToken,
	} {
		if err := s.meta.SetString(ctx, k, v); err != nil {
			return err
		}
	}
	return nil
}

// SaveTokens persists a rotated token pair.
func (s *Session) SaveTokens(ctx context.Context, accessToken, refreshToken string) error {
	if err := s.meta.SetString(ctx, metadata.KeyAccessToken, accessToken); err != nil {
		return err
	}
	return s.meta.SetString(ctx, metadata.KeyRefreshToken, refreshToken)
}

func (s *Session) Tokens(ctx context.Context) (accessToken, refreshToken string) {
	accessToken, _ = s.meta.GetString(ctx, metadata.KeyAccessToken)
	refreshToken, _ = s.meta.GetString(ctx, metadata.KeyRefreshToken)
	return accessToken, refreshToken
}

// SignOut forgets the account. The device id and the journal stay.
func (s *Session) SignOut(ctx context.Context) error {
	return s.meta.Delete(ctx,
		metadata.KeyUserID, metadata.KeyUsername,
		metadata.KeyAccessToken, metadata.KeyRefreshToken, metadata.KeyLastPushAt)
}

func (s *Session) SetLastPush(ctx context.Context, at time.Time) error {
	return s.meta.SetString(ctx, metadata.KeyLastPushAt, at.UTC().Format(time.RFC3339))
}

// LastPush returns the zero time when no push has completed yet.
func (s *Session) LastPush(ctx context.Context) time.Time {
	v, _ := s.meta.GetString(ctx, metadata.KeyLastPushAt)
	at, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}
	}
	return timex.Truncate(at)
}
