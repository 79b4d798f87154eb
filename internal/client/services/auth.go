// Package services contains the application services behind the REPL:
// account management and the journal itself.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophjournal/internal/analytics"
	"github.com/dmitrijs2005/gophjournal/internal/client/cloudsync"
	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/cryptox"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/rpc"
)

// AuthAPI is the slice of the server client used for accounts.
type AuthAPI interface {
	Register(ctx context.Context, username string, salt []byte, verifier []byte) (string, error)
	GetSalt(ctx context.Context, username string) ([]byte, error)
	Login(ctx context.Context, username string, verifier []byte) (*rpc.LoginResponse, error)
	SetTokens(accessToken, refreshToken string)
	Ping(ctx context.Context) error
}

// SessionStore persists who is signed in.
type SessionStore interface {
	SignIn(ctx context.Context, userID, username, accessToken, refreshToken string) error
	SignOut(ctx context.Context) error
	Tokens(ctx context.Context) (accessToken, refreshToken string)
	UserID(ctx context.Context) (string, bool)
}

type Restorer interface {
	Restore(ctx context.Context) cloudsync.RestoreResult
}

// AuthService defines authentication operations for the CLI.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) error
	// Login signs in, restores from the cloud and then fires the one-shot
	// push. A failed restore does not undo the sign-in.
	Login(ctx context.Context, username string, password []byte) (cloudsync.RestoreResult, error)
	Logout(ctx context.Context) error
	// Resume reinstalls stored tokens at startup and reports whether a
	// session exists.
	Resume(ctx context.Context) bool
	Ping(ctx context.Context) error
}

type authService struct {
	api      AuthAPI
	session  SessionStore
	restorer Restorer
	afterIn  func()
	sink     analytics.Sink
	logger   logging.Logger
}

// NewAuthService wires the account flow. afterSignIn, if set, is called
// once a sign-in has been restored; the app uses it to schedule the
// one-shot push.
func NewAuthService(api AuthAPI, session SessionStore, restorer Restorer, afterSignIn func(), sink analytics.Sink, l logging.Logger) AuthService {
	if sink == nil {
		sink = analytics.Nop{}
	}
	return &authService{
		api:      api,
		session:  session,
		restorer: restorer,
		afterIn:  afterSignIn,
		sink:     sink,
		logger:   l.With("module", "auth"),
	}
}

// Register creates a new account on the server. It generates a random salt,
// derives a key from the password and sends only salt and verifier.
func (a *authService) Register(ctx context.Context, username string, password []byte) error {
	if username == "" || len(password) == 0 {
		return fmt.Errorf("%w: username and password are required", common.ErrInvalidArgument)
	}
	salt := common.GenerateRandByteArray(cryptox.SaltLen)
	key := cryptox.DeriveKey(password, salt)
	defer common.WipeByteArray(key)

	if _, err := a.api.Register(ctx, username, salt, cryptox.MakeVerifier(key)); err != nil {
		return fmt.Errorf("register error: %w", err)
	}
	return nil
}

func (a *authService) Login(ctx context.Context, username string, password []byte) (cloudsync.RestoreResult, error) {
	salt, err := a.api.GetSalt(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			err = common.ErrUnauthorized
		}
		return cloudsync.RestoreResult{}, fmt.Errorf("get salt error: %w", err)
	}

	resp, err := a.api.Login(ctx, username, cryptox.VerifierFor(password, salt))
	if err != nil {
		return cloudsync.RestoreResult{}, fmt.Errorf("login error: %w", err)
	}

	if err := a.session.SignIn(ctx, resp.UserID, username, resp.AccessToken, resp.RefreshToken); err != nil {
		return cloudsync.RestoreResult{}, fmt.Errorf("session saving error: %w", err)
	}
	a.sink.Track(ctx, analytics.EventSignedIn, map[string]any{"user_id": resp.UserID})
	a.logger.Info(ctx, "signed in", "user_id", resp.UserID)

	res := a.restorer.Restore(ctx)
	if a.afterIn != nil {
		a.afterIn()
	}
	return res, nil
}

func (a *authService) Logout(ctx context.Context) error {
	uid, ok := a.session.UserID(ctx)
	if !ok {
		return common.ErrNotSignedIn
	}
	if err := a.session.SignOut(ctx); err != nil {
		return err
	}
	a.api.SetTokens("", "")
	a.sink.Track(ctx, analytics.EventSignedOut, map[string]any{"user_id": uid})
	a.logger.Info(ctx, "signed out", "user_id", uid)
	return nil
}

func (a *authService) Resume(ctx context.Context) bool {
	if _, ok := a.session.UserID(ctx); !ok {
		return false
	}
	a.api.SetTokens(a.session.Tokens(ctx))
	return true
}

// Ping proxies a liveness check to the server.
func (a *authService) Ping(ctx context.Context) error {
	return a.api.Ping(ctx)
}
