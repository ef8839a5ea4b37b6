// Package session decides whether the caller currently holds a valid
// authenticated session with the remote store.
package session

import (
	"context"

	"etracker/internal/api"
	applog "etracker/internal/log"
)

// AuthClient is the slice of the remote client the gate needs.
type AuthClient interface {
	ProbeSession(ctx context.Context) error
	Login(ctx context.Context, creds api.Credentials) error
	Register(ctx context.Context, creds api.Credentials) error
	Logout(ctx context.Context) error
}

// Gate holds the process-wide session flag. All transitions happen on the
// single cooperative flow driving the client, so the flag is a plain bool.
type Gate struct {
	client        AuthClient
	logger        *applog.Logger
	authenticated bool
}

func New(client AuthClient, logger *applog.Logger) *Gate {
	if logger == nil {
		logger = applog.New(applog.Config{Level: applog.LevelFromEnv(), Component: applog.ComponentSession})
	}
	return &Gate{client: client, logger: logger}
}

// Authenticated reports the cached session state.
func (g *Gate) Authenticated() bool {
	return g.authenticated
}

// Check re-evaluates the session by probing the store. Any failure,
// including a transport failure, collapses to anonymous; failures are not
// distinguished. Idempotent.
func (g *Gate) Check(ctx context.Context) bool {
	if err := g.client.ProbeSession(ctx); err != nil {
		g.logger.Debug("session probe failed", applog.FieldError, err)
		g.authenticated = false
		return false
	}
	g.authenticated = true
	return true
}

// Login submits credentials and, on success, re-checks the session to
// confirm the state. A failure is returned unchanged for the caller to
// surface (api.UserMessage picks the best text). No retry.
func (g *Gate) Login(ctx context.Context, creds api.Credentials) error {
	if err := g.client.Login(ctx, creds); err != nil {
		return err
	}
	g.Check(ctx)
	return nil
}

// Register submits new-account data. Success does not authenticate; the
// user still logs in explicitly.
func (g *Gate) Register(ctx context.Context, creds api.Credentials) error {
	return g.client.Register(ctx, creds)
}

// Logout revokes the session remotely on a best-effort basis and flips the
// local flag to anonymous no matter what. The view must never stay stuck
// looking authenticated because the network was down.
func (g *Gate) Logout(ctx context.Context) {
	if err := g.client.Logout(ctx); err != nil {
		g.logger.Warn("remote logout failed, continuing as anonymous", applog.FieldError, err)
	}
	g.authenticated = false
}
