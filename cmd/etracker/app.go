package main

import (
	"context"
	"errors"
	"fmt"

	"etracker/internal/api"
	"etracker/internal/config"
	"etracker/internal/dashboard"
	applog "etracker/internal/log"
	"etracker/internal/session"
)

var errNotLoggedIn = errors.New("not logged in, run 'etracker login' first")

// app wires the client stack together: config, remote client, session
// gate and the dashboard view.
type app struct {
	cfg    *config.Config
	client *api.Client
	gate   *session.Gate
	board  *dashboard.Dashboard
}

func newApp() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := applog.New(applog.Config{Level: applog.LevelFromEnv(), Component: applog.ComponentApp})

	client, err := api.New(cfg.ServerURL,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithSessionFile(cfg.SessionFile),
		api.WithLogger(logger.WithComponent(applog.ComponentAPI)),
	)
	if err != nil {
		return nil, err
	}

	gate := session.New(client, logger.WithComponent(applog.ComponentSession))
	board := dashboard.New(client, gate, logger.WithComponent(applog.ComponentDashboard), nil)

	return &app{cfg: cfg, client: client, gate: gate, board: board}, nil
}

// requireSession re-evaluates the session before a privileged command, the
// same check that runs on every process start.
func (a *app) requireSession(ctx context.Context) error {
	if !a.gate.Check(ctx) {
		return errNotLoggedIn
	}
	return nil
}

// remoteFailure turns a failed remote call into a user-facing error with
// the best available message.
func remoteFailure(action string, err error) error {
	return fmt.Errorf("%s: %s", action, api.UserMessage(err))
}
