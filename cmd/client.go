/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"

	"github.com/adb-analytics/apiserver/config"
	"github.com/adb-analytics/apiserver/internal/client"
	"github.com/adb-analytics/apiserver/internal/session"
)

var errNotLoggedIn = errors.New("not logged in, run 'adbapi login' first")

// clientEnv is the API client plus the session whose token it sends.
type clientEnv struct {
	api     *client.Client
	session *session.Session
}

func newClientEnv() (*clientEnv, error) {
	cfg := config.LoadConfig()

	path := cfg.Client.TokenFile
	if path == "" {
		p, err := session.DefaultTokenPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	api := client.New(cfg.Client.APIURL)
	sess := session.New(session.FileTokenStore{Path: path}, api)
	sess.Attach(api)
	return &clientEnv{api: api, session: sess}, nil
}

func (e *clientEnv) requireLogin() error {
	if !e.session.IsAuthenticated() {
		return errNotLoggedIn
	}
	return nil
}

// explain turns client errors into messages for the terminal.
func explain(err error) error {
	var (
		authErr     *client.AuthError
		conflictErr *client.ConflictError
		netErr      *client.NetworkError
	)
	switch {
	case errors.As(err, &authErr):
		return errors.New(authErr.Message)
	case errors.As(err, &conflictErr):
		return errors.New(conflictErr.Message)
	case errors.As(err, &netErr):
		return fmt.Errorf("could not reach the API: %w", netErr.Err)
	default:
		return err
	}
}
