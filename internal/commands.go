package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/mcpserver"
)

// AddUser registers a credential in the configured credentials file.
func AddUser(cfg *Config, username, password string) error {
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	if err := st.credentials.Register(username, password); err != nil {
		if errors.Is(err, apperr.ErrAlreadyExists) {
			return fmt.Errorf("user %q already exists or the password is blank", username)
		}
		return err
	}
	slog.Info("User registered", slog.String("username", username))
	return nil
}

// ServeMCP serves the MCP tools on stdin/stdout until the client disconnects.
// When username is set, password must match its stored credential and tools
// that need a signed-in user act as that user.
func ServeMCP(cfg *Config, username, password string) error {
	// stdout carries the protocol.
	logger := newLogger(os.Stderr, cfg.App.LogLevel)
	slog.SetDefault(logger)

	st, err := openStores(cfg)
	if err != nil {
		return err
	}

	if username != "" {
		ok, err := st.credentials.Verify(username, password)
		if err != nil {
			return fmt.Errorf("verify %s: %w", username, err)
		}
		if !ok {
			return fmt.Errorf("%s: %w", username, apperr.ErrAuthenticationFailed)
		}
	}

	logger.Info("MCP server starting", slog.String("content_dir", cfg.Content.Dir), slog.String("operator", username))
	return mcpserver.New(st.docs, username).ServeStdio()
}
