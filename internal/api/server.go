// Driftline - Predictive Retention and Engagement Analytics
// Copyright 2026 Driftline Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/driftline/driftline

package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Server wraps the HTTP listener as a supervised service.
type Server struct {
	addr    string
	timeout time.Duration
	handler http.Handler
	logger  zerolog.Logger
}

// NewServer creates the supervised HTTP server.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewServer(host string, port int, timeout time.Duration, handler http.Handler, logger zerolog.Logger) *Server {
	return &Server{
		addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		timeout: timeout,
		handler: handler,
		logger:  logger.With().Str("component", "http-server").Logger(),
	}
}

// Serve runs the listener until ctx is canceled, then shuts down
// gracefully. Implements suture.Service.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.timeout,
		WriteTimeout:      s.timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("http server shutdown incomplete")
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// String implements suture.Service naming.
func (s *Server) String() string { return "http-server" }
