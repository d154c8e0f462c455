// Package server wraps http.Server with context-driven graceful shutdown.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"
)

type Server struct {
	*http.Server
	Logger *slog.Logger
	// CleanUpFuncs are called after the server has shut down.
	CleanUpFuncs []func(ctx context.Context)
}

// Start serves until ctx is cancelled, then shuts down gracefully with a
// 20 second deadline before forcing exit.
func (s *Server) Start(ctx context.Context) {
	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	s.Server.BaseContext = func(_ net.Listener) context.Context {
		return ctx
	}

	done := make(chan struct{})

	go func() {
		<-ctx.Done()

		s.Logger.Info("server shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
		defer cancel()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				s.Logger.Error("graceful shutdown timed out, forcing exit")
				os.Exit(1)
			}
		}()

		if err := s.Server.Shutdown(shutdownCtx); err != nil {
			s.Logger.Error("server shutdown", "err", err)
			os.Exit(1)
		}

		for _, cf := range s.CleanUpFuncs {
			cf(shutdownCtx)
		}

		close(done)
	}()

	s.Logger.Info("server started", "addr", s.Server.Addr)

	err := s.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		s.Logger.Error("server exit", "err", err)
		os.Exit(1)
	}

	<-done
}
