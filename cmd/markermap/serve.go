package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func runServe(ctx context.Context, args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	commonFlags(fs)
	fs.String("dir", ".", "directory to serve")
	fs.String("addr", "127.0.0.1:8000", "listen address")

	e, code := parseFlags(fs, args, stderr)
	if e == nil {
		return code
	}
	defer e.Close()

	dir, _ := fs.GetString("dir")
	addr, _ := fs.GetString("addr")
	if st, err := os.Stat(dir); err != nil || !st.IsDir() {
		e.Logger.Error().Str("dir", dir).Msg("Not a directory")
		return exitError
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(dir, e.Logger),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.Logger.Info().Str("addr", addr).Str("dir", dir).Msg("Serving files")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.Logger.Error().Err(err).Msg("File server error")
			return exitError
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			e.Logger.Warn().Err(err).Msg("File server shutdown")
		}
		e.Logger.Info().Msg("File server stopped")
	}
	return exitOK
}

// newRouter serves dir as static files.
func newRouter(dir string, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Handle("/*", http.FileServer(http.Dir(dir)))
	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			ev := logger.Debug()
			if ww.Status() >= 400 {
				ev = logger.Warn()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("Request served")
		})
	}
}
