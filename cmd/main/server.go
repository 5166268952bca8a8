package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// VersionInfo defines the structure for build/version information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the model HTTP API",
		Long:  "Serve the model HTTP API on api_addr until interrupted.",
		Args:  cobra.NoArgs,
		Run:   runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (default: api_addr from the config)")

	rootCmd.AddCommand(cmd)
}

// newAPIMux builds the handler for every API route.
func newAPIMux(a *app) *http.ServeMux {
	mux := http.NewServeMux()
	NewMarkovAPI(a.store, a.config, a.logger).RegisterRoutes(mux)
	mux.HandleFunc("/api/version", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", "GET")
			respondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		respondWithJSON(w, http.StatusOK, VersionInfo{Version: Version, Commit: Commit, BuildDate: BuildDate})
	})
	return mux
}

// logRequests logs one debug record per request.
func logRequests(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("Request served", "method", r.Method, "path", r.URL.Path, "remote_addr", r.RemoteAddr, "duration", time.Since(start))
	})
}

func runServe(cmd *cobra.Command, args []string) {
	addr, _ := cmd.Flags().GetString("addr")

	a := mustOpenApp()
	defer a.Close()
	if addr == "" {
		addr = a.config.ApiAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, a, addr); err != nil {
		a.logger.Error("Api server failed", "error", err)
		a.Close()
		os.Exit(1)
	}
	a.logger.Info("Markov API has shut down.")
}

// serve runs the API server until ctx is cancelled, then shuts it down
// gracefully.
func serve(ctx context.Context, a *app, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           logRequests(a.logger, newAPIMux(a)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting api server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		a.logger.Info("Stopping api server for shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Api server shutdown failed", "error", err)
		return err
	}
	a.logger.Info("HTTP server stopped.")
	return nil
}
