// Command webcamrng-server runs the thin HTTP query service described in
// spec.md §6: GET /random pops one block from the buffer, triggering a
// synchronous refill attempt first if the buffer is empty, and 503s if
// that still yields nothing. All business logic lives in
// internal/rngcontext and internal/buffer; this file is wiring only.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/joho/godotenv/autoload"

	"github.com/vinith200527/webcamrng/internal/config"
	"github.com/vinith200527/webcamrng/internal/logging"
	"github.com/vinith200527/webcamrng/internal/rngcontext"
)

type randomResponse struct {
	RandomHex string `json:"random_hex"`
}

func main() {
	cfg, err := config.New()
	if err != nil {
		panic(err)
	}
	log := logging.New(cfg.Logging)

	rc, err := rngcontext.New(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("server: failed to build rng context")
	}
	defer rc.Close()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/random", func(w http.ResponseWriter, req *http.Request) {
		hex, ok := rc.Buffer.Pop()
		if !ok {
			if err := rc.Buffer.RefillSync(req.Context()); err != nil {
				log.Warn().Err(err).Msg("server: synchronous refill failed")
			}
			hex, ok = rc.Buffer.Pop()
		}
		if !ok {
			http.Error(w, `{"detail":"Service unavailable."}`, http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(randomResponse{RandomHex: hex})
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server: listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server: listen failed")
		}
	}()

	// The webcam file is not watched (spec.md §6); cmd/webcam-health rewrites
	// it between restarts, and an operator sends SIGHUP to pick the change
	// up in a running server without losing in-flight failure/dedup state.
	reload := make(chan os.Signal, 1)
	signal.Notify(reload, syscall.SIGHUP)
	go func() {
		for range reload {
			if err := rc.Registry.Reload(cfg.Webcams.File); err != nil {
				log.Error().Err(err).Msg("server: webcam file reload failed")
				continue
			}
			log.Info().Int("active_cameras", rc.Registry.Len()).Msg("server: webcam file reloaded")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server: graceful shutdown failed")
	}
}
