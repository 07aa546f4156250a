// Command server runs the admission-controlled API front for the job
// application tracker. It wires the shared sliding-window store, the
// concurrency gate, and the per-class rate limits onto the protected routes.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/resupify/resupify/integration/stats"
	"github.com/resupify/resupify/middleware"
	"github.com/resupify/resupify/pkg/admission"
	"github.com/resupify/resupify/pkg/clientip"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Error("failed to parse config", slog.Any("error", err))
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	registry, err := admission.NewRegistry(cfg.Limits())
	if err != nil {
		log.Error("invalid limit configuration", slog.Any("error", err))
		os.Exit(1)
	}

	store := admission.NewWindowStore(
		admission.WithCleanupInterval(cfg.CleanupInterval),
		admission.WithIdleThreshold(cfg.IdleThreshold),
		admission.WithLogger(log.With(slog.String("component", "admission"))),
	)
	gate := admission.NewConcurrencyGate(
		admission.WithGateLogger(log.With(slog.String("component", "admission.gate"))),
	)

	recorder := newRecorder(cfg, log)

	mux := buildRoutes(cfg, registry, store, gate, recorder, log)

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.CleanupInterval > 0 {
		eg.Go(store.Run(ctx))
	}
	eg.Go(func() error {
		log.Info("server listening", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := eg.Wait(); err != nil {
		log.Error("server exited with error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}

// newRecorder builds the stats recorder: Redis-backed when REDIS_URL is set,
// in-memory otherwise so /admission/stats always has data to show.
func newRecorder(cfg Config, log *slog.Logger) stats.Recorder {
	if cfg.RedisURL == "" {
		return stats.NewMemoryRecorder()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("invalid REDIS_URL", slog.Any("error", err))
		os.Exit(1)
	}
	return stats.NewRedisRecorder(redis.NewClient(opts))
}

// userKey resolves the caller identity for per-user limits: the
// authenticated user from the X-User-ID header, or the client IP when the
// request is anonymous.
func userKey(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return clientip.GetIP(r)
}

func buildRoutes(
	cfg Config,
	registry *admission.Registry,
	store *admission.WindowStore,
	gate *admission.ConcurrencyGate,
	recorder stats.Recorder,
	log *slog.Logger,
) *http.ServeMux {
	// Admin requests skip every admission check when the key matches.
	skipAdmin := func(r *http.Request) bool {
		return cfg.AdminAPIKey != "" && r.Header.Get("X-Admin-Key") == cfg.AdminAPIKey
	}

	rate := func(class string, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
		return middleware.RateLimit(middleware.RateLimitConfig{
			Store:      store,
			Limit:      registry.MustGet(class),
			Class:      class,
			KeyFunc:    keyFunc,
			Skip:       skipAdmin,
			SetHeaders: true,
			Stats:      recorder,
			Logger:     log,
		})
	}

	accepted := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	mux := http.NewServeMux()

	scanGate := middleware.ConcurrencyLimit(middleware.ConcurrencyLimitConfig{
		Gate:    gate,
		Max:     cfg.ScanConcurrency,
		Class:   admission.LimitEvidenceScanPerUser,
		KeyFunc: userKey,
		Skip:    skipAdmin,
		Logger:  log,
	})
	mux.Handle("POST /v1/evidence/scan",
		rate(admission.LimitEvidenceScanPerUser, userKey)(scanGate(accepted)))

	mux.Handle("POST /v1/outreach/generate",
		rate(admission.LimitOutreachPerUser, userKey)(accepted))
	mux.Handle("POST /v1/kits",
		rate(admission.LimitKitPerUser, userKey)(accepted))
	mux.Handle("POST /v1/jd/extract",
		rate(admission.LimitJDExtractPerUser, userKey)(accepted))
	mux.Handle("POST /v1/auth/login",
		rate(admission.LimitAuthPerIP, clientip.GetIP)(accepted))

	// URL fetching is double-gated: per IP for abuse from shared networks,
	// per user for individual overuse.
	mux.Handle("POST /v1/fetch",
		rate(admission.LimitURLFetchPerIP, clientip.GetIP)(
			rate(admission.LimitURLFetchPerUser, userKey)(accepted)))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Healthcheck(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	mux.HandleFunc("GET /admission/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(store.Stats())
	})

	return mux
}
