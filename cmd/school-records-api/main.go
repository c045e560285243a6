// main is the entry point of the school records API.
//
// STARTUP SEQUENCE:
//  1. Load configuration from a YAML file (plus .env and env overrides)
//  2. Initialise the logger
//  3. Open the document store selected by database.driver
//  4. Build the attachment service selected by attachments.provider
//  5. Register all HTTP routes
//  6. Serve until an OS signal arrives, then shut down gracefully
//
// RUNNING THE SERVER:
//
//	go run ./cmd/school-records-api --config=config/local.yaml
//
// or:
//
//	CONFIG_PATH=config/local.yaml go run ./cmd/school-records-api
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/upiiz/school-records-api/internal/attachment"
	"github.com/upiiz/school-records-api/internal/attachment/backblaze"
	"github.com/upiiz/school-records-api/internal/attachment/s3"
	"github.com/upiiz/school-records-api/internal/config"
	"github.com/upiiz/school-records-api/internal/http/router"
	"github.com/upiiz/school-records-api/internal/storage"
	"github.com/upiiz/school-records-api/internal/storage/bolt"
	"github.com/upiiz/school-records-api/internal/storage/mongodb"
	"github.com/upiiz/school-records-api/internal/storage/sqlite"
)

func main() {
	// ── 1. Load Config ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	// ── 2. Initialise Logger ──────────────────────────────────────────────
	// Handlers log through the package-level slog functions, so the
	// configured logger becomes the default.
	log := setupLogger(cfg.Env)
	slog.SetDefault(log)

	log.Info("starting school-records-api",
		slog.String("env", cfg.Env),
		slog.String("version", "1.0.0"),
	)

	// ── 3. Initialise Storage ─────────────────────────────────────────────
	repos, err := openStorage(context.Background(), cfg.Database)
	if err != nil {
		log.Error("failed to initialise storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("storage initialised",
		slog.String("driver", cfg.Database.Driver))

	// ── 4. Initialise Attachments ─────────────────────────────────────────
	photos, err := openAttachments(context.Background(), cfg.Attachments)
	if err != nil {
		log.Error("failed to initialise attachments",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("attachments initialised",
		slog.String("provider", cfg.Attachments.Provider),
		slog.String("bucket", cfg.Attachments.Bucket))

	// ── 5. Create the HTTP Server ─────────────────────────────────────────
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router.New(repos, photos),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info("server started", slog.String("address", cfg.Addr))

		if err := server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.Error("server encountered an error",
				slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// ── 6. Wait for Shutdown Signal ───────────────────────────────────────
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)
	<-done

	log.Info("shutdown signal received, stopping server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("failed to shutdown server gracefully",
			slog.String("error", err.Error()))
	}

	if err := repos.Close(ctx); err != nil {
		log.Error("failed to close storage",
			slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("server stopped gracefully")
}

// openStorage connects the document store named by db.Driver.
func openStorage(ctx context.Context, db config.Database) (*storage.Repos, error) {
	switch db.Driver {
	case "mongo":
		store, err := mongodb.Connect(ctx, db.URI, db.Name)
		if err != nil {
			return nil, err
		}
		return store.Repos(), nil
	case "sqlite":
		store, err := sqlite.New(db.Path)
		if err != nil {
			return nil, err
		}
		return store.Repos(), nil
	case "bolt":
		store, err := bolt.Open(db.Path)
		if err != nil {
			return nil, err
		}
		return store.Repos(), nil
	}
	return nil, fmt.Errorf("unknown database driver %q", db.Driver)
}

// openAttachments builds the photo service for a.Provider. Missing
// credentials are not fatal here: uploads fail with 403 until they exist.
func openAttachments(ctx context.Context, a config.Attachments) (*attachment.Service, error) {
	var backend attachment.Backend

	switch a.Provider {
	case "s3":
		b, err := s3.New(ctx, a.Region, a.Bucket, a.Endpoint)
		if err != nil {
			return nil, err
		}
		backend = b
	case "b2":
		backend = backblaze.New(a.KeyID, a.AppKey, a.Bucket)
	case "memory":
		backend = attachment.NewMemory()
	default:
		return nil, fmt.Errorf("unknown attachments provider %q", a.Provider)
	}

	return attachment.New(backend, a.Bucket, a.Domain, a.Folder), nil
}

// setupLogger returns a *slog.Logger configured for the given environment.
//
// Development (dev): human-readable text output at DEBUG level.
// Production (prod): machine-readable JSON output at INFO level.
func setupLogger(env string) *slog.Logger {
	switch env {
	case "prod":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelInfo,
			}),
		)
	case "staging":
		return slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	default:
		return slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}),
		)
	}
}
