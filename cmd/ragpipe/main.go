// Copyright 2025 Dynamous Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/dynamous/ragpipe/ai"
	"github.com/dynamous/ragpipe/ai/openai"
	"github.com/dynamous/ragpipe/ingestion"
	"github.com/dynamous/ragpipe/insights"
	"github.com/dynamous/ragpipe/storage/badger"
	"github.com/dynamous/ragpipe/syncer"
	"github.com/dynamous/ragpipe/watcher"
)

// documentSource is what the sync command needs from a source: change
// detection plus content retrieval. Both source variants satisfy it.
type documentSource interface {
	watcher.Source
	watcher.ContentFetcher
}

func main() {
	app := &cli.App{
		Name:  "ragpipe",
		Usage: "Document sync and insights pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Watch a document source and ingest changes",
				Action: syncCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "source",
						Usage: "Document source kind (local, drive)",
						Value: "local",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Run mode (continuous, single)",
						Value: "continuous",
					},
					&cli.DurationFlag{
						Name:  "interval",
						Usage: "Delay between sync cycles in continuous mode",
						Value: 5 * time.Minute,
					},
					&cli.StringFlag{
						Name:  "watch-root",
						Usage: "Directory to watch (local source)",
					},
					&cli.StringFlag{
						Name:  "checkpoint-file",
						Usage: "Fallback checkpoint file (defaults to <db>/checkpoint.bin)",
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in characters",
						Value: 1500,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Chunk overlap in characters",
						Value: 200,
					},
					&cli.StringFlag{
						Name:  "drive-api",
						Usage: "Drive API base URL (drive source)",
						Value: "https://www.googleapis.com/drive/v3",
					},
					&cli.StringFlag{
						Name:  "drive-root",
						Usage: "Drive folder ID to watch (drive source)",
					},
					&cli.StringFlag{
						Name:  "drive-credentials",
						Usage: "Path to service credentials JSON (drive source)",
					},
					&cli.StringFlag{
						Name:  "drive-token-file",
						Usage: "Path to stored OAuth2 token JSON (drive source)",
					},
				},
			},
			{
				Name:   "worker",
				Usage:  "Run the insights worker over the task queue",
				Action: workerCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "Delay between queue polls",
						Value: 5 * time.Second,
					},
					&cli.IntFlag{
						Name:  "max-concurrent",
						Usage: "Number of tasks processed in parallel",
						Value: 4,
					},
					&cli.IntFlag{
						Name:  "max-attempts",
						Usage: "Attempts before a task fails permanently",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "backoff-base",
						Usage: "Base retry delay, doubled per failed attempt",
						Value: 30 * time.Second,
					},
					&cli.StringFlag{
						Name:  "api-addr",
						Usage: "Listen address for the ops API (empty disables it)",
					},
					&cli.BoolFlag{
						Name:  "retroactive",
						Usage: "Enqueue already-ingested documents before polling",
					},
					&cli.StringFlag{
						Name:  "generator-host",
						Usage: "Insight generator service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "generator-model",
						Usage: "Insight generator model name",
						Value: "qwen2.5:3b",
					},
					&cli.Float64Flag{
						Name:  "min-confidence",
						Usage: "Minimum confidence for stored insights",
						Value: 0.5,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func syncCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mode := c.String("mode")
	if mode != "continuous" && mode != "single" {
		return cli.Exit(fmt.Sprintf("invalid mode %q: must be continuous or single", mode), 2)
	}

	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid AI configuration: %v", err), 2)
	}
	defer provider.Close()

	source, err := buildSource(ctx, c)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	dbPath := c.String("db")
	stores, err := badger.OpenStores(dbPath, false)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open database: %v", err), 2)
	}
	defer stores.Close()

	checkpointFile := c.String("checkpoint-file")
	if checkpointFile == "" {
		checkpointFile = filepath.Join(dbPath, "checkpoint.bin")
	}
	state, err := syncer.NewStateStore(stores.Checkpoints, checkpointFile)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create state store: %v", err), 2)
	}

	processor, err := ingestion.NewProcessor(source, stores.Chunks, stores.Queue, provider.Embedder(),
		ingestion.WithChunking(c.Int("chunk-size"), c.Int("chunk-overlap")))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create processor: %v", err), 2)
	}

	orchestrator, err := syncer.NewOrchestrator(source, processor, state)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create orchestrator: %v", err), 2)
	}

	if mode == "single" {
		stats, err := orchestrator.RunOnce(ctx)
		if err != nil {
			return cli.Exit(fmt.Sprintf("sync cycle failed: %v", err), 1)
		}
		slog.Info("sync complete",
			"processed", stats.Processed,
			"deleted", stats.Deleted,
			"errors", stats.Errors,
			"duration", stats.Duration)
		return nil
	}

	err = orchestrator.RunForever(ctx, c.Duration("interval"))
	if err != nil && !errors.Is(err, context.Canceled) {
		return cli.Exit(fmt.Sprintf("sync failed: %v", err), 1)
	}
	return nil
}

// buildSource constructs the document source selected by the flags.
func buildSource(ctx context.Context, c *cli.Context) (documentSource, error) {
	switch c.String("source") {
	case "local":
		root := c.String("watch-root")
		if root == "" {
			return nil, fmt.Errorf("watch-root is required for the local source")
		}
		return watcher.NewLocalSource(root)

	case "drive":
		rootID := c.String("drive-root")
		if rootID == "" {
			return nil, fmt.Errorf("drive-root is required for the drive source")
		}

		credentials := ""
		if path := c.String("drive-credentials"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read drive credentials: %w", err)
			}
			credentials = string(data)
		}

		hc, err := watcher.NewAuthenticatedClient(ctx, credentials, c.String("drive-token-file"))
		if err != nil {
			return nil, err
		}
		client := watcher.NewHTTPDriveClient(c.String("drive-api"), hc)
		return watcher.NewDriveSource(client, rootID)

	default:
		return nil, fmt.Errorf("invalid source %q: must be local or drive", c.String("source"))
	}
}

func workerCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiConfig := ai.NewConfig(
		ai.WithGeneratorHost(c.String("generator-host")),
		ai.WithGeneratorModel(c.String("generator-model")),
		ai.WithMinConfidence(c.Float64("min-confidence")),
	)
	provider, err := openai.NewProvider(aiConfig)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid AI configuration: %v", err), 2)
	}
	defer provider.Close()

	stores, err := badger.OpenStores(c.String("db"), false)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to open database: %v", err), 2)
	}
	defer stores.Close()

	queue, err := insights.NewQueue(stores.Queue, stores.Chunks,
		insights.WithMaxAttempts(c.Int("max-attempts")),
		insights.WithBackoffBase(c.Duration("backoff-base")))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create queue service: %v", err), 2)
	}

	worker, err := insights.NewWorker(queue, stores.Chunks, stores.Insights, provider.InsightGenerator(),
		c.Int("max-concurrent"),
		insights.WithPollInterval(c.Duration("poll-interval")))
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to create worker: %v", err), 2)
	}
	defer worker.Close()

	if c.Bool("retroactive") {
		enqueued, err := queue.EnqueueUnprocessed(ctx)
		if err != nil {
			return cli.Exit(fmt.Sprintf("retroactive enqueue failed: %v", err), 1)
		}
		slog.Info("retroactive enqueue complete", "enqueued", enqueued)
	}

	if addr := c.String("api-addr"); addr != "" {
		api, err := insights.NewAPI(queue, stores.Insights)
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to create ops API: %v", err), 2)
		}
		shutdown, err := serveAPI(ctx, addr, api.Router())
		if err != nil {
			return cli.Exit(fmt.Sprintf("failed to start ops API: %v", err), 2)
		}
		defer shutdown()
	}

	if err := worker.Run(ctx); err != nil {
		return cli.Exit(fmt.Sprintf("worker failed: %v", err), 1)
	}
	return nil
}

// serveAPI starts the ops API server and returns its shutdown hook.
func serveAPI(ctx context.Context, addr string, handler http.Handler) (func(), error) {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("ops API listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Give an unbindable address a moment to fail fast.
	select {
	case err := <-errCh:
		return nil, err
	case <-time.After(100 * time.Millisecond):
	}

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("ops API shutdown failed", "err", err)
		}
	}
	return shutdown, nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
