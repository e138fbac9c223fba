// Copyright 2025 Poiesic Systems
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
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/expensit"
	"github.com/poiesic/expensit/auth"
	"github.com/poiesic/expensit/blob"
	"github.com/poiesic/expensit/blob/gcs"
	"github.com/poiesic/expensit/core"
	"github.com/poiesic/expensit/extract"
	"github.com/poiesic/expensit/ingest"
	"github.com/poiesic/expensit/reprocess"
	"github.com/poiesic/expensit/server"
	"github.com/poiesic/expensit/storage/badger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "expensit",
		Usage: "Receipt ingestion and expense tracking service",
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
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serveCommand,
				Flags: append(extractionFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "listen",
						Usage: "Address to serve the API on",
						Value: ":8080",
					},
					&cli.StringFlag{
						Name:     "jwt-secret",
						Usage:    "Secret for signing session tokens",
						EnvVars:  []string{"EXPENSIT_JWT_SECRET"},
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "token-ttl",
						Usage: "Session token lifetime",
						Value: 24 * time.Hour,
					},
					&cli.StringFlag{
						Name:    "gcs-bucket",
						Usage:   "GCS bucket for archiving receipt images (archival disabled when empty)",
						EnvVars: []string{"EXPENSIT_GCS_BUCKET"},
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent extraction calls (0 = half the CPUs)",
					},
				),
			},
			{
				Name:   "init-admin",
				Usage:  "Create an administrative account",
				Action: initAdminCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "email",
						Usage:    "Admin account email",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "password",
						Usage:    "Admin account password",
						EnvVars:  []string{"EXPENSIT_ADMIN_PASSWORD"},
						Required: true,
					},
					&cli.StringFlag{
						Name:  "plan",
						Usage: "Subscription plan for the account",
						Value: "unlimited",
					},
				},
			},
			{
				Name:   "ingest",
				Usage:  "Ingest a single receipt image from disk",
				Action: ingestCommand,
				Flags: append(extractionFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:     "tenant",
						Usage:    "Tenant ID to ingest on behalf of",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "file",
						Aliases:  []string{"f"},
						Usage:    "Path to the receipt image or PDF",
						Required: true,
					},
					&cli.BoolFlag{
						Name:  "allow-manual-review",
						Usage: "Store a placeholder record when extraction keeps failing",
					},
					&cli.StringFlag{
						Name:    "gcs-bucket",
						Usage:   "GCS bucket for archiving receipt images",
						EnvVars: []string{"EXPENSIT_GCS_BUCKET"},
					},
				),
			},
			{
				Name:   "reprocess",
				Usage:  "Re-run extraction over records awaiting manual review",
				Action: reprocessCommand,
				Flags: append(extractionFlags(),
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.Uint64Flag{
						Name:  "tenant",
						Usage: "Tenant ID to reprocess (all tenants when omitted)",
					},
					&cli.StringFlag{
						Name:     "gcs-bucket",
						Usage:    "GCS bucket holding the archived receipt images",
						EnvVars:  []string{"EXPENSIT_GCS_BUCKET"},
						Required: true,
					},
				),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// extractionFlags are shared by every command that talks to the
// extraction service.
func extractionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "api-key",
			Usage:    "Extraction service API key",
			EnvVars:  []string{"GEMINI_API_KEY"},
			Required: true,
		},
		&cli.StringFlag{
			Name:  "model",
			Usage: "Multimodal model used for field extraction",
			Value: "gemini-2.5-flash",
		},
		&cli.StringFlag{
			Name:  "extraction-host",
			Usage: "Base URL of the OpenAI-compatible extraction endpoint",
		},
		&cli.IntFlag{
			Name:  "max-attempts",
			Usage: "Retry budget per extraction",
			Value: 3,
		},
		&cli.DurationFlag{
			Name:  "attempt-timeout",
			Usage: "Timeout for each extraction call",
			Value: extract.DefaultAttemptTimeout,
		},
	}
}

func extractionConfig(c *cli.Context) *extract.Config {
	opts := []extract.ConfigOption{
		extract.WithAPIKey(c.String("api-key")),
		extract.WithModel(c.String("model")),
		extract.WithMaxAttempts(c.Int("max-attempts")),
		extract.WithTimeout(c.Duration("attempt-timeout")),
	}
	if host := c.String("extraction-host"); host != "" {
		opts = append(opts, extract.WithHost(host))
	}
	return extract.NewConfig(opts...)
}

// openBlobStore builds the image archive when a bucket is configured.
func openBlobStore(ctx context.Context, c *cli.Context) (blob.Store, error) {
	bucket := c.String("gcs-bucket")
	if bucket == "" {
		return nil, nil
	}
	store, err := gcs.NewStore(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to open image archive: %w", err)
	}
	return store, nil
}

func openService(ctx context.Context, c *cli.Context) (*expensit.Service, error) {
	blobs, err := openBlobStore(ctx, c)
	if err != nil {
		return nil, err
	}

	opts := []expensit.ServiceOption{
		expensit.WithExtractionConfig(extractionConfig(c)),
	}
	if blobs != nil {
		opts = append(opts, expensit.WithBlobStore(blobs))
	}

	svc, err := expensit.Open(c.String("db"), opts...)
	if err != nil {
		if blobs != nil {
			blobs.Close()
		}
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return svc, nil
}

func serveCommand(c *cli.Context) error {
	ctx := context.Background()

	svc, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	var pipelineOpts []ingest.Option
	if size := c.Int("pool-size"); size > 0 {
		pipelineOpts = append(pipelineOpts, ingest.WithPoolSize(size))
	}
	pipelineOpts = append(pipelineOpts, ingest.WithMonitor(ingest.NewLogMonitor(slog.Default())))

	pipeline, err := svc.NewIngestionPipeline(pipelineOpts...)
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	authenticator, err := auth.NewAuthenticator(c.String("jwt-secret"),
		auth.WithTokenTTL(c.Duration("token-ttl")))
	if err != nil {
		return err
	}

	srv, err := server.New(svc.TenantRepository(), svc.RecordRepository(), pipeline, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	return srv.Run(c.String("listen"))
}

func initAdminCommand(c *cli.Context) error {
	ctx := context.Background()

	plan, err := core.PlanByName(c.String("plan"))
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(c.String("password"))
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	tenants, records, backend, err := badger.NewRepositories(c.String("db"))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()
	defer records.Close()
	defer tenants.Close()

	tenant, err := tenants.AddTenant(ctx, &core.Tenant{
		Email:        c.String("email"),
		PasswordHash: hash,
		Role:         core.RoleAdmin,
		Subscription: core.NewSubscription(plan),
	})
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Created admin %s (id %d) on plan %s\n", tenant.Email, tenant.Id, plan.Name)
	return nil
}

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return fmt.Errorf("failed to read receipt file: %w", err)
	}

	svc, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	pipeline, err := svc.NewIngestionPipeline()
	if err != nil {
		return fmt.Errorf("failed to create ingestion pipeline: %w", err)
	}
	defer pipeline.Release()

	result, err := pipeline.Ingest(ctx, &ingest.Request{
		TenantID:          core.ID(c.Uint64("tenant")),
		Source:            core.SourceBot,
		ContentType:       contentTypeFor(c.String("file")),
		Bytes:             data,
		AllowManualReview: c.Bool("allow-manual-review"),
	})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	record := result.Record
	fmt.Fprintf(os.Stderr, "Stored record %d (%s)\n", record.Id, record.Status)
	fmt.Fprintf(os.Stderr, "  date:     %s\n", record.Date)
	fmt.Fprintf(os.Stderr, "  vendor:   %s\n", record.VendorName)
	fmt.Fprintf(os.Stderr, "  amount:   %s\n", record.Amount)
	fmt.Fprintf(os.Stderr, "  category: %s\n", record.Category)
	if result.RemainingQuota == core.UnlimitedRemaining {
		fmt.Fprintln(os.Stderr, "  quota:    unlimited")
	} else {
		fmt.Fprintf(os.Stderr, "  quota:    %d remaining\n", result.RemainingQuota)
	}
	return nil
}

func reprocessCommand(c *cli.Context) error {
	ctx := context.Background()

	svc, err := openService(ctx, c)
	if err != nil {
		return err
	}
	defer svc.Close()

	reprocessor, err := svc.NewReprocessor(reprocess.WithProgress(os.Stderr))
	if err != nil {
		return fmt.Errorf("failed to create reprocessor: %w", err)
	}

	var stats *reprocess.Stats
	if tenantID := c.Uint64("tenant"); tenantID != 0 {
		stats, err = reprocessor.Run(ctx, core.ID(tenantID))
	} else {
		stats, err = reprocessor.RunAll(ctx)
	}
	if err != nil {
		return fmt.Errorf("reprocessing failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "\nScanned %d, updated %d, skipped %d\n", stats.Scanned, stats.Updated, stats.Skipped)
	return nil
}

// contentTypeFor maps a file extension onto the upload content types the
// normalizer accepts.
func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(strings.ToLower(path), ".png"):
		return "image/png"
	default:
		return "image/jpeg"
	}
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
