// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

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

	"github.com/AleutianAI/AleutianCred/services/cred"
	credbadger "github.com/AleutianAI/AleutianCred/services/cred/storage/badger"
	"github.com/AleutianAI/AleutianCred/services/cred/telemetry"
	"github.com/spf13/cobra"
)

// shutdownTimeout bounds how long in-flight requests may take to drain.
const shutdownTimeout = 15 * time.Second

type serveOptions struct {
	port     int
	dbPath   string
	inMemory bool
	watchDir string
}

func newServeCmd(a *app) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cred HTTP service",
		Long: `Serves the cred API on /v1/cred backed by a Badger store. With --watch,
every <name>.json file in the directory is kept in sync as graph <name>.

Example requests:

  curl http://localhost:8090/v1/cred/health
  curl -X PUT --data-binary @github.json http://localhost:8090/v1/cred/graphs/github
  curl -X POST -d '{"graphs": ["github"]}' http://localhost:8090/v1/cred/compute
  curl 'http://localhost:8090/v1/cred/results/<id>/top?k=10&prefix=user'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, a, opts)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&opts.port, "port", 0, "listen port (default from config)")
	flags.StringVar(&opts.dbPath, "db", "", "Badger database directory (default from config)")
	flags.BoolVar(&opts.inMemory, "in-memory", false, "keep the store in memory")
	flags.StringVar(&opts.watchDir, "watch", "", "directory of graph files to keep in sync")
	return cmd
}

// applyServeFlags layers the serve flags over the loaded configuration.
func applyServeFlags(a *app, opts *serveOptions) error {
	if opts.port != 0 {
		a.cfg.Server.Port = opts.port
	}
	if opts.dbPath != "" {
		a.cfg.Storage.Path = opts.dbPath
	}
	if opts.inMemory {
		a.cfg.Storage.InMemory = true
	}
	if opts.watchDir != "" {
		a.cfg.Server.WatchDir = opts.watchDir
	}
	return a.cfg.Validate()
}

func runServe(cmd *cobra.Command, a *app, opts *serveOptions) error {
	if err := applyServeFlags(a, opts); err != nil {
		return err
	}
	cfg := a.cfg

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			slog.Warn("Telemetry shutdown failed", "error", err)
		}
	}()

	dbCfg := credbadger.DefaultConfig(cfg.Storage.Path)
	dbCfg.InMemory = cfg.Storage.InMemory
	dbCfg.GCInterval = cfg.Storage.GCInterval
	dbCfg.Logger = a.logger.Slog().With("component", "badger")
	db, err := credbadger.Open(dbCfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runCfg, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	svc := cred.NewService(credbadger.NewStore(db), cred.ServiceConfig{
		Defaults:        runCfg,
		ResultCacheSize: cfg.Server.ResultCacheSize,
	})

	if cfg.Server.WatchDir != "" {
		watcher, err := cred.NewWatcher(cfg.Server.WatchDir, svc, cred.WatcherOptions{
			Debounce: cfg.Server.WatchDebounce,
			OnSync: func(graphs []string) {
				slog.Info("Graphs reloaded from disk", "graphs", graphs)
			},
		})
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	router := cred.NewRouter(cred.NewHandlers(svc), cred.RouterOptions{
		ServiceName:      cfg.Telemetry.ServiceName,
		ComputeRateLimit: cfg.Server.ComputeRateLimit,
		ComputeBurst:     cfg.Server.ComputeBurst,
	})
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting cred server",
			slog.String("address", srv.Addr),
			slog.Bool("in_memory", cfg.Storage.InMemory),
			slog.String("watch_dir", cfg.Server.WatchDir),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down cred server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
