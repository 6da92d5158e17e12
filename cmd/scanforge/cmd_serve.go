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

	"github.com/spf13/cobra"

	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/sink"
)

var serveFlags struct {
	addr string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the read-only control plane: scan history, diff, and live progress over HTTP",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address, overrides config's control_plane.http_addr")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	store, err := openHistoryStore(ctx)
	if err != nil {
		slog.Warn("scanforge serve: starting without a history store", "error", err)
	}
	if store != nil {
		defer store.Close()
	}

	hub := sink.NewProgressHub()
	srv := sink.NewServer(store, hub, slog.Default())
	srv.Metrics = metricsHandler

	addr := serveFlags.addr
	if addr == "" {
		addr = config.Global.Sink.ControlPlane.HTTPAddr
	}
	if addr == "" {
		addr = ":8090"
	}

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("scanforge serve: listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("scanforge serve: %w", err)
	}
}
