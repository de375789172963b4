// Copyright (c) 2024 Behnam Momeni
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package command

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/momeni/migrun/pkg/adapter/metrics"
	"github.com/momeni/migrun/pkg/adapter/restful/gin"
	"github.com/momeni/migrun/pkg/adapter/restful/gin/routes"
	"github.com/momeni/migrun/pkg/core/log"
	"github.com/momeni/migrun/pkg/core/usecase/migrationuc"
)

// ShutdownTimeout bounds the graceful shutdown of the REST API server.
const ShutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve unit-path...",
	Short: "Start deployment units and serve their REST API",
	Long: `Start all given deployment units and serve the units REST API
and the prometheus metrics until SIGINT or SIGTERM is received.
A unit which fails to start is reported with its error by the REST
API and does not prevent the other units from starting. Running units
may be migrated again by a POST request to
/api/migrun/v1/units/<unit>/migrate.
All units are stopped before the command returns.`,
	Args: cobra.MinimumNArgs(1),
	RunE: serve,
}

func serve(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM,
	)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	h, err := newHost(cfg, migrationuc.WithObserver(metrics.New(reg)))
	if err != nil {
		return err
	}
	ctrls := make([]*migrationuc.Controller, 0, len(args))
	defer func() {
		for _, c := range ctrls {
			c.Stop(context.Background())
		}
	}()
	for _, path := range args {
		c, err := h.controller(ctx, path)
		if err != nil {
			return fmt.Errorf("unit %s: %w", path, err)
		}
		ctrls = append(ctrls, c)
		if err := c.Start(ctx); err != nil {
			log.Error(ctx, "unit did not start",
				log.Unit(c.Unit()), log.Err("err", err),
			)
		}
	}

	if cfg.LogLevel > slog.LevelDebug {
		gin.SetMode(gin.Release)
	}
	e := gin.New(gin.Logger(nil), gin.Recovery())
	routes.Register(e, h.registry, reg)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "serving REST API", slog.String("addr", cfg.Listen))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err = <-errCh:
		return fmt.Errorf("serving REST API: %w", err)
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil &&
		!errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutting down REST API: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
