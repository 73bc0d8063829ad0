// Command shopctl edits the catalog without the admin console.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/sdk/zctx"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/vpecom/shop-admin/internal/app"
	"github.com/vpecom/shop-admin/internal/cli"
	"github.com/vpecom/shop-admin/internal/domain/catalog"
)

func main() {
	lg, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	ctx = zctx.Base(ctx, lg)

	clock := catalog.NewIDClock(time.Now)
	open := func(context.Context) (*catalog.Service, error) {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, err
		}
		backend, err := app.NewBackend(cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
		if err != nil {
			return nil, err
		}
		return app.OpenCatalog(cfg, backend, clock)
	}

	root := cli.NewRootCmd(cli.Env{Log: lg, Open: open})
	if err := root.ExecuteContext(ctx); err != nil {
		lg.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}
