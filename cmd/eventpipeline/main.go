// Command eventpipeline runs the relay worker, the consistency checker, and
// the admin HTTP surface as one process, shutting all three down together
// on SIGINT/SIGTERM.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/rustokhq/eventpipeline/internal/bootstrap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.NewConfig()
	if err != nil {
		log.Fatalf("eventpipeline: load config: %v", err)
	}

	app, err := bootstrap.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("eventpipeline: build app: %v", err)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		app.Logger.Infof("relay worker starting")
		return app.Relay.Run(groupCtx)
	})

	group.Go(func() error {
		app.Logger.Infof("consistency checker starting")
		return app.Checker.Run(groupCtx)
	})

	group.Go(func() error {
		app.Logger.Infof("tenant cache invalidation listener starting")

		if err := app.TenantInvalidator.Listen(groupCtx, app.TenantCache); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		app.Logger.Infof("admin http server listening on %s", cfg.ServerAddress)

		if err := app.HTTPServer.Listen(cfg.ServerAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		return app.HTTPServer.ShutdownWithTimeout(shutdownTimeout)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Errorf("eventpipeline: runnable exited with error: %v", err)
	}

	if err := app.Close(context.Background()); err != nil {
		log.Printf("eventpipeline: close: %v", err)
	}
}
