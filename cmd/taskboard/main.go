package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	gfshutdown "github.com/gelmium/graceful-shutdown"

	"github.com/ent0n29/taskboard/internal/app"
	"github.com/ent0n29/taskboard/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	built, err := app.Build(context.Background(), cfg)
	if err != nil {
		log.Fatalf("app init failed: %v", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: built.API.Router(),
	}

	go func() {
		log.Printf("%s %s listening on %s (environment=%s)", cfg.AppName, cfg.Version, cfg.BindAddr, cfg.Environment)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen error: %v", err)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"http-server": func(ctx context.Context) error {
				log.Printf("shutdown signal received")
				if err := httpServer.Shutdown(ctx); err != nil {
					log.Printf("graceful shutdown failed: %v", err)
					_ = httpServer.Close()
					return err
				}
				return built.Cleanup()
			},
		},
	)

	exitCode := <-wait
	log.Printf("shutdown complete (exit code %d)", exitCode)
	os.Exit(exitCode)
}
