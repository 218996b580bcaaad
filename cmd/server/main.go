package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"

	"tsapi/internal/core"
	"tsapi/internal/dropzone"
	"tsapi/internal/httpapi"
	"tsapi/internal/lifecycle"

	_ "tsapi/internal/docs"

	"tsapi/internal/config"
	"tsapi/pkg/logger"
)

// Version information (set by GoReleaser).
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// @title tsapi
// @version 1.0
// @description Priority-queued transcription job server
// @termsOfService http://swagger.io/terms/

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @securityDefinitions.basic BasicAuth

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token with Bearer prefix

func main() {
	var showVersion = flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("tsapi %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	logger.Info("starting tsapi", "version", version, "commit", commit)

	c, err := core.New(cfg)
	if err != nil {
		logger.Error("failed to initialize core", "error", err)
		os.Exit(1)
	}
	defer c.Store.Close()

	dz := dropzone.New(c, cfg.DropzoneDir)
	if err := dz.Start(); err != nil {
		logger.Warn("dropzone service failed to start", "error", err)
	}

	router := httpapi.SetupRoutes(c)
	srv := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", "error", err)
			os.Exit(1)
		}
	}()

	lifecycle.Run(context.Background(), c,
		func(ctx context.Context) error { return srv.Shutdown(ctx) },
		func(ctx context.Context) error { return dz.Stop() },
	)
}
