package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/openfeeder/internal/app"
	"github.com/ternarybob/openfeeder/internal/common"
	"github.com/ternarybob/openfeeder/internal/server"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to TOML configuration file")
		port        = flag.Int("port", 0, "HTTP port (overrides config)")
		portShort   = flag.Int("p", 0, "HTTP port (shorthand)")
		host        = flag.String("host", "", "HTTP host (overrides config)")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showVerShrt = flag.Bool("v", false, "Print version and exit (shorthand)")
	)
	flag.Parse()

	version := common.LoadVersionFromFile()

	if *showVersion || *showVerShrt {
		fmt.Printf("openfeeder %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	config, err := common.LoadFromFile(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	flagPort := *port
	if flagPort == 0 {
		flagPort = *portShort
	}
	common.ApplyFlagOverrides(config, flagPort, *host)

	logger := common.InitLogger(config)

	if err := config.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("Configuration invalid, SITE_URL must be set")
	}

	common.PrintBanner(version)
	logger.Info().
		Str("site", config.Site.URL).
		Str("environment", config.Environment).
		Msg("Starting openfeeder sidecar")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialise application")
	}
	defer application.Close()

	if err := application.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start crawl scheduler")
	}

	srv := server.New(application)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		if err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-quit:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("Graceful shutdown failed")
	}
}
