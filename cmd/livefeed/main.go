package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/moarbaz01/aiexch-livefeed/internal/config"
	"github.com/moarbaz01/aiexch-livefeed/internal/hub"
)

func main() {
	configPath := flag.String("config", "livefeed.yaml", "path to config file")
	route := flag.String("route", "/live", "initial navigation route")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Basic logger for startup errors
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := setupLogger(cfg.LogLevel)
	endpoint, err := cfg.FeedEndpoint()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid feed endpoint")
	}
	logger.Info().
		Str("config", *configPath).
		Str("endpoint", endpoint).
		Str("route", *route).
		Msg("starting live feed")

	h, err := hub.New(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create hub")
	}
	h.SetRoute(*route)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	h.Close()
}

// setupLogger configures the zerolog logger
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	return zerolog.New(output).With().Timestamp().Logger()
}
