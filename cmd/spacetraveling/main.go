package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/eringen/spacetraveling"
	"github.com/eringen/spacetraveling/views"
)

// version is set at build time via ldflags.
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve", "generate":
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
			os.Exit(1)
		}
		setupLogging()
		cfg, err := loadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("invalid configuration")
		}
		run := serve
		if os.Args[1] == "generate" {
			run = generate
		}
		if err := run(cfg); err != nil {
			log.Fatal().Err(err).Msg(os.Args[1] + " failed")
		}
	case "version":
		fmt.Printf("spacetraveling %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(spacetraveling.EnvOr("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if spacetraveling.EnvOr("LOG_FORMAT", "json") == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
}

func newApp(cfg spacetraveling.SiteConfig) (*spacetraveling.App, error) {
	a := spacetraveling.New(cfg, views.New(cfg))
	if err := a.Setup(); err != nil {
		return nil, err
	}
	return a, nil
}

func serve(cfg spacetraveling.SiteConfig) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		errc <- a.Start(ctx)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return <-errc
}

func generate(cfg spacetraveling.SiteConfig) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.Generate(ctx)
}

func printUsage() {
	fmt.Println(`spacetraveling - A blog frontend for a headless CMS, built with Go, Echo, and templ

Usage:
  spacetraveling <command>

Commands:
  serve       Prerender pages and start the HTTP server
  generate    Prerender pages into the page store and exit
  version     Print the spacetraveling version
  help        Show this help message

Configuration is read from the environment and an optional .env file:
  CMS_ENDPOINT (required), CMS_ACCESS_TOKEN, CMS_DOCUMENT_TYPE, CMS_ORDERINGS, CMS_LANG,
  SITE_NAME, SITE_URL, SITE_DESCRIPTION, SITE_AUTHOR, SITE_LOCALE,
  ADDR, DATABASE_PATH, PAGE_SIZE, REVALIDATE, SKIP_GENERATE,
  BANNER_MAX_WIDTH, RATE_LIMIT, RATE_WINDOW, HTMX_SRC, LOG_LEVEL, LOG_FORMAT`)
}
