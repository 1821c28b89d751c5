// Package main implements a price tracking service that scrapes e-commerce
// product pages on a schedule, keeps a per-day price history in SQLite, and
// fans notifications out to Discord webhooks when prices move.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pricewatch/config"
	"pricewatch/notify"
	"pricewatch/scraper"
	"pricewatch/server"
	"pricewatch/storage"
	"pricewatch/sweep"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var (
		configPath = flag.String("config", "config.yaml", "path to YAML config file")
		once       = flag.Bool("once", false, "run a single sweep and exit")

		addProduct  = flag.String("add-product", "", "register a product by name and exit")
		imageURL    = flag.String("image", "", "product image URL (with -add-product)")
		addSource   = flag.String("add-source", "", "product name to attach a source to (with -url)")
		sourceURL   = flag.String("url", "", "source page URL (with -add-source)")
		addUser     = flag.String("add-user", "", "register a user by name and exit")
		subscribe   = flag.String("subscribe", "", "subscribe a user to a product: user:product")
		addWebhook  = flag.String("add-webhook", "", "add a webhook for a user: user:endpoint_url")
		notifyPrefs = flag.String("notify-settings", "", "set notification settings: user:enabled:no_change_enabled")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.DatabasePath, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", "error", err)
		}
	}()

	sampler := scraper.New(
		&http.Client{Timeout: 30 * time.Second},
		logger,
		cfg.MinRequestGap(),
		scraper.CDKeys{},
		scraper.GreenManGaming{},
	)

	if done, err := runAdminMode(ctx, store, sampler, adminFlags{
		addProduct:  *addProduct,
		imageURL:    *imageURL,
		addSource:   *addSource,
		sourceURL:   *sourceURL,
		addUser:     *addUser,
		subscribe:   *subscribe,
		addWebhook:  *addWebhook,
		notifyPrefs: *notifyPrefs,
	}); done {
		return err
	}

	var provider notify.Provider
	if os.Getenv("PRICEWATCH_MOCK_WEBHOOKS") != "" {
		logger.Info("Mock webhook mode enabled")
		provider = notify.NewMockProvider(logger)
	} else {
		provider = notify.NewDiscordProvider(logger)
	}
	dispatcher := notify.NewDispatcher(provider, logger, uint(cfg.DispatchAttempts))

	sweeper := sweep.New(store, sampler, dispatcher, logger, sweep.Config{
		Interval:          cfg.ScrapeInterval(),
		MaxRandomInterval: cfg.MaxRandomInterval(),
		JitterMin:         cfg.JitterMin(),
		JitterMax:         cfg.JitterMax(),
	})

	if *once {
		logger.Info("Running single sweep")
		return sweeper.SweepAll(ctx)
	}

	srv := server.New(sweeper, logger)
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(cfg.ListenAddr)
	}()

	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Sweep loop exited", "error", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down")
		return nil
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

type adminFlags struct {
	addProduct  string
	imageURL    string
	addSource   string
	sourceURL   string
	addUser     string
	subscribe   string
	addWebhook  string
	notifyPrefs string
}

// runAdminMode executes at most one catalog management action. Returns true
// when an admin flag was given and the process should exit.
func runAdminMode(ctx context.Context, store *storage.Store, sampler *scraper.Client, f adminFlags) (bool, error) {
	switch {
	case f.addProduct != "":
		id, err := store.AddProduct(ctx, f.addProduct, f.imageURL)
		if err != nil {
			return true, err
		}
		fmt.Printf("product %d: %s\n", id, f.addProduct)
		return true, nil

	case f.addSource != "":
		if f.sourceURL == "" {
			return true, errors.New("-add-source requires -url")
		}
		if !sampler.Supports(f.sourceURL) {
			return true, fmt.Errorf("no scraper adapter handles %s", f.sourceURL)
		}
		productID, err := store.ProductIDByName(ctx, f.addSource)
		if err != nil {
			return true, err
		}
		if _, err := store.AddSource(ctx, productID, f.sourceURL); err != nil {
			return true, err
		}
		fmt.Printf("source added for %s\n", f.addSource)
		return true, nil

	case f.addUser != "":
		id, err := store.AddUser(ctx, f.addUser)
		if err != nil {
			return true, err
		}
		fmt.Printf("user %d: %s\n", id, f.addUser)
		return true, nil

	case f.subscribe != "":
		user, product, ok := strings.Cut(f.subscribe, ":")
		if !ok {
			return true, errors.New("-subscribe expects user:product")
		}
		userID, err := store.UserIDByName(ctx, user)
		if err != nil {
			return true, err
		}
		productID, err := store.ProductIDByName(ctx, product)
		if err != nil {
			return true, err
		}
		if err := store.Subscribe(ctx, userID, productID); err != nil {
			return true, err
		}
		fmt.Printf("%s subscribed to %s\n", user, product)
		return true, nil

	case f.addWebhook != "":
		user, endpoint, ok := strings.Cut(f.addWebhook, ":")
		if !ok {
			return true, errors.New("-add-webhook expects user:endpoint_url")
		}
		userID, err := store.UserIDByName(ctx, user)
		if err != nil {
			return true, err
		}
		if err := store.AddWebhook(ctx, userID, endpoint); err != nil {
			return true, err
		}
		fmt.Printf("webhook added for %s\n", user)
		return true, nil

	case f.notifyPrefs != "":
		parts := strings.Split(f.notifyPrefs, ":")
		if len(parts) != 3 {
			return true, errors.New("-notify-settings expects user:enabled:no_change_enabled")
		}
		userID, err := store.UserIDByName(ctx, parts[0])
		if err != nil {
			return true, err
		}
		enabled := parts[1] == "true"
		noChange := parts[2] == "true"
		if err := store.SetNotificationSettings(ctx, userID, enabled, noChange); err != nil {
			return true, err
		}
		fmt.Printf("notification settings updated for %s\n", parts[0])
		return true, nil
	}
	return false, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
