// Package storage handles persistence of the price history and of the
// notification subscription tables.
package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/codeGROOVE-dev/retry"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"pricewatch/pkg/tracker"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	// ErrLocked marks transient writer contention. Writes are retried with
	// bounded attempts before this surfaces to the caller.
	ErrLocked = errors.New("storage: database locked")
	// ErrIntegrity marks a constraint violation, e.g. a referenced product or
	// source no longer exists. Fatal for that product's update this sweep.
	ErrIntegrity = errors.New("storage: integrity violation")
	// ErrNotFound marks a missing row on a single-row lookup.
	ErrNotFound = errors.New("storage: not found")
)

// Store is the SQLite-backed price store. The price table is the only thing
// the sweep core writes; products, sources, users, settings and webhooks are
// administered out-of-band (see admin.go).
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database, applies pragmas and the schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info("Database opened", "path", path)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// classify maps driver errors onto the store's error kinds so callers can
// distinguish transient contention from fatal integrity failures.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", ErrLocked, err)
		case sqlite3.SQLITE_CONSTRAINT:
			return fmt.Errorf("%w: %v", ErrIntegrity, err)
		}
	}
	return err
}

// UpsertPrice writes the price for one (product, day) key, overwriting any
// existing row unconditionally. Whether a write should happen at all is the
// sweeper's decision; the store only guarantees at most one row per day.
// Locked errors are retried here with bounded attempts so a contended write
// is never silently lost.
func (s *Store) UpsertPrice(ctx context.Context, productID int64, day time.Time, price float64, sourceLink string) error {
	date := tracker.FormatDate(tracker.Day(day))

	err := retry.Do(
		func() error {
			_, err := s.db.ExecContext(ctx,
				`INSERT INTO prices (product_id, date, price, source_id)
				 VALUES (?, ?, ?, (SELECT id FROM sources WHERE site_link = ? AND product_id = ?))
				 ON CONFLICT (product_id, date)
				 DO UPDATE SET price = excluded.price, source_id = excluded.source_id`,
				productID, date, price, sourceLink, productID,
			)
			return classify(err)
		},
		retry.Attempts(5),
		retry.Delay(100*time.Millisecond),
		retry.MaxDelay(2*time.Second),
		retry.MaxJitter(100*time.Millisecond),
		retry.Context(ctx),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, ErrLocked)
		}),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Info("Retrying price write after lock", "attempt", n, "product_id", productID, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("upsert price: %w", err)
	}

	s.logger.Info("Price stored", "product_id", productID, "date", date, "price", price, "source", sourceLink)
	return nil
}

// History returns the full price history for a product, ordered by date
// ascending. Dates are stored as fixed-format strings, so ordering happens
// here after parsing rather than in SQL.
func (s *Store) History(ctx context.Context, productID int64) ([]tracker.PriceRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.price, s.site_link, p.date
		 FROM prices p
		 LEFT JOIN sources s ON p.source_id = s.id
		 WHERE p.product_id = ?`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", classify(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var records []tracker.PriceRecord
	for rows.Next() {
		var (
			price float64
			link  sql.NullString
			date  string
		)
		if err := rows.Scan(&price, &link, &date); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		day, err := tracker.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("parse stored date %q: %w", date, err)
		}
		records = append(records, tracker.PriceRecord{
			ProductID:  productID,
			Date:       day,
			Price:      price,
			SourceLink: link.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", classify(err))
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})

	s.logger.Debug("History loaded", "product_id", productID, "records", len(records))
	return records, nil
}

// PriceOn returns the stored record for one day, or nil when none exists.
func (s *Store) PriceOn(ctx context.Context, productID int64, day time.Time) (*tracker.PriceRecord, error) {
	date := tracker.FormatDate(tracker.Day(day))

	var (
		price float64
		link  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT p.price, s.site_link
		 FROM prices p
		 LEFT JOIN sources s ON p.source_id = s.id
		 WHERE p.product_id = ? AND p.date = ?`,
		productID, date,
	).Scan(&price, &link)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query price on %s: %w", date, classify(err))
	}

	return &tracker.PriceRecord{
		ProductID:  productID,
		Date:       tracker.Day(day),
		Price:      price,
		SourceLink: link.String,
	}, nil
}

// Product returns a product's name and image link.
func (s *Store) Product(ctx context.Context, productID int64) (tracker.Product, error) {
	var (
		name  string
		image sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, image_url FROM products WHERE id = ?`, productID,
	).Scan(&name, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return tracker.Product{}, fmt.Errorf("product %d: %w", productID, ErrNotFound)
	}
	if err != nil {
		return tracker.Product{}, fmt.Errorf("query product: %w", classify(err))
	}
	return tracker.Product{ID: productID, Name: name, ImageURL: image.String}, nil
}

// ProductName returns just the product name.
func (s *Store) ProductName(ctx context.Context, productID int64) (string, error) {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// Sources returns all source links registered for a product.
func (s *Store) Sources(ctx context.Context, productID int64) ([]tracker.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, site_link FROM sources WHERE product_id = ?`, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", classify(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var sources []tracker.Source
	for rows.Next() {
		src := tracker.Source{ProductID: productID}
		if err := rows.Scan(&src.ID, &src.SiteLink); err != nil {
			return nil, fmt.Errorf("scan source row: %w", err)
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// AllProductIDs returns the ids of every tracked product.
func (s *Store) AllProductIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query product ids: %w", classify(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan product id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// NotificationTargets returns the notification settings of every user
// subscribed to a product. Filtering by tier happens in the classifier.
func (s *Store) NotificationTargets(ctx context.Context, productID int64) ([]tracker.NotificationSettings, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ns.user_id, ns.enabled, ns.no_price_change_enabled
		 FROM notification_settings ns
		 INNER JOIN product_subscriptions ps ON ns.user_id = ps.user_id
		 WHERE ps.product_id = ?`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("query notification targets: %w", classify(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var targets []tracker.NotificationSettings
	for rows.Next() {
		var t tracker.NotificationSettings
		if err := rows.Scan(&t.UserID, &t.Enabled, &t.NoPriceChangeEnabled); err != nil {
			return nil, fmt.Errorf("scan notification settings: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// WebhooksForUser returns every webhook endpoint registered by a user.
func (s *Store) WebhooksForUser(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT endpoint_url FROM webhooks WHERE user_id = ?`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query webhooks: %w", classify(err))
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn("Failed to close rows", "error", closeErr)
		}
	}()

	var endpoints []string
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan webhook: %w", err)
		}
		endpoints = append(endpoints, url)
	}
	return endpoints, rows.Err()
}
