package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Admin operations own the catalog and subscription tables. The sweep core
// never calls these; they back the CLI admin modes and tests.

// AddProduct registers a tracked product. The name must be unique.
func (s *Store) AddProduct(ctx context.Context, name, imageURL string) (int64, error) {
	var image any
	if imageURL != "" {
		image = imageURL
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO products (name, image_url) VALUES (?, ?)`, name, image,
	)
	if err != nil {
		return 0, fmt.Errorf("add product %q: %w", name, classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.logger.Info("Product added", "product_id", id, "name", name)
	return id, nil
}

// ProductIDByName looks a product up by its unique name.
func (s *Store) ProductIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM products WHERE name = ?`, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("product %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query product %q: %w", name, classify(err))
	}
	return id, nil
}

// UserIDByName looks a user up by name.
func (s *Store) UserIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE name = ?`, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("user %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("query user %q: %w", name, classify(err))
	}
	return id, nil
}

// AddSource attaches a scrapeable site link to a product.
func (s *Store) AddSource(ctx context.Context, productID int64, siteLink string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (product_id, site_link) VALUES (?, ?)`, productID, siteLink,
	)
	if err != nil {
		return 0, fmt.Errorf("add source for product %d: %w", productID, classify(err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	s.logger.Info("Source added", "product_id", productID, "source_id", id, "link", siteLink)
	return id, nil
}

// AddUser registers a user that can subscribe to products.
func (s *Store) AddUser(ctx context.Context, name string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name) VALUES (?)`, name,
	)
	if err != nil {
		return 0, fmt.Errorf("add user %q: %w", name, classify(err))
	}
	return res.LastInsertId()
}

// SetNotificationSettings creates or replaces a user's notification settings.
func (s *Store) SetNotificationSettings(ctx context.Context, userID int64, enabled, noPriceChangeEnabled bool) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_settings (user_id, enabled, no_price_change_enabled)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id)
		 DO UPDATE SET enabled = excluded.enabled, no_price_change_enabled = excluded.no_price_change_enabled`,
		userID, enabled, noPriceChangeEnabled,
	)
	if err != nil {
		return fmt.Errorf("set notification settings for user %d: %w", userID, classify(err))
	}
	return nil
}

// Subscribe links a user to a product so price changes reach them.
func (s *Store) Subscribe(ctx context.Context, userID, productID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_subscriptions (user_id, product_id) VALUES (?, ?)
		 ON CONFLICT (user_id, product_id) DO NOTHING`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("subscribe user %d to product %d: %w", userID, productID, classify(err))
	}
	return nil
}

// AddWebhook registers a notification endpoint for a user.
func (s *Store) AddWebhook(ctx context.Context, userID int64, endpointURL string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhooks (user_id, endpoint_url) VALUES (?, ?)
		 ON CONFLICT (user_id, endpoint_url) DO NOTHING`,
		userID, endpointURL,
	)
	if err != nil {
		return fmt.Errorf("add webhook for user %d: %w", userID, classify(err))
	}
	return nil
}
