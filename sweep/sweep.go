// Package sweep drives the periodic pass over all tracked products: scraping
// each source, reducing samples to a daily price, persisting it, and handing
// the classified change to the notification pipeline.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"pricewatch/notify"
	"pricewatch/pkg/tracker"
	"pricewatch/storage"
)

// Store is the slice of the price store the sweeper needs.
type Store interface {
	AllProductIDs(ctx context.Context) ([]int64, error)
	Product(ctx context.Context, productID int64) (tracker.Product, error)
	Sources(ctx context.Context, productID int64) ([]tracker.Source, error)
	History(ctx context.Context, productID int64) ([]tracker.PriceRecord, error)
	PriceOn(ctx context.Context, productID int64, day time.Time) (*tracker.PriceRecord, error)
	UpsertPrice(ctx context.Context, productID int64, day time.Time, price float64, sourceLink string) error
	NotificationTargets(ctx context.Context, productID int64) ([]tracker.NotificationSettings, error)
	WebhooksForUser(ctx context.Context, userID int64) ([]string, error)
}

// Sampler fetches one source's price sample.
type Sampler interface {
	Sample(ctx context.Context, link string) (tracker.PriceSample, error)
}

// Dispatcher fans a composed message out to webhook endpoints.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg notify.Message, endpoints []string) []notify.Result
}

// Config holds the sweep timing knobs.
type Config struct {
	// Interval between full sweeps. Zero means pick a random interval up to
	// MaxRandomInterval before each sweep.
	Interval          time.Duration
	MaxRandomInterval time.Duration
	// Jitter bounds for the randomized pause between per-product scrapes.
	JitterMin time.Duration
	JitterMax time.Duration
}

// Sweeper runs the sweep loop. A single logical worker drives everything
// sequentially; per-product failures degrade gracefully and never stop the
// loop.
type Sweeper struct {
	store      Store
	sampler    Sampler
	dispatcher Dispatcher
	logger     *slog.Logger
	cfg        Config
	now        func() time.Time
}

// New creates a sweeper.
func New(store Store, sampler Sampler, dispatcher Dispatcher, logger *slog.Logger, cfg Config) *Sweeper {
	return &Sweeper{
		store:      store,
		sampler:    sampler,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
		now:        time.Now,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	for {
		if err := s.SweepAll(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			s.logger.Error("Sweep failed", "error", err)
		}

		interval := s.cfg.Interval
		if interval <= 0 {
			interval = randomDuration(time.Minute, s.cfg.MaxRandomInterval)
		}
		s.logger.Info("Waiting before next sweep", "interval", interval.String())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// SweepAll runs one full pass over every tracked product.
func (s *Sweeper) SweepAll(ctx context.Context) error {
	ids, err := s.store.AllProductIDs(ctx)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	start := s.now()
	s.logger.Info("Sweep starting", "products", len(ids), "timestamp", start.Format(time.RFC3339))

	checked := 0
	for i, productID := range ids {
		select {
		case <-ctx.Done():
			s.logger.Info("Context cancelled, stopping sweep", "error", ctx.Err())
			return ctx.Err()
		default:
		}

		if err := s.checkProduct(ctx, productID); err != nil {
			s.logger.Warn("Product check failed", "product_id", productID, "error", err)
			// Continue with other products despite errors
		} else {
			checked++
		}

		// Randomized pause between products to stay under anti-scraping radars.
		if i < len(ids)-1 {
			jitter := randomDuration(s.cfg.JitterMin, s.cfg.JitterMax)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jitter):
			}
		}
	}

	s.logger.Info("Sweep completed",
		"products", len(ids),
		"checked", checked,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// checkProduct runs the whole pipeline for one product: sample every source,
// aggregate, analyze history, persist, classify, compose, dispatch.
func (s *Sweeper) checkProduct(ctx context.Context, productID int64) error {
	sources, err := s.store.Sources(ctx, productID)
	if err != nil {
		return fmt.Errorf("load sources: %w", err)
	}
	if len(sources) == 0 {
		s.logger.Debug("Product has no sources", "product_id", productID)
		return nil
	}

	// All sources are sampled before anything is persisted, so the aggregator
	// always sees a complete sweep for the product.
	samples := make([]tracker.PriceSample, 0, len(sources))
	for _, src := range sources {
		sample, err := s.sampler.Sample(ctx, src.SiteLink)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("Source fetch failed, excluding sample",
				"product_id", productID,
				"link", src.SiteLink,
				"error", err)
			continue
		}
		samples = append(samples, sample)
	}

	best := SelectLowest(samples)
	if best == nil {
		s.logger.Info("No usable price found this sweep", "product_id", productID)
		return nil
	}

	now := s.now()
	history, err := s.store.History(ctx, productID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	previous, low := Analyze(history, now)

	// The store overwrites unconditionally; deciding whether today's record
	// should be replaced is this loop's job. A price equal to the stored one
	// may still move the record to the tying source.
	stored, err := s.store.PriceOn(ctx, productID, now)
	if err != nil {
		return fmt.Errorf("read today's price: %w", err)
	}
	switch {
	case stored == nil:
		err = s.store.UpsertPrice(ctx, productID, now, best.Price, best.SourceLink)
	case best.Price <= stored.Price:
		err = s.store.UpsertPrice(ctx, productID, now, best.Price, best.SourceLink)
	default:
		s.logger.Info("Price found is higher than stored for today, keeping stored",
			"product_id", productID,
			"found", best.Price,
			"stored", stored.Price)
	}
	if err != nil {
		if errors.Is(err, storage.ErrIntegrity) {
			s.logger.Error("Integrity failure, aborting product update this sweep",
				"product_id", productID, "error", err)
		}
		return fmt.Errorf("persist price: %w", err)
	}

	return s.notifyUsers(ctx, productID, *best, previous, low)
}

func (s *Sweeper) notifyUsers(ctx context.Context, productID int64, current tracker.PriceSample, previous, low *tracker.PriceRecord) error {
	tier := notify.Classify(current, previous, low)
	s.logger.Info("Price change classified",
		"product_id", productID,
		"tier", tier.String(),
		"price", current.Price)

	targets, err := s.store.NotificationTargets(ctx, productID)
	if err != nil {
		return fmt.Errorf("load notification targets: %w", err)
	}
	recipients := notify.Recipients(tier, targets)
	if len(recipients) == 0 {
		s.logger.Debug("No recipients for tier", "product_id", productID, "tier", tier.String())
		return nil
	}

	product, err := s.store.Product(ctx, productID)
	if err != nil {
		return fmt.Errorf("load product: %w", err)
	}

	msg := notify.Compose(tier, product, current, previous, low)

	for _, recipient := range recipients {
		endpoints, err := s.store.WebhooksForUser(ctx, recipient.UserID)
		if err != nil {
			s.logger.Warn("Failed to load webhooks for user",
				"user_id", recipient.UserID, "error", err)
			continue
		}
		if len(endpoints) == 0 {
			continue
		}
		// Delivery failures are logged by the dispatcher; the price write
		// above stands either way.
		s.dispatcher.Dispatch(ctx, msg, endpoints)
	}
	return nil
}

func randomDuration(minDur, maxDur time.Duration) time.Duration {
	if maxDur <= minDur {
		return minDur
	}
	return minDur + rand.N(maxDur-minDur)
}
