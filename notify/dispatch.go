package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// Provider delivers one message to one endpoint.
type Provider interface {
	Send(ctx context.Context, endpoint string, msg Message) error
}

// Result is the delivery outcome for a single endpoint.
type Result struct {
	Endpoint string
	Err      error
}

// Dispatcher fans a message out to a set of webhook endpoints. Each endpoint
// is delivered independently with its own bounded retry, so one failing or
// rate-limited endpoint never blocks the others. Delivery is best-effort:
// failures are logged and reported, never rolled back into the price store.
type Dispatcher struct {
	provider Provider
	logger   *slog.Logger
	attempts uint
}

// NewDispatcher creates a dispatcher. attempts bounds per-endpoint retries.
func NewDispatcher(provider Provider, logger *slog.Logger, attempts uint) *Dispatcher {
	if attempts == 0 {
		attempts = 1
	}
	return &Dispatcher{provider: provider, logger: logger, attempts: attempts}
}

// Dispatch sends msg to every endpoint concurrently and returns one result
// per endpoint, in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message, endpoints []string) []Result {
	results := make([]Result, len(endpoints))

	var wg sync.WaitGroup
	for i, endpoint := range endpoints {
		wg.Add(1)
		go func(i int, endpoint string) {
			defer wg.Done()
			results[i] = Result{Endpoint: endpoint, Err: d.send(ctx, endpoint, msg)}
		}(i, endpoint)
	}
	wg.Wait()

	delivered := 0
	for _, r := range results {
		if r.Err == nil {
			delivered++
			continue
		}
		d.logger.Warn("Webhook delivery failed",
			"endpoint", r.Endpoint,
			"title", msg.Title,
			"error", r.Err)
	}
	d.logger.Info("Dispatch completed",
		"title", msg.Title,
		"endpoints", len(endpoints),
		"delivered", delivered)

	return results
}

func (d *Dispatcher) send(ctx context.Context, endpoint string, msg Message) error {
	return retry.Do(
		func() error {
			return d.provider.Send(ctx, endpoint, msg)
		},
		retry.Attempts(d.attempts),
		retry.Delay(time.Second),
		retry.MaxDelay(time.Minute),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			d.logger.Info("Retrying webhook delivery after error",
				"attempt", n, "endpoint", endpoint, "error", err)
		}),
	)
}
