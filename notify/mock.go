package notify

import (
	"context"
	"log/slog"
)

// MockProvider is a mock webhook provider for local development.
type MockProvider struct {
	logger *slog.Logger
}

// NewMockProvider creates a new mock webhook provider.
func NewMockProvider(logger *slog.Logger) *MockProvider {
	return &MockProvider{logger: logger}
}

// Send logs the message instead of delivering it.
func (m *MockProvider) Send(ctx context.Context, endpoint string, msg Message) error {
	m.logger.Info("MOCK WEBHOOK",
		"endpoint", endpoint,
		"title", msg.Title,
		"description", msg.Description,
		"color", msg.Color)
	return nil
}
