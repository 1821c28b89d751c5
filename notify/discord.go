package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DiscordProvider sends messages to Discord webhook endpoints as embeds.
type DiscordProvider struct {
	client *http.Client
	logger *slog.Logger
}

// NewDiscordProvider creates a Discord webhook provider.
func NewDiscordProvider(logger *slog.Logger) *DiscordProvider {
	return &DiscordProvider{
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
}

type discordFooter struct {
	Text string `json:"text"`
}

type discordImage struct {
	URL string `json:"url"`
}

type discordEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	URL         string         `json:"url,omitempty"`
	Color       int            `json:"color,omitempty"`
	Footer      *discordFooter `json:"footer,omitempty"`
	Image       *discordImage  `json:"image,omitempty"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Send posts the message as a single embed. Rate limiting (HTTP 429) surfaces
// as an error so the dispatcher's retry can back off and try again.
func (p *DiscordProvider) Send(ctx context.Context, endpoint string, msg Message) error {
	embed := discordEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		URL:         msg.URL,
		Color:       msg.Color,
	}
	if msg.Footer != "" {
		embed.Footer = &discordFooter{Text: msg.Footer}
	}
	if msg.ImageURL != "" {
		embed.Image = &discordImage{URL: msg.ImageURL}
	}

	jsonData, err := json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := p.client.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		p.logger.Warn("Webhook request failed",
			"endpoint", endpoint,
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			p.logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger.Warn("Webhook returned non-2xx status",
			"endpoint", endpoint,
			"status_code", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	p.logger.Info("Webhook request completed",
		"endpoint", endpoint,
		"duration_ms", duration.Milliseconds(),
		"status", "success")

	return nil
}
