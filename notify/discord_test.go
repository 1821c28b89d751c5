package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDiscordSend(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewDiscordProvider(testLogger())
	msg := Message{
		Title:       "Elden Ring",
		Description: "**PRICE DECREASE**",
		Footer:      "Historical low: £8.00",
		URL:         "https://www.cdkeys.com/elden-ring",
		ImageURL:    "https://example.com/cover.jpg",
		Color:       ColorDecrease,
	}

	if err := p.Send(context.Background(), srv.URL, msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if len(got.Embeds) != 1 {
		t.Fatalf("got %d embeds, want 1", len(got.Embeds))
	}
	e := got.Embeds[0]
	if e.Title != msg.Title || e.Description != msg.Description || e.URL != msg.URL {
		t.Errorf("embed = %+v", e)
	}
	if e.Color != ColorDecrease {
		t.Errorf("color = %#x", e.Color)
	}
	if e.Footer == nil || e.Footer.Text != msg.Footer {
		t.Errorf("footer = %+v", e.Footer)
	}
	if e.Image == nil || e.Image.URL != msg.ImageURL {
		t.Errorf("image = %+v", e.Image)
	}
}

func TestDiscordSendOmitsEmptyFooterAndImage(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p := NewDiscordProvider(testLogger())
	if err := p.Send(context.Background(), srv.URL, Message{Title: "x"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Embeds[0].Footer != nil || got.Embeds[0].Image != nil {
		t.Errorf("embed = %+v, want nil footer and image", got.Embeds[0])
	}
}

func TestDiscordSendNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := NewDiscordProvider(testLogger())
	if err := p.Send(context.Background(), srv.URL, Message{}); err == nil {
		t.Fatal("Send() succeeded on HTTP 429, want error")
	}
}
