package sweep

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"pricewatch/notify"
	"pricewatch/pkg/tracker"
)

type fakeStore struct {
	products map[int64]tracker.Product
	sources  map[int64][]tracker.Source
	history  map[int64][]tracker.PriceRecord
	targets  map[int64][]tracker.NotificationSettings
	webhooks map[int64][]string

	upserts []upsert
}

type upsert struct {
	productID int64
	price     float64
	link      string
}

func (f *fakeStore) AllProductIDs(context.Context) ([]int64, error) {
	var ids []int64
	for id := range f.products {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) Product(_ context.Context, id int64) (tracker.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return tracker.Product{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakeStore) Sources(_ context.Context, id int64) ([]tracker.Source, error) {
	return f.sources[id], nil
}

func (f *fakeStore) History(_ context.Context, id int64) ([]tracker.PriceRecord, error) {
	return f.history[id], nil
}

func (f *fakeStore) PriceOn(_ context.Context, id int64, day time.Time) (*tracker.PriceRecord, error) {
	for i := range f.history[id] {
		if tracker.SameDay(f.history[id][i].Date, day) {
			return &f.history[id][i], nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpsertPrice(_ context.Context, id int64, day time.Time, price float64, link string) error {
	f.upserts = append(f.upserts, upsert{productID: id, price: price, link: link})
	f.history[id] = append(f.history[id], tracker.PriceRecord{
		ProductID: id, Date: tracker.Day(day), Price: price, SourceLink: link,
	})
	return nil
}

func (f *fakeStore) NotificationTargets(_ context.Context, id int64) ([]tracker.NotificationSettings, error) {
	return f.targets[id], nil
}

func (f *fakeStore) WebhooksForUser(_ context.Context, userID int64) ([]string, error) {
	return f.webhooks[userID], nil
}

type fakeSampler struct {
	samples map[string]tracker.PriceSample
	errs    map[string]error
}

func (f *fakeSampler) Sample(_ context.Context, link string) (tracker.PriceSample, error) {
	if err, ok := f.errs[link]; ok {
		return tracker.PriceSample{}, err
	}
	s, ok := f.samples[link]
	if !ok {
		return tracker.PriceSample{}, errors.New("unexpected link " + link)
	}
	s.SourceLink = link
	return s, nil
}

type fakeDispatcher struct {
	calls []dispatchCall
}

type dispatchCall struct {
	msg       notify.Message
	endpoints []string
}

func (f *fakeDispatcher) Dispatch(_ context.Context, msg notify.Message, endpoints []string) []notify.Result {
	f.calls = append(f.calls, dispatchCall{msg: msg, endpoints: endpoints})
	results := make([]notify.Result, len(endpoints))
	for i, e := range endpoints {
		results[i] = notify.Result{Endpoint: e}
	}
	return results
}

func newTestSweeper(store *fakeStore, sampler *fakeSampler, dispatcher *fakeDispatcher) *Sweeper {
	logger := slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
	return New(store, sampler, dispatcher, logger, Config{Interval: time.Hour})
}

func singleProductStore() *fakeStore {
	return &fakeStore{
		products: map[int64]tracker.Product{1: {ID: 1, Name: "Elden Ring"}},
		sources: map[int64][]tracker.Source{1: {
			{ID: 1, ProductID: 1, SiteLink: "https://a.example/er"},
			{ID: 2, ProductID: 1, SiteLink: "https://b.example/er"},
		}},
		history:  map[int64][]tracker.PriceRecord{},
		targets:  map[int64][]tracker.NotificationSettings{1: {{UserID: 7, Enabled: true}}},
		webhooks: map[int64][]string{7: {"https://discord.example/hook"}},
	}
}

func TestSweepNewProduct(t *testing.T) {
	store := singleProductStore()
	sampler := &fakeSampler{samples: map[string]tracker.PriceSample{
		"https://a.example/er": {Price: 19.99, Available: true},
		"https://b.example/er": {Price: 14.99, Available: true},
	}}
	dispatcher := &fakeDispatcher{}

	s := newTestSweeper(store, sampler, dispatcher)
	if err := s.SweepAll(context.Background()); err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}

	if len(store.upserts) != 1 {
		t.Fatalf("got %d upserts, want 1", len(store.upserts))
	}
	if store.upserts[0].price != 14.99 || store.upserts[0].link != "https://b.example/er" {
		t.Errorf("upsert = %+v, want lowest source", store.upserts[0])
	}

	if len(dispatcher.calls) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(dispatcher.calls))
	}
	call := dispatcher.calls[0]
	if !strings.Contains(call.msg.Description, "**PRICE FOUND**") {
		t.Errorf("Description = %q, want first-sighting banner", call.msg.Description)
	}
	if len(call.endpoints) != 1 || call.endpoints[0] != "https://discord.example/hook" {
		t.Errorf("endpoints = %v", call.endpoints)
	}
}

func TestSweepNewHistoricalLow(t *testing.T) {
	store := singleProductStore()
	yesterday := tracker.Day(time.Now().AddDate(0, 0, -1))
	older := tracker.Day(time.Now().AddDate(0, 0, -10))
	store.history[1] = []tracker.PriceRecord{
		{ProductID: 1, Date: older, Price: 8},
		{ProductID: 1, Date: yesterday, Price: 10},
	}
	sampler := &fakeSampler{samples: map[string]tracker.PriceSample{
		"https://a.example/er": {Price: 7, Available: true},
		"https://b.example/er": {Price: 9, Available: true},
	}}
	dispatcher := &fakeDispatcher{}

	s := newTestSweeper(store, sampler, dispatcher)
	if err := s.SweepAll(context.Background()); err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}

	if len(dispatcher.calls) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(dispatcher.calls))
	}
	msg := dispatcher.calls[0].msg
	if !strings.Contains(msg.Description, "**NEW HISTORICAL LOW**") {
		t.Errorf("Description = %q, want new-low banner", msg.Description)
	}
	if !strings.Contains(msg.Footer, "Historical low: £8.00") {
		t.Errorf("Footer = %q", msg.Footer)
	}
}

func TestSweepFailedSourceExcluded(t *testing.T) {
	store := singleProductStore()
	sampler := &fakeSampler{
		samples: map[string]tracker.PriceSample{
			"https://b.example/er": {Price: 14.99, Available: true},
		},
		errs: map[string]error{
			"https://a.example/er": errors.New("HTTP 500"),
		},
	}
	dispatcher := &fakeDispatcher{}

	s := newTestSweeper(store, sampler, dispatcher)
	if err := s.SweepAll(context.Background()); err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}

	if len(store.upserts) != 1 || store.upserts[0].price != 14.99 {
		t.Errorf("upserts = %+v, want surviving source only", store.upserts)
	}
}

func TestSweepNoUsableSamplesSuppressesEverything(t *testing.T) {
	store := singleProductStore()
	sampler := &fakeSampler{samples: map[string]tracker.PriceSample{
		"https://a.example/er": {Price: -1, Available: false},
		"https://b.example/er": {Price: 10, Available: false},
	}}
	dispatcher := &fakeDispatcher{}

	s := newTestSweeper(store, sampler, dispatcher)
	if err := s.SweepAll(context.Background()); err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}

	if len(store.upserts) != 0 {
		t.Errorf("upserts = %+v, want none", store.upserts)
	}
	if len(dispatcher.calls) != 0 {
		t.Errorf("dispatches = %+v, want none", dispatcher.calls)
	}
}

func TestSweepHigherPriceKeepsStoredRecord(t *testing.T) {
	store := singleProductStore()
	today := tracker.Day(time.Now())
	store.history[1] = []tracker.PriceRecord{
		{ProductID: 1, Date: today, Price: 10, SourceLink: "https://a.example/er"},
	}
	sampler := &fakeSampler{samples: map[string]tracker.PriceSample{
		"https://a.example/er": {Price: 12, Available: true},
		"https://b.example/er": {Price: 13, Available: true},
	}}
	dispatcher := &fakeDispatcher{}

	s := newTestSweeper(store, sampler, dispatcher)
	if err := s.SweepAll(context.Background()); err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}

	if len(store.upserts) != 0 {
		t.Errorf("upserts = %+v, want stored lower price kept", store.upserts)
	}
	// Notification still goes out describing the observed price.
	if len(dispatcher.calls) != 1 {
		t.Fatalf("got %d dispatches, want 1", len(dispatcher.calls))
	}
}

func TestSweepNoChangeFiltersRecipients(t *testing.T) {
	store := singleProductStore()
	yesterday := tracker.Day(time.Now().AddDate(0, 0, -1))
	store.history[1] = []tracker.PriceRecord{
		{ProductID: 1, Date: yesterday, Price: 14.99},
	}
	// Subscriber did not opt into no-change notifications.
	store.targets[1] = []tracker.NotificationSettings{
		{UserID: 7, Enabled: true, NoPriceChangeEnabled: false},
	}
	sampler := &fakeSampler{samples: map[string]tracker.PriceSample{
		"https://a.example/er": {Price: 14.99, Available: true},
		"https://b.example/er": {Price: 15.99, Available: true},
	}}
	dispatcher := &fakeDispatcher{}

	s := newTestSweeper(store, sampler, dispatcher)
	if err := s.SweepAll(context.Background()); err != nil {
		t.Fatalf("SweepAll() error = %v", err)
	}

	if len(dispatcher.calls) != 0 {
		t.Errorf("dispatches = %+v, want none for unsubscribed no-change", dispatcher.calls)
	}
	// The price row is still written.
	if len(store.upserts) != 1 {
		t.Errorf("upserts = %+v, want 1", store.upserts)
	}
}

func TestSweepCancelledContext(t *testing.T) {
	store := singleProductStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestSweeper(store, &fakeSampler{}, &fakeDispatcher{})
	if err := s.SweepAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("SweepAll() error = %v, want context.Canceled", err)
	}
}
