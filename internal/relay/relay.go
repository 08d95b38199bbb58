// ABOUTME: Feed relay orchestrator: load cache, fetch, deduplicate, deliver, save
// ABOUTME: Runs every configured feed concurrently with per-feed failure isolation

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-feeds/internal/config"
	"github.com/2389/coven-feeds/internal/feed"
	"github.com/2389/coven-feeds/internal/metrics"
	"github.com/2389/coven-feeds/internal/render"
	"github.com/2389/coven-feeds/internal/store"
	"github.com/2389/coven-feeds/internal/urlcache"
)

// Deliverer posts messages to chats.
type Deliverer interface {
	// Deliver posts a rendered item to chatID.
	Deliver(ctx context.Context, chatID string, msg render.Message) error
	// Notify sends an operator notice to chatID.
	Notify(ctx context.Context, chatID, text string) error
}

// Config holds the relay's collaborators. Ledger, Metrics and OwnerRoom are
// optional.
type Config struct {
	Fetcher   feed.Fetcher
	Deliverer Deliverer
	Storage   urlcache.Storage
	Ledger    store.DeliveryLog
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	// OwnerRoom receives notices about skipped items and failed cycles
	OwnerRoom string
}

// Relay moves new feed items into chats.
type Relay struct {
	fetcher   feed.Fetcher
	deliverer Deliverer
	storage   urlcache.Storage
	ledger    store.DeliveryLog
	metrics   *metrics.Metrics
	logger    *slog.Logger
	ownerRoom string
}

// FeedResult summarizes one feed cycle.
type FeedResult struct {
	Feed       string
	ChatID     string
	Err        error // load, fetch or save failure; nil when the cycle completed
	Delivered  int
	Duplicates int
	Skipped    int // items without a usable URL
	Failed     int // deliveries that were rejected
}

// New creates a Relay.
func New(cfg Config) (*Relay, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("relay: fetcher is required")
	}
	if cfg.Deliverer == nil {
		return nil, errors.New("relay: deliverer is required")
	}
	if cfg.Storage == nil {
		return nil, errors.New("relay: storage is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		fetcher:   cfg.Fetcher,
		deliverer: cfg.Deliverer,
		storage:   cfg.Storage,
		ledger:    cfg.Ledger,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "relay"),
		ownerRoom: cfg.OwnerRoom,
	}, nil
}

type runIDKey struct{}

// WithRunID tags ctx with the pass that cycles run under.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

func runIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Run performs a pass immediately and then once per interval until ctx is
// cancelled.
func (r *Relay) Run(ctx context.Context, feeds []config.FeedConfig, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("relay: interval must be positive, got %s", interval)
	}

	r.RunOnce(ctx, feeds)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay stopped")
			return nil
		case <-ticker.C:
			r.RunOnce(ctx, feeds)
		}
	}
}

// RunOnce processes every feed concurrently and returns their results in
// the order of feeds. One feed failing does not affect the others.
func (r *Relay) RunOnce(ctx context.Context, feeds []config.FeedConfig) []FeedResult {
	runID := uuid.NewString()
	ctx = WithRunID(ctx, runID)
	start := time.Now()

	results := make([]FeedResult, len(feeds))
	var wg sync.WaitGroup
	for i, f := range feeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.ProcessFeed(ctx, f)
		}()
	}
	wg.Wait()

	var delivered, failedFeeds int
	for _, res := range results {
		delivered += res.Delivered
		if res.Err != nil {
			failedFeeds++
		}
	}
	r.logger.Info("pass complete",
		"run_id", runID,
		"feeds", len(feeds),
		"failed_feeds", failedFeeds,
		"delivered", delivered,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return results
}

// ProcessFeed runs one cycle for f: load its cache, fetch the feed, deliver
// items not seen before and save the cache. A load or fetch failure aborts
// the cycle before anything is delivered. Delivery failures are recorded and
// do not stop the remaining items; the cache is saved regardless.
func (r *Relay) ProcessFeed(ctx context.Context, f config.FeedConfig) FeedResult {
	start := time.Now()
	runID := runIDFrom(ctx)
	logger := r.logger.With("run_id", runID, "feed", f.URL, "chat_id", f.ChatID)
	res := FeedResult{Feed: f.URL, ChatID: f.ChatID}

	defer func() {
		status := metrics.StatusOK
		if res.Err != nil {
			status = metrics.StatusError
		}
		r.metrics.CycleFinished(f.URL, status, time.Since(start))
	}()

	cache := urlcache.New(r.storage, f.ChatID, f.URL, f.CacheSize())
	if err := cache.Load(ctx); err != nil {
		logger.Error("failed to load url cache", "location", cache.Location(), "error", err)
		r.notify(ctx, logger, fmt.Sprintf("Failed to load URL cache for %s: %v", f.URL, err))
		res.Err = fmt.Errorf("loading url cache: %w", err)
		return res
	}

	items, err := r.fetcher.Fetch(ctx, f.URL)
	if err != nil {
		logger.Error("failed to fetch feed", "error", err)
		r.notify(ctx, logger, fmt.Sprintf("Failed to fetch feed %s: %v", f.URL, err))
		res.Err = fmt.Errorf("fetching feed: %w", err)
		return res
	}
	logger.Debug("feed fetched", "items", len(items))

	tmpl := f.PostFormat
	if tmpl == "" {
		tmpl = config.DefaultPostFormat
	}

	for _, item := range items {
		if ctx.Err() != nil {
			logger.Warn("cycle interrupted, saving progress", "error", ctx.Err())
			break
		}
		r.processItem(ctx, logger, runID, f, tmpl, cache, item, &res)
	}

	// Identities inserted before a shutdown are still persisted
	if err := cache.Save(context.WithoutCancel(ctx)); err != nil {
		logger.Error("failed to save url cache", "location", cache.Location(), "error", err)
		r.notify(ctx, logger, fmt.Sprintf("Failed to save URL cache for %s: %v", f.URL, err))
		res.Err = fmt.Errorf("saving url cache: %w", err)
		return res
	}
	r.metrics.CacheEntries(f.ChatID, f.URL, cache.Len())

	logger.Info("feed processed",
		"delivered", res.Delivered,
		"duplicates", res.Duplicates,
		"skipped", res.Skipped,
		"failed", res.Failed,
	)
	return res
}

func (r *Relay) processItem(ctx context.Context, logger *slog.Logger, runID string, f config.FeedConfig, tmpl string, cache *urlcache.Cache, item feed.Item, res *FeedResult) {
	if item.Link == "" {
		logger.Warn("item has no url", "title", item.Title, "guid", item.GUID)
		r.notify(ctx, logger, fmt.Sprintf("No URL in item %q from %s", item.Title, f.URL))
		res.Skipped++
		r.metrics.ItemProcessed(f.URL, metrics.ResultSkipped)
		return
	}

	isNew, err := cache.Insert(item.Link)
	if err != nil {
		logger.Warn("malformed item url", "item_url", item.Link, "error", err)
		r.notify(ctx, logger, fmt.Sprintf("Malformed item URL %s in %s: %v", item.Link, f.URL, err))
		res.Skipped++
		r.metrics.ItemProcessed(f.URL, metrics.ResultSkipped)
		return
	}
	if !isNew {
		logger.Debug("duplicate item", "item_url", item.Link)
		res.Duplicates++
		r.metrics.ItemProcessed(f.URL, metrics.ResultDuplicate)
		return
	}

	// Insert succeeded, so the URL normalizes
	identity, _ := urlcache.Normalize(item.Link)
	delivery := &store.Delivery{
		RunID:    runID,
		ChatID:   f.ChatID,
		FeedURL:  f.URL,
		ItemURL:  item.Link,
		Identity: identity,
		Status:   store.DeliveryDelivered,
	}

	if err := r.deliverer.Deliver(ctx, f.ChatID, render.Format(tmpl, item)); err != nil {
		logger.Error("failed to deliver item", "item_url", item.Link, "error", err)
		delivery.Status = store.DeliveryFailed
		delivery.Error = err.Error()
		res.Failed++
		r.metrics.ItemProcessed(f.URL, metrics.ResultFailed)
	} else {
		logger.Info("item delivered", "item_url", item.Link)
		res.Delivered++
		r.metrics.ItemProcessed(f.URL, metrics.ResultDelivered)
	}

	r.record(ctx, logger, delivery)
}

func (r *Relay) record(ctx context.Context, logger *slog.Logger, d *store.Delivery) {
	if r.ledger == nil {
		return
	}
	if err := r.ledger.RecordDelivery(context.WithoutCancel(ctx), d); err != nil {
		logger.Warn("failed to record delivery", "item_url", d.ItemURL, "error", err)
	}
}

func (r *Relay) notify(ctx context.Context, logger *slog.Logger, text string) {
	if r.ownerRoom == "" {
		return
	}
	if err := r.deliverer.Notify(ctx, r.ownerRoom, text); err != nil {
		logger.Warn("failed to notify owner", "room", r.ownerRoom, "error", err)
	}
}

// Errors joins the errors of failed cycles, or returns nil.
func Errors(results []FeedResult) error {
	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("feed %s (chat %s): %w", res.Feed, res.ChatID, res.Err))
		}
	}
	return errors.Join(errs...)
}
