// ABOUTME: Read-only inspection commands: normalize, cache show, cache deliveries
// ABOUTME: Help operators see why an item was or was not posted

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/2389/coven-feeds/internal/config"
	"github.com/2389/coven-feeds/internal/store"
	"github.com/2389/coven-feeds/internal/urlcache"
)

func runNormalize(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("at least one URL is required")
	}
	return normalizeURLs(c.App.Writer, c.Args().Slice())
}

// normalizeURLs prints "url<TAB>identity" per URL. Failures are printed in
// place of the identity and reported together at the end.
func normalizeURLs(w io.Writer, urls []string) error {
	failed := 0
	for _, raw := range urls {
		identity, err := urlcache.Normalize(raw)
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s\terror: %v\n", raw, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", raw, identity)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d URLs could not be normalized", failed, len(urls))
	}
	return nil
}

func runCacheShow(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := openBackends(cfg.Storage, getDataPath())
	if err != nil {
		return err
	}
	defer b.Close()

	return showCache(c.Context, c.App.Writer, b.storage, cfg, c.String("chat"), c.String("feed"))
}

// showCache prints a cache's identities oldest first, as the relay would
// see them with the feed's configured capacity.
func showCache(ctx context.Context, w io.Writer, storage urlcache.Storage, cfg *config.Config, chatID, feedURL string) error {
	capacity := config.DefaultURLCacheSize
	for _, f := range cfg.Feeds {
		if f.URL == feedURL && f.ChatID == chatID {
			capacity = f.CacheSize()
			break
		}
	}

	cache := urlcache.New(storage, chatID, feedURL, capacity)
	if err := cache.Load(ctx); err != nil {
		return err
	}

	fmt.Fprintf(w, "# %s (%d of %d)\n", cache.Location(), cache.Len(), capacity)
	for _, identity := range cache.Entries() {
		fmt.Fprintln(w, identity)
	}
	return nil
}

func runCacheDeliveries(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	b, err := openBackends(cfg.Storage, getDataPath())
	if err != nil {
		return err
	}
	defer b.Close()

	if b.ledger == nil {
		return errors.New("no delivery ledger configured (use storage.backend = \"sqlite\" or storage.ledger_path)")
	}

	deliveries, err := b.ledger.ListDeliveries(c.Context, c.String("feed"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("listing deliveries: %w", err)
	}
	printDeliveries(c.App.Writer, deliveries)
	return nil
}

func printDeliveries(w io.Writer, deliveries []*store.Delivery) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSTATUS\tCHAT\tIDENTITY\tERROR")
	for _, d := range deliveries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.CreatedAt.Local().Format(time.DateTime), d.Status, d.ChatID, d.Identity, d.Error)
	}
	_ = tw.Flush()
}
