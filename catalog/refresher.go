package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
)

// Refresher reloads the catalog on an interval and republishes it.
type Refresher struct {
	loader   *Loader
	store    *Store
	source   string
	interval time.Duration
	logger   *slog.Logger
}

// NewRefresher builds a refresher. A non-positive interval disables it.
func NewRefresher(loader *Loader, store *Store, source string, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		loader:   loader,
		store:    store,
		source:   source,
		interval: interval,
		logger:   logger,
	}
}

// Reload loads the source once and publishes it.
func (r *Refresher) Reload(ctx context.Context) error {
	cat, _, err := r.loader.Load(ctx, r.source)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}
	version, err := r.store.Publish(cat)
	if err != nil {
		return fmt.Errorf("reload catalog: %w", err)
	}
	r.logger.Info("catalog published",
		slog.Uint64("version", version),
		slog.Int("rows", cat.Len()),
	)
	return nil
}

// Serve implements suture.Service. Failed reloads are logged and the
// previous catalog stays published.
func (r *Refresher) Serve(ctx context.Context) error {
	if r.interval <= 0 {
		return suture.ErrDoNotRestart
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := r.Reload(ctx); err != nil {
				r.logger.Error("catalog refresh failed",
					slog.String("source", r.source),
					slog.Any("error", err),
				)
			}
		}
	}
}

// String implements fmt.Stringer for suture logging.
func (r *Refresher) String() string {
	return "catalog-refresher"
}
