package poller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/statuswatch/statuswatch/internal/bus"
	"github.com/statuswatch/statuswatch/internal/store"
)

// Registry owns the monitors for all configured providers and their
// shared HTTP client.
type Registry struct {
	client   *Client
	monitors []*Monitor
	logger   *slog.Logger
}

// NewRegistry builds one [Monitor] per provider config. All monitors
// share a single pooled [Client].
func NewRegistry(cfgs []ProviderConfig, b *bus.Bus, st store.Store, failureThreshold int, logger *slog.Logger) *Registry {
	client := NewClient()
	monitors := make([]*Monitor, 0, len(cfgs))
	for _, cfg := range cfgs {
		monitors = append(monitors, NewMonitor(cfg, client, b, st, failureThreshold, logger))
	}
	return &Registry{
		client:   client,
		monitors: monitors,
		logger:   logger,
	}
}

// Count returns the number of registered monitors.
func (r *Registry) Count() int {
	return len(r.monitors)
}

// Run launches every monitor in its own goroutine and blocks until ctx
// is cancelled and all monitors have exited, then releases the shared
// connection pool. Always returns nil; poll failures never escape a
// monitor.
func (r *Registry) Run(ctx context.Context) error {
	r.logger.Info("starting monitors", "count", len(r.monitors))

	var wg sync.WaitGroup
	for _, m := range r.monitors {
		wg.Add(1)
		go func(m *Monitor) {
			defer wg.Done()
			m.Run(ctx)
		}(m)
	}

	<-ctx.Done()
	wg.Wait()
	r.client.Close()
	r.logger.Info("all monitors stopped")
	return nil
}
