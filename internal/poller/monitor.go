// Package poller runs one conditional fetch loop per configured
// provider and feeds detected changes to the event bus and the
// summary store.
package poller

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/statuswatch/statuswatch/internal/bus"
	"github.com/statuswatch/statuswatch/internal/metrics"
	"github.com/statuswatch/statuswatch/internal/status"
	"github.com/statuswatch/statuswatch/internal/store"
)

// DefaultFailureThreshold is how many consecutive failed polls it
// takes before a provider is reported unknown.
const DefaultFailureThreshold = 3

// jitterFraction bounds the random spread applied to each poll
// interval, keeping providers that share an interval from
// synchronizing into a thundering herd.
const jitterFraction = 0.1

// ProviderConfig describes one status-page provider to poll. Values
// are supplied once at startup and never mutated.
type ProviderConfig struct {
	// Name is the unique provider key.
	Name string

	// BaseURL is the root of the provider's status API, e.g.
	// "https://www.githubstatus.com/api/v2". Trailing slashes are
	// tolerated.
	BaseURL string

	// PollInterval is the nominal time between polls.
	PollInterval time.Duration

	// Timeout is the per-request deadline. Config validation
	// guarantees it is strictly shorter than PollInterval, so a
	// stalled remote can never overlap requests to the same provider.
	Timeout time.Duration
}

// IncidentsURL is the conditional-fetch target for incident data.
func (c ProviderConfig) IncidentsURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/incidents.json"
}

// SummaryURL is the best-effort target for the provider's own status
// description line.
func (c ProviderConfig) SummaryURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/summary.json"
}

// Monitor owns the poll loop for a single provider.
//
// All of its mutable fields, the tracking state included, are touched
// only from the goroutine running [Monitor.Run]; no locking is needed
// or present. Detected changes leave the monitor as copies, via the
// bus and the store.
type Monitor struct {
	cfg              ProviderConfig
	client           *Client
	bus              *bus.Bus
	store            store.Store
	logger           *slog.Logger
	failureThreshold int

	state       *status.State
	validators  Validators
	lastHash    string
	failures    int
	description string
}

// NewMonitor creates a monitor for one provider. A non-positive
// failureThreshold falls back to [DefaultFailureThreshold].
func NewMonitor(cfg ProviderConfig, client *Client, b *bus.Bus, st store.Store, failureThreshold int, logger *slog.Logger) *Monitor {
	if failureThreshold <= 0 {
		failureThreshold = DefaultFailureThreshold
	}
	return &Monitor{
		cfg:              cfg,
		client:           client,
		bus:              b,
		store:            st,
		logger:           logger.With("provider", cfg.Name),
		failureThreshold: failureThreshold,
		state:            status.NewState(cfg.Name),
	}
}

// Run polls the provider until ctx is cancelled. The first poll is
// immediate; each subsequent cycle is scheduled after the configured
// interval jittered by up to ±10%. Cancellation is observed at the
// timer and inside the in-flight request, so Run exits promptly.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("monitor started",
		"url", m.cfg.IncidentsURL(),
		"interval", m.cfg.PollInterval.String(),
	)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopped")
			return
		case <-timer.C:
			m.tick(ctx)
			timer.Reset(m.jittered())
		}
	}
}

// jittered returns the next sleep: the nominal interval spread
// uniformly by ±jitterFraction.
func (m *Monitor) jittered() time.Duration {
	spread := (rand.Float64()*2 - 1) * jitterFraction
	return time.Duration(float64(m.cfg.PollInterval) * (1 + spread))
}

// tick runs one poll cycle: conditional fetch, parse, digest dedup,
// normalize, publish.
func (m *Monitor) tick(ctx context.Context) {
	now := time.Now().UTC()

	resp := m.client.Fetch(ctx, m.cfg.IncidentsURL(), m.validators, m.cfg.Timeout)
	if resp.Error != nil {
		m.fail(now, resp.Error)
		return
	}

	if resp.NotModified {
		m.failures = 0
		m.refreshValidators(resp)
		metrics.PollTotal.WithLabelValues(m.cfg.Name, "not_modified").Inc()
		m.logger.Debug("not modified", "latency", resp.Latency.String())
		m.publishSummary(now)
		return
	}

	incidents, err := status.ParseIncidents(resp.Body, m.logger)
	if err != nil {
		// validators deliberately not advanced: the next cycle must
		// retry a full fetch of the same resource
		m.fail(now, err)
		return
	}

	m.failures = 0
	m.refreshValidators(resp)

	digest := status.Digest(incidents)
	if digest == m.lastHash {
		metrics.PollTotal.WithLabelValues(m.cfg.Name, "unchanged").Inc()
		m.logger.Debug("content unchanged", "latency", resp.Latency.String())
		m.publishSummary(now)
		return
	}
	m.lastHash = digest

	events := m.state.Apply(incidents, now)
	for _, ev := range events {
		m.bus.Publish(ev)
		m.logger.Info("status event",
			"kind", string(ev.Kind),
			"status", ev.Status.String(),
			"active_incidents", len(ev.Incidents),
		)
	}

	metrics.PollTotal.WithLabelValues(m.cfg.Name, "changed").Inc()
	metrics.ProviderStatus.WithLabelValues(m.cfg.Name).Set(float64(m.state.Current))

	m.refreshDescription(ctx)
	m.publishSummary(now)
}

// fail records one failed cycle. Crossing the consecutive-failure
// threshold publishes a single status_changed event to unknown;
// staying failed afterwards publishes nothing further.
func (m *Monitor) fail(now time.Time, err error) {
	m.failures++
	metrics.PollTotal.WithLabelValues(m.cfg.Name, "error").Inc()
	m.logger.Error("poll failed",
		"error", err,
		"consecutive", m.failures,
		"threshold", m.failureThreshold,
	)

	if m.failures != m.failureThreshold {
		return
	}
	if ev, changed := m.state.MarkUnknown(now); changed {
		// drop the dedup state: the first healthy poll must refetch in
		// full and re-derive the status, even when the payload is
		// byte-identical to the pre-outage one
		m.lastHash = ""
		m.validators = Validators{}
		m.bus.Publish(ev)
		metrics.ProviderStatus.WithLabelValues(m.cfg.Name).Set(float64(status.StatusUnknown))
		m.publishSummary(now)
	}
}

// refreshValidators records the latest conditional-request tokens.
// Absent headers clear the stored value so a provider that stops
// sending a validator is not polled with a stale one forever.
func (m *Monitor) refreshValidators(resp Response) {
	m.validators = Validators{
		ETag:         resp.ETag,
		LastModified: resp.LastModified,
	}
}

// refreshDescription fetches the provider's own status line on a
// best-effort basis. Failures are logged and ignored; they touch
// neither validators nor the failure counter.
func (m *Monitor) refreshDescription(ctx context.Context) {
	resp := m.client.Fetch(ctx, m.cfg.SummaryURL(), Validators{}, m.cfg.Timeout)
	if resp.Error != nil {
		m.logger.Debug("summary fetch failed", "error", resp.Error)
		return
	}
	summary, err := status.ParseSummary(resp.Body)
	if err != nil {
		m.logger.Debug("summary parse failed", "error", err)
		return
	}
	m.description = summary.Description
}

// publishSummary writes the current state to the store as a copy.
func (m *Monitor) publishSummary(now time.Time) {
	m.store.Update(store.Summary{
		Provider:        m.cfg.Name,
		Status:          m.state.Current,
		Description:     m.description,
		ActiveIncidents: m.state.ActiveIncidents(),
		LastChecked:     now,
	})
}
