package store

import (
	"time"

	"github.com/statuswatch/statuswatch/internal/status"
)

// Summary is the latest known state of one provider, shaped for JSON
// serialization by the REST API.
//
// Summaries are copies written by the provider's poll goroutine; the
// live tracking state never leaves that goroutine.
type Summary struct {
	// Provider is the configured provider name.
	Provider string `json:"provider"`

	// Status is the rolled-up provider status.
	Status status.Status `json:"status"`

	// Description is the provider's own status line from its summary
	// feed, when available (e.g. "All Systems Operational").
	Description string `json:"description,omitempty"`

	// ActiveIncidents is the open incident set, oldest first.
	ActiveIncidents []status.Incident `json:"active_incidents"`

	// LastChecked is when the summary was last refreshed.
	LastChecked time.Time `json:"last_checked"`
}

// Store is the synchronous read surface over per-provider summaries.
//
// Implementations must be safe for concurrent access: poll goroutines
// write, request handlers read.
type Store interface {
	// Update stores a provider summary, keyed by Summary.Provider.
	Update(s Summary)

	// Get returns the summary for one provider, if present.
	Get(provider string) (Summary, bool)

	// GetAll returns a snapshot of all provider summaries, sorted by
	// provider name. Modifying the result does not affect the store.
	GetAll() []Summary
}
