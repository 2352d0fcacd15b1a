package status

import (
	"time"

	"github.com/google/uuid"
)

// EventKind classifies a published status event.
type EventKind string

const (
	// EventStatusChanged reports a change of the rolled-up provider
	// status. Emitted after any incident-level events from the same
	// poll cycle.
	EventStatusChanged EventKind = "status_changed"

	// EventIncidentOpened reports a newly observed incident.
	EventIncidentOpened EventKind = "incident_opened"

	// EventIncidentUpdated reports a change of status, impact, or
	// timeline within a tracked incident.
	EventIncidentUpdated EventKind = "incident_updated"

	// EventIncidentResolved reports that a tracked incident was
	// resolved or disappeared from the provider's feed.
	EventIncidentResolved EventKind = "incident_resolved"
)

// Event is an immutable value published on the bus whenever a
// provider's canonical state changes. Events are never mutated after
// construction; the bus and all subscribers share read-only access.
type Event struct {
	// ID uniquely identifies the event (used as the SSE event id).
	ID string `json:"id"`

	// Provider is the name of the provider the event concerns.
	Provider string `json:"provider"`

	// Kind classifies the change.
	Kind EventKind `json:"kind"`

	// Status is the provider's rolled-up status at publish time.
	Status Status `json:"status"`

	// Incident is the subject of incident-level events; nil for
	// status_changed.
	Incident *Incident `json:"incident,omitempty"`

	// Incidents is a copy of the provider's active incident set at
	// publish time.
	Incidents []Incident `json:"incidents"`

	// Timestamp is when the change was detected.
	Timestamp time.Time `json:"timestamp"`
}

// newEvent builds an event snapshotting the given state. The incident
// argument, when non-nil, is cloned so the event stays immutable.
func newEvent(kind EventKind, st *State, inc *Incident, now time.Time) Event {
	ev := Event{
		ID:        uuid.NewString(),
		Provider:  st.Provider,
		Kind:      kind,
		Status:    st.Current,
		Incidents: st.ActiveIncidents(),
		Timestamp: now,
	}
	if inc != nil {
		c := inc.Clone()
		ev.Incident = &c
	}
	return ev
}
