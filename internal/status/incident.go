package status

import "time"

// TimelineUpdate is one entry in an incident's update timeline, as
// reported by the provider.
type TimelineUpdate struct {
	// ID is the provider-assigned id of the timeline entry.
	ID string `json:"id"`

	// Status is the incident lifecycle stage announced by this entry.
	Status IncidentStatus `json:"status"`

	// Body is the human-readable update text.
	Body string `json:"body,omitempty"`

	// CreatedAt is when the provider posted the entry.
	CreatedAt time.Time `json:"created_at"`
}

// Incident is one provider-reported incident.
//
// Incidents are value types; the normalizer and every event carry
// copies, never shared pointers, so a published event can never observe
// later mutation.
type Incident struct {
	// ID is the provider-assigned opaque identifier. Incidents are
	// matched across polls by this id alone.
	ID string `json:"id"`

	// Title is the provider's display name for the incident.
	Title string `json:"title"`

	// Impact is the severity bucket reported by the provider.
	Impact Impact `json:"impact"`

	// Status is the current lifecycle stage.
	Status IncidentStatus `json:"status"`

	// StartedAt is when the provider opened the incident.
	StartedAt time.Time `json:"started_at"`

	// ResolvedAt is set once the provider reports resolution.
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`

	// Updates is the incident's timeline, oldest first.
	Updates []TimelineUpdate `json:"updates,omitempty"`
}

// Resolved reports whether the provider considers the incident closed.
func (in Incident) Resolved() bool {
	return in.Status == IncidentResolved || in.ResolvedAt != nil
}

// Clone returns a deep copy of the incident, safe to embed in an
// immutable event while the tracked original keeps changing.
func (in Incident) Clone() Incident {
	out := in
	if in.ResolvedAt != nil {
		t := *in.ResolvedAt
		out.ResolvedAt = &t
	}
	if len(in.Updates) > 0 {
		out.Updates = make([]TimelineUpdate, len(in.Updates))
		copy(out.Updates, in.Updates)
	}
	return out
}

// latestUpdateID returns the id of the newest timeline entry, or "".
// Timeline entries arrive oldest first from the parser.
func (in Incident) latestUpdateID() string {
	if len(in.Updates) == 0 {
		return ""
	}
	return in.Updates[len(in.Updates)-1].ID
}
