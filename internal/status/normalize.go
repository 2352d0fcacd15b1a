package status

import (
	"sort"
	"time"
)

// State tracks everything known about one provider between polls.
//
// A State is owned exclusively by the poll goroutine of its provider
// and must never be shared; everything that leaves it (events, store
// summaries) is a copy.
type State struct {
	// Provider is the configured provider name.
	Provider string

	// Current is the rolled-up status, derived from the active
	// incident set on every Apply.
	Current Status

	// active holds open incidents keyed by provider-assigned id.
	active map[string]Incident

	// missing holds ids of active incidents that were absent from the
	// latest payload without being marked resolved. A second
	// consecutive absence resolves them; reappearance clears the mark.
	missing map[string]struct{}

	// resolving remembers incidents whose resolution was just
	// observed. The value flips to true after one confirming cycle,
	// at which point the entry is forgotten. An incident that
	// reappears unresolved within the window is restored without an
	// incident_opened, suppressing resolve/reopen flapping.
	resolving map[string]bool
}

// NewState returns an empty state for the named provider. A provider
// with no known incidents is reported operational until polling says
// otherwise; the poller overrides this to unknown on sustained failure.
func NewState(provider string) *State {
	return &State{
		Provider:  provider,
		Current:   StatusOperational,
		active:    make(map[string]Incident),
		missing:   make(map[string]struct{}),
		resolving: make(map[string]bool),
	}
}

// ActiveIncidents returns a sorted copy of the open incident set,
// oldest first (ties broken by id for determinism).
func (s *State) ActiveIncidents() []Incident {
	out := make([]Incident, 0, len(s.active))
	for _, inc := range s.active {
		out = append(out, inc.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// MarkUnknown forces the rolled-up status to unknown, returning a
// status_changed event and true if the status actually changed. The
// poller calls this after sustained fetch failures; it is the only
// path that sets Current independently of the incident set.
func (s *State) MarkUnknown(now time.Time) (Event, bool) {
	if s.Current == StatusUnknown {
		return Event{}, false
	}
	s.Current = StatusUnknown
	return newEvent(EventStatusChanged, s, nil, now), true
}

// Apply diffs a freshly parsed incident list against the tracked state,
// mutates the state accordingly, and returns the events the change
// implies. It performs no I/O and never touches anything outside s.
//
// Event ordering within one cycle is opened, then updated, then
// resolved, then status_changed, so subscribers observe incident
// detail before the rolled-up status. All events from one cycle carry
// the state snapshot as of the end of the cycle.
func (s *State) Apply(incidents []Incident, now time.Time) []Event {
	var opened, updated, resolved []Incident

	seen := make(map[string]struct{}, len(incidents))
	for _, p := range incidents {
		if _, dup := seen[p.ID]; dup {
			continue
		}
		seen[p.ID] = struct{}{}
		delete(s.missing, p.ID)

		if p.Resolved() {
			if tracked, ok := s.active[p.ID]; ok {
				merged := p
				if merged.ResolvedAt == nil {
					t := now
					merged.ResolvedAt = &t
				}
				if merged.Title == "" {
					merged.Title = tracked.Title
				}
				delete(s.active, p.ID)
				s.resolving[p.ID] = false
				resolved = append(resolved, merged)
			}
			// resolved incidents never tracked are not reported;
			// a feed replaying history must not open ghosts
			continue
		}

		if tracked, ok := s.active[p.ID]; ok {
			s.active[p.ID] = p
			if incidentChanged(tracked, p) {
				updated = append(updated, p)
			}
			continue
		}

		if _, pending := s.resolving[p.ID]; pending {
			// resolution flapped back within the confirmation
			// window: restore silently as an update, not a reopen
			delete(s.resolving, p.ID)
			s.active[p.ID] = p
			updated = append(updated, p)
			continue
		}

		s.active[p.ID] = p
		opened = append(opened, p)
	}

	// silent disappearance: hold one cycle, resolve on the second
	var gone []string
	for id := range s.active {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, held := s.missing[id]; held {
			gone = append(gone, id)
		} else {
			s.missing[id] = struct{}{}
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		inc := s.active[id]
		t := now
		inc.ResolvedAt = &t
		inc.Status = IncidentResolved
		delete(s.active, id)
		delete(s.missing, id)
		s.resolving[id] = false
		resolved = append(resolved, inc)
	}

	// age out confirmed resolutions
	for id, aged := range s.resolving {
		if aged {
			delete(s.resolving, id)
		} else {
			s.resolving[id] = true
		}
	}

	prev := s.Current
	s.Current = s.derive()

	events := make([]Event, 0, len(opened)+len(updated)+len(resolved)+1)
	for i := range opened {
		events = append(events, newEvent(EventIncidentOpened, s, &opened[i], now))
	}
	for i := range updated {
		events = append(events, newEvent(EventIncidentUpdated, s, &updated[i], now))
	}
	for i := range resolved {
		events = append(events, newEvent(EventIncidentResolved, s, &resolved[i], now))
	}
	if s.Current != prev {
		events = append(events, newEvent(EventStatusChanged, s, nil, now))
	}
	return events
}

// derive computes the rolled-up status as the maximum-severity impact
// across open incidents, or operational when none remain.
func (s *State) derive() Status {
	max := ImpactNone
	for _, inc := range s.active {
		if inc.Impact > max {
			max = inc.Impact
		}
	}
	return max.StatusFor()
}

// incidentChanged reports whether a tracked incident differs from its
// latest payload copy in a way subscribers care about: lifecycle stage,
// severity, or a new timeline entry.
func incidentChanged(old, new Incident) bool {
	return old.Status != new.Status ||
		old.Impact != new.Impact ||
		old.latestUpdateID() != new.latestUpdateID()
}
