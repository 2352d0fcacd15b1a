package status

import (
	"testing"
	"time"
)

var t0 = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func openIncident(id string, impact Impact) Incident {
	return Incident{
		ID:        id,
		Title:     "incident " + id,
		Impact:    impact,
		Status:    IncidentInvestigating,
		StartedAt: t0,
	}
}

func resolvedIncident(id string, impact Impact) Incident {
	inc := openIncident(id, impact)
	inc.Status = IncidentResolved
	t := t0.Add(time.Hour)
	inc.ResolvedAt = &t
	return inc
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, len(events))
	for i, ev := range events {
		out[i] = ev.Kind
	}
	return out
}

func TestApply_NewIncidentEmitsOpenedThenStatusChanged(t *testing.T) {
	st := NewState("github")

	events := st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0)

	if len(events) != 2 {
		t.Fatalf("Apply() = %d events, want 2 (%v)", len(events), kinds(events))
	}
	if events[0].Kind != EventIncidentOpened {
		t.Errorf("events[0].Kind = %v, want %v", events[0].Kind, EventIncidentOpened)
	}
	if events[0].Incident == nil || events[0].Incident.ID != "i1" {
		t.Errorf("events[0].Incident = %+v, want i1", events[0].Incident)
	}
	if events[1].Kind != EventStatusChanged {
		t.Errorf("events[1].Kind = %v, want %v", events[1].Kind, EventStatusChanged)
	}
	if events[1].Status != StatusMajorOutage {
		t.Errorf("events[1].Status = %v, want %v", events[1].Status, StatusMajorOutage)
	}
	if st.Current != StatusMajorOutage {
		t.Errorf("Current = %v, want %v", st.Current, StatusMajorOutage)
	}
}

func TestApply_ResolutionEmitsResolvedThenStatusChanged(t *testing.T) {
	st := NewState("github")
	st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0)

	events := st.Apply([]Incident{resolvedIncident("i1", ImpactCritical)}, t0.Add(time.Minute))

	if len(events) != 2 {
		t.Fatalf("Apply() = %d events, want 2 (%v)", len(events), kinds(events))
	}
	if events[0].Kind != EventIncidentResolved {
		t.Errorf("events[0].Kind = %v, want %v", events[0].Kind, EventIncidentResolved)
	}
	if events[1].Kind != EventStatusChanged {
		t.Errorf("events[1].Kind = %v, want %v", events[1].Kind, EventStatusChanged)
	}
	if events[1].Status != StatusOperational {
		t.Errorf("events[1].Status = %v, want %v", events[1].Status, StatusOperational)
	}
	if len(st.ActiveIncidents()) != 0 {
		t.Errorf("ActiveIncidents() = %v, want empty", st.ActiveIncidents())
	}
}

func TestApply_IdenticalPayloadEmitsNothing(t *testing.T) {
	st := NewState("github")
	payload := []Incident{openIncident("i1", ImpactMinor), openIncident("i2", ImpactMajor)}

	st.Apply(payload, t0)
	events := st.Apply(payload, t0.Add(time.Minute))

	if len(events) != 0 {
		t.Errorf("Apply() on identical payload = %v, want no events", kinds(events))
	}
	if st.Current != StatusPartialOutage {
		t.Errorf("Current = %v, want %v", st.Current, StatusPartialOutage)
	}
}

func TestApply_StatusIsMaxSeverityAcrossIncidents(t *testing.T) {
	tests := []struct {
		name    string
		impacts []Impact
		want    Status
	}{
		{"no incidents", nil, StatusOperational},
		{"single none", []Impact{ImpactNone}, StatusOperational},
		{"single minor", []Impact{ImpactMinor}, StatusDegraded},
		{"minor and major", []Impact{ImpactMinor, ImpactMajor}, StatusPartialOutage},
		{"critical wins", []Impact{ImpactMinor, ImpactCritical, ImpactMajor}, StatusMajorOutage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState("p")
			payload := make([]Incident, 0, len(tt.impacts))
			for i, impact := range tt.impacts {
				payload = append(payload, openIncident(string(rune('a'+i)), impact))
			}
			st.Apply(payload, t0)
			if st.Current != tt.want {
				t.Errorf("Current = %v, want %v", st.Current, tt.want)
			}
		})
	}
}

func TestApply_ImpactChangeEmitsUpdated(t *testing.T) {
	st := NewState("github")
	st.Apply([]Incident{openIncident("i1", ImpactMinor)}, t0)

	escalated := openIncident("i1", ImpactCritical)
	events := st.Apply([]Incident{escalated}, t0.Add(time.Minute))

	if len(events) != 2 {
		t.Fatalf("Apply() = %d events, want 2 (%v)", len(events), kinds(events))
	}
	if events[0].Kind != EventIncidentUpdated {
		t.Errorf("events[0].Kind = %v, want %v", events[0].Kind, EventIncidentUpdated)
	}
	if events[1].Kind != EventStatusChanged {
		t.Errorf("events[1].Kind = %v, want %v", events[1].Kind, EventStatusChanged)
	}
}

func TestApply_NewTimelineEntryEmitsUpdated(t *testing.T) {
	st := NewState("github")
	inc := openIncident("i1", ImpactMinor)
	inc.Updates = []TimelineUpdate{{ID: "u1", Status: IncidentInvestigating, CreatedAt: t0}}
	st.Apply([]Incident{inc}, t0)

	inc2 := inc.Clone()
	inc2.Updates = append(inc2.Updates, TimelineUpdate{
		ID: "u2", Status: IncidentIdentified, CreatedAt: t0.Add(time.Minute),
	})
	events := st.Apply([]Incident{inc2}, t0.Add(time.Minute))

	if len(events) != 1 || events[0].Kind != EventIncidentUpdated {
		t.Errorf("Apply() = %v, want single incident_updated", kinds(events))
	}
}

func TestApply_SilentDisappearanceHeldOneCycle(t *testing.T) {
	st := NewState("github")
	st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0)

	// first absence: no events, incident still active and still
	// driving the rolled-up status
	events := st.Apply(nil, t0.Add(time.Minute))
	if len(events) != 0 {
		t.Fatalf("first absence: Apply() = %v, want no events", kinds(events))
	}
	if st.Current != StatusMajorOutage {
		t.Errorf("first absence: Current = %v, want %v", st.Current, StatusMajorOutage)
	}

	// second absence confirms: resolved + status change
	events = st.Apply(nil, t0.Add(2*time.Minute))
	if len(events) != 2 {
		t.Fatalf("second absence: Apply() = %v, want resolved + status_changed", kinds(events))
	}
	if events[0].Kind != EventIncidentResolved {
		t.Errorf("events[0].Kind = %v, want %v", events[0].Kind, EventIncidentResolved)
	}
	if events[0].Incident.ResolvedAt == nil {
		t.Error("resolved incident has nil ResolvedAt")
	}
	if events[1].Status != StatusOperational {
		t.Errorf("events[1].Status = %v, want %v", events[1].Status, StatusOperational)
	}
}

func TestApply_ReappearanceCancelsDisappearance(t *testing.T) {
	st := NewState("github")
	st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0)

	st.Apply(nil, t0.Add(time.Minute))
	events := st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0.Add(2*time.Minute))

	if len(events) != 0 {
		t.Errorf("reappearance: Apply() = %v, want no events", kinds(events))
	}
	if len(st.ActiveIncidents()) != 1 {
		t.Errorf("ActiveIncidents() = %d, want 1", len(st.ActiveIncidents()))
	}
}

func TestApply_ResolveFlapbackIsUpdateNotReopen(t *testing.T) {
	st := NewState("github")
	st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0)
	st.Apply([]Incident{resolvedIncident("i1", ImpactCritical)}, t0.Add(time.Minute))

	// the provider flips the incident back to open within the
	// confirmation window
	events := st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0.Add(2*time.Minute))

	var sawOpened bool
	var sawUpdated bool
	for _, ev := range events {
		switch ev.Kind {
		case EventIncidentOpened:
			sawOpened = true
		case EventIncidentUpdated:
			sawUpdated = true
		}
	}
	if sawOpened {
		t.Errorf("flapback emitted incident_opened: %v", kinds(events))
	}
	if !sawUpdated {
		t.Errorf("flapback did not emit incident_updated: %v", kinds(events))
	}
}

func TestApply_ResolvedNeverTrackedIsIgnored(t *testing.T) {
	st := NewState("github")

	// a feed replaying resolved history must not open ghosts
	events := st.Apply([]Incident{resolvedIncident("old", ImpactCritical)}, t0)

	if len(events) != 0 {
		t.Errorf("Apply() = %v, want no events", kinds(events))
	}
}

func TestApply_EventOrderingWithinCycle(t *testing.T) {
	st := NewState("github")
	st.Apply([]Incident{
		openIncident("a", ImpactMinor),
		openIncident("b", ImpactMinor),
	}, t0)

	// one cycle triggering an open, an update, and a resolve at once
	payload := []Incident{
		resolvedIncident("a", ImpactMinor),
		openIncident("b", ImpactCritical), // escalated
		openIncident("c", ImpactMinor),    // new
	}
	events := st.Apply(payload, t0.Add(time.Minute))

	want := []EventKind{EventIncidentOpened, EventIncidentUpdated, EventIncidentResolved, EventStatusChanged}
	got := kinds(events)
	if len(got) != len(want) {
		t.Fatalf("Apply() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("events[%d].Kind = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestMarkUnknown_EmitsOnce(t *testing.T) {
	st := NewState("github")

	ev, changed := st.MarkUnknown(t0)
	if !changed {
		t.Fatal("MarkUnknown() changed = false, want true")
	}
	if ev.Kind != EventStatusChanged || ev.Status != StatusUnknown {
		t.Errorf("MarkUnknown() event = %v/%v, want status_changed/unknown", ev.Kind, ev.Status)
	}

	if _, changed := st.MarkUnknown(t0.Add(time.Minute)); changed {
		t.Error("second MarkUnknown() changed = true, want false")
	}
}

func TestApply_RecoveryFromUnknownEmitsStatusChanged(t *testing.T) {
	st := NewState("github")
	st.MarkUnknown(t0)

	events := st.Apply(nil, t0.Add(time.Minute))

	if len(events) != 1 || events[0].Kind != EventStatusChanged {
		t.Fatalf("Apply() after unknown = %v, want single status_changed", kinds(events))
	}
	if events[0].Status != StatusOperational {
		t.Errorf("recovered status = %v, want %v", events[0].Status, StatusOperational)
	}
}

func TestApply_EventSnapshotIsACopy(t *testing.T) {
	st := NewState("github")
	events := st.Apply([]Incident{openIncident("i1", ImpactCritical)}, t0)

	// mutating the state afterwards must not be visible in the event
	st.Apply([]Incident{resolvedIncident("i1", ImpactCritical)}, t0.Add(time.Minute))

	if len(events[0].Incidents) != 1 || events[0].Incidents[0].ID != "i1" {
		t.Errorf("event snapshot changed after later Apply: %+v", events[0].Incidents)
	}
}
