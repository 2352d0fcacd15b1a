// Package status defines the canonical provider status model and the
// pure normalization step that turns freshly parsed status-page payloads
// into change events.
//
// The package performs no I/O. The poller feeds it parsed payloads; it
// returns an updated provider state plus the events the change implies,
// in the order subscribers should observe them.
package status

import (
	"encoding/json"
	"fmt"
)

// Status is the canonical rolled-up status of a provider.
//
// It is always derived from the provider's active incident set (see
// [State.Apply]); it is never set directly, with the single exception of
// the unknown transition after sustained fetch failures, which the
// poller owns.
type Status int

const (
	StatusUnknown Status = iota
	StatusOperational
	StatusDegraded
	StatusPartialOutage
	StatusMajorOutage
)

// String returns the wire representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOperational:
		return "operational"
	case StatusDegraded:
		return "degraded"
	case StatusPartialOutage:
		return "partial_outage"
	case StatusMajorOutage:
		return "major_outage"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the status as its wire string.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a wire string into a Status.
// Unrecognized values decode to StatusUnknown rather than erroring,
// since third-party payloads grow vocabulary without notice.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	*s = ParseStatus(raw)
	return nil
}

// ParseStatus maps a wire string to a Status, defaulting to unknown.
func ParseStatus(s string) Status {
	switch s {
	case "operational":
		return StatusOperational
	case "degraded", "degraded_performance":
		return StatusDegraded
	case "partial_outage":
		return StatusPartialOutage
	case "major_outage":
		return StatusMajorOutage
	default:
		return StatusUnknown
	}
}

// Impact is the severity of an incident, ordered from least to most
// severe. The ordering is load-bearing: the rolled-up provider status
// is the maximum impact across active incidents.
type Impact int

const (
	ImpactNone Impact = iota
	ImpactMinor
	ImpactMajor
	ImpactCritical
)

// String returns the wire representation of the impact.
func (i Impact) String() string {
	switch i {
	case ImpactMinor:
		return "minor"
	case ImpactMajor:
		return "major"
	case ImpactCritical:
		return "critical"
	default:
		return "none"
	}
}

// MarshalJSON encodes the impact as its wire string.
func (i Impact) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON decodes a wire string, defaulting to ImpactNone.
func (i *Impact) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("impact: %w", err)
	}
	*i = ParseImpact(raw)
	return nil
}

// ParseImpact maps a wire string to an Impact, defaulting to none.
// Unknown severities from a provider are treated as none rather than
// guessed upward.
func ParseImpact(s string) Impact {
	switch s {
	case "minor":
		return ImpactMinor
	case "major":
		return ImpactMajor
	case "critical":
		return ImpactCritical
	default:
		return ImpactNone
	}
}

// StatusFor maps an impact to the canonical provider status it implies
// when it is the most severe active incident.
func (i Impact) StatusFor() Status {
	switch i {
	case ImpactMinor:
		return StatusDegraded
	case ImpactMajor:
		return StatusPartialOutage
	case ImpactCritical:
		return StatusMajorOutage
	default:
		return StatusOperational
	}
}

// IncidentStatus is the lifecycle stage of a single incident.
type IncidentStatus string

const (
	IncidentInvestigating IncidentStatus = "investigating"
	IncidentIdentified    IncidentStatus = "identified"
	IncidentMonitoring    IncidentStatus = "monitoring"
	IncidentResolved      IncidentStatus = "resolved"
)

// ParseIncidentStatus maps a wire string to an IncidentStatus.
// "postmortem" collapses into resolved; anything unrecognized becomes
// investigating, the most conservative open stage.
func ParseIncidentStatus(s string) IncidentStatus {
	switch IncidentStatus(s) {
	case IncidentInvestigating, IncidentIdentified, IncidentMonitoring, IncidentResolved:
		return IncidentStatus(s)
	}
	if s == "postmortem" {
		return IncidentResolved
	}
	return IncidentInvestigating
}
