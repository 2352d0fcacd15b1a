package status

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// rawIncident mirrors the statuspage.io incidents.json entry shape.
// Timestamps are kept as strings until parsed so one malformed field
// skips a single incident instead of failing the whole payload.
type rawIncident struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Status          string      `json:"status"`
	Impact          string      `json:"impact"`
	CreatedAt       string      `json:"created_at"`
	ResolvedAt      string      `json:"resolved_at"`
	IncidentUpdates []rawUpdate `json:"incident_updates"`
}

type rawUpdate struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// ParseIncidents decodes an incidents.json payload into a normalized
// incident list, payload order preserved.
//
// Parsing is tolerant at the incident level: an entry missing its id or
// a usable created_at is logged and skipped, and unrecognized enum
// strings fall back to conservative defaults. A body that is not the
// expected JSON document at all is an error, so the caller can treat
// it like a failed fetch.
func ParseIncidents(body []byte, logger *slog.Logger) ([]Incident, error) {
	var doc struct {
		Incidents []rawIncident `json:"incidents"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode incidents payload: %w", err)
	}

	out := make([]Incident, 0, len(doc.Incidents))
	for _, raw := range doc.Incidents {
		if raw.ID == "" {
			logger.Warn("skipping incident with no id", "title", raw.Name)
			continue
		}
		started, err := parseTime(raw.CreatedAt)
		if err != nil {
			logger.Warn("skipping incident with bad created_at",
				"incident", raw.ID,
				"created_at", raw.CreatedAt,
			)
			continue
		}

		inc := Incident{
			ID:        raw.ID,
			Title:     raw.Name,
			Impact:    ParseImpact(raw.Impact),
			Status:    ParseIncidentStatus(raw.Status),
			StartedAt: started,
		}
		if raw.ResolvedAt != "" {
			if t, err := parseTime(raw.ResolvedAt); err == nil {
				inc.ResolvedAt = &t
			}
		}
		for _, u := range raw.IncidentUpdates {
			if u.ID == "" {
				continue
			}
			created, err := parseTime(u.CreatedAt)
			if err != nil {
				continue
			}
			inc.Updates = append(inc.Updates, TimelineUpdate{
				ID:        u.ID,
				Status:    ParseIncidentStatus(u.Status),
				Body:      u.Body,
				CreatedAt: created,
			})
		}
		// providers list updates newest first; we keep oldest first
		sort.Slice(inc.Updates, func(i, j int) bool {
			return inc.Updates[i].CreatedAt.Before(inc.Updates[j].CreatedAt)
		})
		out = append(out, inc)
	}
	return out, nil
}

// PageSummary is the top-level status line from a provider's summary.json.
type PageSummary struct {
	// Indicator is the provider's own severity indicator string.
	Indicator string

	// Description is the human-readable status line, e.g.
	// "All Systems Operational".
	Description string
}

// ParseSummary decodes a summary.json payload's status block.
func ParseSummary(body []byte) (PageSummary, error) {
	var doc struct {
		Status struct {
			Indicator   string `json:"indicator"`
			Description string `json:"description"`
		} `json:"status"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return PageSummary{}, fmt.Errorf("decode summary payload: %w", err)
	}
	return PageSummary{
		Indicator:   doc.Status.Indicator,
		Description: doc.Status.Description,
	}, nil
}

// Digest computes a content hash over the semantically relevant fields
// of a parsed incident list: ids, lifecycle stages, severities,
// resolution times, and latest timeline entries, in id order.
//
// Hashing the parsed form rather than the raw body makes the dedup
// immune to cosmetic payload churn (field reordering, server-side
// timestamps), which matters for providers whose conditional-request
// support is broken.
func Digest(incidents []Incident) string {
	lines := make([]string, 0, len(incidents))
	for _, inc := range incidents {
		resolved := ""
		if inc.ResolvedAt != nil {
			resolved = inc.ResolvedAt.UTC().Format(time.RFC3339)
		}
		lines = append(lines, strings.Join([]string{
			inc.ID,
			string(inc.Status),
			inc.Impact.String(),
			resolved,
			inc.latestUpdateID(),
		}, "\x1f"))
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// parseTime accepts the RFC3339 variants seen in the wild on status
// pages (with and without sub-second precision or numeric offsets).
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.999-0700"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
