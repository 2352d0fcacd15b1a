// Package console renders status events to a terminal.
//
// The renderer is an ordinary bus subscriber: it holds its own bounded
// queue and follows the same unsubscribe-on-cancel discipline as the
// SSE gateway, so it can fall behind without affecting pollers or
// other consumers.
package console

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/statuswatch/statuswatch/internal/bus"
	"github.com/statuswatch/statuswatch/internal/status"
)

var (
	styleOperational = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleDegraded    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	stylePartial     = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)
	styleMajor       = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleUnknown     = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Bold(true)

	styleProvider = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	styleKind     = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// statusStyle picks the color for a rolled-up status.
func statusStyle(s status.Status) lipgloss.Style {
	switch s {
	case status.StatusOperational:
		return styleOperational
	case status.StatusDegraded:
		return styleDegraded
	case status.StatusPartialOutage:
		return stylePartial
	case status.StatusMajorOutage:
		return styleMajor
	default:
		return styleUnknown
	}
}

// Renderer subscribes to the bus and pretty-prints each event.
type Renderer struct {
	bus    *bus.Bus
	out    io.Writer
	logger *slog.Logger
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(b *bus.Bus, out io.Writer, logger *slog.Logger) *Renderer {
	return &Renderer{
		bus:    b,
		out:    out,
		logger: logger,
	}
}

// Run consumes events until ctx is cancelled, then unsubscribes and
// returns. Always returns nil.
func (r *Renderer) Run(ctx context.Context) error {
	sub := r.bus.Subscribe()
	defer r.bus.Unsubscribe(sub.ID)

	for {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			fmt.Fprintln(r.out, r.render(ev))
		case <-ctx.Done():
			return nil
		}
	}
}

// render formats one event as a single styled line.
func (r *Renderer) render(ev status.Event) string {
	line := fmt.Sprintf("%s %s %s %s",
		styleDim.Render(ev.Timestamp.Local().Format(time.TimeOnly)),
		styleProvider.Render(ev.Provider),
		styleKind.Render(string(ev.Kind)),
		statusStyle(ev.Status).Render(ev.Status.String()),
	)
	if ev.Incident != nil {
		line += " " + ev.Incident.Title +
			styleDim.Render(fmt.Sprintf(" [%s/%s]", ev.Incident.Impact, ev.Incident.Status))
	}
	return line
}
