// Package bot – heartbeat.go periodically logs channel health, audience
// counts and the trigger count on a cron schedule.
package bot

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jholhewres/autoresponder/pkg/autoresponder/channels"
	"github.com/jholhewres/autoresponder/pkg/autoresponder/triggers"
	"github.com/robfig/cron/v3"
)

// Heartbeat runs the health log job.
type Heartbeat struct {
	schedule string
	channels *channels.Manager
	store    *triggers.Store
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	beats   int
	running bool
}

// NewHeartbeat creates a heartbeat for the given cron schedule.
func NewHeartbeat(schedule string, mgr *channels.Manager, store *triggers.Store, logger *slog.Logger) *Heartbeat {
	return &Heartbeat{
		schedule: schedule,
		channels: mgr,
		store:    store,
		logger:   logger.With("component", "heartbeat"),
	}
}

// Start registers the job and starts the cron scheduler. An invalid
// schedule is returned as an error.
func (h *Heartbeat) Start() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return nil
	}

	c := cron.New(cron.WithParser(cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	if _, err := c.AddFunc(h.schedule, h.Beat); err != nil {
		return fmt.Errorf("invalid heartbeat schedule %q: %w", h.schedule, err)
	}
	c.Start()

	h.cron = c
	h.running = true
	h.logger.Info("heartbeat started", "schedule", h.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running beat to finish.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	c := h.cron
	h.mu.Unlock()

	<-c.Stop().Done()
	h.logger.Info("heartbeat stopped")
}

// Beat logs one health report.
func (h *Heartbeat) Beat() {
	h.mu.Lock()
	h.beats++
	beat := h.beats
	h.mu.Unlock()

	stats, total := h.channels.StatsAll()
	attrs := []any{"beat", beat, "triggers", h.store.Snapshot().Len(), "guilds", total.Guilds, "users", total.Users}
	for name, st := range h.channels.HealthAll() {
		group := []any{
			"connected", st.Connected,
			"latency_ms", st.LatencyMs,
			"errors", st.ErrorCount,
		}
		if cs, ok := stats[name]; ok {
			group = append(group, "guilds", cs.Guilds, "users", cs.Users)
		}
		attrs = append(attrs, slog.Group(name, group...))
	}
	h.logger.Info("heartbeat", attrs...)
}

// Beats returns how many reports have been logged.
func (h *Heartbeat) Beats() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.beats
}
