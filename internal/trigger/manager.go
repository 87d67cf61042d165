// Package trigger runs the cron schedules of activated trigger nodes.
package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"

	"callflow/backend/internal/logging"
	"callflow/backend/internal/metrics"
	schedcron "callflow/backend/internal/schedule/cron"
)

// FireFunc runs when the expression at index fires. at is in the activation's timezone.
type FireFunc func(ctx context.Context, index int, at time.Time)

type activation struct {
	timezone string
	entries  []robfig.EntryID
}

// Manager owns one cron scheduler per timezone and the schedules registered on them.
type Manager struct {
	store   Store
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	schedulers  map[string]*robfig.Cron
	activations map[string]activation
}

// NewManager returns a manager keeping static data in store. A nil store uses memory.
func NewManager(store Store, logger *slog.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:       store,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		schedulers:  make(map[string]*robfig.Cron),
		activations: make(map[string]activation),
	}
}

// WithMetrics sets the active trigger gauge.
func (m *Manager) WithMetrics(met *metrics.Metrics) *Manager {
	m.metrics = met
	return m
}

// Store returns the static data store.
func (m *Manager) Store() Store { return m.store }

// Activate registers exprs for workflowID in timezone tz, replacing an earlier activation.
// Nothing is registered when any expression is invalid.
func (m *Manager) Activate(workflowID, tz string, exprs []string, fire FireFunc) error {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("trigger: timezone %q: %w", tz, err)
	}
	schedules := make([]robfig.Schedule, len(exprs))
	for i, e := range exprs {
		if schedules[i], err = schedcron.Parse(e); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(workflowID)

	c := m.schedulerLocked(loc)
	act := activation{timezone: loc.String()}
	for i, s := range schedules {
		act.entries = append(act.entries, c.Schedule(s, robfig.FuncJob(func() {
			fire(m.ctx, i, time.Now().In(loc))
		})))
	}
	m.activations[workflowID] = act
	m.metrics.SetActiveTriggers(len(m.activations))
	m.logger.Info("trigger activated", logging.WorkflowID(workflowID),
		slog.String("timezone", act.timezone), slog.Int("schedules", len(exprs)))
	return nil
}

// Deactivate removes the schedules of workflowID. It reports whether any were registered.
func (m *Manager) Deactivate(workflowID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.removeLocked(workflowID)
	m.metrics.SetActiveTriggers(len(m.activations))
	if ok {
		m.logger.Info("trigger deactivated", logging.WorkflowID(workflowID))
	}
	return ok
}

// Active returns the ids of workflows with registered schedules, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.activations))
	for id := range m.activations {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Next returns the next fire time of workflowID across its schedules.
func (m *Manager) Next(workflowID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	act, ok := m.activations[workflowID]
	if !ok {
		return time.Time{}, false
	}
	c := m.schedulers[act.timezone]
	var next time.Time
	for _, id := range act.entries {
		n := c.Entry(id).Next
		if !n.IsZero() && (next.IsZero() || n.Before(next)) {
			next = n
		}
	}
	return next, !next.IsZero()
}

// Stop stops every scheduler and waits for running fires until ctx is done.
func (m *Manager) Stop(ctx context.Context) {
	m.mu.Lock()
	scheds := make([]*robfig.Cron, 0, len(m.schedulers))
	for _, c := range m.schedulers {
		scheds = append(scheds, c)
	}
	m.mu.Unlock()
	m.cancel()
	for _, c := range scheds {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) schedulerLocked(loc *time.Location) *robfig.Cron {
	if c, ok := m.schedulers[loc.String()]; ok {
		return c
	}
	c := robfig.New(robfig.WithLocation(loc), robfig.WithChain(robfig.Recover(cronLogger{m.logger})))
	c.Start()
	m.schedulers[loc.String()] = c
	return c
}

func (m *Manager) removeLocked(workflowID string) bool {
	act, ok := m.activations[workflowID]
	if !ok {
		return false
	}
	c := m.schedulers[act.timezone]
	for _, id := range act.entries {
		c.Remove(id)
	}
	delete(m.activations, workflowID)
	return true
}

// cronLogger adapts slog to the cron library's logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
