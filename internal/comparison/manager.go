package comparison

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"

	"github.com/anstrom/alicorn/internal/errors"
	"github.com/anstrom/alicorn/internal/logging"
	"github.com/anstrom/alicorn/internal/metrics"
)

// NotifierFactory returns the notifier for a new session.
type NotifierFactory func(sessionID uuid.UUID) Notifier

// ManagerConfig configures session lifetimes.
type ManagerConfig struct {
	DebounceWindow  time.Duration
	IdleTimeout     time.Duration
	JanitorSchedule string
	MaxSessions     int
	Clock           Clock
}

// DefaultManagerConfig returns the default session settings.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		DebounceWindow:  DefaultDebounceWindow,
		IdleTimeout:     30 * time.Minute,
		JanitorSchedule: "@every 1m",
		MaxSessions:     1000,
	}
}

// Manager owns the open comparison sessions. Sessions expire after being
// idle for IdleTimeout; expired sessions are closed without flushing
// pending saves.
type Manager struct {
	store     Store
	source    DataSource
	notifiers NotifierFactory
	config    ManagerConfig
	base      *logging.Logger
	logger    *logging.Logger
	metrics   metrics.ComparisonRecorder

	sessions *cache.Cache
	cron     *cron.Cron
	mu       sync.Mutex
	running  bool

	// slotsMu guards capacity checks, inserts and sweeps. reserved counts
	// sessions admitted by Open that are still loading.
	slotsMu  sync.Mutex
	reserved int
}

// NewManager creates a session manager. The janitor is not started until
// Start is called.
func NewManager(store Store, source DataSource, notifiers NotifierFactory, config ManagerConfig,
	logger *logging.Logger, recorder metrics.ComparisonRecorder) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if recorder == nil {
		recorder = metrics.Discard
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = DefaultManagerConfig().IdleTimeout
	}
	if config.JanitorSchedule == "" {
		config.JanitorSchedule = DefaultManagerConfig().JanitorSchedule
	}

	m := &Manager{
		store:     store,
		source:    source,
		notifiers: notifiers,
		config:    config,
		base:      logger,
		logger:    logger.WithComponent("sessions"),
		metrics:   recorder,
		sessions:  cache.New(config.IdleTimeout, 0),
		cron:      cron.New(),
	}
	m.sessions.OnEvicted(func(_ string, v interface{}) {
		if ctrl, ok := v.(*Controller); ok {
			ctrl.Close()
		}
	})
	return m
}

// Start schedules the idle-session janitor.
func (m *Manager) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("session manager is already running")
	}

	if _, err := m.cron.AddFunc(m.config.JanitorSchedule, func() { m.Sweep() }); err != nil {
		return errors.ErrConfigInvalid("comparison.janitor_schedule", m.config.JanitorSchedule)
	}

	m.cron.Start()
	m.running = true
	m.logger.Info("Session janitor started", "schedule", m.config.JanitorSchedule)
	return nil
}

// Stop halts the janitor and closes every open session.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.running {
		<-m.cron.Stop().Done()
		m.running = false
	}
	m.mu.Unlock()

	m.slotsMu.Lock()
	m.sessions.DeleteExpired()
	items := m.sessions.Items()
	m.sessions.Flush()
	m.slotsMu.Unlock()

	for _, item := range items {
		item.Object.(*Controller).Close()
	}
	m.metrics.SetActiveSessions(0)
	m.logger.Info("Session manager stopped")
}

// Open validates raw scan ids, creates a session and loads it. Scan ids
// that do not exist fail the open; other load failures are logged and the
// session is kept.
func (m *Manager) Open(ctx context.Context, raw string) (*Controller, error) {
	ids := ParseScanIDs(raw)
	if !HasEnoughScans(ids) {
		return nil, errors.ErrInsufficientScans(raw)
	}

	if err := m.reserveSlot(); err != nil {
		return nil, err
	}

	ctrl, err := m.newSession(ctx, ids)

	m.slotsMu.Lock()
	m.reserved--
	if err == nil {
		m.sessions.SetDefault(ctrl.ID().String(), ctrl)
	}
	count := m.sessions.ItemCount()
	m.slotsMu.Unlock()

	if err != nil {
		return nil, err
	}
	m.metrics.SetActiveSessions(count)
	return ctrl, nil
}

// newSession creates and loads a controller. Scan ids that do not exist
// fail; other load failures are logged and the session is kept.
func (m *Manager) newSession(ctx context.Context, ids []int64) (*Controller, error) {
	id := uuid.New()
	var notifier Notifier = nopNotifier{}
	if m.notifiers != nil {
		notifier = m.notifiers(id)
	}

	ctrl, err := NewController(id, ids, m.store, m.source, notifier, Options{
		DebounceWindow: m.config.DebounceWindow,
		Clock:          m.config.Clock,
		Logger:         m.base,
		Metrics:        m.metrics,
	})
	if err != nil {
		return nil, err
	}

	if err := ctrl.Load(ctx); err != nil {
		if errors.IsNotFound(err) {
			ctrl.Close()
			return nil, err
		}
		m.logger.Warn("Comparison session opened without complete data",
			"session_id", id, "error", err)
	}
	return ctrl, nil
}

// Get returns an open session and extends its idle deadline.
func (m *Manager) Get(id uuid.UUID) (*Controller, error) {
	v, ok := m.sessions.Get(id.String())
	if !ok {
		return nil, errSessionNotFound(id)
	}
	ctrl := v.(*Controller)
	m.sessions.SetDefault(id.String(), ctrl)
	return ctrl, nil
}

// Close tears down a session. Pending saves are discarded.
func (m *Manager) Close(id uuid.UUID) error {
	if _, ok := m.sessions.Get(id.String()); !ok {
		return errSessionNotFound(id)
	}
	m.sessions.Delete(id.String())
	m.metrics.SetActiveSessions(m.sessions.ItemCount())
	return nil
}

// Count returns the number of sessions held, including expired sessions
// that have not been swept yet.
func (m *Manager) Count() int {
	return m.sessions.ItemCount()
}

// Sweep closes expired sessions and publishes the active-session count. It
// returns the number of sessions closed.
func (m *Manager) Sweep() int {
	m.slotsMu.Lock()
	expired, after := m.sweepLocked()
	m.slotsMu.Unlock()

	m.reportSweep(expired, after)
	return expired
}

func (m *Manager) sweepLocked() (expired, after int) {
	before := m.sessions.ItemCount()
	m.sessions.DeleteExpired()
	after = m.sessions.ItemCount()
	return max(before-after, 0), after
}

func (m *Manager) reportSweep(expired, after int) {
	if expired > 0 {
		m.metrics.IncrementSessionsExpired(expired)
		m.logger.Info("Closed idle comparison sessions", "count", expired)
	}
	m.metrics.SetActiveSessions(after)
}

// reserveSlot admits one more session, sweeping expired sessions first when
// the manager is full. Sessions still loading count against MaxSessions.
func (m *Manager) reserveSlot() error {
	m.slotsMu.Lock()
	if m.config.MaxSessions <= 0 {
		m.reserved++
		m.slotsMu.Unlock()
		return nil
	}

	expired, after := 0, m.sessions.ItemCount()
	if after+m.reserved >= m.config.MaxSessions {
		expired, after = m.sweepLocked()
	}
	full := after+m.reserved >= m.config.MaxSessions
	if !full {
		m.reserved++
	}
	m.slotsMu.Unlock()

	if expired > 0 {
		m.reportSweep(expired, after)
	}
	if full {
		return errors.NewComparisonError(errors.CodeServiceUnavailable, "too many open comparison sessions").
			WithContext("max_sessions", m.config.MaxSessions)
	}
	return nil
}

func errSessionNotFound(id uuid.UUID) *errors.ComparisonError {
	return errors.NewComparisonError(errors.CodeNotFound, "comparison session not found").
		WithContext("session_id", id.String())
}

type nopNotifier struct{}

func (nopNotifier) Info(string, string)  {}
func (nopNotifier) Error(string, string) {}
