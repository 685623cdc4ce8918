package comparison

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/alicorn/internal/db"
	"github.com/anstrom/alicorn/internal/errors"
	"github.com/anstrom/alicorn/internal/logging"
	"github.com/anstrom/alicorn/internal/metrics"
)

// DefaultDebounceWindow is the quiet period after the last note edit before
// the note is saved.
const DefaultDebounceWindow = 500 * time.Millisecond

// Save triggers, used as metric labels.
const (
	TriggerDebounce = "debounce"
	TriggerManual   = "manual"
)

// GateState is the state of the removal confirmation gate.
type GateState string

// Removal gate states.
const (
	GateIdle       GateState = "idle"
	GatePending    GateState = "pending"
	GateConfirming GateState = "confirming"
)

// State is a point-in-time snapshot of a session.
type State struct {
	SessionID                  uuid.UUID  `json:"session_id"`
	ScanIDs                    []int64    `json:"scan_ids"`
	Note                       string     `json:"note"`
	IsBookmarked               bool       `json:"is_bookmarked"`
	IsSaving                   bool       `json:"is_saving"`
	PendingRemovalConfirmation bool       `json:"pending_removal_confirmation"`
	RemovalGate                GateState  `json:"removal_gate"`
	SaveScheduled              bool       `json:"save_scheduled"`
	DataLoaded                 bool       `json:"data_loaded"`
	SavedID                    *uuid.UUID `json:"saved_id,omitempty"`
}

// Options configures a Controller. Zero values select defaults.
type Options struct {
	DebounceWindow time.Duration
	Clock          Clock
	Logger         *logging.Logger
	Metrics        metrics.ComparisonRecorder
}

// Controller owns the note and bookmark state of one comparison session.
// Note edits are saved after a trailing debounce window; removing a
// bookmark requires an explicit confirmation. The bookmark flag only
// changes after the store call it depends on has succeeded.
type Controller struct {
	id       uuid.UUID
	scanIDs  []int64
	store    Store
	source   DataSource
	notifier Notifier
	clock    Clock
	window   time.Duration
	logger   *logging.Logger
	metrics  metrics.ComparisonRecorder

	mu         sync.Mutex
	note       string
	bookmarked bool
	saving     int
	gate       GateState
	existing   *db.SavedComparison
	data       *Data
	seeded     bool
	closed     bool

	// pending is the single outstanding debounce timer. generation is
	// bumped whenever it is replaced or canceled so that a timer which
	// already fired but lost the race for mu does nothing.
	pending    Timer
	generation uint64
}

// NewController creates a session for scanIDs, which must already be
// validated and hold at least two ids.
func NewController(id uuid.UUID, scanIDs []int64, store Store, source DataSource, notifier Notifier, opts Options) (*Controller, error) {
	if !HasEnoughScans(scanIDs) {
		return nil, errors.ErrInsufficientScans(JoinScanIDs(scanIDs, ","))
	}

	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Discard
	}

	return &Controller{
		id:       id,
		scanIDs:  append([]int64(nil), scanIDs...),
		store:    store,
		source:   source,
		notifier: notifier,
		clock:    opts.Clock,
		window:   opts.DebounceWindow,
		logger:   opts.Logger.WithComponent("comparison").WithSession(id.String()),
		metrics:  opts.Metrics,
		gate:     GateIdle,
	}, nil
}

// ID returns the session id.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

// ScanIDs returns a copy of the compared scan ids.
func (c *Controller) ScanIDs() []int64 {
	return append([]int64(nil), c.scanIDs...)
}

// Load fetches comparison data and looks up an existing saved record. The
// first successful lookup seeds the note and bookmark state. Failures leave
// the defaults in place and are returned joined.
func (c *Controller) Load(ctx context.Context) error {
	start := time.Now()
	data, fetchErr := c.source.Fetch(ctx, c.scanIDs)
	if fetchErr != nil {
		c.metrics.RecordFetch(metrics.StatusError, time.Since(start))
		c.logger.ErrorComparison("Failed to load comparison data", c.scanIDs, fetchErr)
	} else {
		c.metrics.RecordFetch(metrics.StatusSuccess, time.Since(start))
	}

	existing, lookupErr := c.store.FindByScanIDs(ctx, c.scanIDs)
	if lookupErr != nil {
		c.logger.ErrorComparison("Failed to look up saved comparison", c.scanIDs, lookupErr)
	}

	c.mu.Lock()
	if fetchErr == nil {
		c.data = data
	}
	if lookupErr == nil && !c.seeded {
		c.seeded = true
		c.existing = existing
		if existing != nil {
			c.note = existing.Note
			c.bookmarked = true
		}
	}
	c.mu.Unlock()

	if fetchErr == nil && lookupErr == nil {
		c.logger.InfoComparison("Comparison session loaded", c.scanIDs, "bookmarked", existing != nil)
	}
	return stderrors.Join(fetchErr, lookupErr)
}

// OnNoteChange records a note edit. The note is updated immediately.
// Non-empty text (re)starts the debounce window; clearing the note cancels
// any pending save and, on a bookmarked session, opens the removal gate
// instead of saving. Edits made while the gate is open are never saved.
func (c *Controller) OnNoteChange(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errSessionClosed()
	}

	c.note = text

	if strings.TrimSpace(text) == "" {
		c.cancelPendingLocked()
		if c.bookmarked && c.gate == GateIdle {
			c.gate = GatePending
			c.logger.Debug("Removal confirmation requested by clearing note")
		}
		return nil
	}

	if c.gate != GateIdle {
		return nil
	}

	c.cancelPendingLocked()
	gen := c.generation
	c.pending = c.clock.AfterFunc(c.window, func() {
		c.flush(gen)
	})
	return nil
}

// ToggleBookmark saves the session immediately when it is not bookmarked,
// even with an empty note. On a bookmarked session it opens the removal gate.
func (c *Controller) ToggleBookmark(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errSessionClosed()
	}

	c.cancelPendingLocked()

	if c.bookmarked {
		if c.gate == GateIdle {
			c.gate = GatePending
		}
		c.mu.Unlock()
		return nil
	}

	rec := c.recordLocked()
	c.saving++
	c.mu.Unlock()

	return c.save(ctx, rec, TriggerManual)
}

// ConfirmRemoval removes the saved record once the gate is pending. On
// success the session is unbookmarked and the note cleared; on failure the
// state is left unchanged. A record already deleted elsewhere counts as
// removed. The gate closes either way.
func (c *Controller) ConfirmRemoval(ctx context.Context) error {
	c.mu.Lock()
	if c.gate != GatePending {
		c.mu.Unlock()
		return errors.ErrNoPendingRemoval()
	}

	if c.existing == nil {
		c.gate = GateIdle
		c.bookmarked = false
		c.mu.Unlock()
		return nil
	}

	c.gate = GateConfirming
	id := c.existing.ID
	c.mu.Unlock()

	err := c.store.Remove(ctx, id)

	c.mu.Lock()
	c.gate = GateIdle
	if errors.IsNotFound(err) {
		c.logger.Debug("Saved comparison already removed", "saved_id", id)
		err = nil
	}
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordRemoval(metrics.StatusError)
		c.logger.ErrorComparison("Failed to remove saved comparison", c.scanIDs, err, "saved_id", id)
		c.notifier.Error("Failed to remove bookmark", err.Error())
		return errors.ErrStore("remove", err)
	}

	c.bookmarked = false
	c.note = ""
	c.existing = nil
	c.mu.Unlock()

	c.metrics.RecordRemoval(metrics.StatusSuccess)
	c.logger.InfoComparison("Saved comparison removed", c.scanIDs, "saved_id", id)
	c.notifier.Info("Bookmark removed", "Comparison "+JoinScanIDs(c.scanIDs, ", ")+" is no longer saved")
	return nil
}

// CancelRemoval closes a pending gate and restores the note from the last
// persisted record.
func (c *Controller) CancelRemoval() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gate != GatePending {
		return errors.ErrNoPendingRemoval()
	}

	c.gate = GateIdle
	if c.existing != nil {
		c.note = c.existing.Note
	}
	return nil
}

// Export renders the loaded comparison data with the current note.
func (c *Controller) Export(format string) (*File, error) {
	f, err := ParseFormat(format)
	if err != nil {
		c.metrics.RecordExport(format, metrics.StatusError)
		return nil, err
	}

	c.mu.Lock()
	data, note := c.data, c.note
	c.mu.Unlock()

	if data == nil {
		err := errors.ErrDataNotReady()
		c.metrics.RecordExport(string(f), metrics.StatusError)
		c.notifier.Error("Export failed", err.Message)
		return nil, err
	}

	file, err := Export(data, note, f, c.clock.Now())
	if err != nil {
		c.metrics.RecordExport(string(f), metrics.StatusError)
		c.notifier.Error("Export failed", err.Error())
		return nil, err
	}

	c.metrics.RecordExport(string(f), metrics.StatusSuccess)
	return file, nil
}

// Data returns the loaded comparison data, or nil before it has loaded.
func (c *Controller) Data() *Data {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data
}

// State returns a snapshot of the session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	state := State{
		SessionID:                  c.id,
		ScanIDs:                    c.ScanIDs(),
		Note:                       c.note,
		IsBookmarked:               c.bookmarked,
		IsSaving:                   c.saving > 0,
		PendingRemovalConfirmation: c.gate != GateIdle,
		RemovalGate:                c.gate,
		SaveScheduled:              c.pending != nil,
		DataLoaded:                 c.data != nil,
	}
	if c.existing != nil {
		id := c.existing.ID
		state.SavedID = &id
	}
	return state
}

// Close discards any pending save without flushing it. It is safe to call
// more than once.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.cancelPendingLocked()
}

func (c *Controller) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
	c.generation++
}

// flush runs when the debounce window of generation gen elapses.
func (c *Controller) flush(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.generation || c.gate != GateIdle {
		c.mu.Unlock()
		return
	}
	c.pending = nil

	if strings.TrimSpace(c.note) == "" {
		c.mu.Unlock()
		return
	}

	rec := c.recordLocked()
	c.saving++
	c.mu.Unlock()

	_ = c.save(context.Background(), rec, TriggerDebounce)
}

func (c *Controller) recordLocked() *db.SavedComparison {
	target, mode := c.data.Origin()
	return &db.SavedComparison{
		ScanIDs:   c.ScanIDs(),
		Note:      c.note,
		TargetStr: target,
		ModeStr:   mode,
	}
}

// save issues one store call and applies its outcome. The caller must have
// incremented c.saving.
func (c *Controller) save(ctx context.Context, rec *db.SavedComparison, trigger string) error {
	saved, err := c.store.Save(ctx, rec)

	c.mu.Lock()
	c.saving--
	if err != nil {
		c.mu.Unlock()
		c.metrics.RecordSave(trigger, metrics.StatusError)
		c.logger.ErrorComparison("Failed to save comparison", c.scanIDs, err, "trigger", trigger)
		c.notifier.Error("Failed to save comparison", err.Error())
		return errors.ErrStore("save", err)
	}

	if saved == nil {
		saved = rec
	}
	c.bookmarked = true
	c.existing = saved
	c.mu.Unlock()

	c.metrics.RecordSave(trigger, metrics.StatusSuccess)
	c.logger.InfoComparison("Comparison saved", c.scanIDs, "trigger", trigger)
	c.notifier.Info("Comparison saved", "Scans "+JoinScanIDs(c.scanIDs, ", ")+" bookmarked")
	return nil
}

func errSessionClosed() *errors.ComparisonError {
	return errors.NewComparisonError(errors.CodeSessionGone, "comparison session is closed")
}
