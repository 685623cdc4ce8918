// Package notify delivers comparison session notifications to users: over
// WebSocket to connected dashboards, to the structured log, or into memory
// for command-line output.
package notify

import (
	"sync"
	"time"

	"github.com/anstrom/alicorn/internal/logging"
)

// Notification levels.
const (
	LevelInfo  = "info"
	LevelError = "error"
)

// Notifier is the capability handed to a comparison session.
type Notifier interface {
	Info(title, detail string)
	Error(title, detail string)
}

// Notification is one user-facing message.
type Notification struct {
	SessionID string    `json:"session_id,omitempty"`
	Level     string    `json:"level"`
	Title     string    `json:"title"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger writes notifications to a structured logger.
type Logger struct {
	logger *logging.Logger
}

// NewLogger creates a notifier that logs on behalf of sessionID. An empty
// sessionID omits the session attribute.
func NewLogger(logger *logging.Logger, sessionID string) *Logger {
	if logger == nil {
		logger = logging.Default()
	}
	logger = logger.WithComponent("notify")
	if sessionID != "" {
		logger = logger.WithSession(sessionID)
	}
	return &Logger{logger: logger}
}

// Info logs an informational notification.
func (l *Logger) Info(title, detail string) {
	l.logger.Info(title, "detail", detail)
}

// Error logs an error notification.
func (l *Logger) Error(title, detail string) {
	l.logger.Error(title, "detail", detail)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

// Info implements Notifier.
func (m Multi) Info(title, detail string) {
	for _, n := range m {
		n.Info(title, detail)
	}
}

// Error implements Notifier.
func (m Multi) Error(title, detail string) {
	for _, n := range m {
		n.Error(title, detail)
	}
}

// Recorder keeps notifications in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Notification
	now     func() time.Time
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{now: time.Now}
}

// Info implements Notifier.
func (r *Recorder) Info(title, detail string) {
	r.add(LevelInfo, title, detail)
}

// Error implements Notifier.
func (r *Recorder) Error(title, detail string) {
	r.add(LevelError, title, detail)
}

func (r *Recorder) add(level, title, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Notification{
		Level:     level,
		Title:     title,
		Detail:    detail,
		Timestamp: r.now().UTC(),
	})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.entries...)
}

// Errors returns only the error notifications.
func (r *Recorder) Errors() []Notification {
	var out []Notification
	for _, n := range r.Entries() {
		if n.Level == LevelError {
			out = append(out, n)
		}
	}
	return out
}

// Reset discards recorded notifications.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

var (
	_ Notifier = (*Logger)(nil)
	_ Notifier = Multi(nil)
	_ Notifier = (*Recorder)(nil)
	_ Notifier = (*SessionNotifier)(nil)
)
