package comparison

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/alicorn/internal/db"
)

//go:generate mockgen -destination=mocks/mock_comparison.go -package=mocks . Store,DataSource,Notifier

// Store persists saved comparisons. It is implemented by
// db.SavedComparisonRepository.
type Store interface {
	// Save creates or overwrites the record for rec's scan set and returns
	// the stored record.
	Save(ctx context.Context, rec *db.SavedComparison) (*db.SavedComparison, error)

	// Remove deletes the record with the given id.
	Remove(ctx context.Context, id uuid.UUID) error

	// FindByScanIDs returns the record for the scan set, or nil when there
	// is none.
	FindByScanIDs(ctx context.Context, ids []int64) (*db.SavedComparison, error)
}

// DataSource loads comparison data for an ordered list of scan ids.
type DataSource interface {
	Fetch(ctx context.Context, ids []int64) (*Data, error)
}

// Notifier displays fire-and-forget messages to the user of a session.
// Implementations must not block.
type Notifier interface {
	Info(title, detail string)
	Error(title, detail string)
}

// Clock schedules the debounce timer. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a scheduled callback that can be stopped before it fires.
type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// SystemClock is the wall clock.
var SystemClock Clock = systemClock{}

var _ Store = (*db.SavedComparisonRepository)(nil)
