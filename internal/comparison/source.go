package comparison

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/anstrom/alicorn/internal/db"
	"github.com/anstrom/alicorn/internal/errors"
	"github.com/anstrom/alicorn/internal/metrics"
)

// ScanReader loads scans by id, in the order requested.
type ScanReader interface {
	GetByIDs(ctx context.Context, ids []int64) ([]*db.Scan, error)
}

// ReportReader loads port reports for a set of scans.
type ReportReader interface {
	GetByScanIDs(ctx context.Context, ids []int64) ([]*db.PortReport, error)
}

// DBSource builds comparison data from the scan tables.
type DBSource struct {
	scans   ScanReader
	reports ReportReader
}

// NewDBSource creates a data source over the given repositories.
func NewDBSource(scans ScanReader, reports ReportReader) *DBSource {
	return &DBSource{scans: scans, reports: reports}
}

// Fetch loads the scans and their port reports and aggregates them. Unknown
// scan ids yield a not-found error.
func (s *DBSource) Fetch(ctx context.Context, ids []int64) (*Data, error) {
	scans, err := s.scans.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	if len(scans) != len(ids) {
		found := make(map[int64]bool, len(scans))
		for _, scan := range scans {
			found[scan.ID] = true
		}
		var missing []int64
		for _, id := range ids {
			if !found[id] {
				missing = append(missing, id)
			}
		}
		return nil, errors.ErrNotFoundWithID("scan", JoinScanIDs(missing, ","))
	}

	reports, err := s.reports.GetByScanIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	return Aggregate(scans, reports), nil
}

// CachedSource memoizes another DataSource for a fixed TTL. Keys are the
// ordered id list, so [3 9] and [9 3] are cached separately.
type CachedSource struct {
	next    DataSource
	cache   *cache.Cache
	metrics metrics.ComparisonRecorder
}

// NewCachedSource wraps next with a cache whose entries live for ttl.
func NewCachedSource(next DataSource, ttl time.Duration, recorder metrics.ComparisonRecorder) *CachedSource {
	if recorder == nil {
		recorder = metrics.Discard
	}
	return &CachedSource{
		next:    next,
		cache:   cache.New(ttl, 2*ttl),
		metrics: recorder,
	}
}

// Fetch returns cached data when present and otherwise loads and caches it.
// Errors are not cached.
func (s *CachedSource) Fetch(ctx context.Context, ids []int64) (*Data, error) {
	key := JoinScanIDs(ids, ",")

	if cached, ok := s.cache.Get(key); ok {
		s.metrics.RecordCacheLookup(true)
		return cached.(*Data), nil
	}
	s.metrics.RecordCacheLookup(false)

	data, err := s.next.Fetch(ctx, ids)
	if err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, data)
	return data, nil
}

// Invalidate drops the cached data for ids.
func (s *CachedSource) Invalidate(ids []int64) {
	s.cache.Delete(JoinScanIDs(ids, ","))
}

// Flush drops every cached entry.
func (s *CachedSource) Flush() {
	s.cache.Flush()
}

var (
	_ DataSource   = (*DBSource)(nil)
	_ DataSource   = (*CachedSource)(nil)
	_ ScanReader   = (*db.ScanRepository)(nil)
	_ ReportReader = (*db.ReportRepository)(nil)
)
