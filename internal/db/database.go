// Package db provides database connectivity and data access for alicorn.
// It reads scan results written by the scanner, stores saved comparisons,
// and applies the embedded schema migrations.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/anstrom/alicorn/internal/errors"
	"github.com/anstrom/alicorn/internal/logging"
)

// sanitizeDBError converts raw database errors into safe, sanitized errors
// that don't expose internal SQL details or credentials to API clients.
// The original error is preserved in the Cause field for internal debugging.
func sanitizeDBError(operation string, err error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, sql.ErrNoRows) {
		dbErr := errors.NewDatabaseError(errors.CodeNotFound, "Resource not found")
		dbErr.Operation = operation
		return dbErr
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		dbErr := errors.WrapDatabaseError(errors.CodeDatabaseTimeout, "Database operation timed out", err)
		dbErr.Operation = operation
		return dbErr
	}

	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		var dbErr *errors.DatabaseError
		switch pqErr.Code {
		case "23505": // unique_violation
			dbErr = errors.NewDatabaseError(errors.CodeConflict, "Resource already exists")
		case "23503": // foreign_key_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Referenced resource does not exist")
		case "23502": // not_null_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Required field is missing")
		case "23514": // check_violation
			dbErr = errors.NewDatabaseError(errors.CodeValidation, "Data validation failed")
		case "57014": // query_canceled
			dbErr = errors.NewDatabaseError(errors.CodeCanceled, "Database operation was canceled")
		case "57P01": // admin_shutdown
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection lost")
		case "08000", "08003", "08006":
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseConnection, "Database connection error")
		default:
			dbErr = errors.NewDatabaseError(errors.CodeDatabaseQuery,
				fmt.Sprintf("Database operation failed: %s", operation))
		}
		dbErr.Operation = operation
		dbErr.Cause = err
		return dbErr
	}

	dbErr := errors.NewDatabaseError(errors.CodeDatabaseQuery, fmt.Sprintf("Database operation failed: %s", operation))
	dbErr.Operation = operation
	dbErr.Cause = err
	return dbErr
}

const (
	// Default database configuration values.
	defaultPostgresPort    = 5432
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5
	defaultConnMaxIdleTime = 5
)

// DB wraps sqlx.DB with additional functionality.
type DB struct {
	*sqlx.DB
}

// Config holds database configuration.
type Config struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	Database        string        `yaml:"database" json:"database"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"-"`
	SSLMode         string        `yaml:"ssl_mode" json:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

// DefaultConfig returns the default database configuration.
// Database name, username, and password must be explicitly configured.
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            defaultPostgresPort,
		SSLMode:         "disable",
		MaxOpenConns:    defaultMaxOpenConns,
		MaxIdleConns:    defaultMaxIdleConns,
		ConnMaxLifetime: defaultConnMaxLifetime * time.Minute,
		ConnMaxIdleTime: defaultConnMaxIdleTime * time.Minute,
	}
}

// DSN builds the lib/pq key=value connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Database, c.Username, c.Password, c.SSLMode,
	)
}

// Connect establishes a connection to PostgreSQL.
// Returns sanitized errors that don't leak credentials or DSN details.
func Connect(ctx context.Context, config *Config) (*DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", config.DSN())
	if err != nil {
		return nil, errors.ErrDatabaseConnection(err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Warn("Failed to close database connection after ping failure")
		}
		return nil, errors.WrapDatabaseError(errors.CodeDatabaseConnection, "Failed to verify database connection", err)
	}

	logging.InfoDatabase("Connected to database",
		"host", config.Host, "port", config.Port, "database", config.Database)
	return &DB{DB: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// Ping tests the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return db.BeginTxx(ctx, nil)
}

// ScanRepository reads completed scans.
type ScanRepository struct {
	db *DB
}

// NewScanRepository creates a new scan repository.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

const scanColumns = `scans_id, s_time, e_time, profile, target_str, mode_str,
		num_hosts, num_packets, scan_metadata`

// GetByIDs returns the scans with the given ids in the order the ids were
// given. Ids without a matching row are omitted.
func (r *ScanRepository) GetByIDs(ctx context.Context, ids []int64) ([]*Scan, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var scans []*Scan
	query := `SELECT ` + scanColumns + ` FROM uni_scans WHERE scans_id = ANY($1)`

	if err := r.db.SelectContext(ctx, &scans, query, pq.Array(ids)); err != nil {
		return nil, sanitizeDBError("get scans", err)
	}

	slices.SortStableFunc(scans, func(a, b *Scan) int {
		return slices.Index(ids, a.ID) - slices.Index(ids, b.ID)
	})
	return scans, nil
}

// ListRecent returns the most recently started scans.
func (r *ScanRepository) ListRecent(ctx context.Context, limit int) ([]*Scan, error) {
	var scans []*Scan
	query := `SELECT ` + scanColumns + ` FROM uni_scans ORDER BY s_time DESC, scans_id DESC LIMIT $1`

	if err := r.db.SelectContext(ctx, &scans, query, limit); err != nil {
		return nil, sanitizeDBError("list scans", err)
	}
	return scans, nil
}

// ReportRepository reads per-port responses recorded by scans.
type ReportRepository struct {
	db *DB
}

// NewReportRepository creates a new port report repository.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// GetByScanIDs returns every port report belonging to the given scans.
func (r *ReportRepository) GetByScanIDs(ctx context.Context, ids []int64) ([]*PortReport, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var reports []*PortReport
	query := `
		SELECT ipreport_id, scans_id, host(host_addr) AS host_addr, dport, proto, ttl, tstamp
		FROM uni_ipreport
		WHERE scans_id = ANY($1)
		ORDER BY host_addr, dport, proto, scans_id`

	if err := r.db.SelectContext(ctx, &reports, query, pq.Array(ids)); err != nil {
		return nil, sanitizeDBError("get port reports", err)
	}
	return reports, nil
}

// SavedComparisonRepository persists bookmarked comparisons. There is at
// most one record per distinct set of scan ids.
type SavedComparisonRepository struct {
	db *DB
}

// NewSavedComparisonRepository creates a new saved comparison repository.
func NewSavedComparisonRepository(db *DB) *SavedComparisonRepository {
	return &SavedComparisonRepository{db: db}
}

const savedComparisonColumns = `id, scan_ids, scan_key, note, target_str, mode_str, created_at, updated_at`

// ScanKey returns the canonical identity of a set of scan ids: the sorted
// distinct ids joined by commas.
func ScanKey(ids []int64) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	parts := make([]string, len(sorted))
	for i, id := range sorted {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Save inserts the record or, when one already exists for the same scan
// set, overwrites its note and scan metadata. The stored row is returned.
func (r *SavedComparisonRepository) Save(ctx context.Context, rec *SavedComparison) (*SavedComparison, error) {
	if len(rec.ScanIDs) < 2 {
		return nil, errors.NewDatabaseError(errors.CodeValidation, "a saved comparison needs at least two scans")
	}

	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	query := `
		INSERT INTO alicorn_saved_comparisons (id, scan_ids, scan_key, note, target_str, mode_str)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (scan_key) DO UPDATE
		SET scan_ids = EXCLUDED.scan_ids,
		    note = EXCLUDED.note,
		    target_str = EXCLUDED.target_str,
		    mode_str = EXCLUDED.mode_str,
		    updated_at = NOW()
		RETURNING ` + savedComparisonColumns

	var saved SavedComparison
	err := r.db.GetContext(ctx, &saved, query,
		id, rec.ScanIDs, ScanKey(rec.ScanIDs), rec.Note, rec.TargetStr, rec.ModeStr)
	if err != nil {
		return nil, sanitizeDBError("save comparison", err)
	}
	return &saved, nil
}

// Remove deletes a saved comparison by id.
func (r *SavedComparisonRepository) Remove(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM alicorn_saved_comparisons WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return sanitizeDBError("remove comparison", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return sanitizeDBError("remove comparison", err)
	}
	if rowsAffected == 0 {
		return errors.ErrNotFoundWithID("saved comparison", id.String())
	}
	return nil
}

// FindByScanIDs returns the record for the given scan set, or nil when
// none has been saved.
func (r *SavedComparisonRepository) FindByScanIDs(ctx context.Context, ids []int64) (*SavedComparison, error) {
	var saved SavedComparison
	query := `SELECT ` + savedComparisonColumns + ` FROM alicorn_saved_comparisons WHERE scan_key = $1`

	if err := r.db.GetContext(ctx, &saved, query, ScanKey(ids)); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, sanitizeDBError("find comparison", err)
	}
	return &saved, nil
}

// List returns a page of saved comparisons, most recently updated first,
// along with the total number of records.
func (r *SavedComparisonRepository) List(ctx context.Context, offset, limit int) ([]*SavedComparison, int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM alicorn_saved_comparisons`); err != nil {
		return nil, 0, sanitizeDBError("count comparisons", err)
	}

	saved := []*SavedComparison{}
	query := `SELECT ` + savedComparisonColumns + `
		FROM alicorn_saved_comparisons
		ORDER BY updated_at DESC, id
		LIMIT $1 OFFSET $2`

	if err := r.db.SelectContext(ctx, &saved, query, limit, offset); err != nil {
		return nil, 0, sanitizeDBError("list comparisons", err)
	}
	return saved, total, nil
}
