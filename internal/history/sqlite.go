//go:build !mips64 && !mips64le && !ppc64 && !s390x

package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO required)
)

const schema = `
CREATE TABLE IF NOT EXISTS attempts (
    id TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    ts_start INTEGER NOT NULL,
    ts_end INTEGER,
    status TEXT NOT NULL DEFAULT 'in_flight',

    timesheet_count INTEGER DEFAULT 0,
    upload_bytes INTEGER DEFAULT 0,
    strict INTEGER DEFAULT 1,

    duration_ms INTEGER DEFAULT 0,
    contract_number TEXT,
    engineer_count INTEGER DEFAULT 0,
    grand_total_usd REAL DEFAULT 0,
    error_class TEXT,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_attempts_ts_start ON attempts(ts_start);
CREATE INDEX IF NOT EXISTS idx_attempts_status_ts ON attempts(status, ts_start);
CREATE INDEX IF NOT EXISTS idx_attempts_session_ts ON attempts(session_id, ts_start);
`

// SQLiteStore implements Store using SQLite with WAL mode.
type SQLiteStore struct {
	db        *sql.DB
	maxRows   int
	pruneMu   sync.Mutex
	pruneWG   sync.WaitGroup
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// It enables WAL mode for better concurrent performance.
func NewSQLiteStore(path string, maxRows int, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal=WAL&_sync=NORMAL&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// SQLite works best with a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &SQLiteStore{
		db:      db,
		maxRows: maxRows,
		done:    make(chan struct{}),
		logger:  logger,
	}, nil
}

// Insert creates a new attempt record.
func (s *SQLiteStore) Insert(a *Attempt) error {
	_, err := s.db.Exec(`
		INSERT INTO attempts (
			id, session_id, ts_start, ts_end, status,
			timesheet_count, upload_bytes, strict,
			duration_ms, contract_number, engineer_count, grand_total_usd,
			error_class, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.SessionID, a.TSStart, a.TSEnd, a.Status,
		a.TimesheetCount, a.UploadBytes, boolToInt(a.Strict),
		a.DurationMs, a.ContractNumber, a.EngineerCount, a.GrandTotalUSD,
		string(a.ErrorClass), a.Error,
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	// Trigger pruning check (best effort, non-blocking)
	s.pruneWG.Add(1)
	go func() {
		defer s.pruneWG.Done()
		s.maybePrune()
	}()

	return nil
}

// Update modifies an existing attempt.
func (s *SQLiteStore) Update(id string, upd AttemptUpdate) error {
	// Build dynamic update query
	var sets []string
	var args []any

	if upd.TSEnd != nil {
		sets = append(sets, "ts_end = ?")
		args = append(args, *upd.TSEnd)
	}
	if upd.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*upd.Status))
	}
	if upd.DurationMs != nil {
		sets = append(sets, "duration_ms = ?")
		args = append(args, *upd.DurationMs)
	}
	if upd.ContractNumber != nil {
		sets = append(sets, "contract_number = ?")
		args = append(args, *upd.ContractNumber)
	}
	if upd.EngineerCount != nil {
		sets = append(sets, "engineer_count = ?")
		args = append(args, *upd.EngineerCount)
	}
	if upd.GrandTotalUSD != nil {
		sets = append(sets, "grand_total_usd = ?")
		args = append(args, *upd.GrandTotalUSD)
	}
	if upd.ErrorClass != nil {
		sets = append(sets, "error_class = ?")
		args = append(args, string(*upd.ErrorClass))
	}
	if upd.Error != nil {
		sets = append(sets, "error = ?")
		args = append(args, *upd.Error)
	}

	if len(sets) == 0 {
		return nil // nothing to update
	}

	query := "UPDATE attempts SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id = ?"
	args = append(args, id)

	_, err := s.db.Exec(query, args...)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}

	return nil
}

// GetByID retrieves a single attempt.
func (s *SQLiteStore) GetByID(id string) (*Attempt, error) {
	row := s.db.QueryRow(`
		SELECT id, session_id, ts_start, ts_end, status,
			timesheet_count, upload_bytes, strict,
			duration_ms, contract_number, engineer_count, grand_total_usd,
			error_class, error
		FROM attempts WHERE id = ?
	`, id)

	a, err := scanAttempt(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	return a, nil
}

// List retrieves attempts with filtering, newest first.
func (s *SQLiteStore) List(opts ListOptions) ([]Attempt, error) {
	query := `
		SELECT id, session_id, ts_start, ts_end, status,
			timesheet_count, upload_bytes, strict,
			duration_ms, contract_number, engineer_count, grand_total_usd,
			error_class, error
		FROM attempts WHERE 1=1
	`
	var args []any

	if opts.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*opts.Status))
	}
	if opts.Window > 0 {
		cutoff := time.Now().UnixMilli() - opts.Window.Milliseconds()
		query += " AND ts_start >= ?"
		args = append(args, cutoff)
	}

	query += " ORDER BY ts_start DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		attempts = append(attempts, *a)
	}

	return attempts, rows.Err()
}

// Overview returns aggregate statistics.
func (s *SQLiteStore) Overview(window time.Duration) (*Overview, error) {
	cutoff := time.Now().UnixMilli() - window.Milliseconds()

	row := s.db.QueryRow(`
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = 'ok' THEN 1 ELSE 0 END), 0) as ok_count,
			COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed_count,
			COALESCE(SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0) as error_count,
			COALESCE(AVG(CASE WHEN status != 'in_flight' THEN duration_ms END), 0) as avg_duration,
			COALESCE(SUM(CASE WHEN status = 'ok' THEN grand_total_usd ELSE 0 END), 0) as invoiced,
			COALESCE(SUM(upload_bytes), 0) as upload_bytes
		FROM attempts
		WHERE ts_start >= ?
	`, cutoff)

	var o Overview
	var avgDur float64
	err := row.Scan(&o.TotalAttempts, &o.OKCount, &o.FailedCount, &o.ErrorCount,
		&avgDur, &o.TotalInvoicedUSD, &o.TotalUploadBytes)
	if err != nil {
		return nil, fmt.Errorf("overview query: %w", err)
	}

	o.AvgDurationMs = int(avgDur)
	if o.TotalAttempts > 0 {
		o.SuccessRate = float64(o.OKCount) / float64(o.TotalAttempts)
	}

	// P95 duration
	p95Row := s.db.QueryRow(`
		SELECT duration_ms FROM attempts
		WHERE ts_start >= ? AND status != 'in_flight'
		ORDER BY duration_ms DESC
		LIMIT 1 OFFSET ?
	`, cutoff, int(float64(o.TotalAttempts)*0.05))

	var p95 int
	if err := p95Row.Scan(&p95); err == nil {
		o.P95DurationMs = p95
	}

	return &o, nil
}

// InFlightCount returns the number of in-flight attempts.
func (s *SQLiteStore) InFlightCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM attempts WHERE status = 'in_flight'`).Scan(&count)
	return count, err
}

// Close waits for any in-flight prune and closes the database connection.
func (s *SQLiteStore) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	s.pruneWG.Wait()
	return s.db.Close()
}

// maybePrune checks if pruning is needed and runs it. It is a no-op once the
// store is closing.
func (s *SQLiteStore) maybePrune() {
	s.pruneMu.Lock()
	defer s.pruneMu.Unlock()

	select {
	case <-s.done:
		return
	default:
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM attempts`).Scan(&count); err != nil {
		s.logger.Error("prune count query failed", "err", err)
		return
	}

	if count <= s.maxRows {
		return
	}

	// Delete oldest rows in batches
	toDelete := count - s.maxRows
	const batchSize = 500
	if toDelete > batchSize {
		toDelete = batchSize
	}

	_, err := s.db.Exec(`
		DELETE FROM attempts WHERE id IN (
			SELECT id FROM attempts ORDER BY ts_start ASC LIMIT ?
		)
	`, toDelete)
	if err != nil {
		s.logger.Error("prune failed", "err", err)
	} else {
		s.logger.Debug("pruned old attempts", "deleted", toDelete)
	}
}

// Helper functions

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (*Attempt, error) {
	var a Attempt
	var tsEnd sql.NullInt64
	var contract, errorClass, errMsg sql.NullString
	var strictInt int

	err := row.Scan(
		&a.ID, &a.SessionID, &a.TSStart, &tsEnd, &a.Status,
		&a.TimesheetCount, &a.UploadBytes, &strictInt,
		&a.DurationMs, &contract, &a.EngineerCount, &a.GrandTotalUSD,
		&errorClass, &errMsg,
	)
	if err != nil {
		return nil, err
	}

	if tsEnd.Valid {
		a.TSEnd = &tsEnd.Int64
	}
	a.ContractNumber = contract.String
	a.ErrorClass = ErrorClass(errorClass.String)
	a.Error = errMsg.String
	a.Strict = strictInt != 0

	return &a, nil
}
