//go:build mips64 || mips64le || ppc64 || s390x

package history

import (
	"errors"
	"log/slog"
	"time"
)

// SQLiteStore is a stub implementation for unsupported platforms.
type SQLiteStore struct{}

// NewSQLiteStore creates a new SQLite store at the given path.
// On unsupported platforms, this returns an error.
func NewSQLiteStore(path string, maxRows int, logger *slog.Logger) (*SQLiteStore, error) {
	return nil, errors.New("SQLite storage is not supported on this platform, use memory storage instead")
}

// Insert creates a new attempt record.
func (s *SQLiteStore) Insert(a *Attempt) error {
	return errors.New("SQLite storage not available")
}

// Update modifies an existing attempt.
func (s *SQLiteStore) Update(id string, upd AttemptUpdate) error {
	return errors.New("SQLite storage not available")
}

// GetByID retrieves a single attempt.
func (s *SQLiteStore) GetByID(id string) (*Attempt, error) {
	return nil, errors.New("SQLite storage not available")
}

// List retrieves attempts with filtering.
func (s *SQLiteStore) List(opts ListOptions) ([]Attempt, error) {
	return nil, errors.New("SQLite storage not available")
}

// Overview returns aggregate statistics.
func (s *SQLiteStore) Overview(window time.Duration) (*Overview, error) {
	return nil, errors.New("SQLite storage not available")
}

// InFlightCount returns the number of in-flight attempts.
func (s *SQLiteStore) InFlightCount() (int, error) {
	return 0, errors.New("SQLite storage not available")
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return nil
}
