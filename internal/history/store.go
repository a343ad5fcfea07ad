// Package history persists generation-attempt telemetry.
// It stores metadata only - no file content, no spreadsheet bytes.
package history

import (
	"time"
)

// Status represents the final status of a generation attempt.
type Status string

const (
	StatusInFlight Status = "in_flight"
	StatusOK       Status = "ok"     // backend returned success=true
	StatusFailed   Status = "failed" // backend returned success=false
	StatusError    Status = "error"  // the exchange itself failed
)

// ErrorClass provides more detail about failed/error status.
type ErrorClass string

const (
	ErrorNone       ErrorClass = ""
	ErrorConfig     ErrorClass = "config_error"
	ErrorValidation ErrorClass = "validation_error"
	ErrorProcessing ErrorClass = "processing_error"
	ErrorTransport  ErrorClass = "transport_error"
)

// Attempt is one generation attempt's telemetry.
type Attempt struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	TSStart   int64  `json:"ts_start"` // unix ms
	TSEnd     *int64 `json:"ts_end"`   // nullable until complete
	Status    Status `json:"status"`

	// Request shape (metadata only)
	TimesheetCount int   `json:"timesheet_count"`
	UploadBytes    int64 `json:"upload_bytes"`
	Strict         bool  `json:"strict"`

	// Outcome
	DurationMs     int        `json:"duration_ms"`
	ContractNumber string     `json:"contract_number,omitempty"`
	EngineerCount  int        `json:"engineer_count"`
	GrandTotalUSD  float64    `json:"grand_total_usd"`
	ErrorClass     ErrorClass `json:"error_class,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// AttemptUpdate contains fields that can be updated after insert.
type AttemptUpdate struct {
	TSEnd          *int64
	Status         *Status
	DurationMs     *int
	ContractNumber *string
	EngineerCount  *int
	GrandTotalUSD  *float64
	ErrorClass     *ErrorClass
	Error          *string
}

// ListOptions filters for listing attempts.
type ListOptions struct {
	Limit  int
	Offset int
	Status *Status
	Window time.Duration // only attempts within this window
}

// Overview contains summary statistics for a time window.
type Overview struct {
	TotalAttempts    int     `json:"total_attempts"`
	OKCount          int     `json:"ok_count"`
	FailedCount      int     `json:"failed_count"`
	ErrorCount       int     `json:"error_count"`
	SuccessRate      float64 `json:"success_rate"`
	AvgDurationMs    int     `json:"avg_duration_ms"`
	P95DurationMs    int     `json:"p95_duration_ms"`
	TotalInvoicedUSD float64 `json:"total_invoiced_usd"`
	TotalUploadBytes int64   `json:"total_upload_bytes"`
}

// Store is the interface for attempt telemetry storage.
type Store interface {
	// Insert creates a new attempt record (at submission start).
	Insert(a *Attempt) error

	// Update modifies an existing attempt (at completion).
	Update(id string, upd AttemptUpdate) error

	// GetByID retrieves a single attempt by ID.
	GetByID(id string) (*Attempt, error)

	// List retrieves attempts with filtering and pagination, newest first.
	List(opts ListOptions) ([]Attempt, error)

	// Overview returns aggregate statistics for a time window.
	Overview(window time.Duration) (*Overview, error)

	// InFlightCount returns the number of in-flight attempts.
	InFlightCount() (int, error)

	// Close releases resources.
	Close() error
}
