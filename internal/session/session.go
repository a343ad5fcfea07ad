// Package session owns the interactive state of one console user: the three
// file slots, the engineer config text, the in-flight gate, and the last
// generation result. All mutation goes through methods here so render code
// never reads shared scope.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"invoice-console/internal/backend"
)

var (
	// ErrBusy means a generation is already in flight for this session.
	ErrBusy = errors.New("a generation is already in flight")

	// ErrNotReady means one of the three required slots is still empty.
	ErrNotReady = errors.New("need a PO file, a template file, and at least one timesheet")
)

// StagedFile is one uploaded file held in memory until submission.
type StagedFile struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Data []byte `json:"-"`
}

// FileInfo describes a staged file without its bytes.
type FileInfo struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// TimesheetInfo is a timesheet entry with its current list index. Indexes
// are re-assigned contiguously after every removal, so a handler bound to
// this value is always current.
type TimesheetInfo struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
}

// State is a render snapshot of a session.
type State struct {
	ID         string          `json:"id"`
	PO         *FileInfo       `json:"po"`
	Timesheets []TimesheetInfo `json:"timesheets"`
	Template   *FileInfo       `json:"template"`
	Config     string          `json:"config"`
	Strict     bool            `json:"strict"`
	Ready      bool            `json:"ready"`
	Submitting bool            `json:"submitting"`
	HasResult  bool            `json:"has_result"`
}

// Session holds selection state for one console user.
type Session struct {
	ID      string
	Created time.Time

	mu         sync.Mutex
	po         *StagedFile
	timesheets []StagedFile
	template   *StagedFile
	config     string
	strict     bool
	submitting bool
	result     *backend.GenerateResponse
	touched    time.Time
}

// StagePO stages the purchase-order file, replacing any prior one.
func (s *Session) StagePO(f StagedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.po = &f
	s.touched = time.Now()
}

// StageTemplate stages the spreadsheet template, replacing any prior one.
func (s *Session) StageTemplate(f StagedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = &f
	s.touched = time.Now()
}

// StageTimesheets appends timesheet files in the order given.
func (s *Session) StageTimesheets(files ...StagedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timesheets = append(s.timesheets, files...)
	s.touched = time.Now()
}

// RemoveTimesheet removes the timesheet at index i. The remaining entries
// keep their relative order and re-index from zero.
func (s *Session) RemoveTimesheet(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.timesheets) {
		return fmt.Errorf("no timesheet at index %d (have %d)", i, len(s.timesheets))
	}
	s.timesheets = append(s.timesheets[:i], s.timesheets[i+1:]...)
	s.touched = time.Now()
	return nil
}

// SetConfig stores the engineer-config text and the strict flag. The text is
// kept verbatim; validity is only checked at submission time.
func (s *Session) SetConfig(text string, strict bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = text
	s.strict = strict
	s.touched = time.Now()
}

// Ready reports whether all three slots are filled.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readyLocked()
}

func (s *Session) readyLocked() bool {
	return s.po != nil && s.template != nil && len(s.timesheets) > 0
}

// BeginGenerate claims the single in-flight submission slot and returns the
// request to send. It fails without side effects when the session is not
// ready or a generation is already running.
func (s *Session) BeginGenerate() (backend.GenerateRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.submitting {
		return backend.GenerateRequest{}, ErrBusy
	}
	if !s.readyLocked() {
		return backend.GenerateRequest{}, ErrNotReady
	}

	req := backend.GenerateRequest{
		PO:             backend.File{Name: s.po.Name, Data: s.po.Data},
		Template:       backend.File{Name: s.template.Name, Data: s.template.Data},
		EngineerConfig: s.config,
		Strict:         s.strict,
	}
	for _, ts := range s.timesheets {
		req.Timesheets = append(req.Timesheets, backend.File{Name: ts.Name, Data: ts.Data})
	}

	s.submitting = true
	s.touched = time.Now()
	return req, nil
}

// FinishGenerate releases the in-flight slot. A non-nil response replaces
// the previous result wholesale; nil (transport failure) keeps the old one.
func (s *Session) FinishGenerate(resp *backend.GenerateResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitting = false
	if resp != nil {
		s.result = resp
	}
	s.touched = time.Now()
}

// Result returns the last generation response, or nil.
func (s *Session) Result() *backend.GenerateResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// UploadedBytes returns the total size of all staged files.
func (s *Session) UploadedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	if s.po != nil {
		n += s.po.Size
	}
	if s.template != nil {
		n += s.template.Size
	}
	for _, ts := range s.timesheets {
		n += ts.Size
	}
	return n
}

// TimesheetCount returns the current timesheet list length.
func (s *Session) TimesheetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timesheets)
}

// Snapshot returns a render snapshot of the session.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		ID:         s.ID,
		Config:     s.config,
		Strict:     s.strict,
		Ready:      s.readyLocked(),
		Submitting: s.submitting,
		HasResult:  s.result != nil,
	}
	if s.po != nil {
		st.PO = &FileInfo{Name: s.po.Name, Size: s.po.Size}
	}
	if s.template != nil {
		st.Template = &FileInfo{Name: s.template.Name, Size: s.template.Size}
	}
	st.Timesheets = make([]TimesheetInfo, 0, len(s.timesheets))
	for i, ts := range s.timesheets {
		st.Timesheets = append(st.Timesheets, TimesheetInfo{Index: i, Name: ts.Name, Size: ts.Size})
	}
	return st
}
