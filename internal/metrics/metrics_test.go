package metrics

import (
	"testing"
	"time"
)

func TestRecordGeneration(t *testing.T) {
	m := New()

	m.RecordGeneration("ok", 2*time.Second, 1234.5)
	m.RecordGeneration("failed", 500*time.Millisecond, 0)
	m.RecordGeneration("", time.Second, 0)

	// Metrics are singletons; without Prometheus test helpers we just
	// verify the record paths don't panic.
}

func TestRecordUpload(t *testing.T) {
	m := New()

	m.RecordUpload("po", 1024)
	m.RecordUpload("timesheets", 2048)
	m.RecordUpload("", 0)
}

func TestGauges(t *testing.T) {
	m := New()

	m.UpdateInFlight(1)
	m.UpdateInFlight(-1)
	m.UpdateBackendHealth(true)
	m.UpdateBackendHealth(false)
	m.UpdateSessions(3)
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics

	m.RecordGeneration("ok", time.Second, 1)
	m.RecordUpload("po", 1)
	m.UpdateInFlight(1)
	m.UpdateBackendHealth(true)
	m.UpdateSessions(0)
}

func TestNewReturnsSingleton(t *testing.T) {
	if New() != New() {
		t.Error("New should return the same instance")
	}
}
