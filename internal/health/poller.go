// Package health polls the invoice backend and exposes a binary
// connected/offline status for the UI indicator.
package health

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"invoice-console/internal/events"
	"invoice-console/internal/metrics"
)

// Checker is the single backend operation the poller needs.
type Checker interface {
	Health(ctx context.Context) error
}

// Status is the externally visible poller state.
type Status struct {
	Online    bool      `json:"online"`
	LastCheck time.Time `json:"last_check"`
	LastError string    `json:"last_error,omitempty"`
}

// Poller periodically checks backend health. Any failure at all counts as
// offline; it does not distinguish DNS, timeout, or 5xx.
type Poller struct {
	checker  Checker
	interval time.Duration
	timeout  time.Duration

	online    atomic.Bool
	lastCheck atomic.Value // time.Time
	lastError atomic.Value // string
	checked   atomic.Bool

	metrics *metrics.Metrics
	bus     *events.Bus
	logger  *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a poller and starts its background loop.
func NewPoller(checker Checker, interval, timeout time.Duration, m *metrics.Metrics, bus *events.Bus, logger *slog.Logger) *Poller {
	p := &Poller{
		checker:  checker,
		interval: interval,
		timeout:  timeout,
		metrics:  m,
		bus:      bus,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}

	// Offline until the first check says otherwise.
	p.online.Store(false)

	go p.run()

	return p
}

func (p *Poller) run() {
	p.check()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.check()
		case <-p.stopCh:
			return
		}
	}
}

func (p *Poller) check() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	err := p.checker.Health(ctx)
	if err != nil {
		p.update(false, err.Error())
		return
	}
	p.update(true, "")
}

func (p *Poller) update(online bool, errMsg string) {
	was := p.online.Load()
	first := !p.checked.Swap(true)

	p.online.Store(online)
	p.lastCheck.Store(time.Now())
	p.lastError.Store(errMsg)

	if errMsg != "" && p.logger != nil {
		p.logger.Debug("backend health check failed", "error", errMsg)
	}

	p.metrics.UpdateBackendHealth(online)

	// Publish only transitions, plus the very first verdict.
	if p.bus != nil && (first || was != online) {
		v := online
		p.bus.Publish(events.Event{
			Type:   events.TypeBackendHealth,
			Online: &v,
			Error:  errMsg,
		})
	}
}

// Online reports whether the backend answered its last health check.
func (p *Poller) Online() bool {
	return p.online.Load()
}

// Status returns the full poller state for /healthz/backend.
func (p *Poller) Status() Status {
	st := Status{Online: p.online.Load()}
	if v := p.lastCheck.Load(); v != nil {
		st.LastCheck = v.(time.Time)
	}
	if v := p.lastError.Load(); v != nil {
		st.LastError = v.(string)
	}
	return st
}

// Shutdown stops the poller.
func (p *Poller) Shutdown() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}
