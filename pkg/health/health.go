// Package health serves /livez and /readyz for the admin server.
//
// Checks run in background goroutines. A probe flips to unhealthy after
// a number of consecutive failures and back after consecutive successes,
// so a single slow GitHub round trip does not mark the server unready.
package health

import (
	"context"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"go.uber.org/zap"
)

// CheckFunc returns nil when the checked component is usable.
type CheckFunc func(ctx context.Context) error

// Kind selects the endpoint a check contributes to.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

// Check describes one registered probe.
type Check struct {
	Name    string
	Kind    Kind
	Timeout time.Duration
	Func    CheckFunc
}

type probe struct {
	Check
	failAfter int
	okAfter   int

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	// Only touched by the probe goroutine.
	fails int
	oks   int
}

// observe records a result and reports whether the healthy state changed.
func (p *probe) observe(err error) bool {
	p.lastErr.Store(&err)
	was := p.healthy.Load()
	if err != nil {
		p.oks = 0
		p.fails++
		if p.fails >= p.failAfter {
			p.healthy.Store(false)
		}
	} else {
		p.fails = 0
		p.oks++
		if p.oks >= p.okAfter {
			p.healthy.Store(true)
		}
	}
	return was != p.healthy.Load()
}

func (p *probe) run(ctx context.Context) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	return p.Func(ctx)
}

func (p *probe) failure() string {
	if e := p.lastErr.Load(); e != nil && *e != nil {
		return (*e).Error()
	}
	return "check is unhealthy"
}

// Option configures Health.
type Option func(*Health)

// WithThresholds sets how many consecutive failures mark a probe unhealthy
// and how many successes restore it.
func WithThresholds(failAfter, okAfter int) Option {
	return func(h *Health) {
		h.failAfter = max(failAfter, 1)
		h.okAfter = max(okAfter, 1)
	}
}

// WithLogger logs probe state transitions.
func WithLogger(lg *zap.Logger) Option {
	return func(h *Health) { h.lg = lg }
}

// Health aggregates probes. It starts not ready.
type Health struct {
	lg        *zap.Logger
	failAfter int
	okAfter   int
	ready     atomic.Bool

	mu     sync.RWMutex
	probes []*probe
	cancel context.CancelFunc
}

// New creates Health with thresholds 3/1.
func New(opts ...Option) *Health {
	h := &Health{lg: zap.NewNop(), failAfter: 3, okAfter: 1}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register adds a check. Checks added after Start are not scheduled.
func (h *Health) Register(c Check) {
	p := &probe{Check: c, failAfter: h.failAfter, okAfter: h.okAfter}
	p.healthy.Store(true)

	h.mu.Lock()
	h.probes = append(h.probes, p)
	h.mu.Unlock()
}

// Start runs every probe immediately and then every interval until Stop or
// ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := slices.Clone(h.probes)
	h.mu.Unlock()

	for _, p := range probes {
		go h.loop(ctx, p, interval)
	}
}

func (h *Health) loop(ctx context.Context, p *probe, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		h.tick(ctx, p)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Health) tick(ctx context.Context, p *probe) {
	err := p.run(ctx)
	if !p.observe(err) {
		return
	}
	if err != nil {
		h.lg.Warn("Probe unhealthy", zap.String("check", p.Name), zap.Error(err))
		return
	}
	h.lg.Info("Probe recovered", zap.String("check", p.Name))
}

// Stop cancels background probes. Safe to call twice.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady toggles the manual readiness gate.
func (h *Health) SetReady(ready bool) { h.ready.Store(ready) }

// Ready reports the gate and every readiness probe.
func (h *Health) Ready() bool {
	return h.ready.Load() && len(h.failures(Readiness)) == 0
}

func (h *Health) failures(kind Kind) map[string]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := map[string]string{}
	for _, p := range h.probes {
		if p.Kind == kind && !p.healthy.Load() {
			out[p.Name] = p.failure()
		}
	}
	return out
}

// Mount registers /livez and /readyz on mux.
func (h *Health) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /livez", h.Livez)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Livez answers 200 {"status":"ok"} or 503 with the failing checks.
func (h *Health) Livez(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, h.failures(Liveness))
}

// Readyz is Livez for readiness probes plus the manual gate.
func (h *Health) Readyz(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeStatus(w, failures)
}

func writeStatus(w http.ResponseWriter, failures map[string]string) {
	var e jx.Encoder
	status := http.StatusOK
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for name, msg := range failures {
					e.Field(name, func(e *jx.Encoder) { e.Str(msg) })
				}
			})
		})
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
