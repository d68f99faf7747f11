// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jensholdgaard/clubhub/internal/clock"
)

// CheckTimeout bounds a full readiness pass.
const CheckTimeout = 5 * time.Second

// Report is the probe response body.
type Report struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Check is a named dependency probe such as the database ping.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Prober answers /healthz and /readyz. It is not ready until SetReady(true)
// is called, and stays unready while any check fails.
type Prober struct {
	clk    clock.Clock
	logger *slog.Logger

	mu     sync.RWMutex
	ready  bool
	checks []Check
}

func NewProber(clk clock.Clock, logger *slog.Logger, checks ...Check) *Prober {
	return &Prober{clk: clk, logger: logger, checks: checks}
}

// Add registers more checks, e.g. once the bot session is open.
func (p *Prober) Add(checks ...Check) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checks = append(p.checks, checks...)
}

func (p *Prober) SetReady(ready bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = ready
}

// Live always reports ok while the process can serve HTTP.
func (p *Prober) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Report{Status: "ok", Timestamp: p.stamp()})
}

// Ready runs every check concurrently.
func (p *Prober) Ready(w http.ResponseWriter, r *http.Request) {
	p.mu.RLock()
	ready := p.ready
	checks := append([]Check(nil), p.checks...)
	p.mu.RUnlock()

	if !ready {
		writeJSON(w, http.StatusServiceUnavailable, Report{Status: "starting", Timestamp: p.stamp()})
		return
	}

	results := p.run(r.Context(), checks)
	rep := Report{Status: "ready", Checks: make(map[string]string, len(checks)), Timestamp: p.stamp()}
	code := http.StatusOK
	for i, c := range checks {
		if results[i] != nil {
			rep.Checks[c.Name] = results[i].Error()
			rep.Status = "not_ready"
			code = http.StatusServiceUnavailable
			p.logger.WarnContext(r.Context(), "readiness check failed",
				slog.String("check", c.Name),
				slog.Any("error", results[i]),
			)
			continue
		}
		rep.Checks[c.Name] = "ok"
	}
	writeJSON(w, code, rep)
}

func (p *Prober) run(ctx context.Context, checks []Check) []error {
	ctx, cancel := context.WithTimeout(ctx, CheckTimeout)
	defer cancel()

	results := make([]error, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			results[i] = c.Probe(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Prober) stamp() string { return p.clk.Now().UTC().Format(time.RFC3339) }

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
