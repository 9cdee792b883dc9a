// Package health serves the liveness, readiness and metrics endpoints of a
// running batch:
//
//   - /healthz: liveness; always 200, with the batch progress when tracked.
//   - /readyz:  200 only when every registered [Checker] passes.
//   - /metrics: Prometheus scrape endpoint (see [NewServer]).
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

// checkTimeout bounds a single readiness check.
const checkTimeout = 5 * time.Second

// Checker is a named readiness check. Check returns nil when the dependency
// is usable.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Readier is anything that can report whether it is able to synthesize,
// such as a [synth.Provider] or an engine wrapping one.
type Readier interface {
	Ready(ctx context.Context) error
}

var _ Readier = synth.Provider(nil)

// SynthChecker probes a synthesis backend through its Ready method.
func SynthChecker(p Readier) Checker {
	return Checker{Name: "synthesis", Check: p.Ready}
}

// DirChecker verifies that path exists and is a directory.
func DirChecker(name, path string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		fi, err := os.Stat(path)
		if err != nil {
			return err
		}
		if !fi.IsDir() {
			return fmt.Errorf("%s is not a directory", path)
		}
		return nil
	}}
}

// Progress tracks how far the current batch stage has come. The zero value
// is ready to use and safe for concurrent use.
type Progress struct {
	mu    sync.Mutex
	snap  ProgressSnapshot
	start time.Time
}

// ProgressSnapshot is the JSON view of a [Progress].
type ProgressSnapshot struct {
	Stage   string  `json:"stage"`
	Done    int     `json:"done"`
	Failed  int     `json:"failed"`
	Total   int     `json:"total"`
	Elapsed float64 `json:"elapsed_seconds"`
}

// Start begins a new stage with total expected steps.
func (p *Progress) Start(stage string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = ProgressSnapshot{Stage: stage, Total: total}
	p.start = time.Now()
}

// Step records one finished step.
func (p *Progress) Step(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap.Done++
	if !ok {
		p.snap.Failed++
	}
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() ProgressSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.snap
	if !p.start.IsZero() {
		s.Elapsed = time.Since(p.start).Seconds()
	}
	return s
}

// result is the JSON response body for health endpoints.
type result struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks,omitempty"`
	Progress *ProgressSnapshot `json:"progress,omitempty"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction time.
type Handler struct {
	checkers []Checker
	progress *Progress
}

// New creates a [Handler]. progress may be nil. Checkers run sequentially
// in the order given.
func New(progress *Progress, checkers ...Checker) *Handler {
	return &Handler{checkers: append([]Checker(nil), checkers...), progress: progress}
}

// Healthz always returns 200 OK.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	res := result{Status: "ok"}
	if h.progress != nil {
		snap := h.progress.Snapshot()
		res.Progress = &snap
	}
	writeJSON(w, http.StatusOK, res)
}

// Readyz returns 200 only when every [Checker] passes. Each check gets a
// [checkTimeout] deadline derived from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	res := result{Status: "ok", Checks: make(map[string]string, len(h.checkers))}
	status := http.StatusOK

	for _, c := range h.checkers {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := c.Check(ctx)
		cancel()

		if err != nil {
			res.Checks[c.Name] = "fail: " + err.Error()
			res.Status = "fail"
			status = http.StatusServiceUnavailable
			continue
		}
		res.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, res)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
