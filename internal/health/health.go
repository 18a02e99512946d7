// Package health reports whether the playback server can serve sessions.
//
// Two endpoints are exposed:
//
//   - /healthz — liveness probe; a process that can serve HTTP answers
//     200 OK.
//   - /readyz  — readiness probe; answers 200 only when every playback
//     dependency (cache store, speech provider) passes its probe.
//
// The readiness response breaks down per dependency with the probe's
// outcome and duration, so an operator can tell a slow cache store from an
// unconfigured provider at a glance.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// probeTimeout bounds a single dependency probe. A store that cannot
// enumerate keys within this window cannot serve the cache ladder either.
const probeTimeout = 5 * time.Second

// Checker probes one playback dependency. Check returns nil when the
// dependency can serve playback and a descriptive error otherwise; it must
// respect context cancellation.
type Checker struct {
	// Name labels the dependency in the readiness report (e.g. "store",
	// "provider").
	Name string

	Check func(ctx context.Context) error
}

// probeResult is one dependency's outcome in the readiness report.
type probeResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// report is the JSON body for both endpoints.
type report struct {
	Status string                 `json:"status"`
	Checks map[string]probeResult `json:"checks,omitempty"`
}

// Handler serves the /healthz and /readyz endpoints. Safe for concurrent
// use; the checker list is fixed at construction.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] that probes the given dependencies on each
// /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Healthz is the liveness probe. A running process that can serve HTTP is
// alive regardless of dependency state.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz probes every dependency concurrently, each with its own
// [probeTimeout], and reports 503 when any probe fails. Probes run in
// parallel so one slow dependency does not mask the others' results behind
// its timeout.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make([]probeResult, len(h.checkers))

	g, ctx := errgroup.WithContext(r.Context())
	for i, c := range h.checkers {
		g.Go(func() error {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := c.Check(probeCtx)
			res := probeResult{
				Status:    "ok",
				ElapsedMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				res.Status = "fail"
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()

	rep := report{
		Status: "ok",
		Checks: make(map[string]probeResult, len(h.checkers)),
	}
	status := http.StatusOK
	for i, c := range h.checkers {
		rep.Checks[c.Name] = results[i]
		if results[i].Status != "ok" {
			rep.Status = "fail"
			status = http.StatusServiceUnavailable
		}
	}

	writeJSON(w, status, rep)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// writeJSON encodes v with the given status code. On encoding failure it
// falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
