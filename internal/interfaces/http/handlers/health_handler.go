package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	molapp "github.com/turtacn/molcore/internal/application/molecule"
)

// HealthChecker is a component that can report its health.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	checkers []HealthChecker
	version  string
	startAt  time.Time
	timeout  time.Duration
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(version string, checkers ...HealthChecker) *HealthHandler {
	return &HealthHandler{
		checkers: checkers,
		version:  version,
		startAt:  time.Now(),
		timeout:  5 * time.Second,
	}
}

// LivenessResponse is the body of GET /healthz.
type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// ReadinessResponse is the body of GET /readyz.
type ReadinessResponse struct {
	Status     string                    `json:"status"`
	Components map[string]ComponentCheck `json:"components,omitempty"`
}

// ComponentCheck is the result of one checker.
type ComponentCheck struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Liveness handles GET /healthz. It always returns 200 while the process
// serves requests.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "alive",
		Version: h.version,
		Uptime:  time.Since(h.startAt).Truncate(time.Second).String(),
	})
}

// Readiness handles GET /readyz: 200 when every checker passes, 503
// otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if len(h.checkers) == 0 {
		writeJSON(w, http.StatusOK, ReadinessResponse{Status: "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	components := h.checkAll(ctx)

	resp := ReadinessResponse{Status: "ready", Components: components}
	code := http.StatusOK
	for _, c := range components {
		if c.Status != "healthy" {
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, code, resp)
}

func (h *HealthHandler) checkAll(ctx context.Context) map[string]ComponentCheck {
	results := make(map[string]ComponentCheck, len(h.checkers))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, checker := range h.checkers {
		wg.Add(1)
		go func(c HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := c.Check(ctx)
			cc := ComponentCheck{
				Status:  "healthy",
				Latency: time.Since(start).Truncate(time.Microsecond).String(),
			}
			if err != nil {
				cc.Status = "unhealthy"
				cc.Error = err.Error()
			}
			mu.Lock()
			results[c.Name()] = cc
			mu.Unlock()
		}(checker)
	}
	wg.Wait()
	return results
}

// probeStructure is phenol; its canonical form is known.
const (
	probeStructure = "c1ccccc1O"
	probeCanonical = "Oc1ccccc1"
)

// ChemistryChecker runs a known structure through the parse, canonicalize
// and match path of the service.
type ChemistryChecker struct {
	svc molapp.Service
}

// NewChemistryChecker creates a checker for svc.
func NewChemistryChecker(svc molapp.Service) *ChemistryChecker {
	return &ChemistryChecker{svc: svc}
}

func (c *ChemistryChecker) Name() string { return "chemistry" }

func (c *ChemistryChecker) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h := c.svc.ParseMolecule(probeStructure)
	if !h.IsValid() {
		return fmt.Errorf("probe structure rejected: %w", h.Err())
	}
	if got := h.CanonicalSMILES(); got != probeCanonical {
		return fmt.Errorf("probe canonical form %q, want %q", got, probeCanonical)
	}
	if !h.Matches(h) {
		return fmt.Errorf("probe structure does not match itself")
	}
	return nil
}
