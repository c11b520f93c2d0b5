// Package api provides the HTTP surface of the core: flow registration
// and execution, resume, and operator-facing backpressure/health
// endpoints. Grounded on the teacher's cmd/tarsy/main.go gin setup (the
// teacher's pkg/api was echo-based but never wired into go.mod — see
// DESIGN.md — so this package follows main.go's gin usage instead).
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/sleetrun/sleet/pkg/backpressure"
	"github.com/sleetrun/sleet/pkg/orchestration"
	"github.com/sleetrun/sleet/pkg/runtime"
)

// run is one registered flow's live execution state.
type run struct {
	mu      sync.Mutex
	flow    *runtime.Flow
	runner  *runtime.FlowRunner
	alloc   *orchestration.FlowAllocation
	status  runtime.ExecutionStatus
	lastErr error
}

// Server is the HTTP API server: it owns the in-memory flow/run
// registry, the resource manager, and the backpressure window, and
// exposes them over gin routes.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server

	resources    *orchestration.ResourceManager
	backpressure *backpressure.Window
	ffi          *runtime.FfiRegistry
	gasLimit     uint64

	mu   sync.Mutex
	runs map[string]*run
}

// NewServer wires a Server with the given resource manager, backpressure
// window, and shared FFI registry (used to construct each flow's VM).
func NewServer(resources *orchestration.ResourceManager, bp *backpressure.Window, ffi *runtime.FfiRegistry, gasLimit uint64) *Server {
	s := &Server{
		router:       gin.New(),
		resources:    resources,
		backpressure: bp,
		ffi:          ffi,
		gasLimit:     gasLimit,
		runs:         make(map[string]*run),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/backpressure", s.backpressureHandler)

	v1 := s.router.Group("/v1")
	v1.POST("/flows", s.registerFlowHandler)
	v1.GET("/flows/:id/status", s.flowStatusHandler)
	v1.POST("/flows/:id/resume", s.flowResumeHandler)
}

// Start runs the server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.router}
	return s.httpServer.ListenAndServe()
}

// Serve runs the server on a pre-created listener, used by tests that
// want a random OS-assigned port.
func (s *Server) Serve(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.router}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	snap := s.backpressure.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"backpressure": snap.Level.String(),
	})
}

func (s *Server) backpressureHandler(c *gin.Context) {
	snap := s.backpressure.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"level":             snap.Level.String(),
		"combined_pressure": snap.CombinedPressure,
		"short":             snap.Short,
		"long":              snap.Long,
		"amber_threshold":   snap.Amber,
		"red_threshold":     snap.Red,
		"tokens_available":  snap.TokensAvailable,
		"derivative":        snap.Derivative,
		"recommended_action": backpressure.RecommendedAction(snap),
	})
}

// registerFlowHandler handles POST /v1/flows: decode the §6.1 wire
// format, validate it, allocate resources, and start execution. A flow
// that suspends returns 202 with its run ID and status; one that
// completes without suspending releases its resources and returns 200.
func (s *Server) registerFlowHandler(c *gin.Context) {
	var def FlowDefinition
	if err := c.ShouldBindJSON(&def); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.backpressure.TryReserve(1) {
		snap := s.backpressure.Snapshot()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":  "rejected by backpressure controller",
			"level":  snap.Level.String(),
			"action": backpressure.RecommendedAction(snap),
		})
		return
	}

	flow, err := DecodeFlowDefinition(def)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	runID := uuid.NewString()
	alloc, err := s.resources.AllocateForFlow(runID, flow, orchestration.Requirement{}, orchestration.Requirement{})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	vm := runtime.NewVM(s.gasLimit, s.ffi)
	r := &run{flow: flow, runner: runtime.NewFlowRunner(flow, vm), alloc: alloc}

	status, err := r.runner.Run()
	r.status, r.lastErr = status, err
	if err == nil && status.Kind == runtime.StatusCompleted {
		if relErr := s.resources.ReleaseResources(alloc); relErr != nil {
			slog.Warn("failed to release flow resources", "error", relErr)
		}
	}

	s.mu.Lock()
	s.runs[runID] = r
	s.mu.Unlock()

	if err != nil {
		slog.Error("flow execution failed", "run_id", runID, "error", err)
		c.JSON(http.StatusOK, gin.H{"run_id": runID, "status": "failed", "error": err.Error()})
		return
	}

	c.JSON(statusCodeFor(status), gin.H{"run_id": runID, "status": statusToString(status)})
}

func (s *Server) flowStatusHandler(c *gin.Context) {
	s.mu.Lock()
	r, ok := s.runs[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run id"})
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastErr != nil {
		c.JSON(http.StatusOK, gin.H{"status": "failed", "error": r.lastErr.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": statusToString(r.status)})
}

// flowResumeHandler handles POST /v1/flows/{id}/resume: bind the
// caller's resume value and continue the run, releasing allocated
// resources if it terminates.
func (s *Server) flowResumeHandler(c *gin.Context) {
	s.mu.Lock()
	r, ok := s.runs[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown run id"})
		return
	}

	var body struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	status, err := r.runner.ResumeWithInput(runtime.String(body.Value))
	r.status, r.lastErr = status, err
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if status.Kind == runtime.StatusCompleted {
		if relErr := s.resources.ReleaseResources(r.alloc); relErr != nil {
			slog.Warn("failed to release flow resources", "error", relErr)
		}
	}
	c.JSON(statusCodeFor(status), gin.H{"status": statusToString(status)})
}

func statusToString(s runtime.ExecutionStatus) string {
	switch s.Kind {
	case runtime.StatusRunning:
		return "running"
	case runtime.StatusAwaitingInput:
		return "awaiting_input"
	case runtime.StatusCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

func statusCodeFor(s runtime.ExecutionStatus) int {
	if s.Kind == runtime.StatusAwaitingInput {
		return http.StatusAccepted
	}
	return http.StatusOK
}
