package services

import (
	"context"
	"fmt"

	"github.com/datapilot/datapilot/pkg/models"
	"github.com/datapilot/datapilot/pkg/orchestrator"
	"github.com/datapilot/datapilot/pkg/persistence"
	"github.com/datapilot/datapilot/pkg/planner"
)

// Runs is the service behind the run-facing API operations.
type Runs struct {
	persistence  persistence.Persistence
	orchestrator *orchestrator.Orchestrator
	planner      planner.Planner
}

func NewRuns(p persistence.Persistence, o *orchestrator.Orchestrator, pl planner.Planner) *Runs {
	return &Runs{
		persistence:  p,
		orchestrator: o,
		planner:      pl,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Runs) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// StartRunRequest carries a plan, or an objective to send to the planner when
// no plan is given.
type StartRunRequest struct {
	Plan      *models.Plan
	Objective string
	SafeMode  bool
}

// StartRun validates the request and starts a new run. When only an objective
// is given the external planner produces the plan first.
func (s *Runs) StartRun(ctx context.Context, req StartRunRequest) (*models.Run, error) {
	plan := req.Plan

	if plan == nil {
		if req.Objective == "" {
			return nil, NewValidationError("StartRun", "PLAN_REQUIRED",
				"either a plan or an objective is required", ErrPlanNil)
		}

		if s.planner == nil {
			return nil, NewValidationError("StartRun", "NO_PLANNER",
				"no planner configured for objective-only runs", ErrPlanNil)
		}

		generated, err := s.planner.GeneratePlan(ctx, req.Objective, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to generate plan: %w", err)
		}

		plan = generated
	}

	return s.orchestrator.StartRun(ctx, plan, req.SafeMode)
}

// GetRun returns the run with its full plan and log.
func (s *Runs) GetRun(ctx context.Context, runID string) (*models.Run, error) {
	return s.persistence.RunRepository().GetByID(ctx, runID)
}

// ListRunsRequest contains options for listing runs.
type ListRunsRequest struct {
	Limit  int
	Offset int
	Status string
}

// ListRunsResponse contains the result of listing runs.
type ListRunsResponse struct {
	Runs        []*models.Run `json:"runs"`
	TotalCount  int64         `json:"total_count"`
	HasNextPage bool          `json:"has_next_page"`
}

func (s *Runs) ListRuns(ctx context.Context, req ListRunsRequest) (*ListRunsResponse, error) {
	normalizePagination(&req.Limit, &req.Offset)

	runs, total, err := s.persistence.RunRepository().List(ctx, persistence.ListOptions{
		Limit:  req.Limit,
		Offset: req.Offset,
		Status: req.Status,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return &ListRunsResponse{
		Runs:        runs,
		TotalCount:  total,
		HasNextPage: int64(req.Offset+len(runs)) < total,
	}, nil
}

// ApproveStep records an approval on a gated step and resumes the run.
func (s *Runs) ApproveStep(ctx context.Context, runID, stepID, approver, note string) (*models.LogEntry, error) {
	if approver == "" {
		return nil, NewValidationError("ApproveStep", "APPROVER_REQUIRED",
			"approver is required", ErrEmptyApprover)
	}

	return s.orchestrator.ApproveStep(ctx, runID, stepID, approver, note)
}

// CancelRun stops a running run without rolling anything back.
func (s *Runs) CancelRun(ctx context.Context, runID string) (*models.Run, error) {
	return s.orchestrator.CancelRun(ctx, runID)
}

// ReplayRun starts a fresh run from an existing run's plan.
func (s *Runs) ReplayRun(ctx context.Context, runID string) (*models.Run, error) {
	return s.orchestrator.ReplayRun(ctx, runID)
}

func normalizePagination(limit, offset *int) {
	if *limit <= 0 {
		*limit = 20
	}

	if *limit > 100 {
		*limit = 100
	}

	if *offset < 0 {
		*offset = 0
	}
}
