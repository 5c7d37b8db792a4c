// Package web provides HTTP handlers and REST API endpoints for run
// orchestration.
package web

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/datapilot/datapilot/pkg/services"
)

type APIHandlers struct {
	runService      *services.Runs
	recoveryService *services.Recovery
	toolService     *services.Tools
	validator       *validator.Validate
}

func NewAPIHandlers(
	runService *services.Runs,
	recoveryService *services.Recovery,
	toolService *services.Tools,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		runService:      runService,
		recoveryService: recoveryService,
		toolService:     toolService,
		validator:       validator,
	}
}

// RegisterRoutes wires every endpoint onto the app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/tools", h.GetTools)

	app.Post("/runs", h.CreateRun)
	app.Get("/runs", h.GetRuns)
	app.Get("/runs/:id", h.GetRun)
	app.Post("/runs/:id/cancel", h.CancelRun)
	app.Post("/runs/:id/replay", h.ReplayRun)
	app.Post("/runs/:id/steps/:stepId/approve", h.ApproveStep)

	app.Post("/snapshots", h.CreateSnapshot)
	app.Get("/snapshots", h.GetSnapshots)
	app.Get("/snapshots/:id", h.GetSnapshot)

	app.Post("/rollbacks", h.CreateRollback)
	app.Get("/rollbacks", h.GetRollbacks)
	app.Get("/rollbacks/:id", h.GetRollback)
	app.Post("/rollbacks/:id/apply", h.ApplyRollback)
	app.Post("/rollbacks/:id/cancel", h.CancelRollback)
}

func (h *APIHandlers) GetTools(c fiber.Ctx) error {
	return c.JSON(h.toolService.ListTools())
}

func (h *APIHandlers) CreateRun(c fiber.Ctx) error {
	var req StartRunRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	safeMode := true
	if req.SafeMode != nil {
		safeMode = *req.SafeMode
	}

	run, err := h.runService.StartRun(c.Context(), services.StartRunRequest{
		Plan:      req.Plan,
		Objective: req.Objective,
		SafeMode:  safeMode,
	})
	if err != nil {
		if run != nil {
			// The run exists but failed while executing; surface it.
			return c.Status(fiber.StatusCreated).JSON(TransformRunResponse(run))
		}

		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformRunResponse(run))
}

func (h *APIHandlers) GetRuns(c fiber.Ctx) error {
	req, err := h.parseListRunsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.runService.ListRuns(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	runs := make([]RunResponse, 0, len(result.Runs))
	for _, run := range result.Runs {
		runs = append(runs, TransformRunResponse(run))
	}

	c.Set("X-Total-Count", strconv.FormatInt(result.TotalCount, 10))

	return c.JSON(fiber.Map{
		"runs":          runs,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
	})
}

func (h *APIHandlers) parseListRunsRequest(c fiber.Ctx) (*services.ListRunsRequest, error) {
	req := &services.ListRunsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	req.Status = c.Query("status")

	return req, nil
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runService.GetRun(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformRunResponse(run))
}

func (h *APIHandlers) ApproveStep(c fiber.Ctx) error {
	runID := c.Params("id")
	stepID := c.Params("stepId")

	if runID == "" || stepID == "" {
		return badRequest(c, "Run ID and step ID are required")
	}

	var req ApproveStepRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	entry, err := h.runService.ApproveStep(c.Context(), runID, stepID, req.ApprovedBy, req.Note)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(entry)
}

func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runService.CancelRun(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformRunResponse(run))
}

func (h *APIHandlers) ReplayRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.runService.ReplayRun(c.Context(), id)
	if err != nil {
		if run != nil {
			return c.Status(fiber.StatusCreated).JSON(TransformRunResponse(run))
		}

		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(TransformRunResponse(run))
}

func (h *APIHandlers) CreateSnapshot(c fiber.Ctx) error {
	var req CreateSnapshotRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	captured, err := h.recoveryService.CaptureSnapshot(c.Context(), services.CaptureSnapshotRequest{
		RunID:      req.RunID,
		Kind:       req.Kind,
		TargetPath: req.TargetPath,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(captured)
}

func (h *APIHandlers) GetSnapshots(c fiber.Ctx) error {
	req := services.ListSnapshotsRequest{RunID: c.Query("run_id")}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+err.Error())
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset: "+err.Error())
		}

		req.Offset = offset
	}

	result, err := h.recoveryService.ListSnapshots(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set("X-Total-Count", strconv.FormatInt(result.TotalCount, 10))

	return c.JSON(fiber.Map{
		"snapshots":     result.Snapshots,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
	})
}

func (h *APIHandlers) GetSnapshot(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Snapshot ID is required")
	}

	captured, err := h.recoveryService.GetSnapshot(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(captured)
}

func (h *APIHandlers) CreateRollback(c fiber.Ctx) error {
	var req CreateRollbackRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, "Invalid request: "+err.Error())
	}

	requested, err := h.recoveryService.RequestRollback(c.Context(), req.SnapshotID, req.RunID, req.Note)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(requested)
}

func (h *APIHandlers) GetRollbacks(c fiber.Ctx) error {
	req := services.ListRollbacksRequest{
		RunID:  c.Query("run_id"),
		Status: c.Query("status"),
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit: "+err.Error())
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return badRequest(c, "Invalid offset: "+err.Error())
		}

		req.Offset = offset
	}

	result, err := h.recoveryService.ListRollbacks(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Set("X-Total-Count", strconv.FormatInt(result.TotalCount, 10))

	return c.JSON(fiber.Map{
		"rollbacks":     result.Rollbacks,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
	})
}

func (h *APIHandlers) GetRollback(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rollback ID is required")
	}

	requested, err := h.recoveryService.GetRollback(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(requested)
}

func (h *APIHandlers) ApplyRollback(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rollback ID is required")
	}

	var req ApplyRollbackRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return badRequest(c, "Invalid request body: "+err.Error())
		}
	}

	applied, result, err := h.recoveryService.ApplyRollback(c.Context(), id, req.Force)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"rollback": applied,
		"restore":  result,
	})
}

func (h *APIHandlers) CancelRollback(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Rollback ID is required")
	}

	cancelled, err := h.recoveryService.CancelRollback(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(cancelled)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	registryCheck, regOk := h.toolService.HealthCheck()
	repositoryCheck, repOk := h.runService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "DataPilot API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if regOk && repOk {
		status = "healthy"
		message = "DataPilot API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"registry":    registryCheck,
			"persistence": repositoryCheck,
		},
	})
}
