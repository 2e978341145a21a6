package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store/postgres"
)

type WorkflowHandler struct {
	db     *postgres.Store
	logger *zap.Logger
}

func NewWorkflowHandler(db *postgres.Store, logger *zap.Logger) *WorkflowHandler {
	return &WorkflowHandler{db: db, logger: logger}
}

type workflowStepRequest struct {
	Order                  int    `json:"order" binding:"required"`
	Name                   string `json:"name" binding:"required"`
	ApproverType           string `json:"approver_type" binding:"required"`
	ApproverRef            string `json:"approver_ref" binding:"required"`
	MinApprovals           int    `json:"min_approvals"`
	AutoEscalateAfterHours *int   `json:"auto_escalate_after_hours"`
	IsOptional             bool   `json:"is_optional"`
	SLAHours               *int   `json:"sla_hours"`
}

type workflowCreateRequest struct {
	Name         string                `json:"name" binding:"required"`
	Scope        string                `json:"scope"`
	ScopeFilters []string              `json:"scope_filters"`
	Steps        []workflowStepRequest `json:"steps" binding:"required"`
}

type workflowStepResponse struct {
	ID                     string `json:"id"`
	Order                  int    `json:"order"`
	Name                   string `json:"name"`
	ApproverType           string `json:"approver_type"`
	ApproverRef            string `json:"approver_ref"`
	MinApprovals           int    `json:"min_approvals"`
	AutoEscalateAfterHours *int   `json:"auto_escalate_after_hours,omitempty"`
	IsOptional             bool   `json:"is_optional"`
	SLAHours               *int   `json:"sla_hours,omitempty"`
}

type workflowResponse struct {
	ID           string                 `json:"id"`
	OwnerID      string                 `json:"owner_id"`
	Name         string                 `json:"name"`
	Scope        string                 `json:"scope"`
	ScopeFilters []string               `json:"scope_filters,omitempty"`
	IsActive     bool                   `json:"is_active"`
	Steps        []workflowStepResponse `json:"steps"`
	CreatedAt    string                 `json:"created_at"`
}

func (h *WorkflowHandler) Create(c *gin.Context) {
	var req workflowCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	scope := model.WorkflowScope(strings.TrimSpace(req.Scope))
	if scope == "" {
		scope = model.ScopeGlobal
	}
	if scope != model.ScopeGlobal && scope != model.ScopeTeam && scope != model.ScopeUser {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scope"})
		return
	}

	if len(req.Steps) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workflow requires at least one step"})
		return
	}

	workflow := &model.Workflow{
		ID:           uuid.New(),
		OwnerID:      actorID(c),
		Name:         req.Name,
		Scope:        scope,
		ScopeFilters: req.ScopeFilters,
		IsActive:     true,
	}

	lastOrder := 0
	for _, step := range req.Steps {
		if step.Order <= lastOrder {
			c.JSON(http.StatusBadRequest, gin.H{"error": "step order must be unique and strictly increasing"})
			return
		}
		lastOrder = step.Order

		approverType := model.ApproverType(step.ApproverType)
		if approverType != model.ApproverUser && approverType != model.ApproverRole && approverType != model.ApproverTeam {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid approver_type", "details": step.ApproverType})
			return
		}

		minApprovals := step.MinApprovals
		if minApprovals <= 0 {
			minApprovals = 1
		}

		workflow.Steps = append(workflow.Steps, model.WorkflowStep{
			ID:                     uuid.New(),
			WorkflowID:             workflow.ID,
			Order:                  step.Order,
			Name:                   step.Name,
			ApproverType:           approverType,
			ApproverRef:            step.ApproverRef,
			MinApprovals:           minApprovals,
			AutoEscalateAfterHours: step.AutoEscalateAfterHours,
			IsOptional:             step.IsOptional,
			SLAHours:               step.SLAHours,
		})
	}

	repo := postgres.NewWorkflowRepository(h.db.DB())
	if err := repo.Create(c.Request.Context(), workflow); err != nil {
		h.logger.Error("failed to create workflow", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create workflow"})
		return
	}

	c.JSON(http.StatusCreated, mapWorkflow(workflow))
}

func (h *WorkflowHandler) List(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 20)
	offset := parseOffset(c.Query("offset"))

	repo := postgres.NewWorkflowRepository(h.db.DB())
	workflows, total, err := repo.List(c.Request.Context(), limit, offset)
	if err != nil {
		h.logger.Error("failed to list workflows", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list workflows"})
		return
	}

	response := make([]workflowResponse, 0, len(workflows))
	for i := range workflows {
		response = append(response, mapWorkflow(&workflows[i]))
	}

	c.JSON(http.StatusOK, gin.H{"workflows": response, "total": total})
}

func (h *WorkflowHandler) Get(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	repo := postgres.NewWorkflowRepository(h.db.DB())
	workflow, err := repo.GetByID(c.Request.Context(), workflowID.String())
	if err != nil {
		respondStoreError(c, h.logger, err, "get workflow")
		return
	}

	c.JSON(http.StatusOK, mapWorkflow(workflow))
}

func (h *WorkflowHandler) Deactivate(c *gin.Context) {
	workflowID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid workflow id"})
		return
	}

	repo := postgres.NewWorkflowRepository(h.db.DB())
	if err := repo.Deactivate(c.Request.Context(), workflowID.String()); err != nil {
		respondStoreError(c, h.logger, err, "deactivate workflow")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func mapWorkflow(workflow *model.Workflow) workflowResponse {
	steps := make([]workflowStepResponse, 0, len(workflow.Steps))
	for _, step := range workflow.Steps {
		steps = append(steps, workflowStepResponse{
			ID:                     step.ID.String(),
			Order:                  step.Order,
			Name:                   step.Name,
			ApproverType:           string(step.ApproverType),
			ApproverRef:            step.ApproverRef,
			MinApprovals:           step.MinApprovals,
			AutoEscalateAfterHours: step.AutoEscalateAfterHours,
			IsOptional:             step.IsOptional,
			SLAHours:               step.SLAHours,
		})
	}
	return workflowResponse{
		ID:           workflow.ID.String(),
		OwnerID:      workflow.OwnerID,
		Name:         workflow.Name,
		Scope:        string(workflow.Scope),
		ScopeFilters: workflow.ScopeFilters,
		IsActive:     workflow.IsActive,
		Steps:        steps,
		CreatedAt:    workflow.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
}
