package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/engine"
	"github.com/modgate/modgate/pkg/model"
)

type ApprovalHandler struct {
	engine *engine.Engine
	logger *zap.Logger
}

func NewApprovalHandler(eng *engine.Engine, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{engine: eng, logger: logger}
}

type submitRequest struct {
	WorkflowID string `json:"workflow_id"`
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Comment  string `json:"comment"`
	Reason   string `json:"reason"`
}

type bulkRequest struct {
	PostIDs  []string `json:"post_ids" binding:"required"`
	Decision string   `json:"decision" binding:"required"`
}

type assignmentResponse struct {
	ID            string                   `json:"id"`
	PostID        string                   `json:"post_id"`
	WorkflowID    string                   `json:"workflow_id"`
	CurrentStepID string                   `json:"current_step_id"`
	Status        string                   `json:"status"`
	StepHistory   []stepHistoryEntry       `json:"step_history"`
	CreatedAt     string                   `json:"created_at"`
}

type stepHistoryEntry struct {
	StepID    string `json:"step_id"`
	Action    string `json:"action"`
	ActorID   string `json:"actor_id"`
	Timestamp string `json:"timestamp"`
}

type historyEntryResponse struct {
	ID            string               `json:"id"`
	PostID        string               `json:"post_id"`
	ActorID       string               `json:"actor_id"`
	Action        string               `json:"action"`
	ActionDetails *model.ActionDetails `json:"action_details"`
	CreatedAt     string               `json:"created_at"`
}

// Submit moves a post into review: resolves the applicable workflow
// and creates (or returns) the live assignment.
func (h *ApprovalHandler) Submit(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	assignment, err := h.engine.EnsureAssignment(c.Request.Context(), postID, actorID(c), strings.TrimSpace(req.WorkflowID))
	if err != nil {
		respondStoreError(c, h.logger, err, "submit post for review")
		return
	}

	c.JSON(http.StatusCreated, mapAssignment(assignment))
}

// Decision applies one reviewer action to the post's live assignment.
func (h *ApprovalHandler) Decision(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	action := model.ReviewAction(req.Decision)
	if !action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid decision"})
		return
	}

	err = h.engine.Advance(c.Request.Context(), postID, actorID(c), action, engine.AdvanceOptions{
		Comment: req.Comment,
		Reason:  req.Reason,
	})
	if err != nil {
		respondStoreError(c, h.logger, err, "apply decision")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

// Bulk applies one decision across many posts. The response is always
// 200 with a per-post breakdown; individual failures never fail the
// request.
func (h *ApprovalHandler) Bulk(c *gin.Context) {
	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	postIDs := make([]uuid.UUID, 0, len(req.PostIDs))
	for _, raw := range req.PostIDs {
		postID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id", "details": raw})
			return
		}
		postIDs = append(postIDs, postID)
	}

	result, err := h.engine.BulkAdvance(c.Request.Context(), postIDs, actorID(c), model.ReviewAction(req.Decision))
	if err != nil {
		respondStoreError(c, h.logger, err, "apply bulk decision")
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ApprovalHandler) Pending(c *gin.Context) {
	var postID *uuid.UUID
	if raw := strings.TrimSpace(c.Query("post_id")); raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
			return
		}
		postID = &parsed
	}

	assignments, err := h.engine.PendingApprovals(c.Request.Context(), actorID(c), postID)
	if err != nil {
		respondStoreError(c, h.logger, err, "list pending approvals")
		return
	}

	response := make([]assignmentResponse, 0, len(assignments))
	for i := range assignments {
		response = append(response, mapAssignment(&assignments[i]))
	}

	c.JSON(http.StatusOK, gin.H{"assignments": response, "total": len(response)})
}

func (h *ApprovalHandler) Stats(c *gin.Context) {
	stats, err := h.engine.ApprovalStats(c.Request.Context(), actorID(c))
	if err != nil {
		respondStoreError(c, h.logger, err, "load approval stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ApprovalHandler) Dashboard(c *gin.Context) {
	rows, err := h.engine.Dashboard(c.Request.Context(), actorID(c))
	if err != nil {
		respondStoreError(c, h.logger, err, "load dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows, "total": len(rows)})
}

func (h *ApprovalHandler) History(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 50)
	offset := parseOffset(c.Query("offset"))

	actor := strings.TrimSpace(c.Query("actor_id"))
	if actor == "" {
		actor = actorID(c)
	}

	entries, err := h.engine.History(c.Request.Context(), actor, limit, offset)
	if err != nil {
		respondStoreError(c, h.logger, err, "list history")
		return
	}

	response := make([]historyEntryResponse, 0, len(entries))
	for i := range entries {
		response = append(response, mapHistoryEntry(&entries[i]))
	}

	c.JSON(http.StatusOK, gin.H{"entries": response, "total": len(response)})
}

func mapAssignment(assignment *model.Assignment) assignmentResponse {
	history := make([]stepHistoryEntry, 0, len(assignment.StepHistory))
	for _, entry := range assignment.StepHistory {
		history = append(history, stepHistoryEntry{
			StepID:    entry.StepID.String(),
			Action:    string(entry.Action),
			ActorID:   entry.ActorID,
			Timestamp: entry.Timestamp.UTC().Format(timeRFC3339Nano),
		})
	}
	return assignmentResponse{
		ID:            assignment.ID.String(),
		PostID:        assignment.PostID.String(),
		WorkflowID:    assignment.WorkflowID.String(),
		CurrentStepID: assignment.CurrentStepID.String(),
		Status:        string(assignment.Status),
		StepHistory:   history,
		CreatedAt:     assignment.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
}

func mapHistoryEntry(entry *model.HistoryEntry) historyEntryResponse {
	return historyEntryResponse{
		ID:            entry.ID.String(),
		PostID:        entry.PostID.String(),
		ActorID:       entry.ActorID,
		Action:        entry.Action,
		ActionDetails: entry.ActionDetails,
		CreatedAt:     entry.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
}
