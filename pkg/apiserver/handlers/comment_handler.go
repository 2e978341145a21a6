package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/comments"
	"github.com/modgate/modgate/pkg/model"
)

type CommentHandler struct {
	comments *comments.Manager
	logger   *zap.Logger
}

func NewCommentHandler(manager *comments.Manager, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: manager, logger: logger}
}

type commentCreateRequest struct {
	Body     string   `json:"body" binding:"required"`
	Type     string   `json:"type"`
	ParentID *string  `json:"parent_id"`
	Mentions []string `json:"mentions"`
	StepID   *string  `json:"step_id"`
}

type resolveRequest struct {
	Resolution string `json:"resolution"`
}

type commentResponse struct {
	ID              string   `json:"id"`
	PostID          string   `json:"post_id"`
	ActorID         string   `json:"actor_id"`
	Body            string   `json:"body"`
	Type            string   `json:"type"`
	ParentCommentID *string  `json:"parent_comment_id,omitempty"`
	ThreadID        string   `json:"thread_id"`
	IsResolved      bool     `json:"is_resolved"`
	ResolvedBy      string   `json:"resolved_by,omitempty"`
	ResolvedAt      *string  `json:"resolved_at,omitempty"`
	Resolution      string   `json:"resolution,omitempty"`
	Mentions        []string `json:"mentions,omitempty"`
	StepID          *string  `json:"step_id,omitempty"`
	CreatedAt       string   `json:"created_at"`
}

func (h *CommentHandler) Create(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	var req commentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	opts := comments.CreateOptions{
		Type:     model.CommentType(req.Type),
		Mentions: req.Mentions,
	}
	if req.ParentID != nil {
		parentID, err := uuid.Parse(*req.ParentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid parent id"})
			return
		}
		opts.ParentID = &parentID
	}
	if req.StepID != nil {
		stepID, err := uuid.Parse(*req.StepID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid step id"})
			return
		}
		opts.StepID = &stepID
	}

	comment, err := h.comments.Create(c.Request.Context(), postID, actorID(c), req.Body, opts)
	if err != nil {
		respondStoreError(c, h.logger, err, "create comment")
		return
	}

	c.JSON(http.StatusCreated, mapComment(comment))
}

func (h *CommentHandler) List(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	list, err := h.comments.ListByPost(c.Request.Context(), postID)
	if err != nil {
		respondStoreError(c, h.logger, err, "list comments")
		return
	}

	response := make([]commentResponse, 0, len(list))
	for i := range list {
		response = append(response, mapComment(&list[i]))
	}

	c.JSON(http.StatusOK, gin.H{"comments": response, "total": len(response)})
}

func (h *CommentHandler) Resolve(c *gin.Context) {
	commentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid comment id"})
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	if err := h.comments.Resolve(c.Request.Context(), commentID, actorID(c), req.Resolution); err != nil {
		respondStoreError(c, h.logger, err, "resolve comment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

func mapComment(comment *model.Comment) commentResponse {
	response := commentResponse{
		ID:         comment.ID.String(),
		PostID:     comment.PostID.String(),
		ActorID:    comment.ActorID,
		Body:       comment.Body,
		Type:       string(comment.Type),
		ThreadID:   comment.ThreadID.String(),
		IsResolved: comment.IsResolved,
		ResolvedBy: comment.ResolvedBy,
		ResolvedAt: formatTime(comment.ResolvedAt),
		Resolution: comment.Resolution,
		Mentions:   comment.Mentions,
		CreatedAt:  comment.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
	if comment.ParentCommentID != nil {
		parent := comment.ParentCommentID.String()
		response.ParentCommentID = &parent
	}
	if comment.StepID != nil {
		step := comment.StepID.String()
		response.StepID = &step
	}
	return response
}
