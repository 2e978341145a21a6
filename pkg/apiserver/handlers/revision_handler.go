package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/revisions"
)

type RevisionHandler struct {
	revisions *revisions.Manager
	logger    *zap.Logger
}

func NewRevisionHandler(manager *revisions.Manager, logger *zap.Logger) *RevisionHandler {
	return &RevisionHandler{revisions: manager, logger: logger}
}

type revisionCreateRequest struct {
	Content     *string     `json:"content"`
	MediaURLs   []string    `json:"media_urls"`
	ScheduledAt *time.Time  `json:"scheduled_at"`
	Metadata    model.JSONB `json:"metadata"`
	Reason      string      `json:"reason"`
}

type revisionResponse struct {
	ID        string                 `json:"id"`
	PostID    string                 `json:"post_id"`
	ActorID   string                 `json:"actor_id"`
	Snapshot  model.RevisionSnapshot `json:"snapshot"`
	Metadata  model.JSONB            `json:"metadata,omitempty"`
	Reason    string                 `json:"reason,omitempty"`
	CreatedAt string                 `json:"created_at"`
}

func (h *RevisionHandler) Create(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	var req revisionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	snapshot := model.RevisionSnapshot{
		Content:     req.Content,
		MediaURLs:   req.MediaURLs,
		ScheduledAt: req.ScheduledAt,
	}

	revision, err := h.revisions.Record(c.Request.Context(), postID, actorID(c), snapshot, req.Metadata, req.Reason)
	if err != nil {
		respondStoreError(c, h.logger, err, "record revision")
		return
	}

	c.JSON(http.StatusCreated, mapRevision(revision))
}

func (h *RevisionHandler) List(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}

	list, err := h.revisions.List(c.Request.Context(), postID)
	if err != nil {
		respondStoreError(c, h.logger, err, "list revisions")
		return
	}

	response := make([]revisionResponse, 0, len(list))
	for i := range list {
		response = append(response, mapRevision(&list[i]))
	}

	c.JSON(http.StatusOK, gin.H{"revisions": response, "total": len(response)})
}

func (h *RevisionHandler) Restore(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid post id"})
		return
	}
	revisionID, err := uuid.Parse(c.Param("revisionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid revision id"})
		return
	}

	revision, err := h.revisions.Restore(c.Request.Context(), postID, revisionID, actorID(c))
	if err != nil {
		respondStoreError(c, h.logger, err, "restore revision")
		return
	}

	c.JSON(http.StatusOK, mapRevision(revision))
}

func mapRevision(revision *model.Revision) revisionResponse {
	return revisionResponse{
		ID:        revision.ID.String(),
		PostID:    revision.PostID.String(),
		ActorID:   revision.ActorID,
		Snapshot:  revision.Snapshot,
		Metadata:  revision.Metadata,
		Reason:    revision.Reason,
		CreatedAt: revision.CreatedAt.UTC().Format(timeRFC3339Nano),
	}
}
