package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/modgate/modgate/pkg/metrics"
	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store"
)

// bulkWorkers bounds the per-batch fan-out.
const bulkWorkers = 4

type BulkResult struct {
	Success []string      `json:"success"`
	Failed  []BulkFailure `json:"failed"`
}

type BulkFailure struct {
	PostID string `json:"post_id"`
	Error  string `json:"error"`
}

// BulkAdvance applies one decision across many posts. Items are fully
// isolated: a failure on one post is recorded in Failed and never
// aborts the rest of the batch. The method itself only errors on an
// invalid decision; partial failure is a result, not an error.
func (e *Engine) BulkAdvance(ctx context.Context, postIDs []uuid.UUID, actorID string, decision model.ReviewAction) (*BulkResult, error) {
	if decision != model.ActionApprove && decision != model.ActionReject {
		return nil, fmt.Errorf("%w: bulk decision must be approve or reject, got %q", store.ErrValidation, decision)
	}
	if actorID == "" {
		return nil, fmt.Errorf("%w: actor id is required", store.ErrValidation)
	}

	result := &BulkResult{
		Success: []string{},
		Failed:  []BulkFailure{},
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	sem := make(chan struct{}, bulkWorkers)

	for _, postID := range postIDs {
		wg.Add(1)
		sem <- struct{}{}

		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()

			err := e.Advance(ctx, id, actorID, decision, AdvanceOptions{})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed = append(result.Failed, BulkFailure{
					PostID: id.String(),
					Error:  err.Error(),
				})
				metrics.BulkItemsTotal.WithLabelValues("failed").Inc()
				return
			}
			result.Success = append(result.Success, id.String())
			metrics.BulkItemsTotal.WithLabelValues("success").Inc()
		}(postID)
	}

	wg.Wait()
	return result, nil
}
