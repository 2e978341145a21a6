package engine

import (
	"context"
	"fmt"

	"github.com/modgate/modgate/pkg/model"
	"github.com/modgate/modgate/pkg/store"
)

// ResolveWorkflow picks the default workflow for an author when none
// is named explicitly. Precedence: user-scoped match, then team-scoped
// match, then global. Within a tier, ties break on the newest
// definition (ListActive returns newest-first). A user/team scoped
// workflow with empty scope filters matches nobody; only active
// workflows participate.
func (e *Engine) ResolveWorkflow(ctx context.Context, authorID string) (*model.Workflow, error) {
	workflows, err := e.workflows.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}

	_, teams, err := e.directory.GroupsFor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("resolve author teams: %w", err)
	}

	var userMatch, teamMatch, globalMatch *model.Workflow
	for i := range workflows {
		workflow := &workflows[i]
		switch workflow.Scope {
		case model.ScopeUser:
			if userMatch == nil && containsString(workflow.ScopeFilters, authorID) {
				userMatch = workflow
			}
		case model.ScopeTeam:
			if teamMatch == nil && matchesAny(workflow.ScopeFilters, teams) {
				teamMatch = workflow
			}
		case model.ScopeGlobal:
			if globalMatch == nil {
				globalMatch = workflow
			}
		}
	}

	switch {
	case userMatch != nil:
		return userMatch, nil
	case teamMatch != nil:
		return teamMatch, nil
	case globalMatch != nil:
		return globalMatch, nil
	}

	return nil, fmt.Errorf("%w: no workflow matches author %s", store.ErrNotFound, authorID)
}

func containsString(haystack []string, needle string) bool {
	for _, value := range haystack {
		if value == needle {
			return true
		}
	}
	return false
}

func matchesAny(filters, values []string) bool {
	for _, value := range values {
		if containsString(filters, value) {
			return true
		}
	}
	return false
}
