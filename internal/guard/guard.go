// Package guard enforces per-resource ownership: a mutation may proceed only
// when the acting session identity equals the todo's current owner.
package guard

import (
	"context"

	"dashtodo/api/internal/todo"
)

// OwnerFetcher resolves the current owner of a todo; nil means no such todo.
type OwnerFetcher interface {
	FetchTodoOwner(ctx context.Context, todoID string) (*todo.Owner, error)
}

type Guard struct {
	repo OwnerFetcher
}

func New(repo OwnerFetcher) *Guard {
	return &Guard{repo: repo}
}

// Authorize reports whether sessionIdentity may mutate todoID. A nonexistent
// todo denies rather than reporting not-found, so callers cannot probe for
// existence. Lookup failures propagate as errors, not denials. The check is
// never cached; every mutation re-verifies ownership.
func (g *Guard) Authorize(ctx context.Context, sessionIdentity, todoID string) (bool, error) {
	if sessionIdentity == "" || todoID == "" {
		return false, nil
	}
	owner, err := g.repo.FetchTodoOwner(ctx, todoID)
	if err != nil {
		return false, err
	}
	if owner == nil {
		return false, nil
	}
	return owner.ID == sessionIdentity, nil
}
