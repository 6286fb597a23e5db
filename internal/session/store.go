// Package session provides server-side storage for issued session tokens,
// keyed by token hash so the raw credential is never persisted.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Lookup for unknown, expired, or revoked tokens.
var ErrNotFound = errors.New("session not found or expired")

// Record is what a live session resolves to.
type Record struct {
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Store maps token hashes to session records with a time-to-live.
type Store interface {
	Save(ctx context.Context, tokenHash string, rec Record, ttl time.Duration) error
	Lookup(ctx context.Context, tokenHash string) (Record, error)
	Revoke(ctx context.Context, tokenHash string) error
}
