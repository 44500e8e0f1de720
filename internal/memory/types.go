package memory

import (
	"context"
	"errors"

	"github.com/Machforo/illora-ai-chieftain/internal/models"
)

var (
	ErrLockTimeout = errors.New("timed out waiting for session lock")
)

// CreateFunc builds a fresh session for an identity seen for the first time
type CreateFunc func() *models.Session

// UpdateFunc mutates a session in place. Returning an error discards the
// mutation.
type UpdateFunc func(sess *models.Session) error

// Store defines the interface for conversation session storage
// This allows us to swap between Redis, in-memory, etc.
type Store interface {
	// GetOrCreate returns a snapshot of the session, creating it atomically
	// when the identity has never been seen.
	GetOrCreate(ctx context.Context, identity string, create CreateFunc) (*models.Session, error)

	// Update runs fn against the session while holding the identity's lock
	// and persists the result. Concurrent updates for the same identity are
	// serialized; different identities never block each other.
	Update(ctx context.Context, identity string, create CreateFunc, fn UpdateFunc) (*models.Session, error)

	// Delete removes a session
	Delete(ctx context.Context, identity string) error

	// Count returns the number of live sessions
	Count(ctx context.Context) (int, error)
}
