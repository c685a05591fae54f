package ports

import (
	"context"

	"github.com/altolabs/clefshift/internal/core/domain"
)

// TaskStore is the synchronized mapping from task id to task-state record.
// It is the single point of synchronization between an in-flight run and
// concurrent status/cancel/cleanup calls, so Update must apply its mutator
// atomically with respect to other mutations of the same task.
type TaskStore interface {
	// Create stores a new task record. The id must be fresh.
	Create(ctx context.Context, t domain.Task) error

	// Get returns a copy of the record, or domain.ErrUnknownTask.
	Get(ctx context.Context, id string) (domain.Task, error)

	// Update applies fn to the record under the store's lock and persists
	// the outcome. It returns domain.ErrUnknownTask for a missing id and
	// any error returned by fn unchanged.
	Update(ctx context.Context, id string, fn func(*domain.Task) error) error

	// Delete removes the record. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error

	// CountActive returns the number of tasks in a non-terminal state.
	CountActive(ctx context.Context) (int, error)

	// List returns a copy of every record, for the expired-task sweeper.
	List(ctx context.Context) ([]domain.Task, error)
}
