//go:generate mockgen -source=task.go -destination=mocks/mock_task.go -package=mocks

package parallel

import (
	"context"

	"github.com/agbru/blobmerge/internal/payload"
)

// WorkUnit is one slice of the partitioned payload.
type WorkUnit struct {
	// Chunk is a sub-slice of the larger payload. Ownership moves to the
	// worker; nobody else reads or writes it until the result comes back.
	Chunk []byte
	// Index is the unit's position in the partition and the only ordering key.
	Index int
	// Secondary is the unsplit smaller payload, for tasks that need it.
	Secondary []byte
	// Order is the effective merge order for this unit, already inverted
	// when the partitioned payload is the cargo.
	Order payload.Order
}

// WorkResult is the response to a WorkUnit.
type WorkResult struct {
	Index  int
	Buffer []byte
	// Err is set when the task failed; Buffer is then nil.
	Err error
}

// Task processes one work unit. Implementations must not share mutable state
// between calls.
type Task interface {
	Process(ctx context.Context, unit WorkUnit) ([]byte, error)
}

// TaskFunc adapts a function to the Task interface.
type TaskFunc func(ctx context.Context, unit WorkUnit) ([]byte, error)

// Process calls f(ctx, unit).
func (f TaskFunc) Process(ctx context.Context, unit WorkUnit) ([]byte, error) { return f(ctx, unit) }

// PassThrough returns every chunk unmodified. All merging is left to the
// orchestrator, which concatenates the secondary payload exactly once.
type PassThrough struct{}

// Process returns unit.Chunk.
func (PassThrough) Process(_ context.Context, unit WorkUnit) ([]byte, error) {
	return unit.Chunk, nil
}
