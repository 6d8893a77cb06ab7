// Package catalog stores workflow definitions. It offers an in-memory
// repository for tests and single-process deployments, a postgres
// repository for durable storage, a read-through cache decorator and a
// JSON directory loader for local development.
package catalog

import (
	"context"
	"errors"

	"github.com/flowscript/orchestrator/workflow"
)

var (
	// ErrNotFound is returned when no definition has the requested ID.
	ErrNotFound = errors.New("workflow definition not found")
	// ErrExists is returned when creating a definition whose ID is
	// already taken.
	ErrExists = errors.New("workflow definition already exists")
)

// Repository stores workflow definitions. Implementations return deep
// copies; callers may mutate results freely.
type Repository interface {
	Create(ctx context.Context, def *workflow.Definition) error
	Get(ctx context.Context, id string) (*workflow.Definition, error)
	List(ctx context.Context) ([]*workflow.Definition, error)
	Update(ctx context.Context, def *workflow.Definition) error
	Delete(ctx context.Context, id string) error
}
