package service

import (
	"context"
	"fmt"

	"github.com/flowscript/orchestrator/catalog"
	"github.com/flowscript/orchestrator/common/logger"
	"github.com/flowscript/orchestrator/workflow"
)

// WorkflowService owns the definition catalog: parsing, validation and
// storage. Repository errors (catalog.ErrNotFound, catalog.ErrExists)
// pass through for the handlers to map onto status codes.
type WorkflowService struct {
	repo catalog.Repository
	log  *logger.Logger
}

// NewWorkflowService creates a new workflow service
func NewWorkflowService(repo catalog.Repository, log *logger.Logger) *WorkflowService {
	return &WorkflowService{
		repo: repo,
		log:  log,
	}
}

// Create validates and stores a new definition document, returning the
// stored copy with its timestamps.
func (s *WorkflowService) Create(ctx context.Context, raw []byte) (*workflow.Definition, error) {
	def, err := workflow.Parse(raw)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, def); err != nil {
		return nil, err
	}

	s.log.Info("workflow created", "workflow_id", def.ID, "name", def.Name)
	return s.repo.Get(ctx, def.ID)
}

// Get returns one stored definition.
func (s *WorkflowService) Get(ctx context.Context, id string) (*workflow.Definition, error) {
	return s.repo.Get(ctx, id)
}

// List returns all stored definitions ordered by ID.
func (s *WorkflowService) List(ctx context.Context) ([]*workflow.Definition, error) {
	return s.repo.List(ctx)
}

// Update replaces a stored definition. The document's ID must match
// the target.
func (s *WorkflowService) Update(ctx context.Context, id string, raw []byte) (*workflow.Definition, error) {
	def, err := workflow.Parse(raw)
	if err != nil {
		return nil, err
	}
	if def.ID != id {
		return nil, fmt.Errorf("workflow id mismatch: document says %q, path says %q", def.ID, id)
	}

	if err := s.repo.Update(ctx, def); err != nil {
		return nil, err
	}

	s.log.Info("workflow updated", "workflow_id", id)
	return s.repo.Get(ctx, id)
}

// Patch applies an RFC 7386 merge patch to a stored definition and
// revalidates the result before storing it.
func (s *WorkflowService) Patch(ctx context.Context, id string, patch []byte) (*workflow.Definition, error) {
	def, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patched, err := catalog.MergePatch(def, patch)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, patched); err != nil {
		return nil, err
	}

	s.log.Info("workflow patched", "workflow_id", id)
	return s.repo.Get(ctx, id)
}

// Delete removes a stored definition.
func (s *WorkflowService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("workflow deleted", "workflow_id", id)
	return nil
}
