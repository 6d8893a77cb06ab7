package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/flowscript/orchestrator/workflow"
)

func defFixture(id string) *workflow.Definition {
	return &workflow.Definition{
		ID:           id,
		Name:         "Fixture " + id,
		InitialState: map[string]interface{}{"count": 0},
		Nodes:        json.RawMessage(`[{"setData": {"path": "x", "value": 1}}]`),
		Tags:         []string{"test"},
	}
}

func TestMemoryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	def := defFixture("wf-a")
	if err := repo.Create(ctx, def); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := repo.Get(ctx, "wf-a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "Fixture wf-a" {
		t.Errorf("got name %q", got.Name)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("Create should stamp timestamps")
	}

	if err := repo.Create(ctx, defFixture("wf-b")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	defs, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(defs) != 2 || defs[0].ID != "wf-a" || defs[1].ID != "wf-b" {
		t.Fatalf("List returned wrong set: %+v", defs)
	}

	update := got.Clone()
	update.Name = "Renamed"
	if err := repo.Update(ctx, update); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	got, err = repo.Get(ctx, "wf-a")
	if err != nil {
		t.Fatalf("Get after update failed: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("update did not land, name %q", got.Name)
	}
	if got.UpdatedAt.Before(got.CreatedAt) {
		t.Error("Update should bump UpdatedAt")
	}

	if err := repo.Delete(ctx, "wf-a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := repo.Get(ctx, "wf-a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete: want ErrNotFound, got %v", err)
	}
}

func TestMemoryCreateDuplicate(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.Create(ctx, defFixture("wf-dup")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Create(ctx, defFixture("wf-dup")); !errors.Is(err, ErrExists) {
		t.Errorf("want ErrExists, got %v", err)
	}
}

func TestMemoryMissingTargets(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get: want ErrNotFound, got %v", err)
	}
	if err := repo.Update(ctx, defFixture("ghost")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update: want ErrNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete: want ErrNotFound, got %v", err)
	}
}

func TestMemoryCopiesAreIsolated(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	src := defFixture("wf-iso")
	if err := repo.Create(ctx, src); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Mutating the caller's definition after Create must not leak in.
	src.InitialState["count"] = 99
	src.Tags[0] = "mutated"

	got, err := repo.Get(ctx, "wf-iso")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.InitialState["count"] != 0 {
		t.Errorf("stored state aliased caller map: %v", got.InitialState)
	}
	if got.Tags[0] != "test" {
		t.Errorf("stored tags aliased caller slice: %v", got.Tags)
	}

	// Mutating one Get result must not affect the next.
	got.InitialState["count"] = 42
	again, err := repo.Get(ctx, "wf-iso")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if again.InitialState["count"] != 0 {
		t.Errorf("Get results alias each other: %v", again.InitialState)
	}
}
