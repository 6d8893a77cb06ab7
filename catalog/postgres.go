package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/flowscript/orchestrator/common/db"
	"github.com/flowscript/orchestrator/workflow"
)

// uniqueViolation is the postgres error code for duplicate keys.
const uniqueViolation = "23505"

// PostgresRepository stores definitions in the workflow_definitions
// table.
type PostgresRepository struct {
	db *db.DB
}

// NewPostgresRepository creates a repository over an existing pool.
func NewPostgresRepository(database *db.DB) *PostgresRepository {
	return &PostgresRepository{db: database}
}

// EnsureSchema creates the definitions table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS workflow_definitions (
			id            TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			version       INT NOT NULL DEFAULT 1,
			initial_state JSONB NOT NULL DEFAULT '{}',
			nodes         JSONB NOT NULL,
			metadata      JSONB NOT NULL DEFAULT '{}',
			tags          TEXT[] NOT NULL DEFAULT '{}',
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL
		)
	`

	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create workflow_definitions table: %w", err)
	}
	return nil
}

// Create inserts a new definition
func (r *PostgresRepository) Create(ctx context.Context, def *workflow.Definition) error {
	initialState, err := marshalDoc(def.InitialState)
	if err != nil {
		return err
	}
	metadata, err := marshalDoc(def.Metadata)
	if err != nil {
		return err
	}

	now := time.Now()
	createdAt, updatedAt := def.CreatedAt, def.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = now
	}

	query := `
		INSERT INTO workflow_definitions (id, name, description, version, initial_state, nodes, metadata, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.Exec(
		ctx,
		query,
		def.ID,
		def.Name,
		def.Description,
		def.Version,
		initialState,
		string(def.Nodes),
		metadata,
		tagsOrEmpty(def.Tags),
		createdAt,
		updatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", ErrExists, def.ID)
		}
		return fmt.Errorf("failed to create workflow definition: %w", err)
	}

	return nil
}

// Get retrieves a definition by its ID
func (r *PostgresRepository) Get(ctx context.Context, id string) (*workflow.Definition, error) {
	query := `
		SELECT id, name, description, version, initial_state, nodes, metadata, tags, created_at, updated_at
		FROM workflow_definitions
		WHERE id = $1
	`

	def := &workflow.Definition{}
	var initialState, nodes, metadata []byte
	err := r.db.QueryRow(ctx, query, id).Scan(
		&def.ID,
		&def.Name,
		&def.Description,
		&def.Version,
		&initialState,
		&nodes,
		&metadata,
		&def.Tags,
		&def.CreatedAt,
		&def.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get workflow definition: %w", err)
	}

	return decodeRow(def, initialState, nodes, metadata)
}

// List retrieves all definitions ordered by ID
func (r *PostgresRepository) List(ctx context.Context) ([]*workflow.Definition, error) {
	query := `
		SELECT id, name, description, version, initial_state, nodes, metadata, tags, created_at, updated_at
		FROM workflow_definitions
		ORDER BY id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow definitions: %w", err)
	}
	defer rows.Close()

	var defs []*workflow.Definition
	for rows.Next() {
		def := &workflow.Definition{}
		var initialState, nodes, metadata []byte
		err := rows.Scan(
			&def.ID,
			&def.Name,
			&def.Description,
			&def.Version,
			&initialState,
			&nodes,
			&metadata,
			&def.Tags,
			&def.CreatedAt,
			&def.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow definition: %w", err)
		}
		decoded, err := decodeRow(def, initialState, nodes, metadata)
		if err != nil {
			return nil, err
		}
		defs = append(defs, decoded)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflow definitions: %w", err)
	}

	return defs, nil
}

// Update replaces an existing definition and stamps updated_at
func (r *PostgresRepository) Update(ctx context.Context, def *workflow.Definition) error {
	initialState, err := marshalDoc(def.InitialState)
	if err != nil {
		return err
	}
	metadata, err := marshalDoc(def.Metadata)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_definitions
		SET name = $2, description = $3, version = $4, initial_state = $5, nodes = $6, metadata = $7, tags = $8, updated_at = $9
		WHERE id = $1
	`

	ct, err := r.db.Exec(
		ctx,
		query,
		def.ID,
		def.Name,
		def.Description,
		def.Version,
		initialState,
		string(def.Nodes),
		metadata,
		tagsOrEmpty(def.Tags),
		time.Now(),
	)

	if err != nil {
		return fmt.Errorf("failed to update workflow definition: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, def.ID)
	}

	return nil
}

// Delete removes a definition
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM workflow_definitions
		WHERE id = $1
	`

	ct, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow definition: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	return nil
}

// marshalDoc encodes a JSON document column; nil maps become the empty
// object rather than SQL null.
func marshalDoc(m map[string]interface{}) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}
	return string(b), nil
}

func tagsOrEmpty(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func decodeRow(def *workflow.Definition, initialState, nodes, metadata []byte) (*workflow.Definition, error) {
	if len(initialState) > 0 && string(initialState) != "null" {
		if err := json.Unmarshal(initialState, &def.InitialState); err != nil {
			return nil, fmt.Errorf("failed to decode initial state for %s: %w", def.ID, err)
		}
	}
	if len(metadata) > 0 && string(metadata) != "null" {
		if err := json.Unmarshal(metadata, &def.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata for %s: %w", def.ID, err)
		}
	}
	def.Nodes = json.RawMessage(nodes)
	return def, nil
}
