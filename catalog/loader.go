package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/flowscript/orchestrator/workflow"
)

// LoadDir reads every *.json file under dir as a workflow definition
// and upserts it into the repository. It returns how many definitions
// were loaded. A file that fails to parse aborts the load.
func LoadDir(ctx context.Context, dir string, repo Repository) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read workflow directory %s: %w", dir, err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		raw, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return loaded, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		def, err := workflow.Parse(raw)
		if err != nil {
			return loaded, fmt.Errorf("failed to load %s: %w", entry.Name(), err)
		}

		if err := repo.Create(ctx, def); err != nil {
			if !errors.Is(err, ErrExists) {
				return loaded, fmt.Errorf("failed to store %s: %w", def.ID, err)
			}
			if err := repo.Update(ctx, def); err != nil {
				return loaded, fmt.Errorf("failed to refresh %s: %w", def.ID, err)
			}
		}
		loaded++
	}

	return loaded, nil
}
