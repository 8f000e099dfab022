// Package file provides a file-based persistence implementation. It keeps
// every record as one JSON file under the root directory, which makes it
// suitable for local development and tests but not for concurrent
// multi-process deployments.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cadencehq/cadence/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of the file system.
type Persistence struct {
	root string

	automationRepo *AutomationRepository
	executionRepo  *ExecutionRepository
	logRepo        *ExecutionLogRepository
	funnelRepo     *FunnelRepository
	templateRepo   *TemplateRepository
	tagRepo        *TagRepository
}

// NewPersistence creates a file persistence rooted at the given directory.
// The root may be given as a file:// URL.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	// A single lock serializes every read-modify-write path (metric
	// increments, journey upserts, pointer saves).
	mu := &sync.RWMutex{}

	return &Persistence{
		root:           cleanRoot,
		automationRepo: &AutomationRepository{root: cleanRoot, mu: mu},
		executionRepo:  &ExecutionRepository{root: cleanRoot, mu: mu},
		logRepo:        &ExecutionLogRepository{root: cleanRoot, mu: mu},
		funnelRepo:     &FunnelRepository{root: cleanRoot, mu: mu},
		templateRepo:   &TemplateRepository{root: cleanRoot, mu: mu},
		tagRepo:        &TagRepository{root: cleanRoot, mu: mu},
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) Automations() persistence.AutomationRepository {
	return fp.automationRepo
}

func (fp *Persistence) Executions() persistence.ExecutionRepository {
	return fp.executionRepo
}

func (fp *Persistence) ExecutionLogs() persistence.ExecutionLogRepository {
	return fp.logRepo
}

func (fp *Persistence) Funnels() persistence.FunnelRepository {
	return fp.funnelRepo
}

func (fp *Persistence) Templates() persistence.TemplateRepository {
	return fp.templateRepo
}

func (fp *Persistence) Tags() persistence.TagRepository {
	return fp.tagRepo
}

// validateID rejects identifiers that are unsafe as file names.
func validateID(id string) error {
	if id == "" {
		return errors.New("id cannot be empty")
	}

	if strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) {
		return errors.New("id contains invalid characters")
	}

	return nil
}

// writeRecord marshals the value and writes it to dir/<id>.json, creating
// the directory as needed. Callers hold the write lock.
func writeRecord(root, dir, id string, value any) error {
	if err := validateID(id); err != nil {
		return err
	}

	recordDir := filepath.Join(root, dir)

	if err := os.MkdirAll(recordDir, 0750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", dir, id, err)
	}

	if err := os.WriteFile(filepath.Join(recordDir, id+".json"), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", dir, id, err)
	}

	return nil
}

// readRecord unmarshals dir/<id>.json into target. It returns notFound when
// the file does not exist. Callers hold at least the read lock.
func readRecord(root, dir, id string, target any, notFound error) error {
	if err := validateID(id); err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(root, dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return notFound
		}

		return fmt.Errorf("failed to read %s %s: %w", dir, id, err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s %s: %w", dir, id, err)
	}

	return nil
}

// listRecordIDs returns the ids of every record stored under dir.
func listRecordIDs(root, dir string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(root, dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s directory: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
