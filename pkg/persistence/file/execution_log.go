package file

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/cadencehq/cadence/pkg/models"
)

const logsDir = "logs"

var errLogNotFound = errors.New("execution log not found")

// ExecutionLogRepository stores one attempt record per (execution, node) as
// logs/<execution id>/<node id>.json. Re-running a node overwrites its
// record, so a success row can never be duplicated.
type ExecutionLogRepository struct {
	root string
	mu   *sync.RWMutex
}

func (lr *ExecutionLogRepository) MarkStarted(_ context.Context, entry *models.ExecutionLog) error {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if err := validateID(entry.ExecutionID); err != nil {
		return err
	}

	if entry.StartedAt.IsZero() {
		entry.StartedAt = time.Now().UTC()
	}

	stored := *entry
	stored.Status = models.LogStatusStarted
	stored.CompletedAt = nil
	stored.Metadata = nil

	return writeRecord(lr.root, path.Join(logsDir, entry.ExecutionID), entry.NodeID, &stored)
}

func (lr *ExecutionLogRepository) MarkCompleted(_ context.Context, executionID, nodeID string, status models.LogStatus, metadata map[string]any) error {
	lr.mu.Lock()
	defer lr.mu.Unlock()

	if err := validateID(executionID); err != nil {
		return err
	}

	entry := &models.ExecutionLog{}
	if err := readRecord(lr.root, path.Join(logsDir, executionID), nodeID, entry, errLogNotFound); err != nil {
		return err
	}

	now := time.Now().UTC()
	entry.Status = status
	entry.CompletedAt = &now
	entry.Metadata = metadata

	return writeRecord(lr.root, path.Join(logsDir, executionID), nodeID, entry)
}

func (lr *ExecutionLogRepository) HasSucceeded(_ context.Context, executionID, nodeID string) (bool, error) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()

	if err := validateID(executionID); err != nil {
		return false, err
	}

	entry := &models.ExecutionLog{}

	err := readRecord(lr.root, path.Join(logsDir, executionID), nodeID, entry, errLogNotFound)
	if errors.Is(err, errLogNotFound) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return entry.Status == models.LogStatusSuccess, nil
}

func (lr *ExecutionLogRepository) ListByExecution(_ context.Context, executionID string) ([]*models.ExecutionLog, error) {
	lr.mu.RLock()
	defer lr.mu.RUnlock()

	if err := validateID(executionID); err != nil {
		return nil, err
	}

	nodeIDs, err := listRecordIDs(lr.root, path.Join(logsDir, executionID))
	if err != nil {
		return nil, err
	}

	entries := make([]*models.ExecutionLog, 0, len(nodeIDs))

	for _, nodeID := range nodeIDs {
		entry := &models.ExecutionLog{}
		if err := readRecord(lr.root, path.Join(logsDir, executionID), nodeID, entry, errLogNotFound); err != nil {
			return nil, err
		}

		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].StartedAt.Before(entries[j].StartedAt)
	})

	return entries, nil
}
