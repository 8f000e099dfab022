package file

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

const executionsDir = "executions"

// ExecutionRepository stores executions as executions/<id>.json.
type ExecutionRepository struct {
	root string
	mu   *sync.RWMutex
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.read(id)
}

func (er *ExecutionRepository) read(id string) (*models.Execution, error) {
	execution := &models.Execution{}
	if err := readRecord(er.root, executionsDir, id, execution, persistence.ErrExecutionNotFound); err != nil {
		return nil, err
	}

	return execution, nil
}

func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	if execution.ID == "" {
		execution.ID = uuid.New().String()
	}

	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = time.Now().UTC()
	}

	if execution.UniqueEventID != "" {
		existing, err := er.findByUniqueEventID(execution.UniqueEventID)
		if err != nil && err != persistence.ErrExecutionNotFound {
			return err
		}

		if existing != nil {
			return persistence.ErrExecutionAlreadyExists
		}
	}

	return writeRecord(er.root, executionsDir, execution.ID, execution)
}

func (er *ExecutionRepository) SavePointer(_ context.Context, execution *models.Execution) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	stored, err := er.read(execution.ID)
	if err != nil {
		return err
	}

	stored.CurrentNodeID = execution.CurrentNodeID
	stored.Context = execution.Context
	stored.Status = execution.Status
	stored.WakeUpTime = execution.WakeUpTime
	stored.LastError = execution.LastError
	stored.CompletedAt = execution.CompletedAt

	return writeRecord(er.root, executionsDir, stored.ID, stored)
}

func (er *ExecutionRepository) FindByUniqueEventID(_ context.Context, uniqueEventID string) (*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.findByUniqueEventID(uniqueEventID)
}

func (er *ExecutionRepository) findByUniqueEventID(uniqueEventID string) (*models.Execution, error) {
	executions, err := er.list(func(execution *models.Execution) bool {
		return execution.UniqueEventID == uniqueEventID
	})
	if err != nil {
		return nil, err
	}

	if len(executions) == 0 {
		return nil, persistence.ErrExecutionNotFound
	}

	return executions[0], nil
}

func (er *ExecutionRepository) ListDueWakeUps(_ context.Context, now time.Time) ([]*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.list(func(execution *models.Execution) bool {
		return execution.Status == models.ExecutionStatusPaused &&
			execution.WakeUpTime != nil &&
			!execution.WakeUpTime.After(now)
	})
}

func (er *ExecutionRepository) ListPausedByContact(_ context.Context, contactID string) ([]*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.list(func(execution *models.Execution) bool {
		return execution.Status == models.ExecutionStatusPaused &&
			execution.ContactID == contactID
	})
}

func (er *ExecutionRepository) ListActiveByContact(_ context.Context, automationID, contactID string) ([]*models.Execution, error) {
	er.mu.RLock()
	defer er.mu.RUnlock()

	return er.list(func(execution *models.Execution) bool {
		return execution.AutomationID == automationID &&
			execution.ContactID == contactID &&
			!execution.Status.IsTerminal()
	})
}

func (er *ExecutionRepository) list(match func(*models.Execution) bool) ([]*models.Execution, error) {
	ids, err := listRecordIDs(er.root, executionsDir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Execution, 0)

	for _, id := range ids {
		execution, err := er.read(id)
		if err != nil {
			return nil, err
		}

		if match(execution) {
			matched = append(matched, execution)
		}
	}

	return matched, nil
}
