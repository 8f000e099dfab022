package file

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

const automationsDir = "automations"

// AutomationRepository stores automations as automations/<id>.json.
type AutomationRepository struct {
	root string
	mu   *sync.RWMutex
}

func (ar *AutomationRepository) GetByID(_ context.Context, id string) (*models.Automation, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	automation := &models.Automation{}
	if err := readRecord(ar.root, automationsDir, id, automation, persistence.ErrAutomationNotFound); err != nil {
		return nil, err
	}

	return automation, nil
}

func (ar *AutomationRepository) ListActiveByTriggerType(ctx context.Context, triggerType string) ([]*models.Automation, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	ids, err := listRecordIDs(ar.root, automationsDir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Automation, 0)

	for _, id := range ids {
		automation := &models.Automation{}
		if err := readRecord(ar.root, automationsDir, id, automation, persistence.ErrAutomationNotFound); err != nil {
			return nil, err
		}

		if automation.IsActive() && automation.TriggerType == triggerType {
			matched = append(matched, automation)
		}
	}

	return matched, nil
}

func (ar *AutomationRepository) Save(_ context.Context, automation *models.Automation) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	if automation.Graph != nil {
		if err := automation.Graph.Validate(); err != nil {
			return fmt.Errorf("refusing to save automation: %w", err)
		}
	}

	if automation.ID == "" {
		automation.ID = uuid.New().String()
	}

	now := time.Now().UTC()
	if automation.CreatedAt.IsZero() {
		automation.CreatedAt = now
	}

	automation.UpdatedAt = now

	return writeRecord(ar.root, automationsDir, automation.ID, automation)
}
