package file

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

const (
	funnelsDir     = "funnels"
	stepsDir       = "funnel_steps"
	journeysDir    = "funnel_journeys"
	conversionsDir = "funnel_conversions"
)

// FunnelRepository stores funnels, steps, journeys and conversions each in
// their own directory of JSON records.
type FunnelRepository struct {
	root string
	mu   *sync.RWMutex
}

// SaveFunnel is used to seed funnel configuration; the engine itself only
// reads funnels.
func (fr *FunnelRepository) SaveFunnel(_ context.Context, funnel *models.Funnel) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if funnel.ID == "" {
		funnel.ID = uuid.New().String()
	}

	return writeRecord(fr.root, funnelsDir, funnel.ID, funnel)
}

func (fr *FunnelRepository) GetByAutomationID(_ context.Context, automationID string) (*models.Funnel, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	ids, err := listRecordIDs(fr.root, funnelsDir)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		funnel := &models.Funnel{}
		if err := readRecord(fr.root, funnelsDir, id, funnel, persistence.ErrFunnelNotFound); err != nil {
			return nil, err
		}

		if funnel.AutomationID == automationID {
			return funnel, nil
		}
	}

	return nil, persistence.ErrFunnelNotFound
}

func (fr *FunnelRepository) GetFunnelByID(_ context.Context, funnelID string) (*models.Funnel, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	funnel := &models.Funnel{}
	if err := readRecord(fr.root, funnelsDir, funnelID, funnel, persistence.ErrFunnelNotFound); err != nil {
		return nil, err
	}

	return funnel, nil
}

func (fr *FunnelRepository) GetOrCreateStep(_ context.Context, step *models.FunnelStep) (*models.FunnelStep, error) {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	ids, err := listRecordIDs(fr.root, stepsDir)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		existing := &models.FunnelStep{}
		if err := readRecord(fr.root, stepsDir, id, existing, persistence.ErrFunnelStepNotFound); err != nil {
			return nil, err
		}

		if existing.FunnelID == step.FunnelID && existing.NodeID == step.NodeID {
			return existing, nil
		}
	}

	created := *step
	if created.ID == "" {
		created.ID = uuid.New().String()
	}

	if err := writeRecord(fr.root, stepsDir, created.ID, &created); err != nil {
		return nil, err
	}

	return &created, nil
}

func (fr *FunnelRepository) GetStepByID(_ context.Context, stepID string) (*models.FunnelStep, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	step := &models.FunnelStep{}
	if err := readRecord(fr.root, stepsDir, stepID, step, persistence.ErrFunnelStepNotFound); err != nil {
		return nil, err
	}

	return step, nil
}

func (fr *FunnelRepository) IncrementStepMetrics(_ context.Context, stepID string, delta models.StepMetrics) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	step := &models.FunnelStep{}
	if err := readRecord(fr.root, stepsDir, stepID, step, persistence.ErrFunnelStepNotFound); err != nil {
		return err
	}

	step.Metrics.Entered += delta.Entered
	step.Metrics.Completed += delta.Completed
	step.Metrics.Converted += delta.Converted
	step.Metrics.Revenue += delta.Revenue

	return writeRecord(fr.root, stepsDir, stepID, step)
}

func (fr *FunnelRepository) UpsertJourney(_ context.Context, journey *models.Journey) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	ids, err := listRecordIDs(fr.root, journeysDir)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	for _, id := range ids {
		existing := &models.Journey{}
		if err := readRecord(fr.root, journeysDir, id, existing, persistence.ErrFunnelNotFound); err != nil {
			return err
		}

		if existing.FunnelID == journey.FunnelID && existing.ContactID == journey.ContactID {
			existing.CurrentStepID = journey.CurrentStepID
			existing.Status = journey.Status
			existing.RevenueGenerated = journey.RevenueGenerated
			existing.CompletedAt = journey.CompletedAt
			existing.UpdatedAt = now

			*journey = *existing

			return writeRecord(fr.root, journeysDir, existing.ID, existing)
		}
	}

	if journey.ID == "" {
		journey.ID = uuid.New().String()
	}

	if journey.StartedAt.IsZero() {
		journey.StartedAt = now
	}

	journey.UpdatedAt = now

	return writeRecord(fr.root, journeysDir, journey.ID, journey)
}

func (fr *FunnelRepository) ListActiveJourneys(_ context.Context, contactID string) ([]*models.Journey, error) {
	fr.mu.RLock()
	defer fr.mu.RUnlock()

	ids, err := listRecordIDs(fr.root, journeysDir)
	if err != nil {
		return nil, err
	}

	matched := make([]*models.Journey, 0)

	for _, id := range ids {
		journey := &models.Journey{}
		if err := readRecord(fr.root, journeysDir, id, journey, persistence.ErrFunnelNotFound); err != nil {
			return nil, err
		}

		if journey.ContactID == contactID && journey.Status == models.JourneyStatusActive {
			matched = append(matched, journey)
		}
	}

	return matched, nil
}

func (fr *FunnelRepository) RecordConversion(_ context.Context, conversion *models.Conversion) error {
	fr.mu.Lock()
	defer fr.mu.Unlock()

	if conversion.ID == "" {
		conversion.ID = uuid.New().String()
	}

	if conversion.CreatedAt.IsZero() {
		conversion.CreatedAt = time.Now().UTC()
	}

	return writeRecord(fr.root, conversionsDir, conversion.ID, conversion)
}
