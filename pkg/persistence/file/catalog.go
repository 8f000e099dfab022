package file

import (
	"context"
	"errors"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

const (
	templatesDir   = "templates"
	tagsDir        = "tags"
	contactTagsDir = "contact_tags"
)

// TemplateRepository stores email templates as templates/<id>.json.
type TemplateRepository struct {
	root string
	mu   *sync.RWMutex
}

// Save seeds a template record.
func (tr *TemplateRepository) Save(_ context.Context, template *models.EmailTemplate) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if template.ID == "" {
		template.ID = uuid.New().String()
	}

	return writeRecord(tr.root, templatesDir, template.ID, template)
}

func (tr *TemplateRepository) GetByID(_ context.Context, id string) (*models.EmailTemplate, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	template := &models.EmailTemplate{}
	if err := readRecord(tr.root, templatesDir, id, template, persistence.ErrTemplateNotFound); err != nil {
		return nil, err
	}

	return template, nil
}

// TagRepository stores the tag catalog as tags/<id>.json and contact
// membership as empty marker records under contact_tags/<contact id>/.
type TagRepository struct {
	root string
	mu   *sync.RWMutex
}

// Save seeds a tag catalog record.
func (tr *TagRepository) Save(_ context.Context, tag *models.Tag) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tag.ID == "" {
		tag.ID = uuid.New().String()
	}

	return writeRecord(tr.root, tagsDir, tag.ID, tag)
}

func (tr *TagRepository) GetByName(_ context.Context, name string) (*models.Tag, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	ids, err := listRecordIDs(tr.root, tagsDir)
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		tag := &models.Tag{}
		if err := readRecord(tr.root, tagsDir, id, tag, persistence.ErrTagNotFound); err != nil {
			return nil, err
		}

		if tag.Name == name {
			return tag, nil
		}
	}

	return nil, persistence.ErrTagNotFound
}

func (tr *TagRepository) AddToContact(_ context.Context, contactID, tagID string) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if err := validateID(contactID); err != nil {
		return err
	}

	if err := validateID(tagID); err != nil {
		return err
	}

	// Insert-or-ignore: an existing marker keeps its original timestamp.
	if _, err := os.Stat(filepath.Join(tr.root, contactTagsDir, contactID, tagID+".json")); err == nil {
		return nil
	}

	membership := map[string]any{"assigned_at": time.Now().UTC()}

	return writeRecord(tr.root, path.Join(contactTagsDir, contactID), tagID, membership)
}

func (tr *TagRepository) HasTag(_ context.Context, contactID, tagID string) (bool, error) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()

	if err := validateID(contactID); err != nil {
		return false, err
	}

	if err := validateID(tagID); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(tr.root, contactTagsDir, contactID, tagID+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	return true, nil
}
