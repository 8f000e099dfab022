package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cadencehq/cadence/pkg/models"
	"github.com/cadencehq/cadence/pkg/persistence"
)

// TemplateRepository reads stored email templates.
type TemplateRepository struct {
	db *sql.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// GetByID returns a template's subject and HTML body.
func (r *TemplateRepository) GetByID(ctx context.Context, id string) (*models.EmailTemplate, error) {
	query := `SELECT id, subject, html_content FROM email_templates WHERE id = $1`

	var template models.EmailTemplate

	err := r.db.QueryRowContext(ctx, query, id).Scan(&template.ID, &template.Subject, &template.HTML)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTemplateNotFound
		}

		return nil, fmt.Errorf("failed to scan template: %w", err)
	}

	return &template, nil
}

// TagRepository covers the tag catalog and contact membership.
type TagRepository struct {
	db *sql.DB
}

// NewTagRepository creates a new tag repository.
func NewTagRepository(db *sql.DB) *TagRepository {
	return &TagRepository{db: db}
}

// GetByName looks a tag up in the catalog.
func (r *TagRepository) GetByName(ctx context.Context, name string) (*models.Tag, error) {
	query := `SELECT id, name FROM tags WHERE name = $1`

	var tag models.Tag

	err := r.db.QueryRowContext(ctx, query, name).Scan(&tag.ID, &tag.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrTagNotFound
		}

		return nil, fmt.Errorf("failed to scan tag: %w", err)
	}

	return &tag, nil
}

// AddToContact applies an idempotent insert-or-ignore on the
// (contact, tag) pair. Repeated application never errors or duplicates.
func (r *TagRepository) AddToContact(ctx context.Context, contactID, tagID string) error {
	query := `
		INSERT INTO contact_tags (contact_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT (contact_id, tag_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, contactID, tagID)
	if err != nil {
		return fmt.Errorf("failed to add tag to contact: %w", err)
	}

	return nil
}

// HasTag reports whether a contact carries a tag.
func (r *TagRepository) HasTag(ctx context.Context, contactID, tagID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM contact_tags WHERE contact_id = $1 AND tag_id = $2)`

	var hasTag bool

	err := r.db.QueryRowContext(ctx, query, contactID, tagID).Scan(&hasTag)
	if err != nil {
		return false, fmt.Errorf("failed to query contact tag: %w", err)
	}

	return hasTag, nil
}
