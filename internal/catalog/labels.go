package catalog

import (
	"context"
	"fmt"

	"varman/internal/metadata"
	"varman/internal/store"
)

// upsertLabel inserts a label for an owner. A label with the same language
// code and purpose replaces the existing text: the catalog's duplicate-label
// policy is deterministic replace, matching the UNIQUE index on
// (entity_type, entity_id, language_code, purpose).
func (c *Catalog) upsertLabel(ctx context.Context, q store.Querier, ownerType metadata.OwnerType, ownerID int64, l metadata.Label) error {
	query := c.store.Rebind(`
		INSERT INTO labels (entity_type, entity_id, language_code, purpose, text)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id, language_code, purpose)
		DO UPDATE SET text = excluded.text, updated_at = ` + c.store.Dialect.NowExpr() + `
	`)
	if _, err := q.ExecContext(ctx, query, string(ownerType), ownerID, l.LanguageCode, string(l.Purpose), l.Text); err != nil {
		return fmt.Errorf("upsert label: %w", c.store.MapError(err))
	}
	return nil
}

// loadLabels returns an owner's labels in insertion (id) order.
func (c *Catalog) loadLabels(ctx context.Context, q store.Querier, ownerType metadata.OwnerType, ownerID int64) ([]metadata.Label, error) {
	query := c.store.Rebind(`
		SELECT id, language_code, purpose, text
		FROM labels
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY id
	`)
	rows, err := q.QueryContext(ctx, query, string(ownerType), ownerID)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	defer rows.Close()

	var labels []metadata.Label
	for rows.Next() {
		l := metadata.Label{OwnerType: ownerType, OwnerID: ownerID}
		var purpose string
		if err := rows.Scan(&l.ID, &l.LanguageCode, &purpose, &l.Text); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		l.Purpose = metadata.Purpose(purpose)
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// deleteLabelsFor removes all labels owned by an entity. Label ownership is
// polymorphic, so this cascade cannot be an FK and lives here.
func (c *Catalog) deleteLabelsFor(ctx context.Context, q store.Querier, ownerType metadata.OwnerType, ownerID int64) error {
	query := c.store.Rebind(`DELETE FROM labels WHERE entity_type = ? AND entity_id = ?`)
	if _, err := store.Exec(ctx, q, query, string(ownerType), ownerID); err != nil {
		return fmt.Errorf("delete labels: %w", err)
	}
	return nil
}

// removeLabel deletes one label after checking it belongs to the owner.
func (c *Catalog) removeLabel(ctx context.Context, ownerType metadata.OwnerType, ownerID int64, labelID int64) error {
	query := c.store.Rebind(`DELETE FROM labels WHERE id = ? AND entity_type = ? AND entity_id = ?`)
	n, err := store.Exec(ctx, c.store.DB, query, labelID, string(ownerType), ownerID)
	if err != nil {
		return fmt.Errorf("delete label: %w", err)
	}
	if n == 0 {
		return NotFoundError("label", fmt.Sprintf("%d", labelID))
	}
	return nil
}

// normalizeLabel validates and normalizes a label's purpose before writing.
func normalizeLabel(l metadata.Label) (metadata.Label, error) {
	purpose, err := metadata.ParsePurpose(string(l.Purpose))
	if err != nil {
		return l, err
	}
	l.Purpose = purpose
	return l, nil
}
