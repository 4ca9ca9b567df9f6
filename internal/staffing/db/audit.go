package db

import (
	"context"
	"encoding/json"
	"fmt"

	dbmodels "github.com/gartstein/staffing/internal/staffing/db/models"
	"github.com/gartstein/staffing/internal/staffing/models"
	"github.com/google/uuid"
)

// RecordAudit appends an audit entry. Called with a transactional context it
// commits or rolls back together with the mutation it describes.
func (r *Repository) RecordAudit(ctx context.Context, entry *models.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	metadata := entry.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	rec := &dbmodels.AuditLog{
		ID:        entry.ID,
		FirmID:    entry.FirmID,
		ActorID:   entry.ActorID,
		Action:    string(entry.Action),
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Metadata:  raw,
		CreatedAt: entry.CreatedAt,
	}
	if err := r.conn(ctx).Create(rec).Error; err != nil {
		return translateError(err)
	}
	entry.CreatedAt = rec.CreatedAt
	return nil
}
