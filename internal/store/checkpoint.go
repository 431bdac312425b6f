package store

import (
	"context"

	"quorum-indexer/internal/models"

	"gorm.io/gorm/clause"
)

// GetCheckpoint returns the checkpoint stored under id, or ErrNotFound.
func (s *Store) GetCheckpoint(ctx context.Context, id string) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&cp).Error; err != nil {
		return nil, notFound(err)
	}
	return &cp, nil
}

// SetCheckpoint upserts cp on its id. Each id has a single writer.
func (s *Store) SetCheckpoint(ctx context.Context, cp *models.Checkpoint) error {
	return s.db.WithContext(ctx).
		Clauses(checkpointUpsert()).
		Create(cp).Error
}

func checkpointUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"l1_height", "l2_height", "epoch", "updated_at"}),
	}
}
