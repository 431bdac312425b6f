package store

import (
	"context"

	"quorum-indexer/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RecordElection counts an election for proposer unless epoch is not newer
// than the last one already counted, so replays leave the row unchanged.
func (s *Store) RecordElection(ctx context.Context, proposer string, epoch uint64) error {
	row := &models.WitnessStat{Proposer: proposer, ElectionCount: 1, LastEpoch: int64(epoch)}
	return s.db.WithContext(ctx).Clauses(electionStatUpsert()).Create(row).Error
}

// RecordBlock counts a produced block for proposer, monotonic in blockID.
func (s *Store) RecordBlock(ctx context.Context, proposer string, blockID uint64) error {
	row := &models.WitnessStat{Proposer: proposer, BlockCount: 1, LastBlock: int64(blockID), LastEpoch: -1}
	return s.db.WithContext(ctx).Clauses(blockStatUpsert()).Create(row).Error
}

func electionStatUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "proposer"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"election_count": gorm.Expr("witness_stats.election_count + 1"),
			"last_epoch":     gorm.Expr("excluded.last_epoch"),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "witness_stats.last_epoch < excluded.last_epoch"},
		}},
	}
}

func blockStatUpsert() clause.OnConflict {
	return clause.OnConflict{
		Columns: []clause.Column{{Name: "proposer"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"block_count": gorm.Expr("witness_stats.block_count + 1"),
			"last_block":  gorm.Expr("excluded.last_block"),
		}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "witness_stats.last_block < excluded.last_block"},
		}},
	}
}
