package store

import (
	"context"
	"errors"
	"fmt"

	"quorum-indexer/internal/models"

	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps the shared connection pool. It is safe for concurrent use by
// both correlators.
type Store struct {
	db        *gorm.DB
	elections *lru.Cache[uint64, models.ElectionRecord]
}

// New returns a Store over db. Elections never change once written, so up to
// cacheSize of them are memoized by epoch.
func New(db *gorm.DB, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[uint64, models.ElectionRecord](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("election cache: %w", err)
	}
	return &Store{db: db, elections: cache}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// NextBlocks returns up to limit block headers above slot height after, ascending.
func (s *Store) NextBlocks(ctx context.Context, after uint64, limit int) ([]models.BlockRecord, error) {
	var out []models.BlockRecord
	err := s.db.WithContext(ctx).
		Where("slot_height > ?", after).
		Order("slot_height ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpsertBlockQuorum writes the enrichment of a block keyed by its content id.
func (s *Store) UpsertBlockQuorum(ctx context.Context, q *models.BlockQuorum) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "block"}}, UpdateAll: true}).
		Create(q).Error
}

// NextElections returns up to limit elections with epoch above after, ascending.
func (s *Store) NextElections(ctx context.Context, after int64, limit int) ([]models.ElectionRecord, error) {
	var out []models.ElectionRecord
	err := s.db.WithContext(ctx).
		Where("epoch > ?", after).
		Order("epoch ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GoverningElection returns the most recent election recorded strictly below
// the given L1 height; its committee signs blocks at that height.
func (s *Store) GoverningElection(ctx context.Context, slotHeight uint64) (*models.ElectionRecord, error) {
	var e models.ElectionRecord
	if err := governingElection(s.db.WithContext(ctx), slotHeight).Take(&e).Error; err != nil {
		return nil, notFound(err)
	}
	s.elections.Add(e.Epoch, e)
	return &e, nil
}

func governingElection(tx *gorm.DB, slotHeight uint64) *gorm.DB {
	return tx.
		Where("block_height < ?", slotHeight).
		Order("block_height DESC").
		Order("epoch DESC")
}

// ElectionByEpoch looks an election up by its epoch number.
func (s *Store) ElectionByEpoch(ctx context.Context, epoch uint64) (*models.ElectionRecord, error) {
	if e, ok := s.elections.Get(epoch); ok {
		return &e, nil
	}
	var e models.ElectionRecord
	if err := s.db.WithContext(ctx).Where("epoch = ?", epoch).Take(&e).Error; err != nil {
		return nil, notFound(err)
	}
	s.elections.Add(epoch, e)
	return &e, nil
}

// UpsertElectionQuorum writes the ratification enrichment keyed by epoch.
func (s *Store) UpsertElectionQuorum(ctx context.Context, q *models.ElectionQuorum) error {
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "epoch"}}, UpdateAll: true}).
		Create(q).Error
}
