package correlator

import (
	"context"
	"errors"
	"fmt"

	"quorum-indexer/internal/bitvector"
	"quorum-indexer/internal/hive"
	"quorum-indexer/internal/metrics"
	"quorum-indexer/internal/models"
	"quorum-indexer/internal/store"

	"go.uber.org/zap"
)

// ChainHistory is the subset of the chain-history API the correlators use.
type ChainHistory interface {
	Transaction(ctx context.Context, id string) (*hive.Transaction, error)
	BlockOperations(ctx context.Context, height uint64, opType int, pathFilter string) ([]hive.BlockOperation, error)
}

// Checkpoints persists one high-water mark per correlator.
type Checkpoints interface {
	GetCheckpoint(ctx context.Context, id string) (*models.Checkpoint, error)
	SetCheckpoint(ctx context.Context, cp *models.Checkpoint) error
}

// WitnessStats keeps monotonic per-proposer counters.
type WitnessStats interface {
	RecordElection(ctx context.Context, proposer string, epoch uint64) error
	RecordBlock(ctx context.Context, proposer string, blockID uint64) error
}

// BlockStore is what the block correlator reads and writes.
type BlockStore interface {
	Checkpoints
	WitnessStats
	NextBlocks(ctx context.Context, after uint64, limit int) ([]models.BlockRecord, error)
	GoverningElection(ctx context.Context, slotHeight uint64) (*models.ElectionRecord, error)
	UpsertBlockQuorum(ctx context.Context, q *models.BlockQuorum) error
}

// BlockCorrelator attaches quorum statistics to L2 blocks from the L1
// transaction that anchored them.
type BlockCorrelator struct {
	*loop
	store   BlockStore
	history ChainHistory

	cp     *models.Checkpoint
	counts struct{ enriched uint64 }
}

// NewBlockCorrelator creates a stopped block correlator.
func NewBlockCorrelator(st BlockStore, history ChainHistory, intervals Intervals, log *zap.Logger) *BlockCorrelator {
	c := &BlockCorrelator{store: st, history: history}
	c.loop = newLoop("blocks", log.Named("blocks"), intervals)
	c.loop.batch = c.batch
	return c
}

func (c *BlockCorrelator) loadCheckpoint(ctx context.Context) error {
	if c.cp != nil {
		return nil
	}
	cp, err := c.store.GetCheckpoint(ctx, models.CheckpointBlocks)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cp = &models.Checkpoint{ID: models.CheckpointBlocks}
	case err != nil:
		return retryAfter(PhaseCheckpoint, c.intervals.Query, err)
	}
	c.cp = cp
	c.update(func(s *Status) { s.Checkpoint = *cp })
	return nil
}

func (c *BlockCorrelator) batch(ctx context.Context) (int, error) {
	if err := c.loadCheckpoint(ctx); err != nil {
		return 0, err
	}
	from := *c.cp

	records, err := c.store.NextBlocks(ctx, from.L1Height, BatchSize)
	if err != nil {
		return 0, retryAfter(PhaseFetchBatch, c.intervals.Query, err)
	}

	next := from
	var last bitvector.Tally
	for i := range records {
		rec := &records[i]
		blockID := from.L2Height + uint64(i) + 1
		tally, err := c.enrich(ctx, rec, blockID)
		if err != nil {
			return 0, fmt.Errorf("block %s at slot %d: %w", rec.Block, rec.SlotHeight, err)
		}
		next.L1Height = rec.SlotHeight
		next.L2Height = blockID
		last = tally
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := c.store.SetCheckpoint(ctx, &next); err != nil {
		return 0, retryAfter(PhasePersist, c.intervals.Item, err)
	}
	c.cp = &next
	c.counts.enriched += uint64(len(records))
	metrics.CheckpointHeight.WithLabelValues(c.name).Set(float64(next.L1Height))
	c.update(func(s *Status) {
		s.Checkpoint = next
		s.Enriched = c.counts.enriched
		s.LastTally = last.String()
	})
	c.log.Info("indexed L2 blocks",
		zap.Int("count", len(records)),
		zap.Uint64("from_block", from.L2Height),
		zap.Uint64("to_block", next.L2Height),
		zap.Uint64("l1_height", next.L1Height))
	return len(records), nil
}

func (c *BlockCorrelator) enrich(ctx context.Context, rec *models.BlockRecord, blockID uint64) (bitvector.Tally, error) {
	tx, err := c.history.Transaction(ctx, rec.ID)
	if err != nil {
		return bitvector.Tally{}, retryAfter(PhaseFetchItem, c.intervals.Item, err)
	}
	sig, err := parseBlockSignature(tx)
	if err != nil {
		return bitvector.Tally{}, fatal(PhaseParse, fmt.Errorf("tx %s: %w", rec.ID, err))
	}

	committee, err := c.store.GoverningElection(ctx, rec.SlotHeight)
	if err != nil {
		// No election below this height yet means the election writer lags.
		return bitvector.Tally{}, retryAfter(PhaseCommittee, c.intervals.Item, err)
	}

	tally, err := bitvector.FromString(sig.Bv, committee.Weights)
	if err != nil {
		return bitvector.Tally{}, fatal(PhaseDecode, err)
	}

	q := &models.BlockQuorum{
		Block:          rec.Block,
		BlockID:        blockID,
		Epoch:          committee.Epoch,
		Sig:            sig.Sig,
		Bv:             sig.Bv,
		VotedWeight:    tally.Voted,
		EligibleWeight: tally.Eligible,
	}
	if err := c.store.UpsertBlockQuorum(ctx, q); err != nil {
		return bitvector.Tally{}, retryAfter(PhaseUpsert, c.intervals.Item, err)
	}
	metrics.RecordsEnriched.WithLabelValues(c.name).Inc()
	if tally.Eligible > 0 {
		metrics.VotedRatio.WithLabelValues(c.name).Set(float64(tally.Voted) / float64(tally.Eligible))
	}

	if rec.Proposer != "" {
		if err := c.store.RecordBlock(ctx, rec.Proposer, blockID); err != nil {
			c.log.Warn("witness stat not updated", zap.String("proposer", rec.Proposer), zap.Error(err))
		}
	}
	return tally, nil
}
