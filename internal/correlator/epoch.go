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

// EpochStore is what the epoch correlator reads and writes.
type EpochStore interface {
	Checkpoints
	WitnessStats
	NextElections(ctx context.Context, after int64, limit int) ([]models.ElectionRecord, error)
	ElectionByEpoch(ctx context.Context, epoch uint64) (*models.ElectionRecord, error)
	UpsertElectionQuorum(ctx context.Context, q *models.ElectionQuorum) error
}

// EpochCorrelator attaches ratification quorum statistics to elections.
type EpochCorrelator struct {
	*loop
	store   EpochStore
	history ChainHistory
	netID   string

	cp     *models.Checkpoint
	counts struct{ enriched, skipped uint64 }
}

// NewEpochCorrelator creates a stopped epoch correlator for network netID.
func NewEpochCorrelator(st EpochStore, history ChainHistory, netID string, intervals Intervals, log *zap.Logger) *EpochCorrelator {
	c := &EpochCorrelator{store: st, history: history, netID: netID}
	c.loop = newLoop("epochs", log.Named("epochs"), intervals)
	c.loop.batch = c.batch
	return c
}

func (c *EpochCorrelator) loadCheckpoint(ctx context.Context) error {
	if c.cp != nil {
		return nil
	}
	cp, err := c.store.GetCheckpoint(ctx, models.CheckpointEpochs)
	switch {
	case errors.Is(err, store.ErrNotFound):
		cp = &models.Checkpoint{ID: models.CheckpointEpochs, Epoch: -1}
	case err != nil:
		return retryAfter(PhaseCheckpoint, c.intervals.Query, err)
	}
	c.cp = cp
	c.update(func(s *Status) { s.Checkpoint = *cp })
	return nil
}

func (c *EpochCorrelator) batch(ctx context.Context) (int, error) {
	if err := c.loadCheckpoint(ctx); err != nil {
		return 0, err
	}
	from := *c.cp

	records, err := c.store.NextElections(ctx, from.Epoch, BatchSize)
	if err != nil {
		return 0, retryAfter(PhaseFetchBatch, c.intervals.Query, err)
	}

	next := from
	var enriched, skipped uint64
	var last bitvector.Tally
	for i := range records {
		rec := &records[i]
		tally, err := c.enrich(ctx, rec)
		switch {
		case err == nil:
			enriched++
			last = tally
		case OutcomeOf(err) == Skip:
			// Advancing past an unmatched epoch keeps the indexer from
			// stalling on it forever.
			skipped++
			metrics.RecordsSkipped.WithLabelValues(c.name).Inc()
			c.log.Info("ratification not observable yet, skipping",
				zap.Uint64("epoch", rec.Epoch),
				zap.String("proposer", rec.Proposer),
				zap.Uint64("block_height", rec.BlockHeight))
		default:
			return 0, fmt.Errorf("epoch %d: %w", rec.Epoch, err)
		}
		next.Epoch = int64(rec.Epoch)
	}
	if len(records) == 0 {
		return 0, nil
	}

	if err := c.store.SetCheckpoint(ctx, &next); err != nil {
		return 0, retryAfter(PhasePersist, c.intervals.Item, err)
	}
	c.cp = &next
	c.counts.enriched += enriched
	c.counts.skipped += skipped
	metrics.CheckpointHeight.WithLabelValues(c.name).Set(float64(next.Epoch))
	c.update(func(s *Status) {
		s.Checkpoint = next
		s.Enriched = c.counts.enriched
		s.Skipped = c.counts.skipped
		if enriched > 0 {
			s.LastTally = last.String()
		}
	})
	c.log.Info("indexed epochs",
		zap.Int("count", len(records)),
		zap.Uint64("skipped", skipped),
		zap.Int64("from_epoch", from.Epoch),
		zap.Int64("to_epoch", next.Epoch))
	return len(records), nil
}

// ratification is the L1 operation that ratified an election.
type ratification struct {
	trxID   string
	ts      string
	payload *electionPayload
}

func (c *EpochCorrelator) enrich(ctx context.Context, rec *models.ElectionRecord) (bitvector.Tally, error) {
	rat, err := c.locate(ctx, rec)
	if err != nil {
		return bitvector.Tally{}, err
	}
	sig, err := rat.payload.Signature.signature()
	if err != nil {
		return bitvector.Tally{}, fatal(PhaseParse, fmt.Errorf("tx %s: %w", rat.trxID, err))
	}

	// The outgoing committee ratifies the new one.
	var weights []uint64
	if rec.Epoch > 0 {
		prev, err := c.store.ElectionByEpoch(ctx, rec.Epoch-1)
		if err != nil {
			return bitvector.Tally{}, retryAfter(PhaseCommittee, c.intervals.Query,
				fmt.Errorf("previous epoch %d: %w", rec.Epoch-1, err))
		}
		weights = prev.Weights
	}

	tally, err := bitvector.FromString(sig.Bv, weights)
	if err != nil {
		return bitvector.Tally{}, retryAfter(PhaseDecode, c.intervals.Query, err)
	}

	q := &models.ElectionQuorum{
		Epoch:          rec.Epoch,
		Ts:             rat.ts,
		TrxID:          rat.trxID,
		Sig:            sig.Sig,
		Bv:             sig.Bv,
		VotedWeight:    tally.Voted,
		EligibleWeight: tally.Eligible,
	}
	if err := c.store.UpsertElectionQuorum(ctx, q); err != nil {
		return bitvector.Tally{}, retryAfter(PhaseUpsert, c.intervals.Item, err)
	}
	metrics.RecordsEnriched.WithLabelValues(c.name).Inc()
	if tally.Eligible > 0 {
		metrics.VotedRatio.WithLabelValues(c.name).Set(float64(tally.Voted) / float64(tally.Eligible))
	}

	if rec.Proposer != "" {
		if err := c.store.RecordElection(ctx, rec.Proposer, rec.Epoch); err != nil {
			c.log.Warn("witness stat not updated", zap.String("proposer", rec.Proposer), zap.Error(err))
		}
	}
	return tally, nil
}

// locate finds the ratification of rec, by its transaction id when known,
// otherwise by scanning the election result operations of its L1 block.
func (c *EpochCorrelator) locate(ctx context.Context, rec *models.ElectionRecord) (*ratification, error) {
	if rec.TxID != "" {
		return c.locateByTx(ctx, rec)
	}

	ops, err := c.history.BlockOperations(ctx, rec.BlockHeight, hive.OpCustomJSON, hive.ElectionResultFilter)
	if err != nil {
		return nil, retryAfter(PhaseFetchItem, c.intervals.Item, err)
	}
	for _, op := range ops {
		// Unsigned operations never match, not even a record without a proposer.
		if signer := op.Op.Value.Signer(); signer == "" || signer != rec.Proposer {
			continue
		}
		p, err := parseElectionPayload(op.Op.Value.JSON)
		if err != nil {
			continue
		}
		if p.ratifies(rec, c.netID) {
			return &ratification{trxID: op.TrxID, ts: op.Timestamp, payload: p}, nil
		}
	}
	return nil, skip(PhaseFetchItem, fmt.Errorf("block %d: %w", rec.BlockHeight, errNoRatification))
}

func (c *EpochCorrelator) locateByTx(ctx context.Context, rec *models.ElectionRecord) (*ratification, error) {
	tx, err := c.history.Transaction(ctx, rec.TxID)
	if err != nil {
		return nil, retryAfter(PhaseFetchItem, c.intervals.Item, err)
	}
	raw, err := firstPayload(tx)
	if err != nil {
		return nil, fatal(PhaseParse, fmt.Errorf("tx %s: %w", rec.TxID, err))
	}
	p, err := parseElectionPayload(raw)
	if err != nil {
		return nil, fatal(PhaseParse, fmt.Errorf("tx %s: %w", rec.TxID, err))
	}
	if !p.ratifies(rec, c.netID) {
		return nil, skip(PhaseFetchItem, fmt.Errorf("tx %s: %w", rec.TxID, errNoRatification))
	}
	return &ratification{trxID: rec.TxID, ts: tx.Timestamp, payload: p}, nil
}
