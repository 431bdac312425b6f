package correlator

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"quorum-indexer/internal/hive"
	"quorum-indexer/internal/models"
	"quorum-indexer/internal/store"

	"go.uber.org/zap"
)

var errUnavailable = errors.New("unavailable")

func testIntervals() Intervals {
	return Intervals{Query: time.Millisecond, Item: 2 * time.Millisecond, Idle: time.Millisecond}
}

// memStore is an in-memory BlockStore and EpochStore with failure injection.
type memStore struct {
	mu sync.Mutex

	blocks      []models.BlockRecord
	elections   []models.ElectionRecord
	blockQ      map[string]models.BlockQuorum
	electionQ   map[uint64]models.ElectionQuorum
	checkpoints map[string]models.Checkpoint
	witness     map[string]models.WitnessStat
	cpWrites    []models.Checkpoint

	failNextList       int
	failSetCheckpoint  int
	failUpsert         int
	failElectionLookup int
}

func newMemStore() *memStore {
	return &memStore{
		blockQ:      map[string]models.BlockQuorum{},
		electionQ:   map[uint64]models.ElectionQuorum{},
		checkpoints: map[string]models.Checkpoint{},
		witness:     map[string]models.WitnessStat{},
	}
}

func take(n *int) bool {
	if *n > 0 {
		*n--
		return true
	}
	return false
}

func (m *memStore) addBlocks(recs ...models.BlockRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, recs...)
}

func (m *memStore) addElections(recs ...models.ElectionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.elections = append(m.elections, recs...)
}

func (m *memStore) GetCheckpoint(_ context.Context, id string) (*models.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &cp, nil
}

func (m *memStore) SetCheckpoint(_ context.Context, cp *models.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(&m.failSetCheckpoint) {
		return errUnavailable
	}
	m.checkpoints[cp.ID] = *cp
	m.cpWrites = append(m.cpWrites, *cp)
	return nil
}

func (m *memStore) NextBlocks(_ context.Context, after uint64, limit int) ([]models.BlockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(&m.failNextList) {
		return nil, errUnavailable
	}
	var out []models.BlockRecord
	for _, b := range m.blocks {
		if b.SlotHeight > after {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlotHeight < out[j].SlotHeight })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GoverningElection(_ context.Context, slotHeight uint64) (*models.ElectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(&m.failElectionLookup) {
		return nil, errUnavailable
	}
	var best *models.ElectionRecord
	for i := range m.elections {
		e := &m.elections[i]
		if e.BlockHeight >= slotHeight {
			continue
		}
		if best == nil || e.BlockHeight > best.BlockHeight ||
			(e.BlockHeight == best.BlockHeight && e.Epoch > best.Epoch) {
			best = e
		}
	}
	if best == nil {
		return nil, store.ErrNotFound
	}
	out := *best
	return &out, nil
}

func (m *memStore) UpsertBlockQuorum(_ context.Context, q *models.BlockQuorum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(&m.failUpsert) {
		return errUnavailable
	}
	m.blockQ[q.Block] = *q
	return nil
}

func (m *memStore) NextElections(_ context.Context, after int64, limit int) ([]models.ElectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(&m.failNextList) {
		return nil, errUnavailable
	}
	var out []models.ElectionRecord
	for _, e := range m.elections {
		if int64(e.Epoch) > after {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Epoch < out[j].Epoch })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ElectionByEpoch(_ context.Context, epoch uint64) (*models.ElectionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(&m.failElectionLookup) {
		return nil, errUnavailable
	}
	for _, e := range m.elections {
		if e.Epoch == epoch {
			out := e
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpsertElectionQuorum(_ context.Context, q *models.ElectionQuorum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if take(&m.failUpsert) {
		return errUnavailable
	}
	m.electionQ[q.Epoch] = *q
	return nil
}

func (m *memStore) RecordElection(_ context.Context, proposer string, epoch uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.witness[proposer]
	if !ok {
		m.witness[proposer] = models.WitnessStat{Proposer: proposer, ElectionCount: 1, LastEpoch: int64(epoch)}
		return nil
	}
	if ws.LastEpoch < int64(epoch) {
		ws.ElectionCount++
		ws.LastEpoch = int64(epoch)
		m.witness[proposer] = ws
	}
	return nil
}

func (m *memStore) RecordBlock(_ context.Context, proposer string, blockID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.witness[proposer]
	if !ok {
		m.witness[proposer] = models.WitnessStat{Proposer: proposer, BlockCount: 1, LastBlock: int64(blockID), LastEpoch: -1}
		return nil
	}
	if ws.LastBlock < int64(blockID) {
		ws.BlockCount++
		ws.LastBlock = int64(blockID)
		m.witness[proposer] = ws
	}
	return nil
}

func (m *memStore) blockQuorums() map[string]models.BlockQuorum {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.BlockQuorum, len(m.blockQ))
	for k, v := range m.blockQ {
		out[k] = v
	}
	return out
}

func (m *memStore) electionQuorums() map[uint64]models.ElectionQuorum {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint64]models.ElectionQuorum, len(m.electionQ))
	for k, v := range m.electionQ {
		out[k] = v
	}
	return out
}

func (m *memStore) checkpoint(id string) (models.Checkpoint, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[id]
	return cp, ok
}

// memHistory serves canned chain-history responses.
type memHistory struct {
	mu       sync.Mutex
	txs      map[string]*hive.Transaction
	blockOps map[uint64][]hive.BlockOperation
	failNext int
	calls    int
}

func newMemHistory() *memHistory {
	return &memHistory{txs: map[string]*hive.Transaction{}, blockOps: map[uint64][]hive.BlockOperation{}}
}

func (h *memHistory) Transaction(_ context.Context, id string) (*hive.Transaction, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if take(&h.failNext) {
		return nil, errUnavailable
	}
	tx, ok := h.txs[id]
	if !ok {
		return nil, &hive.StatusError{URL: "/transactions/" + id, Code: 404}
	}
	return tx, nil
}

func (h *memHistory) BlockOperations(_ context.Context, height uint64, _ int, _ string) ([]hive.BlockOperation, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if take(&h.failNext) {
		return nil, errUnavailable
	}
	return h.blockOps[height], nil
}

func (h *memHistory) putTx(id, payload, ts string, signer string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tx := &hive.Transaction{Timestamp: ts}
	tx.TransactionJSON.Operations = []hive.Operation{{
		Type:  "custom_json_operation",
		Value: hive.CustomJSON{JSON: payload, RequiredAuths: []string{signer}},
	}}
	h.txs[id] = tx
}

func (h *memHistory) putOp(height uint64, trxID, ts, signer, payload string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var op hive.BlockOperation
	op.TrxID = trxID
	op.Timestamp = ts
	op.Op.Value = hive.CustomJSON{ID: "vsc.election_result", JSON: payload, RequiredAuths: []string{signer}}
	h.blockOps[height] = append(h.blockOps[height], op)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func blockPayloadJSON(t *testing.T, sig, bv string) string {
	return mustJSON(t, map[string]any{
		"signed_block": map[string]any{
			"block":     "bafy-block",
			"signature": map[string]any{"sig": sig, "bv": bv},
		},
	})
}

func electionPayloadJSON(t *testing.T, netID, data string, epoch uint64, bv string) string {
	return mustJSON(t, map[string]any{
		"net_id":    netID,
		"data":      data,
		"epoch":     epoch,
		"signature": map[string]any{"sig": "agg-" + data, "bv": bv},
	})
}

func repeatWeight(w uint64, n int) []uint64 {
	out := make([]uint64, n)
	for i := range out {
		out[i] = w
	}
	return out
}

func nopLogger() *zap.Logger { return zap.NewNop() }
