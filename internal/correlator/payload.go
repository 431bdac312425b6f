package correlator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"quorum-indexer/internal/hive"
	"quorum-indexer/internal/models"
)

var (
	errNoOperation    = errors.New("transaction has no operation")
	errNoSignedBlock  = errors.New("signed_block is missing")
	errNoSignature    = errors.New("signature is missing or incomplete")
	errNoRatification = errors.New("ratification operation not found")
)

// Signature is the aggregated signature of a block or an election.
type Signature struct {
	Sig string
	Bv  string
}

type wireSignature struct {
	Sig *string `json:"sig"`
	Bv  *string `json:"bv"`
}

func (w *wireSignature) signature() (Signature, error) {
	if w == nil || w.Sig == nil || w.Bv == nil {
		return Signature{}, errNoSignature
	}
	return Signature{Sig: *w.Sig, Bv: *w.Bv}, nil
}

type blockPayload struct {
	SignedBlock *struct {
		Signature *wireSignature `json:"signature"`
	} `json:"signed_block"`
}

// firstPayload returns the JSON payload of the transaction's only operation.
func firstPayload(tx *hive.Transaction) (string, error) {
	ops := tx.TransactionJSON.Operations
	if len(ops) == 0 {
		return "", errNoOperation
	}
	return ops[0].Value.JSON, nil
}

func parseBlockSignature(tx *hive.Transaction) (Signature, error) {
	raw, err := firstPayload(tx)
	if err != nil {
		return Signature{}, err
	}
	var p blockPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Signature{}, fmt.Errorf("block payload: %w", err)
	}
	if p.SignedBlock == nil {
		return Signature{}, errNoSignedBlock
	}
	return p.SignedBlock.Signature.signature()
}

type electionPayload struct {
	NetID     string         `json:"net_id"`
	Data      string         `json:"data"`
	Epoch     json.Number    `json:"epoch"`
	Signature *wireSignature `json:"signature"`
}

func parseElectionPayload(raw string) (*electionPayload, error) {
	var p electionPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("election payload: %w", err)
	}
	return &p, nil
}

// ratifies reports whether the payload is the ratification of rec on netID.
// Several proposals can land in one block; only the one carrying the
// record's data hash and epoch counts.
func (p *electionPayload) ratifies(rec *models.ElectionRecord, netID string) bool {
	if p.NetID != netID || p.Data != rec.Data {
		return false
	}
	epoch, err := strconv.ParseUint(p.Epoch.String(), 10, 64)
	return err == nil && epoch == rec.Epoch
}
