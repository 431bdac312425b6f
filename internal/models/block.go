package models

import "time"

// BlockRecord is an L2 block header as written by the chain node. ID is the
// L1 transaction that anchored the block and Block is its content id.
type BlockRecord struct {
	Block      string `gorm:"primaryKey;size:128"`
	ID         string `gorm:"size:128;index"`
	SlotHeight uint64 `gorm:"index"`
	StartBlock uint64
	EndBlock   uint64
	MerkleRoot string `gorm:"size:128"`
	Proposer   string `gorm:"size:64;index"`
	SigRoot    string `gorm:"size:128"`
	Signers    string `gorm:"size:128"`
	Ts         string `gorm:"size:64"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (BlockRecord) TableName() string { return "block_headers" }

// BlockQuorum is the enrichment attached to a block once its L1 transaction
// has been correlated. One row per content id; rewrites are idempotent.
type BlockQuorum struct {
	Block          string `gorm:"primaryKey;size:128"`
	BlockID        uint64 `gorm:"index"`
	Epoch          uint64 `gorm:"index"`
	Sig            string
	Bv             string `gorm:"size:256"`
	VotedWeight    uint64
	EligibleWeight uint64
}

func (BlockQuorum) TableName() string { return "block_quorums" }
