package models

import "time"

const (
	CheckpointBlocks = "blocks"
	CheckpointEpochs = "epochs"
)

// Checkpoint is the persisted high-water mark of a correlator. Block
// progress uses L1Height/L2Height, epoch progress uses Epoch.
type Checkpoint struct {
	ID        string    `gorm:"primaryKey;size:32" json:"id"`
	L1Height  uint64    `json:"l1_height"`
	L2Height  uint64    `json:"l2_height"`
	Epoch     int64     `json:"epoch"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Checkpoint) TableName() string { return "indexer_states" }
