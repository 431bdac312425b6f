package models

// WitnessStat aggregates per-proposer activity. Counters only move forward:
// a replayed block or epoch at or below the last seen value is ignored.
type WitnessStat struct {
	Proposer      string `gorm:"primaryKey;size:64"`
	BlockCount    int64
	ElectionCount int64
	LastBlock     int64
	LastEpoch     int64
}

func (WitnessStat) TableName() string { return "witness_stats" }
