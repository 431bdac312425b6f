package models

// ElectionMember is one seat of an elected committee.
type ElectionMember struct {
	Key     string `json:"key"`
	Account string `json:"account"`
}

// ElectionRecord is the result of an epoch election. Weights is index-aligned
// with Members.
type ElectionRecord struct {
	Epoch           uint64           `gorm:"primaryKey;autoIncrement:false"`
	NetID           string           `gorm:"size:64"`
	Data            string           `gorm:"size:128"`
	Members         []ElectionMember `gorm:"serializer:json"`
	Weights         []uint64         `gorm:"serializer:json"`
	ProtocolVersion uint64
	TotalWeight     uint64
	BlockHeight     uint64 `gorm:"index"`
	Proposer        string `gorm:"size:64;index"`
	TxID            string `gorm:"size:128"`
	Type            string `gorm:"size:32"`
}

func (ElectionRecord) TableName() string { return "elections" }

// ElectionQuorum is the ratification enrichment of an election, tallied
// against the outgoing committee.
type ElectionQuorum struct {
	Epoch          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Ts             string `gorm:"size:64"`
	TrxID          string `gorm:"size:128"`
	Sig            string
	Bv             string `gorm:"size:256"`
	VotedWeight    uint64
	EligibleWeight uint64
}

func (ElectionQuorum) TableName() string { return "election_quorums" }
