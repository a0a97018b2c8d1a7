package staking

import "math/big"

// Commitment records a single stake action. Amount, tier, start time and the
// eligibility window snapshot are immutable after creation; WithdrawnAt is the
// only mutable field and is written exactly once.
type Commitment struct {
	Owner        [20]byte
	Amount       *big.Int
	Tier         Tier
	StartTime    uint64
	Window       uint64
	OriginPeriod uint64
	WithdrawnAt  uint64
}

// Withdrawn reports whether the commitment has been terminally flagged.
func (c *Commitment) Withdrawn() bool {
	return c != nil && c.WithdrawnAt != 0
}

// MaturesAt returns the unix time at which the lock-in lapses and the stake
// can be withdrawn without penalty.
func (c *Commitment) MaturesAt() uint64 {
	if c == nil {
		return 0
	}
	return c.StartTime + c.Tier.Seconds()
}

// Weight returns the commitment's stake weight, amount scaled by the tier
// multiplier.
func (c *Commitment) Weight() *big.Int {
	if c == nil || c.Amount == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(c.Amount, new(big.Int).SetUint64(c.Tier.Multiplier()))
}

// Clone produces a deep copy to protect internal references.
func (c *Commitment) Clone() *Commitment {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Amount != nil {
		clone.Amount = new(big.Int).Set(c.Amount)
	}
	return &clone
}

// Period represents one fixed-length reward epoch. The reward pot accumulates
// operator deposits and is drained as participants settle. The aggregate
// weight for a period is tracked separately, keyed by index, because weight
// can be attributed to periods that have not been materialised yet.
type Period struct {
	Index     uint64
	StartTime uint64
	EndTime   uint64
	RewardPot *big.Int
}

// Clone produces a deep copy of the period record.
func (p *Period) Clone() *Period {
	if p == nil {
		return nil
	}
	clone := *p
	if p.RewardPot != nil {
		clone.RewardPot = new(big.Int).Set(p.RewardPot)
	} else {
		clone.RewardPot = big.NewInt(0)
	}
	return &clone
}

// CommitmentInfo exposes commitment metadata for account queries.
type CommitmentInfo struct {
	Index        uint64   `json:"index"`
	Amount       *big.Int `json:"amount"`
	Tier         string   `json:"tier"`
	Multiplier   uint64   `json:"multiplier"`
	StartTime    uint64   `json:"startTime"`
	MaturesAt    uint64   `json:"maturesAt"`
	OriginPeriod uint64   `json:"originPeriod"`
	Withdrawn    bool     `json:"withdrawn"`
}

// PositionInfo summarises the staking position for an owner, grouping the
// held total with per-commitment detail.
type PositionInfo struct {
	Owner          [20]byte
	Held           *big.Int
	Commitments    []CommitmentInfo
	ComputedAtUnix int64
}
