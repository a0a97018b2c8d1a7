package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"stakevault/core/types"
)

const (
	// TypeStakeCreated captures a new commitment entering the ledger.
	TypeStakeCreated = "staking.stakeCreated"
	// TypeStakeWithdrawn captures a commitment leaving the ledger, with any
	// early-exit penalty applied.
	TypeStakeWithdrawn = "staking.stakeWithdrawn"
	// TypeRewardDeposited is emitted when the operator tops up a period pot.
	TypeRewardDeposited = "staking.rewardDeposited"
	// TypePeriodTransitioned signals that a new reward period became active.
	TypePeriodTransitioned = "staking.periodTransitioned"
	// TypeWindowUpdated signals a change of the process-wide eligibility
	// threshold.
	TypeWindowUpdated = "staking.eligibilityWindowUpdated"
	// TypePeriodWeightUpdated captures an incremental change of a period's
	// aggregate weight.
	TypePeriodWeightUpdated = "staking.periodWeightUpdated"
	// TypeRewardClaimed is emitted when a participant settles a closed period.
	TypeRewardClaimed = "staking.rewardClaimed"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

// StakeCreated captures the commitment appended by a stake action.
type StakeCreated struct {
	Owner        [20]byte
	Index        uint64
	Amount       *big.Int
	Tier         string
	Multiplier   uint64
	OriginPeriod uint64
}

// EventType satisfies the Event interface.
func (StakeCreated) EventType() string { return TypeStakeCreated }

// Event converts the structured payload into a broadcastable event.
func (e StakeCreated) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeCreated,
		Attributes: map[string]string{
			"owner":        formatAddress(e.Owner),
			"index":        strconv.FormatUint(e.Index, 10),
			"amount":       formatAmount(e.Amount),
			"tier":         e.Tier,
			"multiplier":   strconv.FormatUint(e.Multiplier, 10),
			"originPeriod": strconv.FormatUint(e.OriginPeriod, 10),
		},
	}
}

// StakeWithdrawn captures the payout realised when a commitment is withdrawn.
type StakeWithdrawn struct {
	Owner   [20]byte
	Index   uint64
	Amount  *big.Int
	Penalty *big.Int
	Payout  *big.Int
}

// EventType satisfies the Event interface.
func (StakeWithdrawn) EventType() string { return TypeStakeWithdrawn }

// Event converts the structured payload into a broadcastable event.
func (e StakeWithdrawn) Event() *types.Event {
	return &types.Event{
		Type: TypeStakeWithdrawn,
		Attributes: map[string]string{
			"owner":   formatAddress(e.Owner),
			"index":   strconv.FormatUint(e.Index, 10),
			"amount":  formatAmount(e.Amount),
			"penalty": formatAmount(e.Penalty),
			"payout":  formatAmount(e.Payout),
		},
	}
}

// RewardDeposited captures an operator top-up of the active period's pot.
type RewardDeposited struct {
	Operator [20]byte
	Period   uint64
	Amount   *big.Int
	NewPot   *big.Int
}

// EventType satisfies the Event interface.
func (RewardDeposited) EventType() string { return TypeRewardDeposited }

// Event converts the structured payload into a broadcastable event.
func (e RewardDeposited) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardDeposited,
		Attributes: map[string]string{
			"operator": formatAddress(e.Operator),
			"period":   strconv.FormatUint(e.Period, 10),
			"amount":   formatAmount(e.Amount),
			"newPot":   formatAmount(e.NewPot),
		},
	}
}

// PeriodTransitioned records an advance of the active period.
type PeriodTransitioned struct {
	OldIndex  uint64
	NewIndex  uint64
	StartTime uint64
	EndTime   uint64
}

// EventType satisfies the Event interface.
func (PeriodTransitioned) EventType() string { return TypePeriodTransitioned }

// Event converts the structured payload into a broadcastable event.
func (e PeriodTransitioned) Event() *types.Event {
	return &types.Event{
		Type: TypePeriodTransitioned,
		Attributes: map[string]string{
			"oldIndex":  strconv.FormatUint(e.OldIndex, 10),
			"newIndex":  strconv.FormatUint(e.NewIndex, 10),
			"startTime": strconv.FormatUint(e.StartTime, 10),
			"endTime":   strconv.FormatUint(e.EndTime, 10),
		},
	}
}

// WindowUpdated records a change of the eligibility threshold.
type WindowUpdated struct {
	OldSeconds uint64
	NewSeconds uint64
}

// EventType satisfies the Event interface.
func (WindowUpdated) EventType() string { return TypeWindowUpdated }

// Event converts the structured payload into a broadcastable event.
func (e WindowUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeWindowUpdated,
		Attributes: map[string]string{
			"oldSeconds": strconv.FormatUint(e.OldSeconds, 10),
			"newSeconds": strconv.FormatUint(e.NewSeconds, 10),
		},
	}
}

// PeriodWeightUpdated captures an incremental aggregate weight change for a
// period, including periods that have not been materialised yet.
type PeriodWeightUpdated struct {
	Period uint64
	Total  *big.Int
}

// EventType satisfies the Event interface.
func (PeriodWeightUpdated) EventType() string { return TypePeriodWeightUpdated }

// Event converts the structured payload into a broadcastable event.
func (e PeriodWeightUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypePeriodWeightUpdated,
		Attributes: map[string]string{
			"period": strconv.FormatUint(e.Period, 10),
			"total":  formatAmount(e.Total),
		},
	}
}

// RewardClaimed captures a settled share of a closed period's pot.
type RewardClaimed struct {
	Owner           [20]byte
	Period          uint64
	Amount          *big.Int
	RemainingPot    *big.Int
	RemainingWeight *big.Int
}

// EventType satisfies the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// Event converts the structured payload into a broadcastable event.
func (e RewardClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeRewardClaimed,
		Attributes: map[string]string{
			"owner":           formatAddress(e.Owner),
			"period":          strconv.FormatUint(e.Period, 10),
			"amount":          formatAmount(e.Amount),
			"remainingPot":    formatAmount(e.RemainingPot),
			"remainingWeight": formatAmount(e.RemainingWeight),
		},
	}
}
