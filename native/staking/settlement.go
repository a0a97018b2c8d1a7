package staking

import (
	"fmt"
	"math/big"

	"stakevault/core/events"
)

// Claim settles the caller's share of a closed period's reward pot, exactly
// once per (owner, period). The share is the caller's recomputed eligible
// weight divided against the period's remaining aggregate weight, applied to
// the remaining pot with floor division. Both remainders shrink as claimants
// settle, so truncation dust is absorbed by later claimants and the last
// claimant receives the exact residue.
func (e *Engine) Claim(owner [20]byte, periodIndex uint64) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	now := e.now()
	active, err := e.advanceIfElapsed(now)
	if err != nil {
		return nil, err
	}
	if periodIndex > active.Index {
		return nil, ErrInvalidPeriod
	}
	period, err := e.state.Period(periodIndex)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, ErrInvalidPeriod
	}
	if now < period.EndTime {
		return nil, ErrPeriodNotEnded
	}
	claimed, err := e.state.Claimed(owner, periodIndex)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrAlreadyClaimed
	}

	userWeight, err := e.ownerWeightForPeriod(owner, period.EndTime)
	if err != nil {
		return nil, err
	}
	if userWeight.Sign() == 0 {
		return nil, ErrNoEligibleStake
	}
	totalWeight, err := e.state.PeriodWeight(periodIndex)
	if err != nil {
		return nil, err
	}
	if totalWeight.Sign() == 0 {
		return nil, ErrDistributionNotReady
	}

	reward := new(big.Int).Mul(period.RewardPot, userWeight)
	dust := new(big.Int)
	reward.QuoRem(reward, totalWeight, dust)
	if reward.Sign() == 0 {
		return nil, ErrNothingToClaim
	}

	// External transfer ordered ahead of the state writes so a rejected
	// transfer is indistinguishable from the claim never having happened.
	if err := e.ledger.Transfer(e.poolAddr, owner, reward); err != nil {
		return nil, fmt.Errorf("staking: reward transfer: %w", err)
	}

	period.RewardPot = new(big.Int).Sub(period.RewardPot, reward)
	if err := e.state.PutPeriod(period); err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(totalWeight, userWeight)
	if err := e.state.SetPeriodWeight(periodIndex, remaining); err != nil {
		return nil, err
	}
	if err := e.state.SetClaimed(owner, periodIndex); err != nil {
		return nil, err
	}

	e.emit(events.RewardClaimed{
		Owner:           owner,
		Period:          periodIndex,
		Amount:          new(big.Int).Set(reward),
		RemainingPot:    new(big.Int).Set(period.RewardPot),
		RemainingWeight: remaining,
	})
	e.telemetry.ObserveClaim(periodIndex, dust.Sign() > 0)
	return reward, nil
}

// PendingReward previews the reward Claim would pay for the period without
// mutating any state. It returns zero when the period is still open, already
// claimed, or the owner has no eligible weight.
func (e *Engine) PendingReward(owner [20]byte, periodIndex uint64) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	period, err := e.state.Period(periodIndex)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return big.NewInt(0), nil
	}
	if e.now() < period.EndTime {
		return big.NewInt(0), nil
	}
	claimed, err := e.state.Claimed(owner, periodIndex)
	if err != nil {
		return nil, err
	}
	if claimed {
		return big.NewInt(0), nil
	}
	userWeight, err := e.ownerWeightForPeriod(owner, period.EndTime)
	if err != nil {
		return nil, err
	}
	if userWeight.Sign() == 0 {
		return big.NewInt(0), nil
	}
	totalWeight, err := e.state.PeriodWeight(periodIndex)
	if err != nil {
		return nil, err
	}
	if totalWeight.Sign() == 0 {
		return big.NewInt(0), nil
	}
	reward := new(big.Int).Mul(period.RewardPot, userWeight)
	return reward.Quo(reward, totalWeight), nil
}
