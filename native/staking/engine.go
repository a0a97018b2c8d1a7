package staking

import (
	"fmt"
	"math/big"
	"time"

	"stakevault/core/events"
	nativecommon "stakevault/native/common"
	"stakevault/observability/metrics"
)

const moduleName = "staking"

type engineState interface {
	CommitmentCount(owner [20]byte) (uint64, error)
	Commitment(owner [20]byte, index uint64) (*Commitment, error)
	PutCommitment(owner [20]byte, index uint64, c *Commitment) error
	SetCommitmentCount(owner [20]byte, count uint64) error

	Period(index uint64) (*Period, error)
	PutPeriod(p *Period) error
	CurrentPeriod() (uint64, bool, error)
	SetCurrentPeriod(index uint64) error

	PeriodWeight(index uint64) (*big.Int, error)
	SetPeriodWeight(index uint64, weight *big.Int) error

	Claimed(owner [20]byte, period uint64) (bool, error)
	SetClaimed(owner [20]byte, period uint64) error

	EligibilityWindow() (uint64, error)
	SetEligibilityWindow(seconds uint64) error
}

// TokenLedger is the external custody boundary. Transfers may fail
// (insufficient balance, paused token, blocklist); the engine propagates the
// failure and aborts the whole operation.
type TokenLedger interface {
	Transfer(from, to [20]byte, amount *big.Int) error
}

// Engine orchestrates the staking state transitions: commitment lifecycle,
// the reward period sequence, incremental weight accounting and settlement.
type Engine struct {
	state     engineState
	ledger    TokenLedger
	operator  [20]byte
	poolAddr  [20]byte
	burnAddr  [20]byte
	emitter   events.Emitter
	pauses    nativecommon.PauseView
	telemetry *metrics.StakingMetrics
	nowFn     func() uint64

	// inCall guards every mutating entry point against re-entrant
	// invocation from within an in-flight ledger transfer.
	inCall bool
}

// NewEngine constructs a staking engine bound to the pool custody, burn and
// operator addresses.
func NewEngine(operator, poolAddr, burnAddr [20]byte) *Engine {
	return &Engine{
		operator:  operator,
		poolAddr:  poolAddr,
		burnAddr:  burnAddr,
		emitter:   events.NoopEmitter{},
		telemetry: metrics.Staking(),
		nowFn:     func() uint64 { return uint64(time.Now().UTC().Unix()) },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the engine to the external token custody ledger.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetEmitter configures the event sink. A nil emitter silences events.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the module pause view consulted by mutating entry points.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the engine's wall-clock source. Intended for tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	if e == nil || now == nil {
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(ev events.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(ev)
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().UTC().Unix())
	}
	return e.nowFn()
}

// enter performs the shared preamble for mutating entry points: the
// reentrancy check, pause guard and wiring validation. Callers must invoke
// leave on every exit path once enter succeeds.
func (e *Engine) enter() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.ledger == nil {
		return ErrNilLedger
	}
	if e.inCall {
		return ErrReentrantCall
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	e.inCall = true
	return nil
}

func (e *Engine) leave() { e.inCall = false }

// Stake transfers amount from the owner into pool custody and appends a new
// commitment snapshotting the current eligibility threshold and period. The
// new commitment's index for the owner is returned.
func (e *Engine) Stake(owner [20]byte, amount *big.Int, tier Tier) (uint64, error) {
	if err := e.enter(); err != nil {
		return 0, err
	}
	defer e.leave()

	now := e.now()
	active, err := e.advanceIfElapsed(now)
	if err != nil {
		return 0, err
	}

	if !tier.Valid() {
		return 0, ErrInvalidTier
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, ErrInvalidAmount
	}

	window, err := e.eligibilityWindow()
	if err != nil {
		return 0, err
	}

	count, err := e.state.CommitmentCount(owner)
	if err != nil {
		return 0, err
	}

	if err := e.ledger.Transfer(owner, e.poolAddr, amount); err != nil {
		return 0, fmt.Errorf("staking: transfer in: %w", err)
	}

	c := &Commitment{
		Owner:        owner,
		Amount:       new(big.Int).Set(amount),
		Tier:         tier,
		StartTime:    now,
		Window:       window,
		OriginPeriod: active.Index,
	}
	if err := e.state.PutCommitment(owner, count, c); err != nil {
		return 0, err
	}
	if err := e.state.SetCommitmentCount(owner, count+1); err != nil {
		return 0, err
	}
	if err := e.addCommitmentWeight(c); err != nil {
		return 0, err
	}

	e.emit(events.StakeCreated{
		Owner:        owner,
		Index:        count,
		Amount:       new(big.Int).Set(amount),
		Tier:         tier.String(),
		Multiplier:   tier.Multiplier(),
		OriginPeriod: active.Index,
	})
	e.telemetry.ObserveStakeCreated(tier.String())
	return count, nil
}

// Withdraw terminates a commitment and returns the staked amount to the
// owner, minus the tier penalty when the lock-in has not yet lapsed. The
// penalty portion is routed to the burn address. Both custody legs settle
// before any state is written; a rejected leg leaves the operation as if it
// had never been called.
func (e *Engine) Withdraw(owner [20]byte, index uint64) (*big.Int, error) {
	if err := e.enter(); err != nil {
		return nil, err
	}
	defer e.leave()

	now := e.now()
	if _, err := e.advanceIfElapsed(now); err != nil {
		return nil, err
	}

	count, err := e.state.CommitmentCount(owner)
	if err != nil {
		return nil, err
	}
	if index >= count {
		return nil, ErrIndexOutOfRange
	}
	c, err := e.state.Commitment(owner, index)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrIndexOutOfRange
	}
	if c.Withdrawn() {
		return nil, ErrAlreadyWithdrawn
	}

	penalty := big.NewInt(0)
	if now < c.MaturesAt() {
		penalty = new(big.Int).Mul(c.Amount, new(big.Int).SetUint64(c.Tier.PenaltyBps()))
		penalty.Quo(penalty, big.NewInt(PenaltyBpsDenominator))
	}
	payout := new(big.Int).Sub(c.Amount, penalty)

	if err := e.ledger.Transfer(e.poolAddr, owner, payout); err != nil {
		return nil, fmt.Errorf("staking: transfer out: %w", err)
	}
	if penalty.Sign() > 0 {
		if err := e.ledger.Transfer(e.poolAddr, e.burnAddr, penalty); err != nil {
			// The payout leg already settled; return it to pool custody so
			// the aborted withdrawal leaves no trace and can be retried.
			if undoErr := e.ledger.Transfer(owner, e.poolAddr, payout); undoErr != nil {
				return nil, fmt.Errorf("staking: penalty transfer: %v; payout reversal: %w", err, undoErr)
			}
			return nil, fmt.Errorf("staking: penalty transfer: %w", err)
		}
	}

	if err := e.removeCommitmentWeight(c, now); err != nil {
		return nil, err
	}
	c.WithdrawnAt = now
	if err := e.state.PutCommitment(owner, index, c); err != nil {
		return nil, err
	}

	e.emit(events.StakeWithdrawn{
		Owner:   owner,
		Index:   index,
		Amount:  new(big.Int).Set(c.Amount),
		Penalty: penalty,
		Payout:  payout,
	})
	e.telemetry.ObserveWithdrawal(penalty.Sign() > 0)
	return payout, nil
}

// DepositReward moves amount from the operator into pool custody and adds it
// to the active period's reward pot. The supplied period index must match the
// active period after the catch-up step; multiple deposits into the same
// period accumulate.
func (e *Engine) DepositReward(caller [20]byte, periodIndex uint64, amount *big.Int) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	active, err := e.advanceIfElapsed(e.now())
	if err != nil {
		return err
	}

	if caller != e.operator {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	if periodIndex != active.Index {
		return ErrPeriodNotActive
	}

	if err := e.ledger.Transfer(caller, e.poolAddr, amount); err != nil {
		return fmt.Errorf("staking: deposit transfer: %w", err)
	}

	active.RewardPot = new(big.Int).Add(active.RewardPot, amount)
	if err := e.state.PutPeriod(active); err != nil {
		return err
	}

	e.emit(events.RewardDeposited{
		Operator: caller,
		Period:   active.Index,
		Amount:   new(big.Int).Set(amount),
		NewPot:   new(big.Int).Set(active.RewardPot),
	})
	e.telemetry.ObserveDeposit(active.Index, active.RewardPot)
	return nil
}

// SetEligibilityWindow updates the process-wide eligibility threshold. The
// change applies only to commitments created afterwards; existing commitments
// keep the snapshot taken at creation.
func (e *Engine) SetEligibilityWindow(caller [20]byte, seconds uint64) error {
	if err := e.enter(); err != nil {
		return err
	}
	defer e.leave()

	if _, err := e.advanceIfElapsed(e.now()); err != nil {
		return err
	}
	if caller != e.operator {
		return ErrUnauthorized
	}
	if !ValidEligibilityWindow(seconds) {
		return ErrWindowOutOfRange
	}

	old, err := e.eligibilityWindow()
	if err != nil {
		return err
	}
	if err := e.state.SetEligibilityWindow(seconds); err != nil {
		return err
	}

	e.emit(events.WindowUpdated{OldSeconds: old, NewSeconds: seconds})
	return nil
}

func (e *Engine) eligibilityWindow() (uint64, error) {
	window, err := e.state.EligibilityWindow()
	if err != nil {
		return 0, err
	}
	if window == 0 {
		return DefaultEligibilityWindow, nil
	}
	return window, nil
}

// Position summarises the owner's commitments without mutating state.
func (e *Engine) Position(owner [20]byte) (*PositionInfo, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	count, err := e.state.CommitmentCount(owner)
	if err != nil {
		return nil, err
	}
	info := &PositionInfo{
		Owner:          owner,
		Held:           big.NewInt(0),
		Commitments:    make([]CommitmentInfo, 0, count),
		ComputedAtUnix: int64(e.now()),
	}
	for i := uint64(0); i < count; i++ {
		c, err := e.state.Commitment(owner, i)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		if !c.Withdrawn() {
			info.Held = info.Held.Add(info.Held, c.Amount)
		}
		info.Commitments = append(info.Commitments, CommitmentInfo{
			Index:        i,
			Amount:       new(big.Int).Set(c.Amount),
			Tier:         c.Tier.String(),
			Multiplier:   c.Tier.Multiplier(),
			StartTime:    c.StartTime,
			MaturesAt:    c.MaturesAt(),
			OriginPeriod: c.OriginPeriod,
			Withdrawn:    c.Withdrawn(),
		})
	}
	return info, nil
}
