package staking

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"stakevault/core/events"
	nativecommon "stakevault/native/common"
)

func addr(index byte) [20]byte {
	var out [20]byte
	out[19] = index
	return out
}

var (
	testOperator = addr(0xA0)
	testPool     = addr(0xA1)
	testBurn     = addr(0xA2)
)

type mockEngineState struct {
	counts      map[[20]byte]uint64
	commitments map[[20]byte]map[uint64]*Commitment
	periods     map[uint64]*Period
	current     uint64
	hasCurrent  bool
	weights     map[uint64]*big.Int
	claimed     map[string]bool
	window      uint64
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		counts:      make(map[[20]byte]uint64),
		commitments: make(map[[20]byte]map[uint64]*Commitment),
		periods:     make(map[uint64]*Period),
		weights:     make(map[uint64]*big.Int),
		claimed:     make(map[string]bool),
	}
}

func (m *mockEngineState) CommitmentCount(owner [20]byte) (uint64, error) {
	return m.counts[owner], nil
}

func (m *mockEngineState) SetCommitmentCount(owner [20]byte, count uint64) error {
	m.counts[owner] = count
	return nil
}

func (m *mockEngineState) Commitment(owner [20]byte, index uint64) (*Commitment, error) {
	byOwner, ok := m.commitments[owner]
	if !ok {
		return nil, nil
	}
	c, ok := byOwner[index]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

func (m *mockEngineState) PutCommitment(owner [20]byte, index uint64, c *Commitment) error {
	byOwner, ok := m.commitments[owner]
	if !ok {
		byOwner = make(map[uint64]*Commitment)
		m.commitments[owner] = byOwner
	}
	byOwner[index] = c.Clone()
	return nil
}

func (m *mockEngineState) Period(index uint64) (*Period, error) {
	p, ok := m.periods[index]
	if !ok {
		return nil, nil
	}
	return p.Clone(), nil
}

func (m *mockEngineState) PutPeriod(p *Period) error {
	m.periods[p.Index] = p.Clone()
	return nil
}

func (m *mockEngineState) CurrentPeriod() (uint64, bool, error) {
	return m.current, m.hasCurrent, nil
}

func (m *mockEngineState) SetCurrentPeriod(index uint64) error {
	m.current = index
	m.hasCurrent = true
	return nil
}

func (m *mockEngineState) PeriodWeight(index uint64) (*big.Int, error) {
	w, ok := m.weights[index]
	if !ok {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(w), nil
}

func (m *mockEngineState) SetPeriodWeight(index uint64, weight *big.Int) error {
	m.weights[index] = new(big.Int).Set(weight)
	return nil
}

func claimKey(owner [20]byte, period uint64) string {
	return fmt.Sprintf("%x/%d", owner, period)
}

func (m *mockEngineState) Claimed(owner [20]byte, period uint64) (bool, error) {
	return m.claimed[claimKey(owner, period)], nil
}

func (m *mockEngineState) SetClaimed(owner [20]byte, period uint64) error {
	m.claimed[claimKey(owner, period)] = true
	return nil
}

func (m *mockEngineState) EligibilityWindow() (uint64, error) {
	return m.window, nil
}

func (m *mockEngineState) SetEligibilityWindow(seconds uint64) error {
	m.window = seconds
	return nil
}

type transferRecord struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

type mockLedger struct {
	transfers  []transferRecord
	failWith   error
	failIf     func(from, to [20]byte, amount *big.Int) error
	onTransfer func(from, to [20]byte, amount *big.Int)
}

func (l *mockLedger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l.onTransfer != nil {
		l.onTransfer(from, to, amount)
	}
	if l.failWith != nil {
		return l.failWith
	}
	if l.failIf != nil {
		if err := l.failIf(from, to, amount); err != nil {
			return err
		}
	}
	l.transfers = append(l.transfers, transferRecord{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(ev events.Event) {
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) ofType(eventType string) []events.Event {
	var out []events.Event
	for _, ev := range r.events {
		if ev.EventType() == eventType {
			out = append(out, ev)
		}
	}
	return out
}

type testEnv struct {
	engine  *Engine
	state   *mockEngineState
	ledger  *mockLedger
	emitter *recordingEmitter
	now     uint64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		state:   newMockEngineState(),
		ledger:  &mockLedger{},
		emitter: &recordingEmitter{},
		now:     1_700_000_000,
	}
	env.engine = NewEngine(testOperator, testPool, testBurn)
	env.engine.SetState(env.state)
	env.engine.SetLedger(env.ledger)
	env.engine.SetEmitter(env.emitter)
	env.engine.SetNowFunc(func() uint64 { return env.now })
	return env
}

func (env *testEnv) advanceDays(days uint64) {
	env.now += days * DaySeconds
}

func TestStakeValidation(t *testing.T) {
	env := newTestEnv(t)

	if _, err := env.engine.Stake(addr(1), big.NewInt(100), Tier(9)); !errors.Is(err, ErrInvalidTier) {
		t.Fatalf("expected invalid tier, got %v", err)
	}
	if _, err := env.engine.Stake(addr(1), nil, Tier30); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for nil, got %v", err)
	}
	if _, err := env.engine.Stake(addr(1), big.NewInt(0), Tier30); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for zero, got %v", err)
	}
	if _, err := env.engine.Stake(addr(1), big.NewInt(-5), Tier30); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount for negative, got %v", err)
	}
}

func TestStakeAppendsCommitment(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)

	index, err := env.engine.Stake(owner, big.NewInt(1000), Tier90)
	if err != nil {
		t.Fatalf("stake: %v", err)
	}
	if index != 0 {
		t.Fatalf("expected first index 0, got %d", index)
	}
	index, err = env.engine.Stake(owner, big.NewInt(500), Tier30)
	if err != nil {
		t.Fatalf("second stake: %v", err)
	}
	if index != 1 {
		t.Fatalf("expected second index 1, got %d", index)
	}

	c, err := env.state.Commitment(owner, 0)
	if err != nil || c == nil {
		t.Fatalf("missing commitment: %v", err)
	}
	if c.Amount.Cmp(big.NewInt(1000)) != 0 || c.Tier != Tier90 {
		t.Fatalf("unexpected commitment %+v", c)
	}
	if c.Window != DefaultEligibilityWindow {
		t.Fatalf("expected default window snapshot, got %d", c.Window)
	}
	if c.OriginPeriod != 0 {
		t.Fatalf("expected origin period 0, got %d", c.OriginPeriod)
	}
	if c.Withdrawn() {
		t.Fatalf("new commitment must not be withdrawn")
	}

	if len(env.ledger.transfers) != 2 {
		t.Fatalf("expected 2 transfers, got %d", len(env.ledger.transfers))
	}
	if env.ledger.transfers[0].From != owner || env.ledger.transfers[0].To != testPool {
		t.Fatalf("stake transfer must move owner funds into pool custody")
	}
}

func TestStakeSnapshotsWindowAtCreation(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)

	if _, err := env.engine.Stake(owner, big.NewInt(100), Tier30); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if err := env.engine.SetEligibilityWindow(testOperator, 5*DaySeconds); err != nil {
		t.Fatalf("set window: %v", err)
	}
	if _, err := env.engine.Stake(owner, big.NewInt(100), Tier30); err != nil {
		t.Fatalf("second stake: %v", err)
	}

	first, _ := env.state.Commitment(owner, 0)
	second, _ := env.state.Commitment(owner, 1)
	if first.Window != DefaultEligibilityWindow {
		t.Fatalf("existing commitment window changed: %d", first.Window)
	}
	if second.Window != 5*DaySeconds {
		t.Fatalf("new commitment should snapshot updated window, got %d", second.Window)
	}
}

func TestStakeTransferFailureLeavesNoState(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)
	cause := errors.New("token paused")
	env.ledger.failWith = cause

	_, err := env.engine.Stake(owner, big.NewInt(1000), Tier30)
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped ledger error, got %v", err)
	}
	if count, _ := env.state.CommitmentCount(owner); count != 0 {
		t.Fatalf("commitment recorded despite failed transfer")
	}
	for idx, w := range env.state.weights {
		if w.Sign() != 0 {
			t.Fatalf("weight recorded for period %d despite failed transfer", idx)
		}
	}
}

func TestWithdrawEarlyPenalty(t *testing.T) {
	cases := []struct {
		tier    Tier
		amount  int64
		penalty int64
	}{
		{Tier30, 1000, 150},
		{Tier90, 1000, 130},
		{Tier180, 1000, 120},
		{Tier360, 1000, 100},
		{Tier30, 33, 4}, // floor(33*15/100)
	}
	for _, tc := range cases {
		env := newTestEnv(t)
		owner := addr(1)
		if _, err := env.engine.Stake(owner, big.NewInt(tc.amount), tc.tier); err != nil {
			t.Fatalf("stake: %v", err)
		}
		env.advanceDays(1)

		payout, err := env.engine.Withdraw(owner, 0)
		if err != nil {
			t.Fatalf("withdraw: %v", err)
		}
		want := tc.amount - tc.penalty
		if payout.Cmp(big.NewInt(want)) != 0 {
			t.Fatalf("tier %s: expected payout %d, got %s", tc.tier, want, payout)
		}

		last := env.ledger.transfers[len(env.ledger.transfers)-1]
		if last.To != testBurn || last.Amount.Cmp(big.NewInt(tc.penalty)) != 0 {
			t.Fatalf("tier %s: penalty %d not routed to burn address", tc.tier, tc.penalty)
		}
	}
}

func TestWithdrawAtMaturityNoPenalty(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)
	if _, err := env.engine.Stake(owner, big.NewInt(777), Tier30); err != nil {
		t.Fatalf("stake: %v", err)
	}
	env.advanceDays(30) // exactly startTime+duration

	payout, err := env.engine.Withdraw(owner, 0)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if payout.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("expected full amount at maturity, got %s", payout)
	}
	for _, tr := range env.ledger.transfers {
		if tr.To == testBurn {
			t.Fatalf("no penalty transfer expected at maturity")
		}
	}
}

func TestWithdrawPenaltyTransferFailureRestoresCustody(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)
	if _, err := env.engine.Stake(owner, big.NewInt(1000), Tier30); err != nil {
		t.Fatalf("stake: %v", err)
	}
	env.advanceDays(1)

	cause := errors.New("burn blocked")
	env.ledger.failIf = func(_, to [20]byte, _ *big.Int) error {
		if to == testBurn {
			return cause
		}
		return nil
	}

	if _, err := env.engine.Withdraw(owner, 0); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped burn error, got %v", err)
	}

	c, _ := env.state.Commitment(owner, 0)
	if c.Withdrawn() {
		t.Fatalf("commitment flagged despite aborted withdrawal")
	}

	// The payout leg had already settled; it must have been returned.
	last := env.ledger.transfers[len(env.ledger.transfers)-1]
	if last.From != owner || last.To != testPool || last.Amount.Cmp(big.NewInt(850)) != 0 {
		t.Fatalf("expected payout reversal to pool custody, got %+v", last)
	}

	// A retry pays the penalty-adjusted amount exactly once.
	env.ledger.failIf = nil
	payout, err := env.engine.Withdraw(owner, 0)
	if err != nil {
		t.Fatalf("retry withdraw: %v", err)
	}
	if payout.Cmp(big.NewInt(850)) != 0 {
		t.Fatalf("expected payout 850 on retry, got %s", payout)
	}

	net := big.NewInt(0)
	for _, tr := range env.ledger.transfers {
		if tr.To == owner {
			net.Add(net, tr.Amount)
		}
		if tr.From == owner {
			net.Sub(net, tr.Amount)
		}
	}
	// Stake in, aborted payout and its reversal, then the retried payout:
	// the owner is down exactly the 150 penalty.
	if net.Cmp(big.NewInt(-150)) != 0 {
		t.Fatalf("expected owner net -150, got %s", net)
	}
}

func TestWithdrawErrors(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)

	if _, err := env.engine.Withdraw(owner, 0); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range, got %v", err)
	}

	if _, err := env.engine.Stake(owner, big.NewInt(100), Tier30); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := env.engine.Withdraw(owner, 1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("expected index out of range for index 1, got %v", err)
	}
	if _, err := env.engine.Withdraw(owner, 0); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if _, err := env.engine.Withdraw(owner, 0); !errors.Is(err, ErrAlreadyWithdrawn) {
		t.Fatalf("expected already withdrawn, got %v", err)
	}
}

func TestReentrantCallRejected(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)

	var inner error
	reentered := false
	env.ledger.onTransfer = func(_, _ [20]byte, _ *big.Int) {
		if reentered {
			return
		}
		reentered = true
		_, inner = env.engine.Withdraw(owner, 0)
	}

	if _, err := env.engine.Stake(owner, big.NewInt(100), Tier30); err != nil {
		t.Fatalf("outer stake: %v", err)
	}
	if !errors.Is(inner, ErrReentrantCall) {
		t.Fatalf("expected nested call rejection, got %v", inner)
	}
}

type stubPauses map[string]bool

func (s stubPauses) IsPaused(module string) bool { return s[module] }

func TestPausedModuleRejectsMutations(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)
	if _, err := env.engine.Stake(owner, big.NewInt(100), Tier30); err != nil {
		t.Fatalf("stake before pause: %v", err)
	}

	pauses := stubPauses{"staking": true}
	env.engine.SetPauses(pauses)

	if _, err := env.engine.Stake(owner, big.NewInt(100), Tier30); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("stake while paused: got %v", err)
	}
	if _, err := env.engine.Withdraw(owner, 0); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("withdraw while paused: got %v", err)
	}
	if err := env.engine.DepositReward(testOperator, 0, big.NewInt(1)); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("deposit while paused: got %v", err)
	}
	if err := env.engine.SetEligibilityWindow(testOperator, 10*DaySeconds); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("set window while paused: got %v", err)
	}
	if _, err := env.engine.Claim(owner, 0); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("claim while paused: got %v", err)
	}

	// Reads stay available while the module is paused.
	if _, err := env.engine.Position(owner); err != nil {
		t.Fatalf("position while paused: %v", err)
	}

	pauses["staking"] = false
	if _, err := env.engine.Stake(owner, big.NewInt(100), Tier30); err != nil {
		t.Fatalf("stake after unpause: %v", err)
	}
}

func TestDepositRewardGuards(t *testing.T) {
	env := newTestEnv(t)

	if err := env.engine.DepositReward(addr(9), 0, big.NewInt(10)); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := env.engine.DepositReward(testOperator, 0, big.NewInt(0)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	if err := env.engine.DepositReward(testOperator, 3, big.NewInt(10)); !errors.Is(err, ErrPeriodNotActive) {
		t.Fatalf("expected period not active, got %v", err)
	}

	if err := env.engine.DepositReward(testOperator, 0, big.NewInt(10)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := env.engine.DepositReward(testOperator, 0, big.NewInt(5)); err != nil {
		t.Fatalf("second deposit: %v", err)
	}
	p, _ := env.state.Period(0)
	if p.RewardPot.Cmp(big.NewInt(15)) != 0 {
		t.Fatalf("deposits should accumulate, pot=%s", p.RewardPot)
	}
}

func TestDepositTargetsPeriodAfterCatchUp(t *testing.T) {
	env := newTestEnv(t)
	if err := env.engine.DepositReward(testOperator, 0, big.NewInt(1)); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	env.advanceDays(30)

	// The sequence auto-advances to period 1, so a deposit aimed at the old
	// active period must be rejected.
	if err := env.engine.DepositReward(testOperator, 0, big.NewInt(1)); !errors.Is(err, ErrPeriodNotActive) {
		t.Fatalf("expected period not active after transition, got %v", err)
	}
	if err := env.engine.DepositReward(testOperator, 1, big.NewInt(1)); err != nil {
		t.Fatalf("deposit into new active period: %v", err)
	}
}

func TestSetEligibilityWindow(t *testing.T) {
	env := newTestEnv(t)

	if err := env.engine.SetEligibilityWindow(addr(9), 10*DaySeconds); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if err := env.engine.SetEligibilityWindow(testOperator, 4*DaySeconds); !errors.Is(err, ErrWindowOutOfRange) {
		t.Fatalf("expected out of range below minimum, got %v", err)
	}
	if err := env.engine.SetEligibilityWindow(testOperator, 21*DaySeconds); !errors.Is(err, ErrWindowOutOfRange) {
		t.Fatalf("expected out of range above maximum, got %v", err)
	}
	if err := env.engine.SetEligibilityWindow(testOperator, 5*DaySeconds); err != nil {
		t.Fatalf("minimum bound must be accepted: %v", err)
	}
	if err := env.engine.SetEligibilityWindow(testOperator, 20*DaySeconds); err != nil {
		t.Fatalf("maximum bound must be accepted: %v", err)
	}
	if env.state.window != 20*DaySeconds {
		t.Fatalf("window not persisted, got %d", env.state.window)
	}
}

func TestPositionSummarises(t *testing.T) {
	env := newTestEnv(t)
	owner := addr(1)

	if _, err := env.engine.Stake(owner, big.NewInt(1000), Tier90); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := env.engine.Stake(owner, big.NewInt(500), Tier30); err != nil {
		t.Fatalf("stake: %v", err)
	}
	if _, err := env.engine.Withdraw(owner, 1); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	info, err := env.engine.Position(owner)
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if info.Held.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected held 1000, got %s", info.Held)
	}
	if len(info.Commitments) != 2 {
		t.Fatalf("expected 2 commitments, got %d", len(info.Commitments))
	}
	if !info.Commitments[1].Withdrawn {
		t.Fatalf("second commitment should report withdrawn")
	}
}
