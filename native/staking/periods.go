package staking

import (
	"math/big"

	"stakevault/core/events"
)

// advanceIfElapsed is the period catch-up step executed at the top of every
// mutating entry point. It materialises period 0 on first use and, when the
// wall clock has passed the active period's end, creates the next period
// contiguous with it. At most one period is created per invocation: a
// long-dormant deployment catches up one period per call.
func (e *Engine) advanceIfElapsed(now uint64) (*Period, error) {
	current, ok, err := e.state.CurrentPeriod()
	if err != nil {
		return nil, err
	}
	if !ok {
		genesis := &Period{
			Index:     0,
			StartTime: now,
			EndTime:   now + PeriodSeconds,
			RewardPot: big.NewInt(0),
		}
		if err := e.state.PutPeriod(genesis); err != nil {
			return nil, err
		}
		if err := e.state.SetCurrentPeriod(0); err != nil {
			return nil, err
		}
		return genesis, nil
	}

	active, err := e.state.Period(current)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrNilState
	}
	if now < active.EndTime {
		return active, nil
	}

	next := &Period{
		Index:     active.Index + 1,
		StartTime: active.EndTime,
		EndTime:   active.EndTime + PeriodSeconds,
		RewardPot: big.NewInt(0),
	}
	if err := e.state.PutPeriod(next); err != nil {
		return nil, err
	}
	if err := e.state.SetCurrentPeriod(next.Index); err != nil {
		return nil, err
	}

	e.emit(events.PeriodTransitioned{
		OldIndex:  active.Index,
		NewIndex:  next.Index,
		StartTime: next.StartTime,
		EndTime:   next.EndTime,
	})
	e.telemetry.ObservePeriod(next.Index)
	return next, nil
}

// periodEndTime resolves the end time for a period index, preferring the
// stored record and falling back to the deterministic projection from period
// 0's boundaries for periods that have not been materialised yet.
func (e *Engine) periodEndTime(index uint64) (uint64, error) {
	p, err := e.state.Period(index)
	if err != nil {
		return 0, err
	}
	if p != nil {
		return p.EndTime, nil
	}
	genesis, err := e.state.Period(0)
	if err != nil {
		return 0, err
	}
	if genesis == nil {
		return 0, ErrNilState
	}
	_, end := periodBounds(genesis.StartTime, index)
	return end, nil
}

// periodBounds projects the boundaries of an arbitrary period index from the
// genesis period's start time. Periods are contiguous and fixed-length, so
// the bounds are computable without materialising intermediate records.
func periodBounds(genesisStart, index uint64) (start, end uint64) {
	start = genesisStart + index*PeriodSeconds
	return start, start + PeriodSeconds
}
