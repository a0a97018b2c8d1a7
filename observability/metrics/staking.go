package metrics

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakingMetrics aggregates the prometheus instruments exported by the
// staking engine.
type StakingMetrics struct {
	stakesCreated    *prometheus.CounterVec
	withdrawals      *prometheus.CounterVec
	rewardsDeposited prometheus.Counter
	rewardsClaimed   *prometheus.CounterVec
	claimsRounded    prometheus.Counter
	activePeriod     prometheus.Gauge
	periodPot        *prometheus.GaugeVec
}

var (
	stakingOnce     sync.Once
	stakingRegistry *StakingMetrics
)

// Staking returns the process-wide staking metrics registry, registering the
// instruments on first use.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingRegistry = &StakingMetrics{
			stakesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_stakes_created_total",
				Help: "Count of commitments created by duration tier.",
			}, []string{"tier"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_withdrawals_total",
				Help: "Count of withdrawals by exit kind (mature or early).",
			}, []string{"kind"}),
			rewardsDeposited: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_reward_deposits_total",
				Help: "Count of operator reward deposits.",
			}),
			rewardsClaimed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "staking_rewards_claimed_total",
				Help: "Count of settled claims per period.",
			}, []string{"period"}),
			claimsRounded: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "staking_claim_rounding_dust_total",
				Help: "Count of claims whose proportional share was rounded down, leaving dust for later claimants.",
			}),
			activePeriod: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "staking_active_period",
				Help: "Index of the currently active reward period.",
			}),
			periodPot: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "staking_period_pot",
				Help: "Remaining reward pot per period.",
			}, []string{"period"}),
		}
		prometheus.MustRegister(
			stakingRegistry.stakesCreated,
			stakingRegistry.withdrawals,
			stakingRegistry.rewardsDeposited,
			stakingRegistry.rewardsClaimed,
			stakingRegistry.claimsRounded,
			stakingRegistry.activePeriod,
			stakingRegistry.periodPot,
		)
	})
	return stakingRegistry
}

// ObserveStakeCreated records a new commitment for the tier.
func (m *StakingMetrics) ObserveStakeCreated(tier string) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "unknown"
	}
	m.stakesCreated.WithLabelValues(tier).Inc()
}

// ObserveWithdrawal records a withdrawal, distinguishing early exits.
func (m *StakingMetrics) ObserveWithdrawal(early bool) {
	if m == nil {
		return
	}
	kind := "mature"
	if early {
		kind = "early"
	}
	m.withdrawals.WithLabelValues(kind).Inc()
}

// ObserveDeposit records a reward deposit and the resulting pot level.
func (m *StakingMetrics) ObserveDeposit(period uint64, pot *big.Int) {
	if m == nil {
		return
	}
	m.rewardsDeposited.Inc()
	if pot != nil {
		value, _ := new(big.Float).SetInt(pot).Float64()
		m.periodPot.WithLabelValues(strconv.FormatUint(period, 10)).Set(value)
	}
}

// ObserveClaim records a settled claim against the period. roundedDown marks
// claims whose floor division truncated the proportional share.
func (m *StakingMetrics) ObserveClaim(period uint64, roundedDown bool) {
	if m == nil {
		return
	}
	m.rewardsClaimed.WithLabelValues(strconv.FormatUint(period, 10)).Inc()
	if roundedDown {
		m.claimsRounded.Inc()
	}
}

// ObservePeriod records the active period index after a transition.
func (m *StakingMetrics) ObservePeriod(index uint64) {
	if m == nil {
		return
	}
	m.activePeriod.Set(float64(index))
}
