package staking

// DaySeconds is the number of seconds in one day-equivalent unit.
const DaySeconds uint64 = 24 * 60 * 60

// PeriodSeconds is the fixed length of a reward period.
const PeriodSeconds uint64 = 30 * DaySeconds

// PenaltyBpsDenominator defines the fixed denominator for early-exit penalties.
const PenaltyBpsDenominator = 10_000

// Eligibility window bounds enforced when the operator updates the
// process-wide threshold. Commitments snapshot the value at creation, so
// changes never apply retroactively.
const (
	MinEligibilityWindow     = 5 * DaySeconds
	MaxEligibilityWindow     = 20 * DaySeconds
	DefaultEligibilityWindow = 15 * DaySeconds
)

// Tier identifies one of the fixed lock-in duration tiers.
type Tier uint8

const (
	Tier30 Tier = iota + 1
	Tier90
	Tier180
	Tier360
)

// Valid reports whether the tier is one of the enumerated lock-in durations.
func (t Tier) Valid() bool {
	return t >= Tier30 && t <= Tier360
}

// Seconds returns the lock-in duration for the tier.
func (t Tier) Seconds() uint64 {
	switch t {
	case Tier30:
		return 30 * DaySeconds
	case Tier90:
		return 90 * DaySeconds
	case Tier180:
		return 180 * DaySeconds
	case Tier360:
		return 360 * DaySeconds
	default:
		return 0
	}
}

// Multiplier returns the weight factor applied to stakes in the tier. Longer
// lock-ins earn proportionally more weight per staked unit.
func (t Tier) Multiplier() uint64 {
	switch t {
	case Tier30:
		return 1
	case Tier90:
		return 2
	case Tier180:
		return 3
	case Tier360:
		return 4
	default:
		return 0
	}
}

// PenaltyBps returns the early-exit penalty in basis points. The rate
// decreases with commitment length.
func (t Tier) PenaltyBps() uint64 {
	switch t {
	case Tier30:
		return 1500
	case Tier90:
		return 1300
	case Tier180:
		return 1200
	case Tier360:
		return 1000
	default:
		return 0
	}
}

func (t Tier) String() string {
	switch t {
	case Tier30:
		return "30d"
	case Tier90:
		return "90d"
	case Tier180:
		return "180d"
	case Tier360:
		return "360d"
	default:
		return "invalid"
	}
}

// ValidEligibilityWindow reports whether the supplied window, in seconds,
// falls inside the enumerated safe range.
func ValidEligibilityWindow(seconds uint64) bool {
	return seconds >= MinEligibilityWindow && seconds <= MaxEligibilityWindow
}
