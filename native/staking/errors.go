package staking

import "errors"

var (
	ErrNilState             = errors.New("staking: state not configured")
	ErrNilLedger            = errors.New("staking: token ledger not configured")
	ErrReentrantCall        = errors.New("staking: reentrant call rejected")
	ErrUnauthorized         = errors.New("staking: caller is not the operator")
	ErrInvalidTier          = errors.New("staking: invalid duration tier")
	ErrInvalidAmount        = errors.New("staking: amount must be positive")
	ErrIndexOutOfRange      = errors.New("staking: commitment index out of range")
	ErrAlreadyWithdrawn     = errors.New("staking: commitment already withdrawn")
	ErrInvalidPeriod        = errors.New("staking: period index exceeds active period")
	ErrPeriodNotActive      = errors.New("staking: period is not the active period")
	ErrPeriodNotEnded       = errors.New("staking: period has not ended")
	ErrAlreadyClaimed       = errors.New("staking: reward already claimed")
	ErrNoEligibleStake      = errors.New("staking: no eligible stake for period")
	ErrDistributionNotReady = errors.New("staking: no weight recorded for period")
	ErrNothingToClaim       = errors.New("staking: reward rounds down to zero")
	ErrWindowOutOfRange     = errors.New("staking: eligibility window out of range")
)
