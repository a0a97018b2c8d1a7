package rpc

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stakevault/native/staking"
)

var (
	errInvalidAddress = errors.New("rpc: invalid hex address")
	errInvalidAmount  = errors.New("rpc: amount must be a positive decimal string")
	errInvalidTier    = errors.New("rpc: tier must be one of 30d, 90d, 180d, 360d")
	errInvalidBody    = errors.New("rpc: malformed request body")
)

func parseAddress(raw string) ([20]byte, error) {
	if !common.IsHexAddress(raw) {
		return [20]byte{}, errInvalidAddress
	}
	return common.HexToAddress(raw), nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	return amount, nil
}

func parseTier(raw string) (staking.Tier, error) {
	switch raw {
	case "30d":
		return staking.Tier30, nil
	case "90d":
		return staking.Tier90, nil
	case "180d":
		return staking.Tier180, nil
	case "360d":
		return staking.Tier360, nil
	default:
		return 0, errInvalidTier
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: errInvalidBody.Error()})
		return false
	}
	return true
}

type stakeParams struct {
	Owner  string `json:"owner"`
	Amount string `json:"amount"`
	Tier   string `json:"tier"`
}

type stakeResult struct {
	Index uint64 `json:"index"`
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var params stakeParams
	if !s.decode(w, r, &params) {
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	tier, err := parseTier(params.Tier)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	index, err := s.engine.Stake(owner, amount, tier)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stakeResult{Index: index})
}

type withdrawParams struct {
	Owner string `json:"owner"`
	Index uint64 `json:"index"`
}

type withdrawResult struct {
	Payout string `json:"payout"`
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	var params withdrawParams
	if !s.decode(w, r, &params) {
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	payout, err := s.engine.Withdraw(owner, params.Index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, withdrawResult{Payout: payout.String()})
}

type claimParams struct {
	Owner  string `json:"owner"`
	Period uint64 `json:"period"`
}

type claimResult struct {
	Reward string `json:"reward"`
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	var params claimParams
	if !s.decode(w, r, &params) {
		return
	}
	owner, err := parseAddress(params.Owner)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	reward, err := s.engine.Claim(owner, params.Period)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, claimResult{Reward: reward.String()})
}

type depositParams struct {
	Caller string `json:"caller"`
	Period uint64 `json:"period"`
	Amount string `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var params depositParams
	if !s.decode(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.DepositReward(caller, params.Period, amount); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type windowParams struct {
	Caller  string `json:"caller"`
	Seconds uint64 `json:"seconds"`
}

func (s *Server) handleSetWindow(w http.ResponseWriter, r *http.Request) {
	var params windowParams
	if !s.decode(w, r, &params) {
		return
	}
	caller, err := parseAddress(params.Caller)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.engine.SetEligibilityWindow(caller, params.Seconds); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type positionResult struct {
	Owner       string                   `json:"owner"`
	Held        string                   `json:"held"`
	Commitments []staking.CommitmentInfo `json:"commitments"`
	ComputedAt  int64                    `json:"computedAt"`
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	info, err := s.engine.Position(owner)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, positionResult{
		Owner:       common.BytesToAddress(info.Owner[:]).Hex(),
		Held:        info.Held.String(),
		Commitments: info.Commitments,
		ComputedAt:  info.ComputedAtUnix,
	})
}

type periodResult struct {
	Index           uint64 `json:"index"`
	StartTime       uint64 `json:"startTime"`
	EndTime         uint64 `json:"endTime"`
	RewardPot       string `json:"rewardPot"`
	AggregateWeight string `json:"aggregateWeight"`
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "rpc: invalid period index"})
		return
	}
	period, err := s.state.Period(index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if period == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "rpc: period not materialised"})
		return
	}
	weight, err := s.state.PeriodWeight(index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, periodResult{
		Index:           period.Index,
		StartTime:       period.StartTime,
		EndTime:         period.EndTime,
		RewardPot:       period.RewardPot.String(),
		AggregateWeight: weight.String(),
	})
}

type pendingRewardResult struct {
	Pending string `json:"pending"`
}

func (s *Server) handlePendingReward(w http.ResponseWriter, r *http.Request) {
	owner, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	index, err := strconv.ParseUint(chi.URLParam(r, "index"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "rpc: invalid period index"})
		return
	}
	pending, err := s.engine.PendingReward(owner, index)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pendingRewardResult{Pending: pending.String()})
}

type balanceResult struct {
	Balance string `json:"balance"`
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := parseAddress(chi.URLParam(r, "address"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	balance, err := s.state.Balance(addr)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResult{Balance: balance.String()})
}
