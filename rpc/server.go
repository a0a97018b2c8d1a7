package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakevault/core/state"
	nativecommon "stakevault/native/common"
	"stakevault/native/staking"
)

// Server exposes the staking engine over a JSON HTTP API consumed by wallets
// and indexers.
type Server struct {
	engine *staking.Engine
	state  *state.Manager
	log    *slog.Logger
}

// NewServer constructs an HTTP server around the engine and state manager.
func NewServer(engine *staking.Engine, manager *state.Manager, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: engine, state: manager, log: log}
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/stake", s.handleStake)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/claim", s.handleClaim)
		r.Post("/deposit", s.handleDeposit)
		r.Post("/window", s.handleSetWindow)
		r.Get("/position/{address}", s.handlePosition)
		r.Get("/period/{index}", s.handlePeriod)
		r.Get("/reward/{address}/{index}", s.handlePendingReward)
		r.Get("/balance/{address}", s.handleBalance)
	})

	return r
}

// Start binds the router on addr and serves until the listener fails.
func (s *Server) Start(addr string) error {
	s.log.Info("starting staking API", "addr", addr)
	return http.ListenAndServe(addr, s.Router())
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusForError(err), errorResponse{Error: err.Error()})
}

// statusForError maps the engine's error taxonomy onto HTTP status codes:
// validation errors are 400, authorization 403, state preconditions 409, and
// external ledger rejections 402.
func statusForError(err error) int {
	switch {
	case errors.Is(err, staking.ErrInvalidTier),
		errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrIndexOutOfRange),
		errors.Is(err, staking.ErrInvalidPeriod),
		errors.Is(err, staking.ErrWindowOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, staking.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, staking.ErrAlreadyWithdrawn),
		errors.Is(err, staking.ErrAlreadyClaimed),
		errors.Is(err, staking.ErrPeriodNotEnded),
		errors.Is(err, staking.ErrPeriodNotActive),
		errors.Is(err, staking.ErrNoEligibleStake),
		errors.Is(err, staking.ErrDistributionNotReady),
		errors.Is(err, staking.ErrNothingToClaim),
		errors.Is(err, staking.ErrReentrantCall),
		errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusConflict
	case errors.Is(err, state.ErrInsufficientBalance),
		errors.Is(err, state.ErrInvalidTransfer):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
