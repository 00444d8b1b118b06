// Package service provides the HTTP handlers for submitting signed
// transactions to the token engine and querying its accounts.
package service

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/engine"
	"github.com/codox/token-engine/internal/fixedpoint"
	"github.com/codox/token-engine/internal/instruction"
	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/runtime"
	"github.com/codox/token-engine/internal/store"
	"github.com/codox/token-engine/internal/token"
)

// Service exposes a runtime over HTTP. Admin routes are disabled when
// adminToken is empty.
type Service struct {
	log        *slog.Logger
	rt         *runtime.Runtime
	adminToken string
}

func New(log *slog.Logger, rt *runtime.Runtime, adminToken string) *Service {
	return &Service{log: log, rt: rt, adminToken: adminToken}
}

// Routes registers every handler on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/transactions", s.SubmitTransaction)

	r.Get("/addresses", s.GetAddresses)
	r.Get("/addresses/holder/{holder}", s.GetHolderAddress)

	r.Get("/config", s.GetConfig)
	r.Get("/holders/{holder}", s.GetHolder)
	r.Get("/lottery", s.GetLottery)
	r.Get("/lottery/preview", s.GetLotteryPreview)
	r.Get("/token-accounts/{key}", s.GetTokenAccount)
	r.Get("/accounts/{key}/ledger", s.GetLedger)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/token-accounts", s.CreateTokenAccount)
		r.Post("/token-accounts/{key}/mint", s.MintTo)
	})
}

// --- Request/Response types ---

// TransactionRequest is the JSON body for POST /transactions. Account keys,
// instruction data and signatures are base58.
type TransactionRequest struct {
	Timestamp  int64                 `json:"timestamp"` // unix seconds
	Accounts   []runtime.AccountMeta `json:"accounts"`
	Data       string                `json:"data"`
	Signatures []string              `json:"signatures"`
}

// NewTransactionRequest renders a signed transaction in its wire form.
func NewTransactionRequest(tx *runtime.Transaction) TransactionRequest {
	req := TransactionRequest{
		Timestamp: tx.Timestamp,
		Accounts:  tx.Accounts,
		Data:      base58.Encode(tx.Data),
	}
	for _, sig := range tx.Signatures {
		req.Signatures = append(req.Signatures, sig.String())
	}
	return req
}

func (req TransactionRequest) transaction() (*runtime.Transaction, error) {
	data, err := base58.Decode(req.Data)
	if err != nil {
		return nil, errors.New("data must be base58")
	}
	tx := &runtime.Transaction{
		Timestamp: req.Timestamp,
		Accounts:  req.Accounts,
		Data:      data,
	}
	for _, s := range req.Signatures {
		sig, err := solana.SignatureFromBase58(s)
		if err != nil {
			return nil, errors.New("signatures must be base58")
		}
		tx.Signatures = append(tx.Signatures, sig)
	}
	return tx, nil
}

// AddressesResponse lists the fixed addresses of the deployment.
type AddressesResponse struct {
	ProgramID model.AccountID `json:"program_id"`
	engine.Addresses
}

// ConfigResponse is the pool configuration with its rates as percentages.
type ConfigResponse struct {
	Address model.AccountID          `json:"address"`
	Config  *model.PoolConfiguration `json:"config"`
	Percent RatesPercent             `json:"percent"`
}

type RatesPercent struct {
	Tax        decimal.Decimal `json:"tax"`
	Reflection decimal.Decimal `json:"reflection"`
	Staking    decimal.Decimal `json:"staking"`
	Lottery    decimal.Decimal `json:"lottery"`
}

// LotteryPreview names the participant the next draw would pick.
type LotteryPreview struct {
	Winner       model.AccountID `json:"winner"`
	Participants int             `json:"participants"`
	CurrentPrize uint64          `json:"current_prize"`
	NextDrawAt   int64           `json:"next_draw_at,omitempty"` // unix seconds
}

// CreateTokenAccountRequest is the JSON body for admin account creation.
type CreateTokenAccountRequest struct {
	Owner model.AccountID `json:"owner"`
	Mint  model.AccountID `json:"mint"`
}

type TokenAccountResponse struct {
	Key model.AccountID `json:"key"`
	*model.TokenAccount
}

// MintRequest is the JSON body for admin minting.
type MintRequest struct {
	Amount uint64 `json:"amount"`
}

// --- HTTP Handlers ---

// SubmitTransaction handles POST /api/v1/transactions
func (s *Service) SubmitTransaction(w http.ResponseWriter, r *http.Request) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	tx, err := req.transaction()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := s.rt.Execute(r.Context(), tx)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

// GetAddresses handles GET /api/v1/addresses
func (s *Service) GetAddresses(w http.ResponseWriter, _ *http.Request) {
	eng := s.rt.Engine()
	writeJSON(w, http.StatusOK, AddressesResponse{ProgramID: eng.ProgramID(), Addresses: eng.Addresses()})
}

// GetHolderAddress handles GET /api/v1/addresses/holder/{holder}
func (s *Service) GetHolderAddress(w http.ResponseWriter, r *http.Request) {
	holder, ok := keyParam(w, r, "holder")
	if !ok {
		return
	}
	addr, err := s.rt.Engine().HolderStateAddress(holder)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]model.AccountID{"holder": holder, "address": addr})
}

// GetConfig handles GET /api/v1/config
func (s *Service) GetConfig(w http.ResponseWriter, r *http.Request) {
	addr := s.rt.Engine().Addresses().Config
	cfg, err := s.config(r)
	if err != nil {
		writeError(w, "configuration: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, ConfigResponse{
		Address: addr,
		Config:  cfg,
		Percent: RatesPercent{
			Tax:        model.Rate(cfg.TaxRate).Percent(),
			Reflection: model.Rate(cfg.ReflectionRate).Percent(),
			Staking:    model.Rate(cfg.StakingRate).Percent(),
			Lottery:    model.Rate(cfg.LotteryRate).Percent(),
		},
	})
}

// GetHolder handles GET /api/v1/holders/{holder}
func (s *Service) GetHolder(w http.ResponseWriter, r *http.Request) {
	holder, ok := keyParam(w, r, "holder")
	if !ok {
		return
	}
	addr, err := s.rt.Engine().HolderStateAddress(holder)
	if err != nil {
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	data, err := s.rt.Account(r.Context(), addr)
	if err != nil {
		writeError(w, "holder state: "+err.Error(), statusFor(err))
		return
	}
	state, err := codec.DecodeHolderState(data)
	if err != nil {
		writeError(w, "holder state: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetLottery handles GET /api/v1/lottery
func (s *Service) GetLottery(w http.ResponseWriter, r *http.Request) {
	state, err := s.lottery(r)
	if err != nil {
		writeError(w, "lottery state: "+err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetLotteryPreview handles GET /api/v1/lottery/preview
// Returns the winner the next draw would pick and when it becomes allowed.
func (s *Service) GetLotteryPreview(w http.ResponseWriter, r *http.Request) {
	state, err := s.lottery(r)
	if err != nil {
		writeError(w, "lottery state: "+err.Error(), statusFor(err))
		return
	}
	winner, err := s.rt.Engine().PreviewWinner(state)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	preview := LotteryPreview{
		Winner:       winner,
		Participants: len(state.Participants),
		CurrentPrize: state.CurrentPrize,
	}
	if cfg, err := s.config(r); err == nil {
		preview.NextDrawAt = cfg.LastLotteryDraw + cfg.LotteryInterval
	}
	writeJSON(w, http.StatusOK, preview)
}

// GetTokenAccount handles GET /api/v1/token-accounts/{key}
func (s *Service) GetTokenAccount(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "key")
	if !ok {
		return
	}
	acct, err := s.rt.TokenAccount(r.Context(), key)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, TokenAccountResponse{Key: key, TokenAccount: acct})
}

// GetLedger handles GET /api/v1/accounts/{key}/ledger
func (s *Service) GetLedger(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "key")
	if !ok {
		return
	}
	entries, err := s.rt.Ledger(r.Context(), key)
	if err != nil {
		s.log.Error("ledger query failed", "key", key.String(), "err", err)
		writeError(w, "failed to get ledger", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// CreateTokenAccount handles POST /api/v1/token-accounts (admin)
func (s *Service) CreateTokenAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner.IsZero() || req.Mint.IsZero() {
		writeError(w, "owner and mint are required", http.StatusBadRequest)
		return
	}
	key, acct, err := s.rt.CreateTokenAccount(r.Context(), req.Owner, req.Mint)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusCreated, TokenAccountResponse{Key: key, TokenAccount: acct})
}

// MintTo handles POST /api/v1/token-accounts/{key}/mint (admin)
func (s *Service) MintTo(w http.ResponseWriter, r *http.Request) {
	key, ok := keyParam(w, r, "key")
	if !ok {
		return
	}
	var req MintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount == 0 {
		writeError(w, "amount must be greater than zero", http.StatusBadRequest)
		return
	}
	acct, err := s.rt.MintTo(r.Context(), key, req.Amount)
	if err != nil {
		writeError(w, err.Error(), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, TokenAccountResponse{Key: key, TokenAccount: acct})
}

func (s *Service) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.adminToken == "" {
			writeError(w, "admin API disabled", http.StatusForbidden)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.adminToken)) != 1 {
			writeError(w, "invalid admin token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Service) config(r *http.Request) (*model.PoolConfiguration, error) {
	data, err := s.rt.Account(r.Context(), s.rt.Engine().Addresses().Config)
	if errors.Is(err, store.ErrNotFound) {
		return nil, engine.ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodePoolConfiguration(data)
}

// lottery returns the committed lottery state, empty before the first entry.
func (s *Service) lottery(r *http.Request) (*model.LotteryState, error) {
	data, err := s.rt.Account(r.Context(), s.rt.Engine().Addresses().Lottery)
	if errors.Is(err, store.ErrNotFound) {
		return &model.LotteryState{}, nil
	}
	if err != nil {
		return nil, err
	}
	return codec.DecodeLotteryState(data)
}

func keyParam(w http.ResponseWriter, r *http.Request, name string) (model.AccountID, bool) {
	key, err := solana.PublicKeyFromBase58(chi.URLParam(r, name))
	if err != nil {
		writeError(w, name+" must be a base58 account key", http.StatusBadRequest)
		return model.AccountID{}, false
	}
	return key, true
}

// statusFor maps an execution error to its HTTP status.
func statusFor(err error) int {
	var transferErr *token.TransferError
	switch {
	case errors.Is(err, runtime.ErrMissingSignature),
		errors.Is(err, runtime.ErrSignatureInvalid):
		return http.StatusUnauthorized

	case errors.Is(err, engine.ErrMissingSigner),
		errors.Is(err, engine.ErrAccountNotWritable),
		errors.Is(err, engine.ErrPoolMismatch),
		errors.Is(err, engine.ErrHolderMismatch),
		errors.Is(err, engine.ErrInvalidStateAddress),
		errors.Is(err, engine.ErrTokenAccountOwner),
		errors.Is(err, engine.ErrWinnerAccountMismatch),
		errors.Is(err, token.ErrOwnerMismatch):
		return http.StatusForbidden

	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, token.ErrAccountNotFound),
		errors.Is(err, engine.ErrNotInitialized):
		return http.StatusNotFound

	case errors.Is(err, runtime.ErrDuplicateTransaction),
		errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, engine.ErrAlreadyEntered),
		errors.Is(err, token.ErrAccountExists):
		return http.StatusConflict

	case errors.Is(err, runtime.ErrInvalidTransaction),
		errors.Is(err, runtime.ErrTransactionExpired),
		errors.Is(err, instruction.ErrEmpty),
		errors.Is(err, engine.ErrNotEnoughAccounts),
		errors.Is(err, engine.ErrInvalidConfiguration),
		errors.Is(err, engine.ErrInvalidAmount),
		errors.Is(err, codec.ErrTooShort),
		errors.Is(err, codec.ErrMalformed),
		errors.Is(err, token.ErrNotTokenAccount):
		return http.StatusBadRequest

	case errors.As(err, &transferErr),
		errors.Is(err, engine.ErrNotHolder),
		errors.Is(err, engine.ErrLotteryFull),
		errors.Is(err, engine.ErrNoParticipants),
		errors.Is(err, engine.ErrDrawTooEarly),
		errors.Is(err, fixedpoint.ErrArithmeticOverflow),
		errors.Is(err, fixedpoint.ErrDivisionByZero):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
