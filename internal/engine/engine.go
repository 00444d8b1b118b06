// Package engine implements the token engine's instruction handlers: pool
// configuration, the tax-split transfer, staking, reflection claims and the
// lottery.
//
// Handlers run synchronously against explicit account handles supplied by
// the host. They never lock: the host grants exclusive access to every
// account for the duration of one instruction and discards all writes if a
// handler returns an error, so handlers never compensate partial work.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jonboulle/clockwork"

	"github.com/codox/token-engine/internal/model"
)

var (
	ErrInvalidConfiguration  = errors.New("engine: invalid configuration")
	ErrAlreadyInitialized    = errors.New("engine: configuration already initialized")
	ErrNotInitialized        = errors.New("engine: configuration not initialized")
	ErrNotEnoughAccounts     = errors.New("engine: not enough accounts")
	ErrMissingSigner         = errors.New("engine: required signer missing")
	ErrAccountNotWritable    = errors.New("engine: account not writable")
	ErrInvalidStateAddress   = errors.New("engine: state account address mismatch")
	ErrPoolMismatch          = errors.New("engine: pool account does not match configuration")
	ErrHolderMismatch        = errors.New("engine: holder state belongs to another holder")
	ErrTokenAccountOwner     = errors.New("engine: token account not owned by signer")
	ErrInvalidAmount         = errors.New("engine: amount must be greater than zero")
	ErrNotHolder             = errors.New("engine: participant holds no tokens")
	ErrLotteryFull           = errors.New("engine: lottery is full")
	ErrAlreadyEntered        = errors.New("engine: participant already entered this round")
	ErrNoParticipants        = errors.New("engine: lottery has no participants")
	ErrDrawTooEarly          = errors.New("engine: lottery interval has not elapsed")
	ErrWinnerAccountMismatch = errors.New("engine: winner token account not owned by winner")
)

// DefaultMaxParticipants bounds the lottery record size.
const DefaultMaxParticipants = 256

// TokenProgram is the token-transfer collaborator. Transfer is atomic per
// call; the engine issues several calls per instruction and relies on the
// host to roll all of them back on failure.
type TokenProgram interface {
	Transfer(ctx context.Context, source, destination, authority model.AccountID, amount uint64) error
	Balance(ctx context.Context, account model.AccountID) (uint64, error)
	Owner(ctx context.Context, account model.AccountID) (model.AccountID, error)
}

// AccountInfo is a host-supplied account handle. Signer and Writable are
// verified by the host before the engine runs.
type AccountInfo struct {
	Key      model.AccountID
	Data     []byte
	Signer   bool
	Writable bool

	dirty bool
}

// Write replaces the account data.
func (a *AccountInfo) Write(data []byte) error {
	if !a.Writable {
		return fmt.Errorf("%w: %s", ErrAccountNotWritable, a.Key)
	}
	a.Data = data
	a.dirty = true
	return nil
}

// Dirty reports whether the engine wrote the account.
func (a *AccountInfo) Dirty() bool { return a.dirty }

// Config holds the engine's dependencies. Validate fills the optional
// fields.
type Config struct {
	Logger          *slog.Logger
	Clock           clockwork.Clock
	ProgramID       model.AccountID
	Selector        WinnerSelector
	MaxParticipants int
}

// Validate checks the required fields and defaults Clock to the real
// clock, Selector to HashSelector and MaxParticipants to
// DefaultMaxParticipants.
func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.ProgramID.IsZero() {
		return errors.New("program id is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Selector == nil {
		cfg.Selector = HashSelector{}
	}
	if cfg.MaxParticipants <= 0 {
		cfg.MaxParticipants = DefaultMaxParticipants
	}
	return nil
}

// Engine executes instructions. It holds no per-instruction state and may
// be shared.
type Engine struct {
	log   *slog.Logger
	cfg   Config
	addrs Addresses
}

// New validates cfg and derives the program addresses from its program ID.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	addrs, err := DeriveAddresses(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive program addresses: %w", err)
	}
	return &Engine{log: cfg.Logger, cfg: cfg, addrs: addrs}, nil
}

// Addresses returns the program-derived addresses of this deployment.
func (e *Engine) Addresses() Addresses { return e.addrs }

// ProgramID returns the ID every state address is derived from.
func (e *Engine) ProgramID() model.AccountID { return e.cfg.ProgramID }

// HolderStateAddress returns the holder state address for holder.
func (e *Engine) HolderStateAddress(holder model.AccountID) (model.AccountID, error) {
	return HolderStateAddress(e.cfg.ProgramID, holder)
}

func (e *Engine) now() int64 {
	return e.cfg.Clock.Now().Unix()
}

// --- account checks ---

func requireSigner(a *AccountInfo) error {
	if !a.Signer {
		return fmt.Errorf("%w: %s", ErrMissingSigner, a.Key)
	}
	return nil
}

func requireWritable(accts ...*AccountInfo) error {
	for _, a := range accts {
		if !a.Writable {
			return fmt.Errorf("%w: %s", ErrAccountNotWritable, a.Key)
		}
	}
	return nil
}

func requireKey(a *AccountInfo, want model.AccountID, kind error) error {
	if a.Key != want {
		return fmt.Errorf("%w: got %s, want %s", kind, a.Key, want)
	}
	return nil
}
