// Package token implements the balance ledger the engine moves tokens
// through. Token accounts are 73-byte records stored alongside the engine's
// own records, read and written through an AccountDB so the host can stage
// and commit them atomically.
package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/fixedpoint"
	"github.com/codox/token-engine/internal/model"
)

var (
	ErrAccountNotFound   = errors.New("token: account not found")
	ErrAccountExists     = errors.New("token: account already exists")
	ErrAccountFrozen     = errors.New("token: account frozen")
	ErrOwnerMismatch     = errors.New("token: authority does not own source account")
	ErrMintMismatch      = errors.New("token: accounts hold different mints")
	ErrInsufficientFunds = errors.New("token: insufficient funds")
	ErrBalanceOverflow   = errors.New("token: destination balance overflow")
	ErrNotTokenAccount   = errors.New("token: account is not a token account")
)

// TransferError describes a failed transfer. Err is one of the sentinel
// errors above.
type TransferError struct {
	Source      model.AccountID
	Destination model.AccountID
	Amount      uint64
	Err         error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer %d from %s to %s: %v", e.Amount, e.Source, e.Destination, e.Err)
}

func (e *TransferError) Unwrap() error { return e.Err }

// AccountDB is the account storage the program reads and writes. Load
// returns nil data for an account that does not exist.
type AccountDB interface {
	Load(ctx context.Context, key model.AccountID) ([]byte, error)
	Save(ctx context.Context, key model.AccountID, data []byte) error
}

// Movement is a journaled, completed transfer.
type Movement struct {
	Source      model.AccountID `json:"source"`
	Destination model.AccountID `json:"destination"`
	Authority   model.AccountID `json:"authority"`
	Amount      uint64          `json:"amount"`
}

// Program executes token operations against an AccountDB.
type Program struct {
	db      AccountDB
	journal []Movement
}

// NewProgram creates a token program over db.
func NewProgram(db AccountDB) *Program {
	return &Program{db: db}
}

// Journal returns the transfers executed so far, in order.
func (p *Program) Journal() []Movement {
	out := make([]Movement, len(p.journal))
	copy(out, p.journal)
	return out
}

// Get loads and decodes a token account.
func (p *Program) Get(ctx context.Context, key model.AccountID) (*model.TokenAccount, error) {
	data, err := p.db.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	acct, err := codec.DecodeTokenAccount(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotTokenAccount, key, err)
	}
	if acct.State == model.TokenAccountUninitialized {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return acct, nil
}

// Balance returns the token balance of key.
func (p *Program) Balance(ctx context.Context, key model.AccountID) (uint64, error) {
	acct, err := p.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// Owner returns the owner of token account key.
func (p *Program) Owner(ctx context.Context, key model.AccountID) (model.AccountID, error) {
	acct, err := p.Get(ctx, key)
	if err != nil {
		return model.AccountID{}, err
	}
	return acct.Owner, nil
}

// Transfer moves amount from source to destination. authority must own the
// source account. A zero amount is allowed; a self-transfer only validates.
func (p *Program) Transfer(ctx context.Context, source, destination, authority model.AccountID, amount uint64) error {
	fail := func(err error) error {
		return &TransferError{Source: source, Destination: destination, Amount: amount, Err: err}
	}

	src, err := p.Get(ctx, source)
	if err != nil {
		return fail(err)
	}
	dst, err := p.Get(ctx, destination)
	if err != nil {
		return fail(err)
	}
	if src.Mint != dst.Mint {
		return fail(ErrMintMismatch)
	}
	if src.State == model.TokenAccountFrozen || dst.State == model.TokenAccountFrozen {
		return fail(ErrAccountFrozen)
	}
	if src.Owner != authority {
		return fail(ErrOwnerMismatch)
	}
	if src.Amount < amount {
		return fail(ErrInsufficientFunds)
	}

	if source != destination {
		src.Amount -= amount
		if dst.Amount, err = fixedpoint.Add(dst.Amount, amount); err != nil {
			return fail(ErrBalanceOverflow)
		}
		if err := p.db.Save(ctx, source, codec.EncodeTokenAccount(src)); err != nil {
			return err
		}
		if err := p.db.Save(ctx, destination, codec.EncodeTokenAccount(dst)); err != nil {
			return err
		}
	}

	p.journal = append(p.journal, Movement{
		Source:      source,
		Destination: destination,
		Authority:   authority,
		Amount:      amount,
	})
	return nil
}

// CreateAccount initializes an empty token account at key.
func (p *Program) CreateAccount(ctx context.Context, key, owner, mint model.AccountID) (*model.TokenAccount, error) {
	data, err := p.db.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(data) != 0 {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, key)
	}
	acct := &model.TokenAccount{Mint: mint, Owner: owner, State: model.TokenAccountInitialized}
	if err := p.db.Save(ctx, key, codec.EncodeTokenAccount(acct)); err != nil {
		return nil, err
	}
	return acct, nil
}

// MintTo credits amount new tokens to key.
func (p *Program) MintTo(ctx context.Context, key model.AccountID, amount uint64) (*model.TokenAccount, error) {
	acct, err := p.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if acct.Amount, err = fixedpoint.Add(acct.Amount, amount); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrBalanceOverflow, key)
	}
	if err := p.db.Save(ctx, key, codec.EncodeTokenAccount(acct)); err != nil {
		return nil, err
	}
	return acct, nil
}

// SetFrozen freezes or thaws key.
func (p *Program) SetFrozen(ctx context.Context, key model.AccountID, frozen bool) error {
	acct, err := p.Get(ctx, key)
	if err != nil {
		return err
	}
	acct.State = model.TokenAccountInitialized
	if frozen {
		acct.State = model.TokenAccountFrozen
	}
	return p.db.Save(ctx, key, codec.EncodeTokenAccount(acct))
}
