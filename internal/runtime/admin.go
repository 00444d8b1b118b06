package runtime

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/token"
)

// CreateTokenAccount creates an empty token account under a fresh key.
func (r *Runtime) CreateTokenAccount(ctx context.Context, owner, mint model.AccountID) (model.AccountID, *model.TokenAccount, error) {
	pk, err := solana.NewRandomPrivateKey()
	if err != nil {
		return model.AccountID{}, nil, fmt.Errorf("generate account key: %w", err)
	}
	key := pk.PublicKey()

	r.mu.Lock()
	defer r.mu.Unlock()

	ov := newOverlay(r.primary, nil)
	acct, err := token.NewProgram(ov).CreateAccount(ctx, key, owner, mint)
	if err != nil {
		return model.AccountID{}, nil, err
	}
	if err := r.cfg.Store.Commit(ctx, ov.records(), nil); err != nil {
		return model.AccountID{}, nil, fmt.Errorf("commit: %w", err)
	}

	r.log.Info("token account created", "key", key.String(), "owner", owner.String(), "mint", mint.String())
	return key, acct, nil
}

// MintTo credits amount new tokens to key and records the issuance in the
// ledger with the mint as source.
func (r *Runtime) MintTo(ctx context.Context, key model.AccountID, amount uint64) (*model.TokenAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ov := newOverlay(r.primary, nil)
	acct, err := token.NewProgram(ov).MintTo(ctx, key, amount)
	if err != nil {
		return nil, err
	}
	entry := model.LedgerEntry{
		ID:          uuid.NewString(),
		TxID:        uuid.NewString(),
		Instruction: "MintTo",
		Source:      acct.Mint,
		Destination: key,
		Amount:      amount,
		Timestamp:   r.cfg.Clock.Now().UTC(),
	}
	if err := r.cfg.Store.Commit(ctx, ov.records(), []model.LedgerEntry{entry}); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	r.log.Info("tokens minted", "key", key.String(), "amount", amount, "balance", acct.Amount)
	return acct, nil
}

// Account returns the committed bytes of key.
func (r *Runtime) Account(ctx context.Context, key model.AccountID) ([]byte, error) {
	return r.cfg.Store.GetAccount(ctx, key)
}

// TokenAccount returns the committed token account at key.
func (r *Runtime) TokenAccount(ctx context.Context, key model.AccountID) (*model.TokenAccount, error) {
	return token.NewProgram(newOverlay(r.cfg.Store, nil)).Get(ctx, key)
}

// Ledger returns the committed movements touching key.
func (r *Runtime) Ledger(ctx context.Context, key model.AccountID) ([]model.LedgerEntry, error) {
	return r.cfg.Store.GetLedgerEntries(ctx, key)
}
