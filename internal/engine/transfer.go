package engine

import (
	"context"
	"fmt"

	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/tax"
)

// TransferAccounts are the accounts of Transfer, in wire order. SourceOwner
// signs; Source, Destination and the three pools are written.
type TransferAccounts struct {
	SourceOwner    *AccountInfo
	Source         *AccountInfo
	Destination    *AccountInfo
	TaxVault       *AccountInfo
	ReflectionPool *AccountInfo
	StakingPool    *AccountInfo
	LotteryPool    *AccountInfo
	Config         *AccountInfo
}

// Transfer moves amount from source to destination, diverting the tax
// share into the three pools. The net transfer always executes, even for a
// zero net amount; each pool share is transferred only when nonzero.
func (e *Engine) Transfer(ctx context.Context, tokens TokenProgram, accts TransferAccounts, amount uint64) (*tax.Split, error) {
	if err := requireSigner(accts.SourceOwner); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.Source, accts.Destination, accts.ReflectionPool, accts.StakingPool, accts.LotteryPool); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if err := checkPools(cfg, accts); err != nil {
		return nil, err
	}

	split, err := tax.Compute(amount, tax.RatesOf(cfg))
	if err != nil {
		return nil, err
	}
	if err := e.distribute(ctx, tokens, accts, split); err != nil {
		return nil, err
	}

	e.log.Debug("transfer executed",
		"source", accts.Source.Key.String(),
		"destination", accts.Destination.Key.String(),
		"amount", split.Amount,
		"net", split.Net,
		"tax", split.Tax,
	)
	return &split, nil
}

func (e *Engine) distribute(ctx context.Context, tokens TokenProgram, accts TransferAccounts, split tax.Split) error {
	src, owner := accts.Source.Key, accts.SourceOwner.Key
	if err := tokens.Transfer(ctx, src, accts.Destination.Key, owner, split.Net); err != nil {
		return err
	}
	shares := []struct {
		pool   model.AccountID
		amount uint64
	}{
		{accts.ReflectionPool.Key, split.Reflection},
		{accts.StakingPool.Key, split.Staking},
		{accts.LotteryPool.Key, split.Lottery},
	}
	for _, s := range shares {
		if s.amount == 0 {
			continue
		}
		if err := tokens.Transfer(ctx, src, s.pool, owner, s.amount); err != nil {
			return err
		}
	}
	return nil
}

func checkPools(cfg *model.PoolConfiguration, accts TransferAccounts) error {
	for _, p := range []struct {
		got  *AccountInfo
		want model.AccountID
	}{
		{accts.TaxVault, cfg.TaxVault},
		{accts.ReflectionPool, cfg.ReflectionPool},
		{accts.StakingPool, cfg.StakingPool},
		{accts.LotteryPool, cfg.LotteryPool},
	} {
		if p.got.Key != p.want {
			return fmt.Errorf("%w: got %s, want %s", ErrPoolMismatch, p.got.Key, p.want)
		}
	}
	return nil
}
