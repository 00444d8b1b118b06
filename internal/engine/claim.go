package engine

import (
	"context"
	"fmt"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/fixedpoint"
	"github.com/codox/token-engine/internal/reflection"
)

// ClaimAccounts are the accounts of ClaimReflection, in wire order.
type ClaimAccounts struct {
	Holder         *AccountInfo
	HolderToken    *AccountInfo
	ReflectionPool *AccountInfo
	HolderState    *AccountInfo
	Config         *AccountInfo
}

// ClaimReflection pays the holder's time-weighted share of the reflection
// pool. A zero reward leaves the holder state untouched.
//
// The holder must have staked at least once: a missing holder state fails
// with codec.ErrTooShort.
func (e *Engine) ClaimReflection(ctx context.Context, tokens TokenProgram, accts ClaimAccounts) (*reflection.Quote, error) {
	if err := requireSigner(accts.Holder); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.HolderToken, accts.ReflectionPool, accts.HolderState); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if err := requireKey(accts.ReflectionPool, cfg.ReflectionPool, ErrPoolMismatch); err != nil {
		return nil, err
	}
	if err := e.checkHolderAddress(accts.HolderState, accts.Holder.Key); err != nil {
		return nil, err
	}

	state, err := codec.DecodeHolderState(accts.HolderState.Data)
	if err != nil {
		return nil, fmt.Errorf("holder state: %w", err)
	}
	if state.Holder != accts.Holder.Key {
		return nil, fmt.Errorf("%w: %s", ErrHolderMismatch, state.Holder)
	}
	owner, err := tokens.Owner(ctx, accts.HolderToken.Key)
	if err != nil {
		return nil, err
	}
	if owner != accts.Holder.Key {
		return nil, fmt.Errorf("%w: %s", ErrTokenAccountOwner, accts.HolderToken.Key)
	}

	holderBalance, err := tokens.Balance(ctx, accts.HolderToken.Key)
	if err != nil {
		return nil, err
	}
	poolBalance, err := tokens.Balance(ctx, accts.ReflectionPool.Key)
	if err != nil {
		return nil, err
	}

	now := e.now()
	quote, err := reflection.Compute(now, state.LastReflectionClaim, poolBalance, holderBalance)
	if err != nil {
		return nil, err
	}
	if quote.Reward == 0 {
		e.log.Debug("reflection claim yielded no reward", "holder", state.Holder.String())
		return &quote, nil
	}

	if err := tokens.Transfer(ctx, accts.ReflectionPool.Key, accts.HolderToken.Key, e.addrs.PoolAuthority, quote.Reward); err != nil {
		return nil, err
	}
	state.LastReflectionClaim = now
	if state.TotalClaimed, err = fixedpoint.Add(state.TotalClaimed, quote.Reward); err != nil {
		return nil, fmt.Errorf("total claimed: %w", err)
	}
	state.HoldingMultiplier = quote.Multiplier
	if err := accts.HolderState.Write(codec.EncodeHolderState(state)); err != nil {
		return nil, err
	}

	e.log.Info("reflection claimed",
		"holder", state.Holder.String(),
		"reward", quote.Reward,
		"multiplier", quote.Multiplier,
	)
	return &quote, nil
}
