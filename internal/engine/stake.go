package engine

import (
	"context"
	"fmt"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/fixedpoint"
	"github.com/codox/token-engine/internal/model"
)

// StakeAccounts are the accounts of Stake, in wire order.
type StakeAccounts struct {
	Staker      *AccountInfo
	StakerToken *AccountInfo
	StakingPool *AccountInfo
	HolderState *AccountInfo
	Config      *AccountInfo
}

// Stake moves amount into the staking pool and records it on the staker's
// holder state, creating the record on first stake. Top-ups keep the
// time of the first stake.
func (e *Engine) Stake(ctx context.Context, tokens TokenProgram, accts StakeAccounts, amount uint64) (*model.HolderState, error) {
	if err := requireSigner(accts.Staker); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.StakerToken, accts.StakingPool, accts.HolderState); err != nil {
		return nil, err
	}
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if err := requireKey(accts.StakingPool, cfg.StakingPool, ErrPoolMismatch); err != nil {
		return nil, err
	}
	if err := e.checkHolderAddress(accts.HolderState, accts.Staker.Key); err != nil {
		return nil, err
	}

	if err := tokens.Transfer(ctx, accts.StakerToken.Key, accts.StakingPool.Key, accts.Staker.Key, amount); err != nil {
		return nil, err
	}

	state, found, err := lookupHolder(accts.HolderState)
	if err != nil {
		return nil, err
	}
	if !found {
		state = &model.HolderState{
			Holder:            accts.Staker.Key,
			StakedAmount:      amount,
			StakeTime:         e.now(),
			HoldingMultiplier: model.BaseMultiplier,
		}
	} else {
		if state.Holder != accts.Staker.Key {
			return nil, fmt.Errorf("%w: %s", ErrHolderMismatch, state.Holder)
		}
		if state.StakedAmount, err = fixedpoint.Add(state.StakedAmount, amount); err != nil {
			return nil, fmt.Errorf("staked amount: %w", err)
		}
	}
	if err := accts.HolderState.Write(codec.EncodeHolderState(state)); err != nil {
		return nil, err
	}

	e.log.Info("tokens staked",
		"holder", state.Holder.String(),
		"amount", amount,
		"staked_total", state.StakedAmount,
		"first_stake", !found,
	)
	return state, nil
}

// lookupHolder returns the holder state stored in a, or found=false when the
// account has never been written.
func lookupHolder(a *AccountInfo) (state *model.HolderState, found bool, err error) {
	if len(a.Data) == 0 {
		return nil, false, nil
	}
	state, err = codec.DecodeHolderState(a.Data)
	if err != nil {
		return nil, false, fmt.Errorf("holder state: %w", err)
	}
	return state, true, nil
}

func (e *Engine) checkHolderAddress(a *AccountInfo, holder model.AccountID) error {
	want, err := e.HolderStateAddress(holder)
	if err != nil {
		return fmt.Errorf("derive holder state address: %w", err)
	}
	return requireKey(a, want, ErrInvalidStateAddress)
}
