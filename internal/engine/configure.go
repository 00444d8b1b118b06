package engine

import (
	"fmt"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/instruction"
	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/tax"
)

// InitializeAccounts are the accounts of InitializeConfiguration, in wire
// order. Only Authority signs; only Config is written.
type InitializeAccounts struct {
	Authority      *AccountInfo
	Mint           *AccountInfo
	TaxVault       *AccountInfo
	ReflectionPool *AccountInfo
	StakingPool    *AccountInfo
	LotteryPool    *AccountInfo
	Config         *AccountInfo
}

// InitializeConfiguration writes a fresh pool configuration. The caller
// supplies the tax rate explicitly and it must equal the sum of the
// sub-rates.
func (e *Engine) InitializeConfiguration(accts InitializeAccounts, ix instruction.InitializeConfiguration) (*model.PoolConfiguration, error) {
	if err := requireSigner(accts.Authority); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.Config); err != nil {
		return nil, err
	}
	if err := requireKey(accts.Config, e.addrs.Config, ErrInvalidStateAddress); err != nil {
		return nil, err
	}

	rates := tax.Rates{
		Tax:        ix.TaxRate,
		Reflection: ix.ReflectionRate,
		Staking:    ix.StakingRate,
		Lottery:    ix.LotteryRate,
	}
	if err := rates.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	if len(accts.Config.Data) > 0 {
		if existing, err := codec.DecodePoolConfiguration(accts.Config.Data); err == nil && existing.Initialized {
			return nil, ErrAlreadyInitialized
		}
	}

	cfg := &model.PoolConfiguration{
		Initialized:     true,
		Authority:       accts.Authority.Key,
		TokenMint:       accts.Mint.Key,
		TaxVault:        accts.TaxVault.Key,
		ReflectionPool:  accts.ReflectionPool.Key,
		StakingPool:     accts.StakingPool.Key,
		LotteryPool:     accts.LotteryPool.Key,
		TaxRate:         ix.TaxRate,
		ReflectionRate:  ix.ReflectionRate,
		StakingRate:     ix.StakingRate,
		LotteryRate:     ix.LotteryRate,
		LotteryInterval: model.DefaultLotteryInterval,
	}
	if err := accts.Config.Write(codec.EncodePoolConfiguration(cfg)); err != nil {
		return nil, err
	}

	e.log.Info("pool configuration initialized",
		"authority", cfg.Authority.String(),
		"mint", cfg.TokenMint.String(),
		"tax_percent", model.Rate(cfg.TaxRate).Percent().String(),
		"reflection_bps", cfg.ReflectionRate,
		"staking_bps", cfg.StakingRate,
		"lottery_bps", cfg.LotteryRate,
	)
	return cfg, nil
}

// loadConfig decodes an initialized configuration from the program's
// config account.
func (e *Engine) loadConfig(a *AccountInfo) (*model.PoolConfiguration, error) {
	if err := requireKey(a, e.addrs.Config, ErrInvalidStateAddress); err != nil {
		return nil, err
	}
	if len(a.Data) == 0 {
		return nil, ErrNotInitialized
	}
	cfg, err := codec.DecodePoolConfiguration(a.Data)
	if err != nil {
		return nil, fmt.Errorf("pool configuration: %w", err)
	}
	if !cfg.Initialized {
		return nil, ErrNotInitialized
	}
	return cfg, nil
}
