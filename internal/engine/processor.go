package engine

import (
	"context"
	"fmt"

	"github.com/codox/token-engine/internal/instruction"
	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/reflection"
	"github.com/codox/token-engine/internal/tax"
)

// Outcome is the result of one processed instruction. Exactly the field for
// the executed instruction kind is set.
type Outcome struct {
	Instruction instruction.Kind         `json:"instruction"`
	Config      *model.PoolConfiguration `json:"config,omitempty"`
	Split       *tax.Split               `json:"split,omitempty"`
	Holder      *model.HolderState       `json:"holder,omitempty"`
	Reward      *reflection.Quote        `json:"reward,omitempty"`
	Lottery     *model.LotteryState      `json:"lottery,omitempty"`
	Draw        *DrawResult              `json:"draw,omitempty"`
}

// Process parses the positional accounts for ix and runs its handler.
// Accounts beyond those an instruction uses are ignored.
//
// The pool configuration is always the last account. Stake,
// ClaimReflection, ParticipateInLottery and DrawLottery carry it as a
// trailing account after their own; the handlers read the pool addresses
// from it and refuse pools that do not match.
func (e *Engine) Process(ctx context.Context, tokens TokenProgram, ix instruction.Instruction, accounts []*AccountInfo) (*Outcome, error) {
	it := &accountIter{accounts: accounts}
	out := &Outcome{Instruction: ix.Kind()}
	var err error

	switch ix := ix.(type) {
	case instruction.InitializeConfiguration:
		accts := InitializeAccounts{
			Authority:      it.next(),
			Mint:           it.next(),
			TaxVault:       it.next(),
			ReflectionPool: it.next(),
			StakingPool:    it.next(),
			LotteryPool:    it.next(),
			Config:         it.next(),
		}
		if err := it.check(ix.Kind()); err != nil {
			return nil, err
		}
		out.Config, err = e.InitializeConfiguration(accts, ix)

	case instruction.Transfer:
		accts := TransferAccounts{
			SourceOwner:    it.next(),
			Source:         it.next(),
			Destination:    it.next(),
			TaxVault:       it.next(),
			ReflectionPool: it.next(),
			StakingPool:    it.next(),
			LotteryPool:    it.next(),
			Config:         it.next(),
		}
		if err := it.check(ix.Kind()); err != nil {
			return nil, err
		}
		out.Split, err = e.Transfer(ctx, tokens, accts, ix.Amount)

	case instruction.Stake:
		accts := StakeAccounts{
			Staker:      it.next(),
			StakerToken: it.next(),
			StakingPool: it.next(),
			HolderState: it.next(),
			Config:      it.next(),
		}
		if err := it.check(ix.Kind()); err != nil {
			return nil, err
		}
		out.Holder, err = e.Stake(ctx, tokens, accts, ix.Amount)

	case instruction.ClaimReflection:
		accts := ClaimAccounts{
			Holder:         it.next(),
			HolderToken:    it.next(),
			ReflectionPool: it.next(),
			HolderState:    it.next(),
			Config:         it.next(),
		}
		if err := it.check(ix.Kind()); err != nil {
			return nil, err
		}
		out.Reward, err = e.ClaimReflection(ctx, tokens, accts)

	case instruction.ParticipateInLottery:
		accts := ParticipateAccounts{
			Participant:      it.next(),
			ParticipantToken: it.next(),
			LotteryPool:      it.next(),
			LotteryState:     it.next(),
			Config:           it.next(),
		}
		if err := it.check(ix.Kind()); err != nil {
			return nil, err
		}
		out.Lottery, err = e.ParticipateInLottery(ctx, tokens, accts)

	case instruction.DrawLottery:
		accts := DrawAccounts{
			Caller:       it.next(),
			WinnerToken:  it.next(),
			LotteryPool:  it.next(),
			LotteryState: it.next(),
			Config:       it.next(),
		}
		if err := it.check(ix.Kind()); err != nil {
			return nil, err
		}
		out.Draw, err = e.DrawLottery(ctx, tokens, accts)

	default:
		return nil, fmt.Errorf("%w: %T", instruction.ErrUnknownInstruction, ix)
	}

	if err != nil {
		return nil, err
	}
	return out, nil
}

// AccountCount is the number of positional accounts k expects.
func AccountCount(k instruction.Kind) int {
	switch k {
	case instruction.KindInitializeConfiguration:
		return 7
	case instruction.KindTransfer:
		return 8
	default:
		return 5
	}
}

type accountIter struct {
	accounts []*AccountInfo
	pos      int
	missing  bool
}

// next returns the next account, or a placeholder once the list runs out
// so callers can fill a struct and check once.
func (it *accountIter) next() *AccountInfo {
	if it.pos >= len(it.accounts) || it.accounts[it.pos] == nil {
		it.missing = true
		it.pos++
		return &AccountInfo{}
	}
	a := it.accounts[it.pos]
	it.pos++
	return a
}

func (it *accountIter) check(k instruction.Kind) error {
	if it.missing {
		return fmt.Errorf("%w: %s needs %d, got %d", ErrNotEnoughAccounts, k, AccountCount(k), len(it.accounts))
	}
	return nil
}
