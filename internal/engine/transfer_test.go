package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codox/token-engine/internal/instruction"
	"github.com/codox/token-engine/internal/tax"
	"github.com/codox/token-engine/internal/token"
)

func TestTransfer_EndToEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(300, 150, 100, 50)

	owner := newKey(t)
	src := f.tokenAccount(owner, 10_000)
	dst := f.tokenAccount(newKey(t), 0)

	out, err := f.transfer(owner, src, dst, 10_000)
	require.NoError(t, err)
	require.Equal(t, instruction.KindTransfer, out.Instruction)
	require.Equal(t, &tax.Split{
		Amount:     10_000,
		Tax:        300,
		Net:        9_700,
		Reflection: 150,
		Staking:    100,
		Lottery:    50,
	}, out.Split)
	require.Equal(t, out.Split.Amount, out.Split.Total())

	require.Zero(t, f.balance(src))
	require.Equal(t, uint64(9_700), f.balance(dst))
	require.Equal(t, uint64(150), f.balance(f.reflectionPool))
	require.Equal(t, uint64(100), f.balance(f.stakingPool))
	require.Equal(t, uint64(50), f.balance(f.lotteryPool))
	require.Zero(t, f.balance(f.taxVault))

	journal := f.tokens.Journal()
	require.Len(t, journal, 4)
	require.Equal(t, token.Movement{Source: src, Destination: dst, Authority: owner, Amount: 9_700}, journal[0])
	require.Equal(t, f.reflectionPool, journal[1].Destination)
	require.Equal(t, f.stakingPool, journal[2].Destination)
	require.Equal(t, f.lotteryPool, journal[3].Destination)
}

func TestTransfer_ZeroTaxSingleTransfer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(0, 0, 0, 0)

	owner := newKey(t)
	src := f.tokenAccount(owner, 1_000)
	dst := f.tokenAccount(newKey(t), 0)

	out, err := f.transfer(owner, src, dst, 1_000)
	require.NoError(t, err)
	require.Equal(t, uint64(1_000), out.Split.Net)
	require.Zero(t, out.Split.Tax)

	journal := f.tokens.Journal()
	require.Len(t, journal, 1)
	require.Equal(t, token.Movement{Source: src, Destination: dst, Authority: owner, Amount: 1_000}, journal[0])
}

func TestTransfer_SkipsZeroShares(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(300, 150, 100, 50)

	owner := newKey(t)
	src := f.tokenAccount(owner, 200)
	dst := f.tokenAccount(newKey(t), 0)

	// 3 tax: reflection 1, staking 1, lottery 1.
	_, err := f.transfer(owner, src, dst, 100)
	require.NoError(t, err)
	require.Len(t, f.tokens.Journal(), 4)

	// Below one token of tax, only the net transfer runs.
	_, err = f.transfer(owner, src, dst, 33)
	require.NoError(t, err)
	require.Len(t, f.tokens.Journal(), 5)
	require.Equal(t, uint64(97+33), f.balance(dst))
}

func TestTransfer_Failures(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(300, 150, 100, 50)

	owner := newKey(t)
	src := f.tokenAccount(owner, 100)
	dst := f.tokenAccount(newKey(t), 0)

	_, err := f.transfer(owner, src, dst, 101)
	require.ErrorIs(t, err, token.ErrInsufficientFunds)
	var terr *token.TransferError
	require.ErrorAs(t, err, &terr)
	require.Equal(t, src, terr.Source)

	_, err = f.transfer(newKey(t), src, dst, 10)
	require.ErrorIs(t, err, token.ErrOwnerMismatch)

	_, err = f.process(instruction.Transfer{Amount: 10},
		f.signer(owner),
		f.writable(src),
		f.writable(dst),
		f.readonly(f.taxVault),
		f.writable(f.stakingPool),
		f.writable(f.reflectionPool),
		f.writable(f.lotteryPool),
		f.readonly(f.addrs.Config),
	)
	require.ErrorIs(t, err, ErrPoolMismatch)

	_, err = f.process(instruction.Transfer{Amount: 10},
		f.readonly(owner),
		f.writable(src),
		f.writable(dst),
		f.readonly(f.taxVault),
		f.writable(f.reflectionPool),
		f.writable(f.stakingPool),
		f.writable(f.lotteryPool),
		f.readonly(f.addrs.Config),
	)
	require.ErrorIs(t, err, ErrMissingSigner)
}
