package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/model"
)

const day = 24 * time.Hour

func (f *fixture) fundReflection(amount uint64) {
	f.t.Helper()
	_, err := f.tokens.MintTo(f.ctx, f.reflectionPool, amount)
	require.NoError(f.t, err)
}

func TestClaimReflection_PaysAndUpdatesState(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(300, 150, 100, 50)

	holder := newKey(t)
	holderToken := f.tokenAccount(holder, 1_500)
	_, err := f.stake(holder, holderToken, 500)
	require.NoError(t, err)
	f.fundReflection(1_000_000)

	// First claim measures from time zero, so the multiplier is capped.
	out, err := f.claim(holder, holderToken)
	require.NoError(t, err)
	require.Equal(t, uint16(500), out.Reward.Multiplier)
	require.Equal(t, uint64(50_000), out.Reward.Reward)

	state := f.holderState(holder)
	require.Equal(t, epoch.Unix(), state.LastReflectionClaim)
	require.Equal(t, uint64(50_000), state.TotalClaimed)
	require.Equal(t, uint16(500), state.HoldingMultiplier)
	require.Equal(t, uint64(51_000), f.balance(holderToken))
	require.Equal(t, uint64(950_000), f.balance(f.reflectionPool))

	f.clock.Advance(10 * day)

	// 950_000 * 51_000 * 120 / 10_000_000
	out, err = f.claim(holder, holderToken)
	require.NoError(t, err)
	require.Equal(t, uint16(120), out.Reward.Multiplier)
	require.Equal(t, uint64(581_400), out.Reward.Reward)

	state = f.holderState(holder)
	require.Equal(t, epoch.Add(10*day).Unix(), state.LastReflectionClaim)
	require.Equal(t, uint64(631_400), state.TotalClaimed)
	require.Equal(t, uint16(120), state.HoldingMultiplier)
	require.Equal(t, uint64(500), state.StakedAmount)
}

func TestClaimReflection_MultiplierCap(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(300, 150, 100, 50)

	holder := newKey(t)
	holderToken := f.tokenAccount(holder, 2)
	_, err := f.stake(holder, holderToken, 1)
	require.NoError(t, err)
	f.fundReflection(10_000_000)

	_, err = f.claim(holder, holderToken)
	require.NoError(t, err)

	f.clock.Advance(400 * day)

	out, err := f.claim(holder, holderToken)
	require.NoError(t, err)
	require.Equal(t, uint16(500), out.Reward.Multiplier)
	require.Equal(t, int64(400*86_400), out.Reward.HoldingSeconds)
	// 9_999_500 * 501 * 500 / 10_000_000
	require.Equal(t, uint64(250_487), out.Reward.Reward)
}

func TestClaimReflection_ZeroRewardIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(300, 150, 100, 50)

	holder := newKey(t)
	holderToken := f.tokenAccount(holder, 1_000)
	_, err := f.stake(holder, holderToken, 500)
	require.NoError(t, err)

	before := append([]byte(nil), f.db[f.holderAddress(holder)]...)
	journal := len(f.tokens.Journal())

	out, err := f.claim(holder, holderToken)
	require.NoError(t, err)
	require.Zero(t, out.Reward.Reward)

	require.Equal(t, before, f.db[f.holderAddress(holder)])
	require.Len(t, f.tokens.Journal(), journal)
	state := f.holderState(holder)
	require.Zero(t, state.LastReflectionClaim)
	require.Zero(t, state.TotalClaimed)
	require.Equal(t, model.BaseMultiplier, state.HoldingMultiplier)
}

func TestClaimReflection_Rejects(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.mustInitialize(300, 150, 100, 50)
	f.fundReflection(1_000)

	holder := newKey(t)
	holderToken := f.tokenAccount(holder, 1_000)

	_, err := f.claim(holder, holderToken)
	require.ErrorIs(t, err, codec.ErrTooShort)

	_, err = f.stake(holder, holderToken, 10)
	require.NoError(t, err)

	someoneElse := f.tokenAccount(newKey(t), 1_000)
	_, err = f.claim(holder, someoneElse)
	require.ErrorIs(t, err, ErrTokenAccountOwner)
}
