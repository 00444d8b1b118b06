package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/instruction"
	"github.com/codox/token-engine/internal/model"
	"github.com/codox/token-engine/internal/token"
)

var epoch = time.Unix(1_700_000_000, 0)

type memDB map[model.AccountID][]byte

func (m memDB) Load(_ context.Context, key model.AccountID) ([]byte, error) {
	return m[key], nil
}

func (m memDB) Save(_ context.Context, key model.AccountID, data []byte) error {
	m[key] = data
	return nil
}

type fixture struct {
	t      *testing.T
	ctx    context.Context
	eng    *Engine
	clock  *clockwork.FakeClock
	db     memDB
	tokens *token.Program
	addrs  Addresses

	authority      model.AccountID
	mint           model.AccountID
	taxVault       model.AccountID
	reflectionPool model.AccountID
	stakingPool    model.AccountID
	lotteryPool    model.AccountID
}

func newKey(t *testing.T) model.AccountID {
	t.Helper()
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func newFixture(t *testing.T, opts ...func(*Config)) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	cfg := Config{
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Clock:     clock,
		ProgramID: newKey(t),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	eng, err := New(cfg)
	require.NoError(t, err)

	db := memDB{}
	f := &fixture{
		t:         t,
		ctx:       context.Background(),
		eng:       eng,
		clock:     clock,
		db:        db,
		tokens:    token.NewProgram(db),
		addrs:     eng.Addresses(),
		authority: newKey(t),
		mint:      newKey(t),
	}
	f.taxVault = f.tokenAccount(f.authority, 0)
	f.reflectionPool = f.tokenAccount(f.addrs.PoolAuthority, 0)
	f.stakingPool = f.tokenAccount(f.addrs.PoolAuthority, 0)
	f.lotteryPool = f.tokenAccount(f.addrs.PoolAuthority, 0)
	return f
}

func (f *fixture) tokenAccount(owner model.AccountID, amount uint64) model.AccountID {
	f.t.Helper()
	key := newKey(f.t)
	_, err := f.tokens.CreateAccount(f.ctx, key, owner, f.mint)
	require.NoError(f.t, err)
	if amount > 0 {
		_, err = f.tokens.MintTo(f.ctx, key, amount)
		require.NoError(f.t, err)
	}
	return key
}

func (f *fixture) balance(key model.AccountID) uint64 {
	f.t.Helper()
	b, err := f.tokens.Balance(f.ctx, key)
	require.NoError(f.t, err)
	return b
}

func (f *fixture) signer(key model.AccountID) *AccountInfo {
	return &AccountInfo{Key: key, Data: f.db[key], Signer: true}
}

func (f *fixture) writable(key model.AccountID) *AccountInfo {
	return &AccountInfo{Key: key, Data: f.db[key], Writable: true}
}

func (f *fixture) readonly(key model.AccountID) *AccountInfo {
	return &AccountInfo{Key: key, Data: f.db[key]}
}

func (f *fixture) process(ix instruction.Instruction, accounts ...*AccountInfo) (*Outcome, error) {
	out, err := f.eng.Process(f.ctx, f.tokens, ix, accounts)
	if err != nil {
		return nil, err
	}
	for _, a := range accounts {
		if a.Dirty() {
			f.db[a.Key] = a.Data
		}
	}
	return out, nil
}

func (f *fixture) initialize(ix instruction.InitializeConfiguration) error {
	_, err := f.process(ix,
		f.signer(f.authority),
		f.readonly(f.mint),
		f.readonly(f.taxVault),
		f.readonly(f.reflectionPool),
		f.readonly(f.stakingPool),
		f.readonly(f.lotteryPool),
		f.writable(f.addrs.Config),
	)
	return err
}

func (f *fixture) mustInitialize(tax, refl, stake, lottery uint16) {
	f.t.Helper()
	require.NoError(f.t, f.initialize(instruction.InitializeConfiguration{
		TaxRate: tax, ReflectionRate: refl, StakingRate: stake, LotteryRate: lottery,
	}))
}

func (f *fixture) config() *model.PoolConfiguration {
	f.t.Helper()
	cfg, err := codec.DecodePoolConfiguration(f.db[f.addrs.Config])
	require.NoError(f.t, err)
	return cfg
}

func (f *fixture) transfer(owner, src, dst model.AccountID, amount uint64) (*Outcome, error) {
	return f.process(instruction.Transfer{Amount: amount},
		f.signer(owner),
		f.writable(src),
		f.writable(dst),
		f.readonly(f.taxVault),
		f.writable(f.reflectionPool),
		f.writable(f.stakingPool),
		f.writable(f.lotteryPool),
		f.readonly(f.addrs.Config),
	)
}

func (f *fixture) holderAddress(holder model.AccountID) model.AccountID {
	f.t.Helper()
	addr, err := f.eng.HolderStateAddress(holder)
	require.NoError(f.t, err)
	return addr
}

func (f *fixture) stake(holder, holderToken model.AccountID, amount uint64) (*Outcome, error) {
	return f.process(instruction.Stake{Amount: amount},
		f.signer(holder),
		f.writable(holderToken),
		f.writable(f.stakingPool),
		f.writable(f.holderAddress(holder)),
		f.readonly(f.addrs.Config),
	)
}

func (f *fixture) claim(holder, holderToken model.AccountID) (*Outcome, error) {
	return f.process(instruction.ClaimReflection{},
		f.signer(holder),
		f.writable(holderToken),
		f.writable(f.reflectionPool),
		f.writable(f.holderAddress(holder)),
		f.readonly(f.addrs.Config),
	)
}

func (f *fixture) holderState(holder model.AccountID) *model.HolderState {
	f.t.Helper()
	state, err := codec.DecodeHolderState(f.db[f.holderAddress(holder)])
	require.NoError(f.t, err)
	return state
}

func TestNew_Validate(t *testing.T) {
	t.Parallel()

	_, err := New(Config{ProgramID: newKey(t)})
	require.Error(t, err)

	_, err = New(Config{Logger: slog.Default()})
	require.Error(t, err)

	eng, err := New(Config{Logger: slog.Default(), ProgramID: newKey(t)})
	require.NoError(t, err)
	require.NotNil(t, eng.cfg.Clock)
	require.Equal(t, DefaultMaxParticipants, eng.cfg.MaxParticipants)
}

func TestDeriveAddresses_Deterministic(t *testing.T) {
	t.Parallel()

	programID := newKey(t)
	a, err := DeriveAddresses(programID)
	require.NoError(t, err)
	b, err := DeriveAddresses(programID)
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.NotEqual(t, a.Config, a.Lottery)
	require.NotEqual(t, a.Config, a.PoolAuthority)

	lottery, err := LotteryStateAddress(programID, a.Config)
	require.NoError(t, err)
	require.Equal(t, a.Lottery, lottery)

	h1, err := HolderStateAddress(programID, newKey(t))
	require.NoError(t, err)
	h2, err := HolderStateAddress(programID, newKey(t))
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestProcess_NotEnoughAccounts(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.process(instruction.Transfer{Amount: 1}, f.signer(f.authority))
	require.ErrorIs(t, err, ErrNotEnoughAccounts)

	_, err = f.process(instruction.DrawLottery{})
	require.ErrorIs(t, err, ErrNotEnoughAccounts)
}

func TestProcess_ConfigIsTrailingAccount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	for _, ix := range []instruction.Instruction{
		instruction.Stake{Amount: 1},
		instruction.ClaimReflection{},
		instruction.ParticipateInLottery{},
		instruction.DrawLottery{},
	} {
		require.Equal(t, 5, AccountCount(ix.Kind()), ix.Kind().String())

		// Every account except the trailing configuration.
		accounts := make([]*AccountInfo, 4)
		for i := range accounts {
			accounts[i] = f.signer(newKey(t))
		}
		_, err := f.process(ix, accounts...)
		require.ErrorIs(t, err, ErrNotEnoughAccounts, ix.Kind().String())
	}
}

func TestProcess_ConfigRequired(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	owner := newKey(t)
	src := f.tokenAccount(owner, 100)
	dst := f.tokenAccount(newKey(t), 0)

	_, err := f.transfer(owner, src, dst, 10)
	require.ErrorIs(t, err, ErrNotInitialized)
}
