package engine

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/codox/token-engine/internal/codec"
	"github.com/codox/token-engine/internal/fixedpoint"
	"github.com/codox/token-engine/internal/model"
)

// WinnerSelector picks the index of the winning participant. The state
// always has at least one participant.
type WinnerSelector interface {
	SelectWinner(state *model.LotteryState) (int, error)
}

// HashSelector picks the winner from SHA-256 over the draw number and the
// participant list. Anyone can compute the outcome in advance; it is not a
// secure random source.
type HashSelector struct{}

func (HashSelector) SelectWinner(state *model.LotteryState) (int, error) {
	n := len(state.Participants)
	if n == 0 {
		return 0, ErrNoParticipants
	}
	h := sha256.New()
	var draw [8]byte
	binary.LittleEndian.PutUint64(draw[:], state.TotalDraws)
	h.Write(draw[:])
	for _, p := range state.Participants {
		h.Write(p[:])
	}
	sum := h.Sum(nil)
	return int(binary.LittleEndian.Uint64(sum[:8]) % uint64(n)), nil
}

// ParticipateAccounts are the accounts of ParticipateInLottery, in wire
// order.
type ParticipateAccounts struct {
	Participant      *AccountInfo
	ParticipantToken *AccountInfo
	LotteryPool      *AccountInfo
	LotteryState     *AccountInfo
	Config           *AccountInfo
}

// DrawAccounts are the accounts of DrawLottery, in wire order. The caller
// need not be the winner.
type DrawAccounts struct {
	Caller       *AccountInfo
	WinnerToken  *AccountInfo
	LotteryPool  *AccountInfo
	LotteryState *AccountInfo
	Config       *AccountInfo
}

// DrawResult describes a completed draw.
type DrawResult struct {
	Winner       model.AccountID `json:"winner"`
	WinnerToken  model.AccountID `json:"winner_token_account"`
	Prize        uint64          `json:"prize"`
	Participants int             `json:"participants"`
	Draw         uint64          `json:"draw"`
}

// ParticipateInLottery enters the signer into the current round. Each
// participant may enter once per round and must hold tokens in the supplied
// token account.
func (e *Engine) ParticipateInLottery(ctx context.Context, tokens TokenProgram, accts ParticipateAccounts) (*model.LotteryState, error) {
	if err := requireSigner(accts.Participant); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.LotteryState); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if err := e.checkLottery(cfg, accts.LotteryPool, accts.LotteryState); err != nil {
		return nil, err
	}

	owner, err := tokens.Owner(ctx, accts.ParticipantToken.Key)
	if err != nil {
		return nil, err
	}
	if owner != accts.Participant.Key {
		return nil, fmt.Errorf("%w: %s", ErrTokenAccountOwner, accts.ParticipantToken.Key)
	}
	balance, err := tokens.Balance(ctx, accts.ParticipantToken.Key)
	if err != nil {
		return nil, err
	}
	if balance == 0 {
		return nil, ErrNotHolder
	}

	state, err := lookupLottery(accts.LotteryState)
	if err != nil {
		return nil, err
	}
	for _, p := range state.Participants {
		if p == accts.Participant.Key {
			return nil, ErrAlreadyEntered
		}
	}
	if len(state.Participants) >= e.cfg.MaxParticipants {
		return nil, fmt.Errorf("%w: %d participants", ErrLotteryFull, len(state.Participants))
	}
	state.Participants = append(state.Participants, accts.Participant.Key)
	if state.CurrentPrize, err = tokens.Balance(ctx, accts.LotteryPool.Key); err != nil {
		return nil, err
	}
	if err := accts.LotteryState.Write(codec.EncodeLotteryState(state)); err != nil {
		return nil, err
	}

	e.log.Info("lottery entry recorded",
		"participant", accts.Participant.Key.String(),
		"participants", len(state.Participants),
		"prize", state.CurrentPrize,
	)
	return state, nil
}

// DrawLottery selects a winner once the lottery interval has elapsed and
// pays out the whole lottery pool balance. Anyone may call it; the winner
// token account must belong to the selected participant, which callers can
// learn in advance from PreviewWinner.
func (e *Engine) DrawLottery(ctx context.Context, tokens TokenProgram, accts DrawAccounts) (*DrawResult, error) {
	if err := requireSigner(accts.Caller); err != nil {
		return nil, err
	}
	if err := requireWritable(accts.WinnerToken, accts.LotteryPool, accts.LotteryState, accts.Config); err != nil {
		return nil, err
	}
	cfg, err := e.loadConfig(accts.Config)
	if err != nil {
		return nil, err
	}
	if err := e.checkLottery(cfg, accts.LotteryPool, accts.LotteryState); err != nil {
		return nil, err
	}

	state, err := lookupLottery(accts.LotteryState)
	if err != nil {
		return nil, err
	}
	if len(state.Participants) == 0 {
		return nil, ErrNoParticipants
	}
	now := e.now()
	if next := cfg.LastLotteryDraw + cfg.LotteryInterval; now < next {
		return nil, fmt.Errorf("%w: next draw at %d", ErrDrawTooEarly, next)
	}

	winner, err := e.PreviewWinner(state)
	if err != nil {
		return nil, err
	}
	owner, err := tokens.Owner(ctx, accts.WinnerToken.Key)
	if err != nil {
		return nil, err
	}
	if owner != winner {
		return nil, fmt.Errorf("%w: winner is %s", ErrWinnerAccountMismatch, winner)
	}

	prize, err := tokens.Balance(ctx, accts.LotteryPool.Key)
	if err != nil {
		return nil, err
	}
	if prize > 0 {
		if err := tokens.Transfer(ctx, accts.LotteryPool.Key, accts.WinnerToken.Key, e.addrs.PoolAuthority, prize); err != nil {
			return nil, err
		}
	}

	res := &DrawResult{
		Winner:       winner,
		WinnerToken:  accts.WinnerToken.Key,
		Prize:        prize,
		Participants: len(state.Participants),
	}
	state.Participants = nil
	state.LastWinner = winner
	state.CurrentPrize = 0
	if state.TotalDraws, err = fixedpoint.Add(state.TotalDraws, 1); err != nil {
		return nil, fmt.Errorf("total draws: %w", err)
	}
	res.Draw = state.TotalDraws
	cfg.LastLotteryDraw = now

	if err := accts.LotteryState.Write(codec.EncodeLotteryState(state)); err != nil {
		return nil, err
	}
	if err := accts.Config.Write(codec.EncodePoolConfiguration(cfg)); err != nil {
		return nil, err
	}

	e.log.Info("lottery drawn",
		"winner", winner.String(),
		"prize", prize,
		"participants", res.Participants,
		"draw", res.Draw,
	)
	return res, nil
}

// PreviewWinner returns the participant the next draw of state would pick.
func (e *Engine) PreviewWinner(state *model.LotteryState) (model.AccountID, error) {
	if len(state.Participants) == 0 {
		return model.AccountID{}, ErrNoParticipants
	}
	idx, err := e.cfg.Selector.SelectWinner(state)
	if err != nil {
		return model.AccountID{}, err
	}
	if idx < 0 || idx >= len(state.Participants) {
		return model.AccountID{}, fmt.Errorf("winner selector returned index %d for %d participants", idx, len(state.Participants))
	}
	return state.Participants[idx], nil
}

func (e *Engine) checkLottery(cfg *model.PoolConfiguration, pool, state *AccountInfo) error {
	if err := requireKey(pool, cfg.LotteryPool, ErrPoolMismatch); err != nil {
		return err
	}
	return requireKey(state, e.addrs.Lottery, ErrInvalidStateAddress)
}

// lookupLottery decodes the lottery record, starting an empty one when the
// account has never been written.
func lookupLottery(a *AccountInfo) (*model.LotteryState, error) {
	if len(a.Data) == 0 {
		return &model.LotteryState{}, nil
	}
	state, err := codec.DecodeLotteryState(a.Data)
	if err != nil {
		return nil, fmt.Errorf("lottery state: %w", err)
	}
	return state, nil
}
