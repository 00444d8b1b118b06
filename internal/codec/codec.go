// Package codec implements the fixed-width binary layout of the persisted
// account records. Byte offsets are a compatibility contract: two processes
// sharing stored bytes must agree on them exactly.
//
// All integers are little-endian. There is no version byte, length prefix or
// padding beyond field width. Decoding performs no range validation, so any
// bit pattern read from storage round-trips unchanged.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/codox/token-engine/internal/model"
)

// Record sizes in bytes.
const (
	keySize = 32

	// PoolConfigurationSize: bool + 6 keys + 4 u16 + 2 u64 + 2 i64.
	PoolConfigurationSize = 1 + 6*keySize + 4*2 + 2*8 + 2*8 // 233

	// HolderStateSize: key + i64 + u64 + i64 + u64 + u16.
	HolderStateSize = keySize + 8 + 8 + 8 + 8 + 2 // 66

	// TokenAccountSize: mint + owner + u64 + u8.
	TokenAccountSize = 2*keySize + 8 + 1 // 73

	// lotteryFixedSize is the LotteryState size excluding participant entries:
	// u32 count + u64 prize + key + u64 draws.
	lotteryFixedSize = 4 + 8 + keySize + 8
)

var (
	// ErrTooShort is returned when a buffer is smaller than the record it
	// should contain.
	ErrTooShort = errors.New("codec: buffer too short")

	// ErrMalformed is returned when a buffer cannot be read as a record.
	ErrMalformed = errors.New("codec: malformed record")
)

var le = binary.LittleEndian

// LotteryStateSize returns the encoded size of a lottery record holding n
// participants.
func LotteryStateSize(n int) int {
	return lotteryFixedSize + n*keySize
}

// --- PoolConfiguration ---

// EncodePoolConfiguration returns the 233-byte encoding of c.
func EncodePoolConfiguration(c *model.PoolConfiguration) []byte {
	w := newWriter(PoolConfigurationSize)
	w.bool(c.Initialized)
	w.key(c.Authority)
	w.key(c.TokenMint)
	w.key(c.TaxVault)
	w.key(c.ReflectionPool)
	w.key(c.StakingPool)
	w.key(c.LotteryPool)
	w.u16(c.TaxRate)
	w.u16(c.ReflectionRate)
	w.u16(c.StakingRate)
	w.u16(c.LotteryRate)
	w.u64(c.TotalStaked)
	w.u64(c.TotalReflectionDistributed)
	w.i64(c.LastLotteryDraw)
	w.i64(c.LotteryInterval)
	return w.bytes()
}

// DecodePoolConfiguration reads a PoolConfiguration from the first 233
// bytes of data. Trailing bytes are ignored.
func DecodePoolConfiguration(data []byte) (*model.PoolConfiguration, error) {
	if len(data) < PoolConfigurationSize {
		return nil, fmt.Errorf("%w: pool configuration needs %d bytes, got %d",
			ErrTooShort, PoolConfigurationSize, len(data))
	}
	r := newReader(data[:PoolConfigurationSize])
	c := &model.PoolConfiguration{
		Initialized:                r.bool(),
		Authority:                  r.key(),
		TokenMint:                  r.key(),
		TaxVault:                   r.key(),
		ReflectionPool:             r.key(),
		StakingPool:                r.key(),
		LotteryPool:                r.key(),
		TaxRate:                    r.u16(),
		ReflectionRate:             r.u16(),
		StakingRate:                r.u16(),
		LotteryRate:                r.u16(),
		TotalStaked:                r.u64(),
		TotalReflectionDistributed: r.u64(),
		LastLotteryDraw:            r.i64(),
		LotteryInterval:            r.i64(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// --- HolderState ---

// EncodeHolderState returns the 66-byte encoding of h.
func EncodeHolderState(h *model.HolderState) []byte {
	w := newWriter(HolderStateSize)
	w.key(h.Holder)
	w.i64(h.LastReflectionClaim)
	w.u64(h.StakedAmount)
	w.i64(h.StakeTime)
	w.u64(h.TotalClaimed)
	w.u16(h.HoldingMultiplier)
	return w.bytes()
}

// DecodeHolderState reads a HolderState from the first 66 bytes of data.
func DecodeHolderState(data []byte) (*model.HolderState, error) {
	if len(data) < HolderStateSize {
		return nil, fmt.Errorf("%w: holder state needs %d bytes, got %d",
			ErrTooShort, HolderStateSize, len(data))
	}
	r := newReader(data[:HolderStateSize])
	h := &model.HolderState{
		Holder:              r.key(),
		LastReflectionClaim: r.i64(),
		StakedAmount:        r.u64(),
		StakeTime:           r.i64(),
		TotalClaimed:        r.u64(),
		HoldingMultiplier:   r.u16(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return h, nil
}

// --- LotteryState ---

// EncodeLotteryState returns the variable-length encoding of l: a u32
// participant count, the participants, then prize, last winner and draws.
func EncodeLotteryState(l *model.LotteryState) []byte {
	w := newWriter(LotteryStateSize(len(l.Participants)))
	w.u32(uint32(len(l.Participants)))
	for _, p := range l.Participants {
		w.key(p)
	}
	w.u64(l.CurrentPrize)
	w.key(l.LastWinner)
	w.u64(l.TotalDraws)
	return w.bytes()
}

// DecodeLotteryState reads a LotteryState. The buffer may be longer than
// the encoded record (preallocated account space).
func DecodeLotteryState(data []byte) (*model.LotteryState, error) {
	if len(data) < lotteryFixedSize {
		return nil, fmt.Errorf("%w: lottery state needs at least %d bytes, got %d",
			ErrTooShort, lotteryFixedSize, len(data))
	}
	count := le.Uint32(data[:4])
	if uint64(count) > uint64(len(data)-lotteryFixedSize)/keySize {
		return nil, fmt.Errorf("%w: lottery state declares %d participants in %d bytes",
			ErrTooShort, count, len(data))
	}
	r := newReader(data[:LotteryStateSize(int(count))])
	r.u32()
	l := &model.LotteryState{Participants: make([]model.AccountID, 0, count)}
	for i := uint32(0); i < count; i++ {
		l.Participants = append(l.Participants, r.key())
	}
	l.CurrentPrize = r.u64()
	l.LastWinner = r.key()
	l.TotalDraws = r.u64()
	if r.err != nil {
		return nil, r.err
	}
	return l, nil
}

// --- TokenAccount ---

// EncodeTokenAccount returns the 73-byte encoding of a.
func EncodeTokenAccount(a *model.TokenAccount) []byte {
	w := newWriter(TokenAccountSize)
	w.key(a.Mint)
	w.key(a.Owner)
	w.u64(a.Amount)
	w.u8(a.State)
	return w.bytes()
}

// DecodeTokenAccount reads a TokenAccount from the first 73 bytes of data.
func DecodeTokenAccount(data []byte) (*model.TokenAccount, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("%w: token account needs %d bytes, got %d",
			ErrTooShort, TokenAccountSize, len(data))
	}
	r := newReader(data[:TokenAccountSize])
	a := &model.TokenAccount{
		Mint:   r.key(),
		Owner:  r.key(),
		Amount: r.u64(),
		State:  r.u8(),
	}
	if r.err != nil {
		return nil, r.err
	}
	return a, nil
}

// --- helpers ---

// writer wraps a borsh encoder over an in-memory buffer. Writes to a
// bytes.Buffer cannot fail, so the first error is kept and surfaced as a
// panic in bytes().
type writer struct {
	buf *bytes.Buffer
	enc *bin.Encoder
	err error
}

func newWriter(size int) *writer {
	buf := bytes.NewBuffer(make([]byte, 0, size))
	return &writer{buf: buf, enc: bin.NewBorshEncoder(buf)}
}

func (w *writer) do(fn func() error) {
	if w.err == nil {
		w.err = fn()
	}
}

func (w *writer) bool(v bool) { w.do(func() error { return w.enc.WriteBool(v) }) }
func (w *writer) u8(v uint8) { w.do(func() error { return w.enc.WriteUint8(v) }) }
func (w *writer) u16(v uint16) { w.do(func() error { return w.enc.WriteUint16(v, le) }) }
func (w *writer) u32(v uint32) { w.do(func() error { return w.enc.WriteUint32(v, le) }) }
func (w *writer) u64(v uint64) { w.do(func() error { return w.enc.WriteUint64(v, le) }) }
func (w *writer) i64(v int64) { w.do(func() error { return w.enc.WriteInt64(v, le) }) }
func (w *writer) key(k model.AccountID) { w.do(func() error { return w.enc.WriteBytes(k[:], false) }) }

func (w *writer) bytes() []byte {
	if w.err != nil {
		panic(fmt.Sprintf("codec: in-memory encode failed: %v", w.err))
	}
	return w.buf.Bytes()
}

// reader wraps a borsh decoder and keeps the first error. Callers check
// lengths up front, so an error here means the record is malformed.
type reader struct {
	dec *bin.Decoder
	err error
}

func newReader(data []byte) *reader {
	return &reader{dec: bin.NewBorshDecoder(data)}
}

func (r *reader) fail(err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (r *reader) bool() bool {
	if r.err != nil {
		return false
	}
	v, err := r.dec.ReadBool()
	r.fail(err)
	return v
}

func (r *reader) u8() uint8 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint8()
	r.fail(err)
	return v
}

func (r *reader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint16(le)
	r.fail(err)
	return v
}

func (r *reader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint32(le)
	r.fail(err)
	return v
}

func (r *reader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadUint64(le)
	r.fail(err)
	return v
}

func (r *reader) i64() int64 {
	if r.err != nil {
		return 0
	}
	v, err := r.dec.ReadInt64(le)
	r.fail(err)
	return v
}

func (r *reader) key() model.AccountID {
	if r.err != nil {
		return model.AccountID{}
	}
	b, err := r.dec.ReadNBytes(keySize)
	r.fail(err)
	if err != nil {
		return model.AccountID{}
	}
	return solana.PublicKeyFromBytes(b)
}
