// Package instruction defines the closed set of engine instructions and
// their wire encoding: a one-byte discriminant followed by a little-endian
// payload.
package instruction

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Kind is the instruction discriminant.
type Kind uint8

const (
	KindInitializeConfiguration Kind = iota
	KindTransfer
	KindStake
	KindClaimReflection
	KindParticipateInLottery
	KindDrawLottery
)

var kindNames = map[Kind]string{
	KindInitializeConfiguration: "InitializeConfiguration",
	KindTransfer:                "Transfer",
	KindStake:                   "Stake",
	KindClaimReflection:         "ClaimReflection",
	KindParticipateInLottery:    "ParticipateInLottery",
	KindDrawLottery:             "DrawLottery",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownInstruction, text)
}

var (
	ErrEmpty              = errors.New("instruction: empty data")
	ErrUnknownInstruction = errors.New("instruction: unknown discriminant")
	ErrTruncated          = errors.New("instruction: truncated payload")
	ErrTrailingBytes      = errors.New("instruction: trailing bytes after payload")
)

// Instruction is one of the six variants below. The set is closed; handle it
// with an exhaustive type switch.
type Instruction interface {
	Kind() Kind
	isInstruction()
}

// InitializeConfiguration creates the pool configuration. TaxRate is supplied
// by the caller and checked against the sum of the sub-rates.
type InitializeConfiguration struct {
	TaxRate        uint16 `json:"tax_rate"`
	ReflectionRate uint16 `json:"reflection_rate"`
	StakingRate    uint16 `json:"staking_rate"`
	LotteryRate    uint16 `json:"lottery_rate"`
}

// Transfer moves Amount gross tokens, taxed per the configuration.
type Transfer struct {
	Amount uint64 `json:"amount"`
}

// Stake moves Amount tokens into the staking pool.
type Stake struct {
	Amount uint64 `json:"amount"`
}

// ClaimReflection pays the holder's time-weighted reflection reward.
type ClaimReflection struct{}

// ParticipateInLottery enters the signer into the current lottery round.
type ParticipateInLottery struct{}

// DrawLottery selects a winner and pays out the lottery pool.
type DrawLottery struct{}

func (InitializeConfiguration) Kind() Kind { return KindInitializeConfiguration }
func (Transfer) Kind() Kind                { return KindTransfer }
func (Stake) Kind() Kind                   { return KindStake }
func (ClaimReflection) Kind() Kind         { return KindClaimReflection }
func (ParticipateInLottery) Kind() Kind    { return KindParticipateInLottery }
func (DrawLottery) Kind() Kind             { return KindDrawLottery }

func (InitializeConfiguration) isInstruction() {}
func (Transfer) isInstruction()                {}
func (Stake) isInstruction()                   {}
func (ClaimReflection) isInstruction()         {}
func (ParticipateInLottery) isInstruction()    {}
func (DrawLottery) isInstruction()             {}

var le = binary.LittleEndian

// payloadSize is the exact payload length following the discriminant.
func payloadSize(k Kind) int {
	switch k {
	case KindInitializeConfiguration:
		return 4 * 2
	case KindTransfer, KindStake:
		return 8
	default:
		return 0
	}
}

// Encode returns the wire form of ix.
func Encode(ix Instruction) ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, 1+payloadSize(ix.Kind())))
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint8(uint8(ix.Kind())); err != nil {
		return nil, err
	}

	var err error
	switch v := ix.(type) {
	case InitializeConfiguration:
		for _, r := range []uint16{v.TaxRate, v.ReflectionRate, v.StakingRate, v.LotteryRate} {
			if err = enc.WriteUint16(r, le); err != nil {
				break
			}
		}
	case Transfer:
		err = enc.WriteUint64(v.Amount, le)
	case Stake:
		err = enc.WriteUint64(v.Amount, le)
	case ClaimReflection, ParticipateInLottery, DrawLottery:
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownInstruction, ix)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses instruction data. The payload must have exactly the length
// its discriminant requires.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	k := Kind(data[0])
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstruction, data[0])
	}
	payload := data[1:]
	want := payloadSize(k)
	if len(payload) < want {
		return nil, fmt.Errorf("%w: %s needs %d bytes, got %d", ErrTruncated, k, want, len(payload))
	}
	if len(payload) > want {
		return nil, fmt.Errorf("%w: %s has %d extra", ErrTrailingBytes, k, len(payload)-want)
	}

	dec := bin.NewBorshDecoder(payload)
	switch k {
	case KindInitializeConfiguration:
		var rates [4]uint16
		for i := range rates {
			v, err := dec.ReadUint16(le)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
			}
			rates[i] = v
		}
		return InitializeConfiguration{
			TaxRate:        rates[0],
			ReflectionRate: rates[1],
			StakingRate:    rates[2],
			LotteryRate:    rates[3],
		}, nil
	case KindTransfer, KindStake:
		amount, err := dec.ReadUint64(le)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTruncated, err)
		}
		if k == KindTransfer {
			return Transfer{Amount: amount}, nil
		}
		return Stake{Amount: amount}, nil
	case KindClaimReflection:
		return ClaimReflection{}, nil
	case KindParticipateInLottery:
		return ParticipateInLottery{}, nil
	default:
		return DrawLottery{}, nil
	}
}
