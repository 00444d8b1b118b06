package instruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode_WireLayout(t *testing.T) {
	t.Parallel()

	data, err := Encode(InitializeConfiguration{TaxRate: 300, ReflectionRate: 150, StakingRate: 100, LotteryRate: 50})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0x2c, 0x01, 0x96, 0x00, 0x64, 0x00, 0x32, 0x00}, data)

	data, err = Encode(Transfer{Amount: 10_000})
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0x10, 0x27, 0, 0, 0, 0, 0, 0}, data)

	data, err = Encode(DrawLottery{})
	require.NoError(t, err)
	assert.Equal(t, []byte{5}, data)
}

func TestDecode_AllVariants(t *testing.T) {
	t.Parallel()

	for _, ix := range []Instruction{
		InitializeConfiguration{TaxRate: 300, ReflectionRate: 100, StakingRate: 100, LotteryRate: 100},
		Transfer{Amount: 1},
		Stake{Amount: 500},
		ClaimReflection{},
		ParticipateInLottery{},
		DrawLottery{},
	} {
		t.Run(ix.Kind().String(), func(t *testing.T) {
			data, err := Encode(ix)
			require.NoError(t, err)
			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ix, got)
		})
	}
}

func TestDecode_Errors(t *testing.T) {
	t.Parallel()

	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = Decode([]byte{6})
	require.ErrorIs(t, err, ErrUnknownInstruction)

	_, err = Decode([]byte{byte(KindStake), 1, 2, 3})
	require.ErrorIs(t, err, ErrTruncated)

	_, err = Decode([]byte{byte(KindClaimReflection), 0})
	require.ErrorIs(t, err, ErrTrailingBytes)
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Stake", KindStake.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestKind_TextRoundTrip(t *testing.T) {
	t.Parallel()

	text, err := KindDrawLottery.MarshalText()
	require.NoError(t, err)

	var k Kind
	require.NoError(t, k.UnmarshalText(text))
	assert.Equal(t, KindDrawLottery, k)
	require.ErrorIs(t, k.UnmarshalText([]byte("Mint")), ErrUnknownInstruction)
}
