package reflection

import (
	"errors"
	"math"
	"testing"

	"github.com/codox/token-engine/internal/fixedpoint"
)

const day = int64(86_400)

func TestTimeMultiplier_Growth(t *testing.T) {
	cases := []struct {
		seconds int64
		want    uint16
	}{
		{0, 100},
		{day - 1, 100},
		{day, 102},
		{10 * day, 120},
		{199 * day, 498},
		{200 * day, 500},
		{201 * day, 500},
		{400 * day, 500}, // not 100 + 400*2
		{math.MaxInt64, 500},
		{-day, 100},
	}
	for _, c := range cases {
		if got := TimeMultiplier(c.seconds); got != c.want {
			t.Errorf("TimeMultiplier(%d) = %d, want %d", c.seconds, got, c.want)
		}
	}
}

func TestCompute_FirstClaimUsesCap(t *testing.T) {
	// last claim 0 means the holding period is the whole unix epoch.
	q, err := Compute(1_700_000_000, 0, 1_000_000, 50_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Multiplier != 500 {
		t.Errorf("expected capped multiplier 500, got %d", q.Multiplier)
	}
	if q.Reward != 2_500_000 {
		t.Errorf("expected reward 2500000, got %d", q.Reward)
	}
}

func TestCompute_Truncates(t *testing.T) {
	q, err := Compute(day, 0, 1_000, 1_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Reward != 10 { // 1000 * 1000 * 102 / 10^7
		t.Errorf("expected reward 10, got %d", q.Reward)
	}

	q, err = Compute(day, 0, 10, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Reward != 0 {
		t.Errorf("expected zero reward, got %d", q.Reward)
	}
}

func TestCompute_LargeSupplyDoesNotWrap(t *testing.T) {
	// 10^12 * 10^12 overflows 64 bits but the reward itself fits.
	q, err := Compute(0, 0, 1_000_000_000_000, 1_000_000_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Reward != 10_000_000_000_000_000_000 {
		t.Errorf("unexpected reward %d", q.Reward)
	}
}

func TestCompute_Overflow(t *testing.T) {
	_, err := Compute(0, 0, math.MaxUint64, math.MaxUint64)
	if !errors.Is(err, fixedpoint.ErrArithmeticOverflow) {
		t.Errorf("expected ErrArithmeticOverflow, got %v", err)
	}
}

func TestCompute_HoldingTimeOverflow(t *testing.T) {
	q, err := Compute(1_700_000_000, math.MinInt64, 1_000_000, 1_000)
	if !errors.Is(err, fixedpoint.ErrArithmeticOverflow) {
		t.Errorf("expected ErrArithmeticOverflow, got %v", err)
	}
	if q.Reward != 0 {
		t.Errorf("expected no reward, got %d", q.Reward)
	}
}
