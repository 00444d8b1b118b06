package tax

import (
	"errors"
	"math"
	"testing"

	"github.com/codox/token-engine/internal/fixedpoint"
)

// --- Validation tests ---

func TestValidate_Accepts(t *testing.T) {
	r := Rates{Tax: 300, Reflection: 100, Staking: 100, Lottery: 100}
	if err := r.Validate(); err != nil {
		t.Errorf("expected valid rates, got %v", err)
	}
}

func TestValidate_TaxAboveCap(t *testing.T) {
	r := Rates{Tax: 1001, Reflection: 500, Staking: 300, Lottery: 201}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRates) {
		t.Errorf("expected ErrInvalidRates, got %v", err)
	}
}

func TestValidate_SumMismatch(t *testing.T) {
	r := Rates{Tax: 300, Reflection: 100, Staking: 100, Lottery: 50}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRates) {
		t.Errorf("expected ErrInvalidRates, got %v", err)
	}
}

func TestValidate_SumDoesNotWrap(t *testing.T) {
	// 65535 + 1 + 300 wraps to 300 in u16 arithmetic.
	r := Rates{Tax: 300, Reflection: math.MaxUint16, Staking: 1, Lottery: 300}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRates) {
		t.Errorf("expected ErrInvalidRates, got %v", err)
	}
}

// --- Split tests ---

func TestCompute_EndToEnd(t *testing.T) {
	s, err := Compute(10_000, Rates{Tax: 300, Reflection: 150, Staking: 100, Lottery: 50})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Tax != 300 || s.Reflection != 150 || s.Staking != 100 || s.Lottery != 50 || s.Net != 9_700 {
		t.Errorf("unexpected split: %+v", s)
	}
	if s.Total() != 10_000 {
		t.Errorf("split does not sum to amount: %d", s.Total())
	}
}

func TestCompute_ZeroTax(t *testing.T) {
	s, err := Compute(1_000, Rates{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Net != 1_000 || s.Tax != 0 || s.Reflection != 0 || s.Staking != 0 || s.Lottery != 0 {
		t.Errorf("expected untaxed transfer, got %+v", s)
	}
}

func TestCompute_RemainderGoesToLottery(t *testing.T) {
	// tax = floor(1134*300/10000) = 34; each third truncates to 11.
	s, err := Compute(1_134, Rates{Tax: 300, Reflection: 100, Staking: 100, Lottery: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Tax != 34 {
		t.Fatalf("expected tax 34, got %d", s.Tax)
	}
	if s.Reflection != 11 || s.Staking != 11 || s.Lottery != 12 {
		t.Errorf("expected 11/11/12, got %d/%d/%d", s.Reflection, s.Staking, s.Lottery)
	}
}

func TestCompute_Conservation(t *testing.T) {
	rateSets := []Rates{
		{Tax: 300, Reflection: 150, Staking: 100, Lottery: 50},
		{Tax: 1000, Reflection: 333, Staking: 333, Lottery: 334},
		{Tax: 7, Reflection: 3, Staking: 3, Lottery: 1},
		{Tax: 1, Reflection: 0, Staking: 0, Lottery: 1},
		{Tax: 999, Reflection: 999, Staking: 0, Lottery: 0},
	}
	amounts := []uint64{0, 1, 9, 99, 10_000, 123_456_789, 1 << 40, math.MaxUint64 - 1, math.MaxUint64}

	for _, r := range rateSets {
		for _, amount := range amounts {
			s, err := Compute(amount, r)
			if err != nil {
				t.Fatalf("Compute(%d, %+v): %v", amount, r, err)
			}
			if s.Total() != amount {
				t.Errorf("Compute(%d, %+v) sums to %d", amount, r, s.Total())
			}
			if s.Reflection+s.Staking+s.Lottery != s.Tax {
				t.Errorf("Compute(%d, %+v): shares %d do not sum to tax %d",
					amount, r, s.Reflection+s.Staking+s.Lottery, s.Tax)
			}
		}
	}
}

func TestCompute_CorruptRatesSurfaceOverflow(t *testing.T) {
	// Sub-rates summing above the tax rate make the lottery share negative.
	_, err := Compute(10_000, Rates{Tax: 100, Reflection: 100, Staking: 100, Lottery: 0})
	if !errors.Is(err, fixedpoint.ErrArithmeticOverflow) {
		t.Errorf("expected ErrArithmeticOverflow, got %v", err)
	}

	// A tax rate above 100% makes the net amount negative.
	_, err = Compute(10_000, Rates{Tax: 20_000, Reflection: 20_000})
	if !errors.Is(err, fixedpoint.ErrArithmeticOverflow) {
		t.Errorf("expected ErrArithmeticOverflow, got %v", err)
	}
}
