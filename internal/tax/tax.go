// Package tax computes the four-way split of a taxed transfer.
//
// The split is evaluated in a fixed order with truncating division so that
// independent implementations round identically:
//
//	tax        = floor(amount * tax_rate / 10000)
//	reflection = floor(tax * reflection_rate / tax_rate)
//	staking    = floor(tax * staking_rate / tax_rate)
//	lottery    = tax - reflection - staking
//	net        = amount - tax
//
// The lottery share absorbs the rounding remainder, which keeps
// net + reflection + staking + lottery == amount exact.
package tax

import (
	"errors"
	"fmt"

	"github.com/codox/token-engine/internal/fixedpoint"
	"github.com/codox/token-engine/internal/model"
)

// ErrInvalidRates is returned when rates fail the initialization invariant.
var ErrInvalidRates = errors.New("tax: invalid rates")

// Rates is the basis-point tax configuration.
type Rates struct {
	Tax        uint16
	Reflection uint16
	Staking    uint16
	Lottery    uint16
}

// RatesOf extracts the rates from a pool configuration.
func RatesOf(c *model.PoolConfiguration) Rates {
	return Rates{
		Tax:        c.TaxRate,
		Reflection: c.ReflectionRate,
		Staking:    c.StakingRate,
		Lottery:    c.LotteryRate,
	}
}

// Validate checks tax <= 10% and that the sub-rates sum exactly to the
// caller-supplied tax rate.
func (r Rates) Validate() error {
	if r.Tax > model.MaxTaxRate {
		return fmt.Errorf("%w: tax rate %d exceeds maximum %d", ErrInvalidRates, r.Tax, model.MaxTaxRate)
	}
	sum := uint32(r.Reflection) + uint32(r.Staking) + uint32(r.Lottery)
	if sum != uint32(r.Tax) {
		return fmt.Errorf("%w: reflection %d + staking %d + lottery %d = %d, tax rate is %d",
			ErrInvalidRates, r.Reflection, r.Staking, r.Lottery, sum, r.Tax)
	}
	return nil
}

// Split is the result of dividing a gross transfer amount.
type Split struct {
	Amount     uint64 `json:"amount"`
	Tax        uint64 `json:"tax_amount"`
	Net        uint64 `json:"net_amount"`
	Reflection uint64 `json:"reflection_tax"`
	Staking    uint64 `json:"staking_tax"`
	Lottery    uint64 `json:"lottery_tax"`
}

// Compute splits amount according to r. A zero tax rate skips the tax
// computation entirely and the whole amount is net.
//
// Rates read back from storage are not re-validated; a corrupted rate set
// that would make a share negative fails with ErrArithmeticOverflow.
func Compute(amount uint64, r Rates) (Split, error) {
	s := Split{Amount: amount}
	if r.Tax == 0 {
		s.Net = amount
		return s, nil
	}

	var err error
	if s.Tax, err = fixedpoint.MulDiv(amount, uint64(r.Tax), model.BasisPointScale); err != nil {
		return Split{}, fmt.Errorf("tax amount: %w", err)
	}
	if s.Reflection, err = fixedpoint.MulDiv(s.Tax, uint64(r.Reflection), uint64(r.Tax)); err != nil {
		return Split{}, fmt.Errorf("reflection share: %w", err)
	}
	if s.Staking, err = fixedpoint.MulDiv(s.Tax, uint64(r.Staking), uint64(r.Tax)); err != nil {
		return Split{}, fmt.Errorf("staking share: %w", err)
	}
	rest, err := fixedpoint.Sub(s.Tax, s.Reflection)
	if err != nil {
		return Split{}, fmt.Errorf("lottery share: %w", err)
	}
	if s.Lottery, err = fixedpoint.Sub(rest, s.Staking); err != nil {
		return Split{}, fmt.Errorf("lottery share: %w", err)
	}
	if s.Net, err = fixedpoint.Sub(amount, s.Tax); err != nil {
		return Split{}, fmt.Errorf("net amount: %w", err)
	}
	return s, nil
}

// Total returns the sum of all four parts. It equals Amount for any split
// returned by Compute.
func (s Split) Total() uint64 {
	return s.Net + s.Reflection + s.Staking + s.Lottery
}
