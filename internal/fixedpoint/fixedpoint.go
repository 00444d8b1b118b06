// Package fixedpoint provides truncating integer arithmetic on u64 token
// amounts with a 256-bit intermediate. Results that do not fit back into
// a u64 are reported, never wrapped.
package fixedpoint

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	// ErrArithmeticOverflow is returned when a result does not fit in a u64.
	ErrArithmeticOverflow = errors.New("fixedpoint: arithmetic overflow")

	// ErrDivisionByZero is returned when a divisor is zero.
	ErrDivisionByZero = errors.New("fixedpoint: division by zero")
)

// MulDiv returns floor(a * b / denom).
func MulDiv(a, b, denom uint64) (uint64, error) {
	return MulMulDiv(a, b, 1, denom)
}

// MulMulDiv returns floor(a * b * c / denom). The triple product of three
// u64 values always fits in 256 bits, so only the final narrowing can fail.
func MulMulDiv(a, b, c, denom uint64) (uint64, error) {
	if denom == 0 {
		return 0, ErrDivisionByZero
	}
	p := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	p.Mul(p, uint256.NewInt(c))
	p.Div(p, uint256.NewInt(denom))
	if !p.IsUint64() {
		return 0, ErrArithmeticOverflow
	}
	return p.Uint64(), nil
}

// Sub returns a - b, failing instead of wrapping below zero.
func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrArithmeticOverflow
	}
	return a - b, nil
}

// Add returns a + b, failing instead of wrapping past the u64 maximum.
func Add(a, b uint64) (uint64, error) {
	s := a + b
	if s < a {
		return 0, ErrArithmeticOverflow
	}
	return s, nil
}

// SubInt64 returns a - b for signed timestamps, failing instead of wrapping.
func SubInt64(a, b int64) (int64, error) {
	d := a - b
	if (b < 0 && d < a) || (b > 0 && d > a) {
		return 0, ErrArithmeticOverflow
	}
	return d, nil
}
