package muldiv

import (
	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/holiman/uint256"
)

var ErrOverflow = fault.New(fault.Arithmetic, "arithmetic overflow")

// Floor returns floor(a*b/d). The product is computed on 256 bits, so the
// only failure is a quotient that does not fit in 64 bits. d must be non-zero.
func Floor(a, b, d uint64) (uint64, error) {
	q, _ := divmod(a, b, d)
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

// Ceil returns ceil(a*b/d). d must be non-zero.
func Ceil(a, b, d uint64) (uint64, error) {
	q, r := divmod(a, b, d)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() {
		return 0, ErrOverflow
	}
	return q.Uint64(), nil
}

func divmod(a, b, d uint64) (*uint256.Int, *uint256.Int) {
	if d == 0 {
		panic("muldiv: zero denominator")
	}
	prod := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	den := uint256.NewInt(d)
	return new(uint256.Int).Div(prod, den), new(uint256.Int).Mod(prod, den)
}
