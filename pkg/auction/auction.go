package auction

import (
	"github.com/catalogfi/fusion/pkg/muldiv"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// RateBump evaluates the curve at timestamp, in 1e5 units.
//
// Products are taken on 64 bits: with bumps bounded by 65535 and timestamps
// below 2^40 they cannot overflow.
func RateBump(timestamp uint64, c order.AuctionCurve) uint64 {
	start := uint64(c.StartTime)
	finish := start + uint64(c.Duration)
	if timestamp <= start {
		return uint64(c.InitialRateBump)
	}
	if timestamp >= finish {
		return 0
	}

	curTime, curBump := start, uint64(c.InitialRateBump)
	for _, p := range c.Points {
		nextTime := curTime + uint64(p.TimeDelta)
		nextBump := uint64(p.RateBump)
		if timestamp <= nextTime {
			return ((timestamp-curTime)*nextBump + (nextTime-timestamp)*curBump) / (nextTime - curTime)
		}
		curTime, curBump = nextTime, nextBump
	}
	return curBump * (finish - timestamp) / (finish - curTime)
}

// DstAmount prices srcFilled out of srcTotal against initialDst, rounding in
// the maker's favour. A nil curve prices without the rate bump.
// srcTotal must be non-zero.
func DstAmount(initialDst, srcTotal, srcFilled uint64, curve *order.AuctionCurve, timestamp uint64) (uint64, error) {
	amount, err := muldiv.Ceil(initialDst, srcFilled, srcTotal)
	if err != nil {
		return 0, err
	}
	if curve == nil {
		return amount, nil
	}
	bump := RateBump(timestamp, *curve)
	return muldiv.Ceil(amount, order.Base1e5+bump, order.Base1e5)
}

// TakingAmount is what a taker owes for srcFilled at timestamp.
func TakingAmount(o order.Order, srcFilled, timestamp uint64) (uint64, error) {
	return DstAmount(o.MinDstAmount, o.SrcAmount, srcFilled, &o.Auction, timestamp)
}

// EstimatedTakingAmount is the maker's expected amount for srcFilled, the
// baseline positive slippage is measured against.
func EstimatedTakingAmount(o order.Order, srcFilled uint64) (uint64, error) {
	return DstAmount(o.EstimatedDstAmount, o.SrcAmount, srcFilled, nil, 0)
}

// Premium ramps linearly from 0 at start to max over duration.
func Premium(timestamp, start uint64, duration uint32, max uint64) uint64 {
	if timestamp <= start {
		return 0
	}
	elapsed := timestamp - start
	if elapsed >= uint64(duration) {
		return max
	}
	// elapsed < duration keeps the quotient below max
	v := new(uint256.Int).Mul(uint256.NewInt(elapsed), uint256.NewInt(max))
	return v.Div(v, uint256.NewInt(uint64(duration))).Uint64()
}

// Percent renders a 1e5-based rate as a percentage.
func Percent(rate uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(rate)).Shift(2).Div(decimal.NewFromInt(order.Base1e5))
}
