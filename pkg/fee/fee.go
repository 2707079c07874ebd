package fee

import (
	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/catalogfi/fusion/pkg/muldiv"
	"github.com/catalogfi/fusion/pkg/order"
)

var ErrFeesExceedAmount = fault.New(fault.Arithmetic, "fees exceed the dst amount")

// Amounts is how a dst amount is shared. The three parts always sum to the
// amount that was split.
type Amounts struct {
	Protocol   uint64 `json:"protocol"`
	Integrator uint64 `json:"integrator"`
	Maker      uint64 `json:"maker"`
}

// Split shares dst between the protocol, the integrator and the maker. When
// the maker's share before surplus beats estimated, the protocol also takes
// its surplus percentage of the difference.
func Split(dst, estimated uint64, cfg order.FeeConfig) (Amounts, error) {
	integrator, err := muldiv.Floor(dst, uint64(cfg.IntegratorFee), order.Base1e5)
	if err != nil {
		return Amounts{}, err
	}
	protocol, err := muldiv.Floor(dst, uint64(cfg.ProtocolFee), order.Base1e5)
	if err != nil {
		return Amounts{}, err
	}

	actual, ok := sub(dst, protocol)
	if ok {
		actual, ok = sub(actual, integrator)
	}
	if !ok {
		return Amounts{}, ErrFeesExceedAmount
	}

	if actual > estimated {
		surplus, err := muldiv.Floor(actual-estimated, uint64(cfg.SurplusPercentage), order.Base1e2)
		if err != nil {
			return Amounts{}, err
		}
		if protocol > ^uint64(0)-surplus {
			return Amounts{}, muldiv.ErrOverflow
		}
		protocol += surplus
	}

	maker, ok := sub(dst, integrator)
	if ok {
		maker, ok = sub(maker, protocol)
	}
	if !ok {
		return Amounts{}, ErrFeesExceedAmount
	}
	return Amounts{Protocol: protocol, Integrator: integrator, Maker: maker}, nil
}

func sub(a, b uint64) (uint64, bool) {
	if b > a {
		return 0, false
	}
	return a - b, true
}
