package fee_test

import (
	"math/rand"
	"testing"

	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/catalogfi/fusion/pkg/fee"
	"github.com/catalogfi/fusion/pkg/order"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestFee(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Fee Suite")
}

var _ = Describe("Split", func() {
	It("should give everything to the maker without fees", func() {
		amounts, err := fee.Split(453, 475, order.FeeConfig{})
		Expect(err).To(BeNil())
		Expect(amounts).To(Equal(fee.Amounts{Maker: 453}))
	})

	It("should floor protocol and integrator fees", func() {
		amounts, err := fee.Split(10_000, 20_000, order.FeeConfig{ProtocolFee: 150, IntegratorFee: 333})
		Expect(err).To(BeNil())
		Expect(amounts.Protocol).To(Equal(uint64(15)))
		Expect(amounts.Integrator).To(Equal(uint64(33)))
		Expect(amounts.Maker).To(Equal(uint64(9_952)))
	})

	It("should add the surplus share to the protocol", func() {
		// actual = 1000 - 10 - 0 = 990, surplus = (990-900)*50/100 = 45
		amounts, err := fee.Split(1000, 900, order.FeeConfig{ProtocolFee: 1000, SurplusPercentage: 50})
		Expect(err).To(BeNil())
		Expect(amounts.Protocol).To(Equal(uint64(55)))
		Expect(amounts.Maker).To(Equal(uint64(945)))
	})

	It("should not take surplus when the estimate is not beaten", func() {
		amounts, err := fee.Split(1000, 990, order.FeeConfig{ProtocolFee: 1000, SurplusPercentage: 100})
		Expect(err).To(BeNil())
		Expect(amounts.Protocol).To(Equal(uint64(10)))
		Expect(amounts.Maker).To(Equal(uint64(990)))
	})

	It("should fail when fees exceed the amount", func() {
		_, err := fee.Split(1000, 0, order.FeeConfig{ProtocolFee: 60_000, IntegratorFee: 60_000})
		Expect(err).To(MatchError(fee.ErrFeesExceedAmount))
		Expect(fault.KindOf(err)).To(Equal(fault.Arithmetic))
	})

	It("should always account for the whole amount", func() {
		r := rand.New(rand.NewSource(42))
		for i := 0; i < 2000; i++ {
			dst := r.Uint64() >> uint(r.Intn(64))
			est := r.Uint64() >> uint(r.Intn(64))
			cfg := order.FeeConfig{
				ProtocolFee:       uint16(r.Intn(50_001)),
				IntegratorFee:     uint16(r.Intn(50_001)),
				SurplusPercentage: uint8(r.Intn(101)),
			}
			amounts, err := fee.Split(dst, est, cfg)
			Expect(err).To(BeNil())
			Expect(amounts.Protocol + amounts.Integrator + amounts.Maker).To(Equal(dst))

			base, err := fee.Split(dst, est, order.FeeConfig{ProtocolFee: cfg.ProtocolFee, IntegratorFee: cfg.IntegratorFee})
			Expect(err).To(BeNil())
			Expect(amounts.Protocol).To(BeNumerically(">=", base.Protocol))
		}
	})
})
