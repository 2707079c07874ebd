package fusion_test

import (
	"sync"

	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/fatih/color"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Order escrow", func() {
	var e *env

	BeforeEach(func() {
		e = newEnv()
	})

	Context("create", func() {
		It("should escrow the source amount and collateral", func() {
			o, p := newOrder()
			escrow, err := e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())
			Expect(escrow.State).To(Equal(fusion.Created))
			Expect(escrow.Remaining).To(Equal(uint64(1000)))
			Expect(escrow.Identity).To(Equal(identityOf(o, p)))
			Expect(escrow.Address).To(Equal(order.EscrowAddress(maker, escrow.Identity)))

			Expect(e.balance(srcToken, escrow.Custody())).To(Equal(uint64(1000)))
			Expect(e.balance(ledger.NativeAsset, escrow.Custody())).To(Equal(uint64(100)))
			Expect(e.balance(srcToken, maker)).To(Equal(uint64(999_000)))

			stored, err := e.service.Escrow(e.ctx, escrow.Address)
			Expect(err).To(BeNil())
			Expect(stored).To(Equal(escrow))
		})

		It("should not create the same order twice", func() {
			o, p := newOrder()
			_, err := e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())
			_, err = e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(MatchError(fusion.ErrEscrowExists))
		})

		It("should reject invalid terms before moving funds", func() {
			o, p := newOrder()
			e.now = 5000
			_, err := e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(MatchError(order.ErrOrderExpired))

			e.now = 1000
			_, err = e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 99})
			Expect(err).To(MatchError(order.ErrInvalidCancellationFee))
			Expect(e.balance(srcToken, maker)).To(Equal(uint64(1_000_000)))
		})

		It("should store nothing when the maker cannot fund the order", func() {
			o, p := newOrder()
			o.SrcAmount = 2_000_000
			_, err := e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(MatchError(ledger.ErrInsufficientFunds))
			Expect(fault.KindOf(err)).To(Equal(fault.Resource))

			_, err = e.service.Escrow(e.ctx, order.EscrowAddress(maker, identityOf(o, p)))
			Expect(err).To(MatchError(fusion.ErrEscrowNotFound))
			Expect(e.balance(ledger.NativeAsset, maker)).To(Equal(uint64(1_000_000)))
		})
	})

	Context("fill", func() {
		var (
			o       order.Order
			p       order.Parties
			escrow  fusion.Escrow
			request func(amount uint64) fusion.FillRequest
		)

		BeforeEach(func() {
			o, p = newOrder()
			var err error
			escrow, err = e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())
			request = func(amount uint64) fusion.FillRequest {
				return fusion.FillRequest{Maker: maker, Order: o, Parties: p, Identity: escrow.Identity, Amount: amount}
			}
		})

		It("should price partial fills on the auction curve", func() {
			By(color.GreenString("Filling half of the order halfway through the auction"))
			e.now = 1300
			result, err := e.service.Fill(e.ctx, taker, request(500))
			Expect(err).To(BeNil())
			Expect(result.RateBump).To(Equal(uint64(500)))
			Expect(result.DstAmount).To(Equal(uint64(453)))
			Expect(result.Fees.Maker).To(Equal(uint64(453)))
			Expect(result.Escrow.State).To(Equal(fusion.PartiallyFilled))
			Expect(result.Escrow.Remaining).To(Equal(uint64(500)))

			Expect(e.balance(srcToken, taker)).To(Equal(uint64(500)))
			Expect(e.balance(dstToken, receiver)).To(Equal(uint64(453)))
			Expect(e.balance(srcToken, escrow.Custody())).To(Equal(uint64(500)))

			By(color.GreenString("Filling the rest after the auction"))
			e.now = 2000
			result, err = e.service.Fill(e.ctx, taker, request(500))
			Expect(err).To(BeNil())
			Expect(result.DstAmount).To(Equal(uint64(450)))
			Expect(result.Escrow.State).To(Equal(fusion.Closed))
			Expect(result.Escrow.Remaining).To(BeZero())

			Expect(e.balance(srcToken, escrow.Custody())).To(BeZero())
			Expect(e.balance(ledger.NativeAsset, escrow.Custody())).To(BeZero())
			Expect(e.balance(ledger.NativeAsset, maker)).To(Equal(uint64(1_000_000)))

			By(color.GreenString("Rejecting fills on a closed escrow"))
			_, err = e.service.Fill(e.ctx, taker, request(1))
			Expect(err).To(MatchError(fusion.ErrEscrowClosed))
		})

		It("should check amounts and expiry", func() {
			_, err := e.service.Fill(e.ctx, taker, request(1001))
			Expect(err).To(MatchError(fusion.ErrNotEnoughTokensInEscrow))

			_, err = e.service.Fill(e.ctx, taker, request(0))
			Expect(err).To(MatchError(order.ErrInvalidAmount))

			e.now = 5000
			_, err = e.service.Fill(e.ctx, taker, request(1))
			Expect(err).To(MatchError(order.ErrOrderExpired))
		})

		It("should only let whitelisted resolvers fill", func() {
			_, err := e.service.Fill(e.ctx, outsider, request(1))
			Expect(err).To(MatchError(fusion.ErrUnauthorized))
			Expect(fault.KindOf(err)).To(Equal(fault.Auth))
		})

		It("should reject tampered terms", func() {
			tampered := request(500)
			tampered.Order.MinDstAmount = 1
			_, err := e.service.Fill(e.ctx, taker, tampered)
			Expect(err).To(MatchError(fusion.ErrIdentityMismatch))

			tampered.Identity = identityOf(tampered.Order, tampered.Parties)
			_, err = e.service.Fill(e.ctx, taker, tampered)
			Expect(err).To(MatchError(fusion.ErrEscrowNotFound))

			Expect(e.balance(dstToken, taker)).To(Equal(uint64(1_000_000)))
			Expect(e.balance(srcToken, escrow.Custody())).To(Equal(uint64(1000)))
		})

		It("should leave the escrow untouched when the taker cannot pay", func() {
			Expect(e.ledger.Execute(e.ctx, nil, ledger.TokenTransfer(dstToken, taker, outsider, 999_800))).To(Succeed())
			_, err := e.service.Fill(e.ctx, taker, request(500))
			Expect(err).To(MatchError(ledger.ErrInsufficientFunds))

			stored, err := e.service.Escrow(e.ctx, escrow.Address)
			Expect(err).To(BeNil())
			Expect(stored.Remaining).To(Equal(uint64(1000)))
			Expect(stored.State).To(Equal(fusion.Created))
			Expect(e.balance(srcToken, taker)).To(BeZero())
		})

		It("should serialize fills racing for the last balance", func() {
			var wg sync.WaitGroup
			errs := make([]error, 2)
			for i := range errs {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, errs[i] = e.service.Fill(e.ctx, taker, request(600))
				}(i)
			}
			wg.Wait()

			failed := 0
			for _, err := range errs {
				if err != nil {
					Expect(err).To(MatchError(fusion.ErrNotEnoughTokensInEscrow))
					failed++
				}
			}
			Expect(failed).To(Equal(1))
			Expect(e.balance(srcToken, taker)).To(Equal(uint64(600)))
		})
	})

	Context("fill with fees", func() {
		It("should pay the maker, protocol and integrator", func() {
			o, p := newOrder()
			o.Auction.InitialRateBump = 10_000
			o.Fee.ProtocolFee = 1000
			o.Fee.IntegratorFee = 500
			o.Fee.SurplusPercentage = 50
			p.ProtocolDstAcc = &protocol
			p.IntegratorDstAcc = &integrator

			escrow, err := e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())

			result, err := e.service.Fill(e.ctx, taker, fusion.FillRequest{
				Maker: maker, Order: o, Parties: p, Identity: escrow.Identity, Amount: 1000,
			})
			Expect(err).To(BeNil())
			Expect(result.DstAmount).To(Equal(uint64(990)))
			Expect(result.Fees.Integrator).To(Equal(uint64(4)))
			Expect(result.Fees.Protocol).To(Equal(uint64(47)))
			Expect(result.Fees.Maker).To(Equal(uint64(939)))

			Expect(e.balance(dstToken, receiver)).To(Equal(uint64(939)))
			Expect(e.balance(dstToken, protocol)).To(Equal(uint64(47)))
			Expect(e.balance(dstToken, integrator)).To(Equal(uint64(4)))
			Expect(e.balance(dstToken, taker)).To(Equal(uint64(1_000_000 - 990)))
		})
	})

	Context("native source", func() {
		It("should keep the source amount and collateral apart", func() {
			o, p := newOrder()
			o.SrcAssetIsNative = true
			p.SrcAsset = ledger.NativeAsset

			escrow, err := e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())
			Expect(e.balance(ledger.NativeAsset, escrow.Custody())).To(Equal(uint64(1100)))

			_, err = e.service.Fill(e.ctx, taker, fusion.FillRequest{
				Maker: maker, Order: o, Parties: p, Identity: escrow.Identity, Amount: 1000,
			})
			Expect(err).To(BeNil())
			Expect(e.balance(ledger.NativeAsset, taker)).To(Equal(uint64(1000)))
			Expect(e.balance(ledger.NativeAsset, maker)).To(Equal(uint64(999_000)))
			Expect(e.balance(ledger.NativeAsset, escrow.Custody())).To(BeZero())
		})
	})

	Context("cancel", func() {
		var (
			o      order.Order
			p      order.Parties
			escrow fusion.Escrow
		)

		BeforeEach(func() {
			o, p = newOrder()
			var err error
			escrow, err = e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())
		})

		It("should refund exactly the unfilled balance", func() {
			_, err := e.service.Fill(e.ctx, taker, fusion.FillRequest{
				Maker: maker, Order: o, Parties: p, Identity: escrow.Identity, Amount: 300,
			})
			Expect(err).To(BeNil())

			cancelled, err := e.service.Cancel(e.ctx, maker, escrow.Identity, false)
			Expect(err).To(BeNil())
			Expect(cancelled.State).To(Equal(fusion.Cancelled))
			Expect(e.balance(srcToken, maker)).To(Equal(uint64(999_700)))
			Expect(e.balance(ledger.NativeAsset, maker)).To(Equal(uint64(1_000_000)))
			Expect(e.balance(srcToken, escrow.Custody())).To(BeZero())

			_, err = e.service.Cancel(e.ctx, maker, escrow.Identity, false)
			Expect(err).To(MatchError(fusion.ErrEscrowClosed))
		})

		It("should only be reachable by the maker", func() {
			_, err := e.service.Cancel(e.ctx, outsider, escrow.Identity, false)
			Expect(err).To(MatchError(fusion.ErrEscrowNotFound))
		})

		It("should check the native flag", func() {
			_, err := e.service.Cancel(e.ctx, maker, escrow.Identity, true)
			Expect(err).To(MatchError(order.ErrInconsistentNativeSrcTrait))
		})

		It("should not cancel a closed escrow", func() {
			_, err := e.service.Fill(e.ctx, taker, fusion.FillRequest{
				Maker: maker, Order: o, Parties: p, Identity: escrow.Identity, Amount: 1000,
			})
			Expect(err).To(BeNil())
			_, err = e.service.Cancel(e.ctx, maker, escrow.Identity, false)
			Expect(err).To(MatchError(fusion.ErrEscrowClosed))
		})
	})

	Context("failed writes", func() {
		var (
			o      order.Order
			p      order.Parties
			escrow fusion.Escrow
		)

		BeforeEach(func() {
			o, p = newOrder()
			var err error
			escrow, err = e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())
			e.store.failing = true
		})

		expectUntouched := func() {
			stored, err := e.service.Escrow(e.ctx, escrow.Address)
			Expect(err).To(BeNil())
			Expect(stored.Remaining).To(Equal(uint64(1000)))
			Expect(stored.State).To(Equal(fusion.Created))
			Expect(e.balance(srcToken, escrow.Custody())).To(Equal(uint64(1000)))
			Expect(e.balance(ledger.NativeAsset, escrow.Custody())).To(Equal(uint64(100)))
			Expect(e.balance(srcToken, taker)).To(BeZero())
			Expect(e.balance(dstToken, taker)).To(Equal(uint64(1_000_000)))
		}

		It("should not move funds when a fill cannot be recorded", func() {
			_, err := e.service.Fill(e.ctx, taker, fusion.FillRequest{
				Maker: maker, Order: o, Parties: p, Identity: escrow.Identity, Amount: 500,
			})
			Expect(err).To(MatchError(errDiskFull))
			expectUntouched()

			By(color.GreenString("Settling normally once the store recovers"))
			e.store.failing = false
			_, err = e.service.Fill(e.ctx, taker, fusion.FillRequest{
				Maker: maker, Order: o, Parties: p, Identity: escrow.Identity, Amount: 1000,
			})
			Expect(err).To(BeNil())
			Expect(e.balance(srcToken, taker)).To(Equal(uint64(1000)))
		})

		It("should not refund when a cancellation cannot be recorded", func() {
			_, err := e.service.Cancel(e.ctx, maker, escrow.Identity, false)
			Expect(err).To(MatchError(errDiskFull))
			expectUntouched()
			Expect(e.balance(srcToken, maker)).To(Equal(uint64(999_000)))

			e.store.failing = false
			_, err = e.service.Cancel(e.ctx, maker, escrow.Identity, false)
			Expect(err).To(BeNil())
			Expect(e.balance(srcToken, maker)).To(Equal(uint64(1_000_000)))
		})

		It("should not pay the resolver when a cancellation cannot be recorded", func() {
			e.now = 5050
			_, err := e.service.CancelByResolver(e.ctx, taker, fusion.CancelByResolverRequest{
				Maker: maker, Order: o, Parties: p, RewardLimit: 1000,
			})
			Expect(err).To(MatchError(errDiskFull))
			expectUntouched()
			Expect(e.balance(ledger.NativeAsset, taker)).To(BeZero())
		})

		It("should not take the maker's funds when the escrow cannot be recorded", func() {
			o.ID = 2
			_, err := e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(MatchError(errDiskFull))
			Expect(e.balance(srcToken, maker)).To(Equal(uint64(999_000)))
			Expect(e.balance(ledger.NativeAsset, maker)).To(Equal(uint64(999_900)))
		})
	})

	Context("cancel by resolver", func() {
		var (
			o      order.Order
			p      order.Parties
			escrow fusion.Escrow
		)

		BeforeEach(func() {
			o, p = newOrder()
			var err error
			escrow, err = e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: o, Parties: p, Collateral: 100})
			Expect(err).To(BeNil())
		})

		It("should wait for expiration", func() {
			e.now = 4999
			_, err := e.service.CancelByResolver(e.ctx, taker, fusion.CancelByResolverRequest{Maker: maker, Order: o, Parties: p, RewardLimit: 100})
			Expect(err).To(MatchError(fusion.ErrOrderNotExpired))
		})

		It("should pay the capped premium to the resolver", func() {
			e.now = 5050
			result, err := e.service.CancelByResolver(e.ctx, taker, fusion.CancelByResolverRequest{Maker: maker, Order: o, Parties: p, RewardLimit: 30})
			Expect(err).To(BeNil())
			Expect(result.Reward).To(Equal(uint64(30)))
			Expect(result.Escrow.State).To(Equal(fusion.CancelledByResolver))

			Expect(e.balance(ledger.NativeAsset, taker)).To(Equal(uint64(30)))
			Expect(e.balance(ledger.NativeAsset, maker)).To(Equal(uint64(1_000_000 - 30)))
			Expect(e.balance(srcToken, maker)).To(Equal(uint64(1_000_000)))
			Expect(e.balance(ledger.NativeAsset, escrow.Custody())).To(BeZero())
		})

		It("should pay the ramped premium under the limit", func() {
			e.now = 5050
			result, err := e.service.CancelByResolver(e.ctx, taker, fusion.CancelByResolverRequest{Maker: maker, Order: o, Parties: p, RewardLimit: 1000})
			Expect(err).To(BeNil())
			Expect(result.Reward).To(Equal(uint64(50)))
		})

		It("should require a maker opt-in and a whitelisted resolver", func() {
			e.now = 6000
			_, err := e.service.CancelByResolver(e.ctx, outsider, fusion.CancelByResolverRequest{Maker: maker, Order: o, Parties: p, RewardLimit: 1})
			Expect(err).To(MatchError(fusion.ErrUnauthorized))

			free, fp := newOrder()
			free.ID = 2
			free.Fee.MaxCancellationPremium = 0
			_, err = e.service.Create(e.ctx, maker, fusion.CreateRequest{Order: free, Parties: fp})
			Expect(err).NotTo(HaveOccurred())
			_, err = e.service.CancelByResolver(e.ctx, taker, fusion.CancelByResolverRequest{Maker: maker, Order: free, Parties: fp, RewardLimit: 1})
			Expect(err).To(MatchError(fusion.ErrCancelOrderByResolverIsForbidden))
		})
	})

	Context("quote", func() {
		It("should report the current price", func() {
			o, _ := newOrder()
			e.now = 1300
			quote, err := e.service.Quote(e.ctx, o, 500)
			Expect(err).To(BeNil())
			Expect(quote.RateBump).To(Equal(uint64(500)))
			Expect(quote.RateBumpPercent.String()).To(Equal("0.5"))
			Expect(quote.DstAmount).To(Equal(uint64(453)))
			Expect(quote.EstimatedDstAmount).To(Equal(uint64(450)))
		})
	})
})
