package rpcclient_test

import (
	"encoding/json"
	"errors"
	"time"

	jsonrpc "github.com/catalogfi/fusion/daemon/rpc"
	"github.com/catalogfi/fusion/daemon/types"
	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/catalogfi/fusion/rpcclient"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func rpcCode(err error) int {
	var rpcErr *jsonrpc.Error
	Expect(errors.As(err, &rpcErr)).To(BeTrue())
	return rpcErr.Code
}

var _ = Describe("ClientTesting", Ordered, func() {
	var (
		authority, maker, taker rpcclient.Client
		o                       order.Order
		p                       order.Parties
		identity                common.Hash
	)

	BeforeAll(func() {
		authority = rpcclient.NewClient("http", host(), "")
		maker = rpcclient.NewClient("http", host(), "")
		taker = rpcclient.NewClient("http", host(), "")

		now := uint32(time.Now().Unix())
		o = order.Order{
			ID:                 7,
			SrcAmount:          1000,
			MinDstAmount:       900,
			EstimatedDstAmount: 900,
			ExpirationTime:     now + 3600,
			Fee:                order.FeeConfig{MaxCancellationPremium: 10},
			Auction:            order.AuctionCurve{StartTime: now - 10, Duration: 1},
		}
		p = order.Parties{SrcAsset: srcToken, DstAsset: dstToken, Receiver: address(makerKey)}
	})

	It("should reject anonymous calls", func() {
		_, err := maker.EscrowCounter()
		Expect(err).NotTo(BeNil())
		Expect(err.Error()).To(ContainSubstring("401"))
	})

	It("should log in with a signed message", func() {
		By(color.GreenString("Signing in every wallet"))
		token, err := authority.Login(authorityKey)
		Expect(err).To(BeNil())
		Expect(token).NotTo(BeEmpty())
		_, err = maker.Login(makerKey)
		Expect(err).To(BeNil())
		_, err = taker.Login(takerKey)
		Expect(err).To(BeNil())

		resp, err := maker.EscrowCounter()
		Expect(err).To(BeNil())
		var counter types.ResponseCounter
		Expect(json.Unmarshal(resp, &counter)).To(Succeed())
		Expect(counter.Counter).To(BeZero())
	})

	It("should whitelist resolvers through the authority", func() {
		_, err := taker.RegisterResolver(types.RequestResolver{Resolver: address(takerKey)})
		Expect(rpcCode(err)).To(Equal(jsonrpc.ErrorCodeUnauthorized))

		_, err = authority.RegisterResolver(types.RequestResolver{Resolver: address(takerKey)})
		Expect(err).To(BeNil())
	})

	It("should create and fill an order", func() {
		resp, err := maker.CreateOrder(types.RequestCreate{Order: o, Parties: p, Collateral: 10})
		Expect(err).To(BeNil())
		var escrow fusion.Escrow
		Expect(json.Unmarshal(resp, &escrow)).To(Succeed())
		Expect(escrow.State).To(Equal(fusion.Created))
		identity = escrow.Identity

		resp, err = maker.OrderIdentity(types.RequestIdentity{Order: o, Parties: p})
		Expect(err).To(BeNil())
		var ids types.ResponseIdentity
		Expect(json.Unmarshal(resp, &ids)).To(Succeed())
		Expect(ids.Identity).To(Equal(identity))
		Expect(ids.Escrow).To(Equal(escrow.Address))

		_, err = taker.FillOrder(types.RequestFill{Maker: address(makerKey), Order: o, Parties: p, Identity: identity, Amount: 0})
		Expect(rpcCode(err)).To(Equal(jsonrpc.ErrorCodeInvalidParams))

		resp, err = taker.FillOrder(types.RequestFill{Maker: address(makerKey), Order: o, Parties: p, Identity: identity, Amount: 400})
		Expect(err).To(BeNil())
		var result fusion.FillResult
		Expect(json.Unmarshal(resp, &result)).To(Succeed())
		Expect(result.DstAmount).To(Equal(uint64(360)))
		Expect(result.Escrow.Remaining).To(Equal(uint64(600)))

		resp, err = taker.Balance(types.RequestBalance{Asset: srcToken})
		Expect(err).To(BeNil())
		var bal types.ResponseBalance
		Expect(json.Unmarshal(resp, &bal)).To(Succeed())
		Expect(bal.Balance).To(Equal(uint64(400)))
	})

	It("should only let the maker cancel", func() {
		_, err := taker.CancelOrder(types.RequestCancel{Identity: identity})
		Expect(rpcCode(err)).To(Equal(jsonrpc.ErrorCodeNotFound))

		resp, err := maker.CancelOrder(types.RequestCancel{Identity: identity})
		Expect(err).To(BeNil())
		var escrow fusion.Escrow
		Expect(json.Unmarshal(resp, &escrow)).To(Succeed())
		Expect(escrow.State).To(Equal(fusion.Cancelled))

		resp, err = maker.GetOrder(types.RequestGetOrder{Address: escrow.Address})
		Expect(err).To(BeNil())
		Expect(json.Unmarshal(resp, &escrow)).To(Succeed())
		Expect(escrow.State).To(Equal(fusion.Cancelled))
	})

	It("should settle a hash time locked escrow", func() {
		secret, hash, err := htlc.NewSecret()
		Expect(err).To(BeNil())

		resp, err := taker.Deposit(types.RequestDeposit{
			Token:       dstToken,
			Amount:      100,
			Beneficiary: address(makerKey),
			HashLock:    hash,
			Duration:    3600,
		})
		Expect(err).To(BeNil())
		var deposited types.ResponseDeposit
		Expect(json.Unmarshal(resp, &deposited)).To(Succeed())
		Expect(deposited.ID).To(Equal(uint64(1)))

		resp, err = maker.IsActive(types.RequestEscrowID{ID: 1})
		Expect(err).To(BeNil())
		var active types.ResponseActive
		Expect(json.Unmarshal(resp, &active)).To(Succeed())
		Expect(active.Active).To(BeTrue())

		_, err = maker.Refund(types.RequestEscrowID{ID: 1})
		Expect(rpcCode(err)).To(Equal(jsonrpc.ErrorCodeUnauthorized))
		_, err = taker.Refund(types.RequestEscrowID{ID: 1})
		Expect(rpcCode(err)).To(Equal(jsonrpc.ErrorCodeStateError))

		_, err = maker.Claim(types.RequestClaim{ID: 1, Secret: secret})
		Expect(err).To(BeNil())

		resp, err = taker.GetSecret(types.RequestEscrowID{ID: 1})
		Expect(err).To(BeNil())
		var revealed types.ResponseSecret
		Expect(json.Unmarshal(resp, &revealed)).To(Succeed())
		Expect(revealed.Revealed).To(BeTrue())
		Expect([]byte(revealed.Secret)).To(Equal(secret))

		resp, err = taker.GetEscrow(types.RequestEscrowID{ID: 1})
		Expect(err).To(BeNil())
		var escrow htlc.Escrow
		Expect(json.Unmarshal(resp, &escrow)).To(Succeed())
		Expect(escrow.State).To(Equal(htlc.Claimed))
	})

	It("should hand the whitelist over to a new authority", func() {
		_, err := taker.SetAuthority(types.RequestAuthority{Authority: address(takerKey)})
		Expect(rpcCode(err)).To(Equal(jsonrpc.ErrorCodeUnauthorized))

		_, err = authority.SetAuthority(types.RequestAuthority{Authority: address(makerKey)})
		Expect(err).To(BeNil())

		_, err = authority.DeregisterResolver(types.RequestResolver{Resolver: address(takerKey)})
		Expect(rpcCode(err)).To(Equal(jsonrpc.ErrorCodeUnauthorized))
		_, err = maker.DeregisterResolver(types.RequestResolver{Resolver: address(takerKey)})
		Expect(err).To(BeNil())
	})

	It("should quote the auction", func() {
		resp, err := maker.Quote(types.RequestQuote{Order: o, SrcFilled: 500})
		Expect(err).To(BeNil())
		var q fusion.Quote
		Expect(json.Unmarshal(resp, &q)).To(Succeed())
		Expect(q.DstAmount).To(Equal(uint64(450)))
		Expect(q.RateBump).To(BeZero())
	})
})
