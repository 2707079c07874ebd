package whitelist_test

import (
	"context"
	"testing"

	"github.com/catalogfi/fusion/pkg/store"
	"github.com/catalogfi/fusion/pkg/whitelist"
	"github.com/ethereum/go-ethereum/common"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
)

func TestWhitelist(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Whitelist Suite")
}

var _ = Describe("Resolver registry", func() {
	var (
		ctx       = context.Background()
		authority = common.HexToAddress("0xa1")
		successor = common.HexToAddress("0xa2")
		resolver  = common.HexToAddress("0xbe")
		s         store.Store
		registry  whitelist.Registry
	)

	BeforeEach(func() {
		s = store.NewMemStore()
		var err error
		registry, err = whitelist.New(ctx, s, authority, zap.NewNop())
		Expect(err).To(BeNil())
	})

	It("should keep an existing authority", func() {
		again, err := whitelist.New(ctx, s, successor, zap.NewNop())
		Expect(err).To(BeNil())
		got, err := again.Authority(ctx)
		Expect(err).To(BeNil())
		Expect(got).To(Equal(authority))
	})

	It("should let only the authority manage resolvers", func() {
		Expect(registry.Register(ctx, resolver, resolver)).To(MatchError(whitelist.ErrUnauthorized))
		Expect(registry.Register(ctx, authority, common.Address{})).To(MatchError(whitelist.ErrInvalidResolver))

		Expect(registry.Register(ctx, authority, resolver)).To(Succeed())
		ok, err := registry.IsWhitelisted(ctx, resolver)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())

		Expect(registry.Deregister(ctx, resolver, resolver)).To(MatchError(whitelist.ErrUnauthorized))
		Expect(registry.Deregister(ctx, authority, resolver)).To(Succeed())
		ok, err = registry.IsWhitelisted(ctx, resolver)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})

	It("should hand over the authority", func() {
		Expect(registry.SetAuthority(ctx, successor, successor)).To(MatchError(whitelist.ErrUnauthorized))
		Expect(registry.SetAuthority(ctx, authority, successor)).To(Succeed())
		Expect(registry.Register(ctx, authority, resolver)).To(MatchError(whitelist.ErrUnauthorized))
		Expect(registry.Register(ctx, successor, resolver)).To(Succeed())
	})
})
