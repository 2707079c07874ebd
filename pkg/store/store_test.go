package store_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/catalogfi/fusion/pkg/store"
	"github.com/catalogfi/fusion/pkg/whitelist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestStore(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Store Suite")
}

func behavesLikeAStore(newStore func() store.Store) {
	var (
		ctx = context.Background()
		s   store.Store
	)

	BeforeEach(func() {
		s = newStore()
	})

	It("should round trip order escrows", func() {
		address := common.HexToHash("0xabc")
		_, err := s.Escrow(ctx, address)
		Expect(err).To(MatchError(fusion.ErrEscrowNotFound))

		escrow := fusion.Escrow{
			Address: address,
			Maker:   common.HexToAddress("0x1"),
			Order: order.Order{
				ID:        3,
				SrcAmount: 1000,
				Auction:   order.AuctionCurve{Duration: 60, Points: []order.Point{{RateBump: 5, TimeDelta: 10}}},
			},
			Remaining:  1000,
			Collateral: 7,
			State:      fusion.Created,
		}
		Expect(s.PutEscrow(ctx, escrow)).To(Succeed())
		got, err := s.Escrow(ctx, address)
		Expect(err).To(BeNil())
		Expect(got).To(Equal(escrow))

		escrow.Remaining = 400
		escrow.State = fusion.PartiallyFilled
		Expect(s.PutEscrow(ctx, escrow)).To(Succeed())
		got, err = s.Escrow(ctx, address)
		Expect(err).To(BeNil())
		Expect(got.Remaining).To(Equal(uint64(400)))
		Expect(got.State).To(Equal(fusion.PartiallyFilled))
	})

	It("should keep the identity of orders without checkpoints", func() {
		o := order.Order{ID: 4, SrcAmount: 10, Auction: order.AuctionCurve{Duration: 60, Points: []order.Point{}}}
		p := order.Parties{SrcAsset: common.HexToAddress("0x5c")}
		identity, err := order.Identity(o, p)
		Expect(err).To(BeNil())

		address := order.EscrowAddress(common.HexToAddress("0x1"), identity)
		Expect(s.PutEscrow(ctx, fusion.Escrow{Address: address, Identity: identity, Order: o, Parties: p, State: fusion.Created})).To(Succeed())
		got, err := s.Escrow(ctx, address)
		Expect(err).To(BeNil())
		Expect(order.Identity(got.Order, got.Parties)).To(Equal(identity))
	})

	It("should advance the counter with new escrows", func() {
		counter, err := s.Counter(ctx)
		Expect(err).To(BeNil())
		Expect(counter).To(BeZero())

		Expect(s.InitCounter(ctx)).To(Succeed())
		Expect(s.InitCounter(ctx)).To(MatchError(htlc.ErrAlreadyInitialized))

		escrow := htlc.Escrow{
			ID:          1,
			Amount:      100,
			Beneficiary: common.HexToAddress("0x2"),
			HashLock:    htlc.HashSecret([]byte("secret")),
			TimeLock:    3600,
			State:       htlc.Created,
			OrderHash:   []byte{1, 2, 3},
		}
		Expect(s.CreateEscrow(ctx, escrow)).To(Succeed())
		counter, err = s.Counter(ctx)
		Expect(err).To(BeNil())
		Expect(counter).To(Equal(uint64(1)))

		got, err := s.HTLC(ctx, 1)
		Expect(err).To(BeNil())
		Expect(got).To(Equal(escrow))

		escrow.State = htlc.Claimed
		escrow.Secret = []byte("secret")
		Expect(s.PutHTLC(ctx, escrow)).To(Succeed())
		got, err = s.HTLC(ctx, 1)
		Expect(err).To(BeNil())
		Expect(got.State).To(Equal(htlc.Claimed))
		Expect([]byte(got.Secret)).To(Equal([]byte("secret")))

		_, err = s.HTLC(ctx, 2)
		Expect(err).To(MatchError(htlc.ErrEscrowNotFound))
	})

	It("should track the whitelist", func() {
		_, err := s.Authority(ctx)
		Expect(err).To(MatchError(whitelist.ErrNoAuthority))

		authority := common.HexToAddress("0xa0")
		Expect(s.PutAuthority(ctx, authority)).To(Succeed())
		got, err := s.Authority(ctx)
		Expect(err).To(BeNil())
		Expect(got).To(Equal(authority))

		resolver := common.HexToAddress("0xbe")
		ok, err := s.IsResolver(ctx, resolver)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())

		Expect(s.PutResolver(ctx, resolver)).To(Succeed())
		Expect(s.PutResolver(ctx, resolver)).To(Succeed())
		ok, err = s.IsResolver(ctx, resolver)
		Expect(err).To(BeNil())
		Expect(ok).To(BeTrue())

		Expect(s.DeleteResolver(ctx, resolver)).To(Succeed())
		ok, err = s.IsResolver(ctx, resolver)
		Expect(err).To(BeNil())
		Expect(ok).To(BeFalse())
	})
}

func behavesLikeALedger(newBackend func() (store.Store, ledger.Issuer)) {
	var (
		ctx   = context.Background()
		token = common.HexToAddress("0x70")
		alice = common.HexToAddress("0xa1")
		bob   = common.HexToAddress("0xb0")
		s     store.Store
		l     ledger.Issuer
	)

	balance := func(asset, account common.Address) uint64 {
		bal, err := l.Balance(ctx, asset, account)
		Expect(err).To(BeNil())
		return bal
	}

	escrow := fusion.Escrow{Address: common.HexToHash("0xe5"), Remaining: 40, State: fusion.Created}

	BeforeEach(func() {
		s, l = newBackend()
		funded, err := l.Genesis(ctx,
			ledger.Grant{Asset: token, Account: alice, Amount: 100},
			ledger.Grant{Asset: ledger.NativeAsset, Account: alice, Amount: 10},
		)
		Expect(err).To(BeNil())
		Expect(funded).To(BeTrue())
	})

	It("should be funded once", func() {
		funded, err := l.Genesis(ctx, ledger.Grant{Asset: token, Account: alice, Amount: 100})
		Expect(err).To(BeNil())
		Expect(funded).To(BeFalse())
		Expect(balance(token, alice)).To(Equal(uint64(100)))
	})

	It("should settle transfers together with the escrow", func() {
		Expect(l.Execute(ctx, func(ctx context.Context) error { return s.PutEscrow(ctx, escrow) },
			ledger.TokenTransfer(token, alice, bob, 40),
			ledger.NativeTransfer(alice, bob, 10),
		)).To(Succeed())

		Expect(balance(token, alice)).To(Equal(uint64(60)))
		Expect(balance(token, bob)).To(Equal(uint64(40)))
		Expect(balance(ledger.NativeAsset, bob)).To(Equal(uint64(10)))
		got, err := s.Escrow(ctx, escrow.Address)
		Expect(err).To(BeNil())
		Expect(got.Remaining).To(Equal(uint64(40)))
	})

	It("should roll back transfers and writes when the commit fails", func() {
		errCommit := errors.New("commit failed")
		err := l.Execute(ctx, func(ctx context.Context) error {
			if err := s.PutEscrow(ctx, escrow); err != nil {
				return err
			}
			return errCommit
		}, ledger.TokenTransfer(token, alice, bob, 40))
		Expect(err).To(MatchError(errCommit))

		Expect(balance(token, alice)).To(Equal(uint64(100)))
		Expect(balance(token, bob)).To(BeZero())
		_, err = s.Escrow(ctx, escrow.Address)
		Expect(err).To(MatchError(fusion.ErrEscrowNotFound))
	})

	It("should create escrows and advance the counter inside a batch", func() {
		Expect(s.InitCounter(ctx)).To(Succeed())
		deposit := htlc.Escrow{ID: 1, Token: token, Amount: 30, State: htlc.Created}
		Expect(l.Execute(ctx, func(ctx context.Context) error { return s.CreateEscrow(ctx, deposit) },
			ledger.TokenTransfer(token, alice, htlc.CustodyAddress(1), 30),
		)).To(Succeed())

		counter, err := s.Counter(ctx)
		Expect(err).To(BeNil())
		Expect(counter).To(Equal(uint64(1)))
		Expect(balance(token, htlc.CustodyAddress(1))).To(Equal(uint64(30)))
	})

	It("should reject overdrafts without writing", func() {
		err := l.Execute(ctx, func(ctx context.Context) error { return s.PutEscrow(ctx, escrow) },
			ledger.TokenTransfer(token, alice, bob, 101),
		)
		Expect(err).To(MatchError(ledger.ErrInsufficientFunds))
		_, err = s.Escrow(ctx, escrow.Address)
		Expect(err).To(MatchError(fusion.ErrEscrowNotFound))
	})
}

var _ = Describe("Memory store", func() {
	behavesLikeAStore(store.NewMemStore)
})

var _ = Describe("Redis store", func() {
	behavesLikeAStore(func() store.Store {
		mr, err := miniredis.Run()
		Expect(err).To(BeNil())
		DeferCleanup(mr.Close)
		return store.NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	})

	Context("ledger", func() {
		behavesLikeALedger(func() (store.Store, ledger.Issuer) {
			mr, err := miniredis.Run()
			Expect(err).To(BeNil())
			DeferCleanup(mr.Close)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return store.NewRedisStore(client), store.NewRedisLedger(client)
		})
	})

	It("should connect from a url", func() {
		client, err := store.NewRedisClient("redis://:pass@localhost:6379")
		Expect(err).To(BeNil())
		Expect(client.Options().Addr).To(Equal("localhost:6379"))
		Expect(client.Options().Password).To(Equal("pass"))
	})
})

func openDB() *gorm.DB {
	path := filepath.Join(GinkgoT().TempDir(), "fusion.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	Expect(err).To(BeNil())
	return db
}

var _ = Describe("Gorm store", func() {
	behavesLikeAStore(func() store.Store {
		s, err := store.NewGormStore(openDB())
		Expect(err).To(BeNil())
		return s
	})

	Context("ledger", func() {
		behavesLikeALedger(func() (store.Store, ledger.Issuer) {
			db := openDB()
			s, err := store.NewGormStore(db)
			Expect(err).To(BeNil())
			l, err := store.NewGormLedger(db)
			Expect(err).To(BeNil())
			return s, l
		})
	})
})
