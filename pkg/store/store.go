package store

import (
	"context"
	"sync"

	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/catalogfi/fusion/pkg/whitelist"
	"github.com/ethereum/go-ethereum/common"
)

// Store persists escrows of both chains and the resolver whitelist.
type Store interface {
	fusion.Store
	htlc.Store
	whitelist.Store
}

type memStore struct {
	mu          sync.RWMutex
	orders      map[common.Hash]fusion.Escrow
	htlcs       map[uint64]htlc.Escrow
	counter     uint64
	initialized bool
	authority   *common.Address
	resolvers   map[common.Address]struct{}
}

// NewMemStore keeps everything in process memory.
func NewMemStore() Store {
	return &memStore{
		orders:    map[common.Hash]fusion.Escrow{},
		htlcs:     map[uint64]htlc.Escrow{},
		resolvers: map[common.Address]struct{}{},
	}
}

func (s *memStore) Escrow(ctx context.Context, address common.Hash) (fusion.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.orders[address]
	if !ok {
		return fusion.Escrow{}, fusion.ErrEscrowNotFound
	}
	return copyOrderEscrow(e), nil
}

func (s *memStore) PutEscrow(ctx context.Context, escrow fusion.Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[escrow.Address] = copyOrderEscrow(escrow)
	return nil
}

func (s *memStore) InitCounter(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return htlc.ErrAlreadyInitialized
	}
	s.initialized = true
	return nil
}

func (s *memStore) Counter(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counter, nil
}

func (s *memStore) CreateEscrow(ctx context.Context, escrow htlc.Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.htlcs[escrow.ID] = copyHTLC(escrow)
	s.counter = escrow.ID
	s.initialized = true
	return nil
}

func (s *memStore) HTLC(ctx context.Context, id uint64) (htlc.Escrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.htlcs[id]
	if !ok {
		return htlc.Escrow{}, htlc.ErrEscrowNotFound
	}
	return copyHTLC(e), nil
}

func (s *memStore) PutHTLC(ctx context.Context, escrow htlc.Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.htlcs[escrow.ID] = copyHTLC(escrow)
	return nil
}

func (s *memStore) Authority(ctx context.Context) (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.authority == nil {
		return common.Address{}, whitelist.ErrNoAuthority
	}
	return *s.authority, nil
}

func (s *memStore) PutAuthority(ctx context.Context, authority common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authority = &authority
	return nil
}

func (s *memStore) PutResolver(ctx context.Context, resolver common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resolvers[resolver] = struct{}{}
	return nil
}

func (s *memStore) DeleteResolver(ctx context.Context, resolver common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.resolvers, resolver)
	return nil
}

func (s *memStore) IsResolver(ctx context.Context, resolver common.Address) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.resolvers[resolver]
	return ok, nil
}

func copyOrderEscrow(e fusion.Escrow) fusion.Escrow {
	if e.Order.Auction.Points != nil {
		points := make([]order.Point, len(e.Order.Auction.Points))
		copy(points, e.Order.Auction.Points)
		e.Order.Auction.Points = points
	}
	return e
}

func copyHTLC(e htlc.Escrow) htlc.Escrow {
	e.Secret = append([]byte(nil), e.Secret...)
	e.OrderHash = append([]byte(nil), e.OrderHash...)
	return e
}
