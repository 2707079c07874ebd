package htlc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/catalogfi/fusion/pkg/lock"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const counterKey = "htlc:counter"

// Service runs hash time locked escrows on the destination chain.
type Service interface {
	// Initialize sets up the escrow counter, once.
	Initialize(ctx context.Context) error

	// Deposit locks funds of caller, who must be the depositor, and returns
	// the id of the new escrow.
	Deposit(ctx context.Context, caller common.Address, req DepositRequest) (uint64, error)

	// Claim releases the funds to the beneficiary against the secret before
	// expiration.
	Claim(ctx context.Context, claimant common.Address, id uint64, secret []byte) error

	// Refund returns the funds to the depositor after expiration.
	Refund(ctx context.Context, refunder common.Address, id uint64) error

	Escrow(ctx context.Context, id uint64) (Escrow, error)

	// Secret returns the preimage revealed by a claim.
	Secret(ctx context.Context, id uint64) ([]byte, bool, error)

	IsActive(ctx context.Context, id uint64) (bool, error)

	Counter(ctx context.Context) (uint64, error)
}

type Options struct {
	Clock func() time.Time
}

func DefaultOptions() Options {
	return Options{Clock: time.Now}
}

func (opts Options) WithClock(clock func() time.Time) Options {
	opts.Clock = clock
	return opts
}

type service struct {
	store  Store
	ledger ledger.Ledger
	locker lock.Locker
	logger *zap.Logger
	opts   Options
}

func New(store Store, l ledger.Ledger, locker lock.Locker, logger *zap.Logger, opts Options) Service {
	if opts.Clock == nil {
		opts.Clock = DefaultOptions().Clock
	}
	return &service{
		store:  store,
		ledger: l,
		locker: locker,
		logger: logger.With(zap.String("service", "htlc")),
		opts:   opts,
	}
}

func (s *service) now() uint64 {
	return uint64(s.opts.Clock().Unix())
}

func (s *service) Initialize(ctx context.Context) error {
	release, err := s.locker.Acquire(ctx, counterKey)
	if err != nil {
		return fmt.Errorf("failed to lock counter: %w", err)
	}
	defer release()
	return s.store.InitCounter(ctx)
}

func (s *service) Deposit(ctx context.Context, caller common.Address, req DepositRequest) (uint64, error) {
	if caller != req.Depositor {
		return 0, ErrUnauthorized
	}
	if req.Amount == 0 {
		return 0, ErrInvalidAmount
	}
	if req.Duration == 0 {
		return 0, ErrInvalidDuration
	}
	now := s.now()
	if req.Duration > math.MaxUint64-now {
		return 0, ErrTimeLockOverflow
	}

	release, err := s.locker.Acquire(ctx, counterKey)
	if err != nil {
		return 0, fmt.Errorf("failed to lock counter: %w", err)
	}
	defer release()

	last, err := s.store.Counter(ctx)
	if err != nil {
		return 0, err
	}
	escrow := Escrow{
		ID:          last + 1,
		Token:       req.Token,
		Amount:      req.Amount,
		Depositor:   req.Depositor,
		Beneficiary: req.Beneficiary,
		HashLock:    req.HashLock,
		TimeLock:    now + req.Duration,
		State:       Created,
		SrcChainID:  req.SrcChainID,
		OrderHash:   req.OrderHash,
	}
	create := func(ctx context.Context) error {
		if err := s.store.CreateEscrow(ctx, escrow); err != nil {
			s.logger.Error("failed to persist escrow", zap.Uint64("id", escrow.ID), zap.Error(err))
			return fmt.Errorf("failed to persist escrow: %w", err)
		}
		return nil
	}
	if err := s.ledger.Execute(ctx, create, ledger.TokenTransfer(req.Token, req.Depositor, escrow.Custody(), req.Amount)); err != nil {
		return 0, fmt.Errorf("failed to lock funds: %w", err)
	}

	s.logger.Info("escrow created",
		zap.Uint64("id", escrow.ID),
		zap.String("depositor", escrow.Depositor.Hex()),
		zap.String("beneficiary", escrow.Beneficiary.Hex()),
		zap.Uint64("amount", escrow.Amount),
		zap.Uint64("timeLock", escrow.TimeLock))
	return escrow.ID, nil
}

func (s *service) Claim(ctx context.Context, claimant common.Address, id uint64, secret []byte) error {
	escrow, release, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if claimant != escrow.Beneficiary {
		return ErrUnauthorized
	}
	if err := terminal(escrow); err != nil {
		return err
	}
	if s.now() >= escrow.TimeLock {
		return ErrEscrowExpired
	}
	if HashSecret(secret) != escrow.HashLock {
		return ErrInvalidSecret
	}

	escrow.State = Claimed
	escrow.Secret = append([]byte(nil), secret...)
	if err := s.ledger.Execute(ctx, s.persist(escrow), ledger.TokenTransfer(escrow.Token, escrow.Custody(), escrow.Beneficiary, escrow.Amount)); err != nil {
		return fmt.Errorf("failed to release funds: %w", err)
	}

	s.logger.Info("escrow claimed", zap.Uint64("id", id), zap.String("beneficiary", claimant.Hex()))
	return nil
}

func (s *service) Refund(ctx context.Context, refunder common.Address, id uint64) error {
	escrow, release, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	if refunder != escrow.Depositor {
		return ErrUnauthorized
	}
	if err := terminal(escrow); err != nil {
		return err
	}
	if s.now() < escrow.TimeLock {
		return ErrEscrowNotExpired
	}

	escrow.State = Refunded
	if err := s.ledger.Execute(ctx, s.persist(escrow), ledger.TokenTransfer(escrow.Token, escrow.Custody(), escrow.Depositor, escrow.Amount)); err != nil {
		return fmt.Errorf("failed to refund funds: %w", err)
	}

	s.logger.Info("escrow refunded", zap.Uint64("id", id), zap.String("depositor", refunder.Hex()))
	return nil
}

func (s *service) Escrow(ctx context.Context, id uint64) (Escrow, error) {
	return s.store.HTLC(ctx, id)
}

func (s *service) Secret(ctx context.Context, id uint64) ([]byte, bool, error) {
	escrow, err := s.store.HTLC(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if !escrow.Claimed() {
		return nil, false, nil
	}
	return escrow.Secret, true, nil
}

func (s *service) IsActive(ctx context.Context, id uint64) (bool, error) {
	escrow, err := s.store.HTLC(ctx, id)
	if err != nil {
		return false, err
	}
	return escrow.State == Created && s.now() < escrow.TimeLock, nil
}

func (s *service) Counter(ctx context.Context) (uint64, error) {
	return s.store.Counter(ctx)
}

func (s *service) load(ctx context.Context, id uint64) (Escrow, func(), error) {
	release, err := s.locker.Acquire(ctx, fmt.Sprintf("htlc:%d", id))
	if err != nil {
		return Escrow{}, nil, fmt.Errorf("failed to lock escrow: %w", err)
	}
	escrow, err := s.store.HTLC(ctx, id)
	if err != nil {
		release()
		return Escrow{}, nil, err
	}
	return escrow, release, nil
}

func (s *service) persist(escrow Escrow) ledger.Commit {
	return func(ctx context.Context) error {
		if err := s.store.PutHTLC(ctx, escrow); err != nil {
			s.logger.Error("failed to persist escrow",
				zap.Uint64("id", escrow.ID),
				zap.Stringer("state", escrow.State),
				zap.Error(err))
			return fmt.Errorf("failed to persist escrow: %w", err)
		}
		return nil
	}
}

func terminal(escrow Escrow) error {
	switch escrow.State {
	case Claimed:
		return ErrAlreadyClaimed
	case Refunded:
		return ErrAlreadyRefunded
	}
	return nil
}
