package fusion

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogfi/fusion/pkg/auction"
	"github.com/catalogfi/fusion/pkg/fee"
	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/catalogfi/fusion/pkg/lock"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Service settles orders on the source chain. Every mutation of an escrow
// runs under the escrow's lock and moves funds in a single ledger batch.
type Service interface {
	// Create escrows the order's source amount and collateral from maker.
	Create(ctx context.Context, maker common.Address, req CreateRequest) (Escrow, error)

	// Fill sells req.Amount of the escrowed source asset to taker at the
	// current auction price.
	Fill(ctx context.Context, taker common.Address, req FillRequest) (FillResult, error)

	// Cancel returns the unfilled balance and collateral to the maker.
	Cancel(ctx context.Context, maker common.Address, identity common.Hash, srcIsNative bool) (Escrow, error)

	// CancelByResolver cleans up an expired order, paying resolver a premium
	// out of the collateral.
	CancelByResolver(ctx context.Context, resolver common.Address, req CancelByResolverRequest) (CancelResult, error)

	Escrow(ctx context.Context, address common.Hash) (Escrow, error)

	// Quote prices a fill of srcFilled at the current time.
	Quote(ctx context.Context, o order.Order, srcFilled uint64) (Quote, error)
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
		logger: logger.With(zap.String("service", "fusion")),
		opts:   opts,
	}
}

func (s *service) now() uint64 {
	return uint64(s.opts.Clock().Unix())
}

func (s *service) Create(ctx context.Context, maker common.Address, req CreateRequest) (Escrow, error) {
	o, p := req.Order, req.Parties
	if err := o.Validate(p, s.now(), req.Collateral); err != nil {
		return Escrow{}, err
	}
	identity, err := order.Identity(o, p)
	if err != nil {
		return Escrow{}, err
	}
	address := order.EscrowAddress(maker, identity)

	release, err := s.locker.Acquire(ctx, address.Hex())
	if err != nil {
		return Escrow{}, fmt.Errorf("failed to lock escrow: %w", err)
	}
	defer release()

	if _, err := s.store.Escrow(ctx, address); err == nil {
		return Escrow{}, ErrEscrowExists
	} else if !errors.Is(err, ErrEscrowNotFound) {
		return Escrow{}, err
	}

	escrow := Escrow{
		Address:    address,
		Identity:   identity,
		Maker:      maker,
		Order:      o,
		Parties:    p,
		Remaining:  o.SrcAmount,
		Collateral: req.Collateral,
		State:      Created,
	}
	if err := s.ledger.Execute(ctx, s.persist(escrow),
		ledger.AssetTransfer(o.SrcAssetIsNative, p.SrcAsset, maker, escrow.Custody(), o.SrcAmount),
		ledger.NativeTransfer(maker, escrow.Custody(), req.Collateral),
	); err != nil {
		return Escrow{}, fmt.Errorf("failed to fund escrow: %w", err)
	}

	s.logger.Info("order created",
		zap.String("escrow", address.Hex()),
		zap.String("maker", maker.Hex()),
		zap.Uint32("id", o.ID),
		zap.Uint64("srcAmount", o.SrcAmount))
	return escrow, nil
}

func (s *service) Fill(ctx context.Context, taker common.Address, req FillRequest) (FillResult, error) {
	if err := s.checkResolver(ctx, taker); err != nil {
		return FillResult{}, err
	}
	identity, err := order.Identity(req.Order, req.Parties)
	if err != nil {
		return FillResult{}, err
	}
	if identity != req.Identity {
		return FillResult{}, ErrIdentityMismatch
	}
	escrow, release, err := s.load(ctx, order.EscrowAddress(req.Maker, identity))
	if err != nil {
		return FillResult{}, err
	}
	defer release()

	o, p := escrow.Order, escrow.Parties
	now := s.now()
	if o.Expired(now) {
		return FillResult{}, order.ErrOrderExpired
	}
	if req.Amount > escrow.Remaining {
		return FillResult{}, ErrNotEnoughTokensInEscrow
	}
	if req.Amount == 0 {
		return FillResult{}, order.ErrInvalidAmount
	}

	dstAmount, err := auction.TakingAmount(o, req.Amount, now)
	if err != nil {
		return FillResult{}, err
	}
	estimated, err := auction.EstimatedTakingAmount(o, req.Amount)
	if err != nil {
		return FillResult{}, err
	}
	fees, err := fee.Split(dstAmount, estimated, o.Fee)
	if err != nil {
		return FillResult{}, err
	}

	escrow.Remaining -= req.Amount
	escrow.State = PartiallyFilled
	transfers := []ledger.Transfer{
		ledger.AssetTransfer(o.SrcAssetIsNative, p.SrcAsset, escrow.Custody(), taker, req.Amount),
		ledger.AssetTransfer(o.DstAssetIsNative, p.DstAsset, taker, p.Receiver, fees.Maker),
	}
	if fees.Protocol > 0 {
		if p.ProtocolDstAcc == nil {
			return FillResult{}, ErrMissingRecipient
		}
		transfers = append(transfers, ledger.AssetTransfer(o.DstAssetIsNative, p.DstAsset, taker, *p.ProtocolDstAcc, fees.Protocol))
	}
	if fees.Integrator > 0 {
		if p.IntegratorDstAcc == nil {
			return FillResult{}, ErrMissingRecipient
		}
		transfers = append(transfers, ledger.AssetTransfer(o.DstAssetIsNative, p.DstAsset, taker, *p.IntegratorDstAcc, fees.Integrator))
	}
	if escrow.Remaining == 0 {
		escrow.State = Closed
		transfers = append(transfers, ledger.NativeTransfer(escrow.Custody(), escrow.Maker, escrow.Collateral))
	}

	if err := s.ledger.Execute(ctx, s.persist(escrow), transfers...); err != nil {
		return FillResult{}, fmt.Errorf("failed to settle fill: %w", err)
	}

	s.logger.Info("order filled",
		zap.String("escrow", escrow.Address.Hex()),
		zap.String("taker", taker.Hex()),
		zap.Uint64("amount", req.Amount),
		zap.Uint64("dstAmount", dstAmount),
		zap.Uint64("remaining", escrow.Remaining),
		zap.Stringer("state", escrow.State))
	return FillResult{
		Escrow:    escrow,
		RateBump:  auction.RateBump(now, o.Auction),
		DstAmount: dstAmount,
		Fees:      fees,
	}, nil
}

func (s *service) Cancel(ctx context.Context, maker common.Address, identity common.Hash, srcIsNative bool) (Escrow, error) {
	escrow, release, err := s.load(ctx, order.EscrowAddress(maker, identity))
	if err != nil {
		return Escrow{}, err
	}
	defer release()
	if srcIsNative != escrow.Order.SrcAssetIsNative {
		return Escrow{}, order.ErrInconsistentNativeSrcTrait
	}

	o, p := escrow.Order, escrow.Parties
	refunded := escrow.Remaining
	cancelled := escrow
	cancelled.Remaining = 0
	cancelled.State = Cancelled
	if err := s.ledger.Execute(ctx, s.persist(cancelled),
		ledger.AssetTransfer(o.SrcAssetIsNative, p.SrcAsset, escrow.Custody(), escrow.Maker, refunded),
		ledger.NativeTransfer(escrow.Custody(), escrow.Maker, escrow.Collateral),
	); err != nil {
		return Escrow{}, fmt.Errorf("failed to refund maker: %w", err)
	}
	escrow = cancelled

	s.logger.Info("order cancelled",
		zap.String("escrow", escrow.Address.Hex()),
		zap.Uint64("refunded", refunded))
	return escrow, nil
}

func (s *service) CancelByResolver(ctx context.Context, resolver common.Address, req CancelByResolverRequest) (CancelResult, error) {
	if req.Order.Fee.MaxCancellationPremium == 0 {
		return CancelResult{}, ErrCancelOrderByResolverIsForbidden
	}
	now := s.now()
	if !req.Order.Expired(now) {
		return CancelResult{}, ErrOrderNotExpired
	}
	if err := s.checkResolver(ctx, resolver); err != nil {
		return CancelResult{}, err
	}
	identity, err := order.Identity(req.Order, req.Parties)
	if err != nil {
		return CancelResult{}, err
	}
	escrow, release, err := s.load(ctx, order.EscrowAddress(req.Maker, identity))
	if err != nil {
		return CancelResult{}, err
	}
	defer release()

	o, p := escrow.Order, escrow.Parties
	premium := auction.Premium(now, uint64(o.ExpirationTime), o.CancellationAuctionDuration, o.Fee.MaxCancellationPremium)
	reward := min(premium, req.RewardLimit, escrow.Collateral)

	cancelled := escrow
	cancelled.Remaining = 0
	cancelled.State = CancelledByResolver
	if err := s.ledger.Execute(ctx, s.persist(cancelled),
		ledger.AssetTransfer(o.SrcAssetIsNative, p.SrcAsset, escrow.Custody(), escrow.Maker, escrow.Remaining),
		ledger.NativeTransfer(escrow.Custody(), resolver, reward),
		ledger.NativeTransfer(escrow.Custody(), escrow.Maker, escrow.Collateral-reward),
	); err != nil {
		return CancelResult{}, fmt.Errorf("failed to settle cancellation: %w", err)
	}
	escrow = cancelled

	s.logger.Info("order cancelled by resolver",
		zap.String("escrow", escrow.Address.Hex()),
		zap.String("resolver", resolver.Hex()),
		zap.Uint64("premium", premium),
		zap.Uint64("reward", reward))
	return CancelResult{Escrow: escrow, Reward: reward}, nil
}

func (s *service) Escrow(ctx context.Context, address common.Hash) (Escrow, error) {
	return s.store.Escrow(ctx, address)
}

func (s *service) Quote(ctx context.Context, o order.Order, srcFilled uint64) (Quote, error) {
	if o.SrcAmount == 0 {
		return Quote{}, order.ErrInvalidAmount
	}
	now := s.now()
	dstAmount, err := auction.TakingAmount(o, srcFilled, now)
	if err != nil {
		return Quote{}, err
	}
	estimated, err := auction.EstimatedTakingAmount(o, srcFilled)
	if err != nil {
		return Quote{}, err
	}
	bump := auction.RateBump(now, o.Auction)
	return Quote{
		Timestamp:          now,
		RateBump:           bump,
		RateBumpPercent:    auction.Percent(bump),
		DstAmount:          dstAmount,
		EstimatedDstAmount: estimated,
	}, nil
}

// load locks an active escrow. The caller must release it.
func (s *service) load(ctx context.Context, address common.Hash) (Escrow, func(), error) {
	release, err := s.locker.Acquire(ctx, address.Hex())
	if err != nil {
		return Escrow{}, nil, fmt.Errorf("failed to lock escrow: %w", err)
	}
	escrow, err := s.store.Escrow(ctx, address)
	if err != nil {
		release()
		return Escrow{}, nil, err
	}
	if !escrow.State.Active() {
		release()
		return Escrow{}, nil, ErrEscrowClosed
	}
	return escrow, release, nil
}

func (s *service) checkResolver(ctx context.Context, resolver common.Address) error {
	if s.opts.Access == nil {
		return nil
	}
	ok, err := s.opts.Access.IsWhitelisted(ctx, resolver)
	if err != nil {
		return fmt.Errorf("failed to check resolver access: %w", err)
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// persist writes escrow as part of the ledger batch that settles it.
func (s *service) persist(escrow Escrow) ledger.Commit {
	return func(ctx context.Context) error {
		if err := s.store.PutEscrow(ctx, escrow); err != nil {
			s.logger.Error("failed to persist escrow",
				zap.String("escrow", escrow.Address.Hex()),
				zap.Stringer("state", escrow.State),
				zap.Error(err))
			return fmt.Errorf("failed to persist escrow: %w", err)
		}
		return nil
	}
}
