package whitelist

import (
	"context"
	"errors"
	"fmt"

	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	ErrUnauthorized    = fault.New(fault.Auth, "unauthorized")
	ErrNoAuthority     = fault.New(fault.NotFound, "whitelist authority not set")
	ErrInvalidResolver = fault.New(fault.Validation, "invalid resolver address")
)

type Store interface {
	// Authority returns ErrNoAuthority before the first PutAuthority.
	Authority(ctx context.Context) (common.Address, error)
	PutAuthority(ctx context.Context, authority common.Address) error

	PutResolver(ctx context.Context, resolver common.Address) error
	DeleteResolver(ctx context.Context, resolver common.Address) error
	IsResolver(ctx context.Context, resolver common.Address) (bool, error)
}

// Registry tracks the resolvers allowed to fill and clean up orders. Only the
// authority can change it.
type Registry interface {
	Register(ctx context.Context, caller, resolver common.Address) error
	Deregister(ctx context.Context, caller, resolver common.Address) error
	SetAuthority(ctx context.Context, caller, authority common.Address) error
	Authority(ctx context.Context) (common.Address, error)
	IsWhitelisted(ctx context.Context, resolver common.Address) (bool, error)
}

type registry struct {
	store  Store
	logger *zap.Logger
}

// New returns a registry, installing authority if the store has none yet.
func New(ctx context.Context, store Store, authority common.Address, logger *zap.Logger) (Registry, error) {
	_, err := store.Authority(ctx)
	if errors.Is(err, ErrNoAuthority) {
		if err := store.PutAuthority(ctx, authority); err != nil {
			return nil, fmt.Errorf("failed to set authority: %w", err)
		}
	} else if err != nil {
		return nil, err
	}
	return &registry{store: store, logger: logger.With(zap.String("service", "whitelist"))}, nil
}

func (r *registry) Register(ctx context.Context, caller, resolver common.Address) error {
	if err := r.authorize(ctx, caller); err != nil {
		return err
	}
	if resolver == (common.Address{}) {
		return ErrInvalidResolver
	}
	if err := r.store.PutResolver(ctx, resolver); err != nil {
		return err
	}
	r.logger.Info("resolver registered", zap.String("resolver", resolver.Hex()))
	return nil
}

func (r *registry) Deregister(ctx context.Context, caller, resolver common.Address) error {
	if err := r.authorize(ctx, caller); err != nil {
		return err
	}
	if err := r.store.DeleteResolver(ctx, resolver); err != nil {
		return err
	}
	r.logger.Info("resolver deregistered", zap.String("resolver", resolver.Hex()))
	return nil
}

func (r *registry) SetAuthority(ctx context.Context, caller, authority common.Address) error {
	if err := r.authorize(ctx, caller); err != nil {
		return err
	}
	if err := r.store.PutAuthority(ctx, authority); err != nil {
		return err
	}
	r.logger.Info("authority changed", zap.String("authority", authority.Hex()))
	return nil
}

func (r *registry) Authority(ctx context.Context) (common.Address, error) {
	return r.store.Authority(ctx)
}

func (r *registry) IsWhitelisted(ctx context.Context, resolver common.Address) (bool, error) {
	return r.store.IsResolver(ctx, resolver)
}

func (r *registry) authorize(ctx context.Context, caller common.Address) error {
	authority, err := r.store.Authority(ctx)
	if err != nil {
		return err
	}
	if caller != authority {
		return ErrUnauthorized
	}
	return nil
}
