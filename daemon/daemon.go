package daemon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/catalogfi/fusion/daemon/types"
	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/catalogfi/fusion/pkg/lock"
	"github.com/catalogfi/fusion/pkg/store"
	"github.com/catalogfi/fusion/pkg/whitelist"
	"github.com/catalogfi/fusion/utils"
	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const lockTTL = 30 * time.Second

// Build wires the services described by config.
func Build(ctx context.Context, config utils.Config, log *zap.Logger) (types.CoreConfig, error) {
	if !common.IsHexAddress(config.Authority) {
		return types.CoreConfig{}, fmt.Errorf("invalid whitelist authority %q", config.Authority)
	}

	grants := make([]ledger.Grant, 0, len(config.Genesis))
	for _, grant := range config.Genesis {
		if !common.IsHexAddress(grant.Asset) || !common.IsHexAddress(grant.Account) {
			return types.CoreConfig{}, fmt.Errorf("invalid genesis grant %v", grant)
		}
		grants = append(grants, ledger.Grant{
			Asset:   common.HexToAddress(grant.Asset),
			Account: common.HexToAddress(grant.Account),
			Amount:  grant.Amount,
		})
	}

	str, l, locker, err := LoadStore(config)
	if err != nil {
		return types.CoreConfig{}, fmt.Errorf("could not load store: %w", err)
	}
	funded, err := l.Genesis(ctx, grants...)
	if err != nil {
		return types.CoreConfig{}, fmt.Errorf("could not fund ledger: %w", err)
	}
	if funded {
		log.Info("ledger funded", zap.Int("grants", len(grants)))
	}

	registry, err := whitelist.New(ctx, str, common.HexToAddress(config.Authority), log)
	if err != nil {
		return types.CoreConfig{}, fmt.Errorf("could not load whitelist: %w", err)
	}
	opts := fusion.DefaultOptions()
	if !config.OpenAccess {
		opts = opts.WithAccess(registry)
	}

	htlcService := htlc.New(str, l, locker, log, htlc.DefaultOptions())
	if err := htlcService.Initialize(ctx); err != nil && !errors.Is(err, htlc.ErrAlreadyInitialized) {
		return types.CoreConfig{}, fmt.Errorf("could not initialize escrow counter: %w", err)
	}

	return types.CoreConfig{
		Fusion:    fusion.New(str, l, locker, log, opts),
		HTLC:      htlcService,
		Whitelist: registry,
		Ledger:    l,
		Logger:    log,
	}, nil
}

// LoadStore opens the configured backend. Balances live in the same backend
// as the escrows, so a ledger batch and its escrow write commit together.
// Redis also serves the locks so several daemons can share it.
func LoadStore(config utils.Config) (store.Store, ledger.Issuer, lock.Locker, error) {
	switch config.Store {
	case "", utils.StoreMemory:
		return store.NewMemStore(), ledger.NewMemLedger(), lock.NewLocalLocker(), nil
	case utils.StoreRedis:
		client, err := store.NewRedisClient(config.RedisURL)
		if err != nil {
			return nil, nil, nil, err
		}
		return store.NewRedisStore(client), store.NewRedisLedger(client), lock.NewRedisLocker(client, lockTTL), nil
	case utils.StoreSqlite:
		path := config.DB
		if path == "" {
			path = utils.DefaultStorePath()
		}
		db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
			NowFunc: func() time.Time { return time.Now().UTC() },
			Logger:  logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, nil, nil, err
		}
		str, err := store.NewGormStore(db)
		if err != nil {
			return nil, nil, nil, err
		}
		l, err := store.NewGormLedger(db)
		if err != nil {
			return nil, nil, nil, err
		}
		// sqlite takes one writer at a time
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return str, l, lock.NewLocalLocker(), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", config.Store)
	}
}
