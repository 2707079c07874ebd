package store

import (
	"context"
	"strconv"
	"time"

	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const genesisKey = "genesis"

type Balance struct {
	Asset     string `gorm:"primaryKey"`
	Account   string `gorm:"primaryKey"`
	Amount    uint64
	UpdatedAt time.Time
}

type gormLedger struct {
	db *gorm.DB
}

// NewGormLedger keeps balances in the same database as the gorm store. A
// batch and its commit share one transaction.
func NewGormLedger(db *gorm.DB) (ledger.Issuer, error) {
	if err := db.AutoMigrate(&Balance{}, &Setting{}); err != nil {
		return nil, err
	}
	return &gormLedger{db: db}, nil
}

func (gl *gormLedger) Balance(ctx context.Context, asset, account common.Address) (uint64, error) {
	return balanceIn(gl.db.WithContext(ctx), ledger.Account{Asset: asset, Owner: account})
}

func (gl *gormLedger) Execute(ctx context.Context, commit ledger.Commit, transfers ...ledger.Transfer) error {
	return gl.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next, err := ledger.Plan(func(acc ledger.Account) (uint64, error) {
			return balanceIn(tx, acc)
		}, transfers...)
		if err != nil {
			return err
		}
		if err := putBalances(tx, next); err != nil {
			return err
		}
		if commit != nil {
			return commit(withTx(ctx, tx))
		}
		return nil
	})
}

func (gl *gormLedger) Genesis(ctx context.Context, grants ...ledger.Grant) (bool, error) {
	funded := false
	err := gl.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var settings []Setting
		if err := tx.Where("name = ?", genesisKey).Limit(1).Find(&settings).Error; err != nil {
			return err
		}
		if len(settings) > 0 {
			return nil
		}
		next, err := ledger.Mint(func(acc ledger.Account) (uint64, error) {
			return balanceIn(tx, acc)
		}, grants...)
		if err != nil {
			return err
		}
		if err := putBalances(tx, next); err != nil {
			return err
		}
		funded = true
		return tx.Create(&Setting{Name: genesisKey, Value: strconv.FormatInt(time.Now().Unix(), 10)}).Error
	})
	return funded && err == nil, err
}

func balanceIn(db *gorm.DB, acc ledger.Account) (uint64, error) {
	var rows []Balance
	if err := db.Where("asset = ? AND account = ?", acc.Asset.Hex(), acc.Owner.Hex()).Limit(1).Find(&rows).Error; err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Amount, nil
}

func putBalances(tx *gorm.DB, balances map[ledger.Account]uint64) error {
	for acc, amount := range balances {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "asset"}, {Name: "account"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).Create(&Balance{Asset: acc.Asset.Hex(), Account: acc.Owner.Hex(), Amount: amount}).Error
		if err != nil {
			return err
		}
	}
	return nil
}
