package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/whitelist"
	"github.com/ethereum/go-ethereum/common"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderEscrow struct {
	Address   string `gorm:"primaryKey"`
	Maker     string `gorm:"index"`
	State     fusion.State
	Data      []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

type HTLCEscrow struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement:false"`
	Beneficiary string `gorm:"index"`
	State       htlc.State
	Data        []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Counter struct {
	Name  string `gorm:"primaryKey"`
	Value uint64
}

type Setting struct {
	Name  string `gorm:"primaryKey"`
	Value string
}

type Resolver struct {
	Address   string `gorm:"primaryKey"`
	CreatedAt time.Time
}

const (
	htlcCounter  = "htlc"
	authorityKey = "authority"
)

type gormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) (Store, error) {
	if err := db.AutoMigrate(&OrderEscrow{}, &HTLCEscrow{}, &Counter{}, &Setting{}, &Resolver{}); err != nil {
		return nil, err
	}

	// Set max connections
	sqlDb, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDb.SetMaxIdleConns(5)
	sqlDb.SetMaxOpenConns(5)
	sqlDb.SetConnMaxIdleTime(10 * time.Minute)
	return &gormStore{db: db}, nil
}

// conn joins the ledger transaction carried by ctx, if any.
func (s *gormStore) conn(ctx context.Context) *gorm.DB {
	if tx, ok := txFrom(ctx); ok {
		return tx
	}
	return s.db.WithContext(ctx)
}

func (s *gormStore) Escrow(ctx context.Context, address common.Hash) (fusion.Escrow, error) {
	var row OrderEscrow
	if err := s.conn(ctx).Where("address = ?", address.Hex()).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fusion.Escrow{}, fusion.ErrEscrowNotFound
		}
		return fusion.Escrow{}, err
	}
	var escrow fusion.Escrow
	if err := json.Unmarshal(row.Data, &escrow); err != nil {
		return fusion.Escrow{}, err
	}
	return escrow, nil
}

func (s *gormStore) PutEscrow(ctx context.Context, escrow fusion.Escrow) error {
	data, err := json.Marshal(escrow)
	if err != nil {
		return err
	}
	row := OrderEscrow{
		Address: escrow.Address.Hex(),
		Maker:   escrow.Maker.Hex(),
		State:   escrow.State,
		Data:    data,
	}
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "data", "updated_at"}),
	}).Create(&row).Error
}

func (s *gormStore) InitCounter(ctx context.Context) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var counter Counter
		err := tx.Where("name = ?", htlcCounter).First(&counter).Error
		if err == nil {
			return htlc.ErrAlreadyInitialized
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&Counter{Name: htlcCounter}).Error
	})
}

func (s *gormStore) Counter(ctx context.Context) (uint64, error) {
	var counter Counter
	if err := s.conn(ctx).Where("name = ?", htlcCounter).First(&counter).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return counter.Value, nil
}

func (s *gormStore) CreateEscrow(ctx context.Context, escrow htlc.Escrow) error {
	data, err := json.Marshal(escrow)
	if err != nil {
		return err
	}
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		row := HTLCEscrow{
			ID:          escrow.ID,
			Beneficiary: escrow.Beneficiary.Hex(),
			State:       escrow.State,
			Data:        data,
		}
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"value"}),
		}).Create(&Counter{Name: htlcCounter, Value: escrow.ID}).Error
	})
}

func (s *gormStore) HTLC(ctx context.Context, id uint64) (htlc.Escrow, error) {
	var row HTLCEscrow
	if err := s.conn(ctx).Where("id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return htlc.Escrow{}, htlc.ErrEscrowNotFound
		}
		return htlc.Escrow{}, err
	}
	var escrow htlc.Escrow
	if err := json.Unmarshal(row.Data, &escrow); err != nil {
		return htlc.Escrow{}, err
	}
	return escrow, nil
}

func (s *gormStore) PutHTLC(ctx context.Context, escrow htlc.Escrow) error {
	data, err := json.Marshal(escrow)
	if err != nil {
		return err
	}
	return s.conn(ctx).Model(&HTLCEscrow{}).
		Where("id = ?", escrow.ID).
		Updates(map[string]interface{}{"state": escrow.State, "data": data}).Error
}

func (s *gormStore) Authority(ctx context.Context) (common.Address, error) {
	var setting Setting
	if err := s.conn(ctx).Where("name = ?", authorityKey).First(&setting).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return common.Address{}, whitelist.ErrNoAuthority
		}
		return common.Address{}, err
	}
	return common.HexToAddress(setting.Value), nil
}

func (s *gormStore) PutAuthority(ctx context.Context, authority common.Address) error {
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value"}),
	}).Create(&Setting{Name: authorityKey, Value: authority.Hex()}).Error
}

func (s *gormStore) PutResolver(ctx context.Context, resolver common.Address) error {
	return s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Resolver{Address: resolver.Hex()}).Error
}

func (s *gormStore) DeleteResolver(ctx context.Context, resolver common.Address) error {
	return s.conn(ctx).Where("address = ?", resolver.Hex()).Delete(&Resolver{}).Error
}

func (s *gormStore) IsResolver(ctx context.Context, resolver common.Address) (bool, error) {
	var count int64
	if err := s.conn(ctx).Model(&Resolver{}).Where("address = ?", resolver.Hex()).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
