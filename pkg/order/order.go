package order

import (
	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
)

const (
	Base1e2 = 100
	Base1e3 = 1000
	Base1e5 = 100000
)

var (
	ErrInvalidAmount                   = fault.New(fault.Validation, "invalid amount")
	ErrInconsistentNativeSrcTrait      = fault.New(fault.Validation, "native src flag does not match the src asset")
	ErrInconsistentNativeDstTrait      = fault.New(fault.Validation, "native dst flag does not match the dst asset")
	ErrOrderExpired                    = fault.New(fault.Validation, "order expired")
	ErrInvalidProtocolSurplusFee       = fault.New(fault.Validation, "surplus percentage above 100")
	ErrInvalidEstimatedTakingAmount    = fault.New(fault.Validation, "estimated dst amount below min dst amount")
	ErrInconsistentProtocolFeeConfig   = fault.New(fault.Validation, "protocol fee config and recipient mismatch")
	ErrInconsistentIntegratorFeeConfig = fault.New(fault.Validation, "integrator fee config and recipient mismatch")
	ErrInvalidCancellationFee          = fault.New(fault.Resource, "collateral does not cover the max cancellation premium")
	ErrInvalidAuctionCurve             = fault.New(fault.Validation, "auction checkpoint with zero time delta")
)

// Order holds the immutable terms a maker commits to. The field order is
// part of the identity encoding and must not change.
type Order struct {
	_ struct{} `cbor:",toarray"`

	ID                          uint32       `json:"id"`
	SrcAmount                   uint64       `json:"srcAmount"`
	MinDstAmount                uint64       `json:"minDstAmount"`
	EstimatedDstAmount          uint64       `json:"estimatedDstAmount"`
	ExpirationTime              uint32       `json:"expirationTime"`
	SrcAssetIsNative            bool         `json:"srcAssetIsNative"`
	DstAssetIsNative            bool         `json:"dstAssetIsNative"`
	Fee                         FeeConfig    `json:"fee"`
	Auction                     AuctionCurve `json:"auction"`
	CancellationAuctionDuration uint32       `json:"cancellationAuctionDuration"`
}

// FeeConfig fees are in 1e5 units, the surplus share in percent.
type FeeConfig struct {
	_ struct{} `cbor:",toarray"`

	ProtocolFee            uint16 `json:"protocolFee"`
	IntegratorFee          uint16 `json:"integratorFee"`
	SurplusPercentage      uint8  `json:"surplusPercentage"`
	MaxCancellationPremium uint64 `json:"maxCancellationPremium"`
}

// AuctionCurve describes a piecewise-linear rate bump, in 1e5 units,
// decaying from InitialRateBump at StartTime to 0 at StartTime+Duration.
type AuctionCurve struct {
	_ struct{} `cbor:",toarray"`

	StartTime       uint32  `json:"startTime"`
	Duration        uint32  `json:"duration"`
	InitialRateBump uint16  `json:"initialRateBump"`
	Points          []Point `json:"points"`
}

// Point is reached TimeDelta seconds after the previous point.
type Point struct {
	_ struct{} `cbor:",toarray"`

	RateBump  uint16 `json:"rateBump"`
	TimeDelta uint16 `json:"timeDelta"`
}

// Parties are the identities an order is bound to besides its terms.
type Parties struct {
	_ struct{} `cbor:",toarray"`

	ProtocolDstAcc   *common.Address `json:"protocolDstAcc,omitempty"`
	IntegratorDstAcc *common.Address `json:"integratorDstAcc,omitempty"`
	SrcAsset         common.Address  `json:"srcAsset"`
	DstAsset         common.Address  `json:"dstAsset"`
	Receiver         common.Address  `json:"receiver"`
}

// Validate checks the terms of an order about to be created at now, funded
// with the given native collateral.
func (o Order) Validate(p Parties, now uint64, collateral uint64) error {
	if o.SrcAmount == 0 || o.MinDstAmount == 0 {
		return ErrInvalidAmount
	}
	if o.SrcAssetIsNative && p.SrcAsset != ledger.NativeAsset {
		return ErrInconsistentNativeSrcTrait
	}
	if o.DstAssetIsNative && p.DstAsset != ledger.NativeAsset {
		return ErrInconsistentNativeDstTrait
	}
	if now >= uint64(o.ExpirationTime) {
		return ErrOrderExpired
	}
	if o.Fee.SurplusPercentage > Base1e2 {
		return ErrInvalidProtocolSurplusFee
	}
	if o.EstimatedDstAmount < o.MinDstAmount {
		return ErrInvalidEstimatedTakingAmount
	}
	if (o.Fee.ProtocolFee > 0 || o.Fee.SurplusPercentage > 0) != (p.ProtocolDstAcc != nil) {
		return ErrInconsistentProtocolFeeConfig
	}
	if (o.Fee.IntegratorFee > 0) != (p.IntegratorDstAcc != nil) {
		return ErrInconsistentIntegratorFeeConfig
	}
	if collateral < o.Fee.MaxCancellationPremium {
		return ErrInvalidCancellationFee
	}
	for _, pt := range o.Auction.Points {
		if pt.TimeDelta == 0 {
			return ErrInvalidAuctionCurve
		}
	}
	return nil
}

// Expired reports whether the order can no longer be filled at now.
func (o Order) Expired(now uint64) bool {
	return now >= uint64(o.ExpirationTime)
}
