package fusion

import (
	"context"

	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/catalogfi/fusion/pkg/fee"
	"github.com/catalogfi/fusion/pkg/order"
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var (
	ErrEscrowNotFound                   = fault.New(fault.NotFound, "escrow not found")
	ErrEscrowExists                     = fault.New(fault.State, "escrow already exists")
	ErrEscrowClosed                     = fault.New(fault.State, "escrow is no longer active")
	ErrIdentityMismatch                 = fault.New(fault.Validation, "order does not match the escrow identity")
	ErrNotEnoughTokensInEscrow          = fault.New(fault.Resource, "not enough tokens in escrow")
	ErrOrderNotExpired                  = fault.New(fault.State, "order not expired")
	ErrCancelOrderByResolverIsForbidden = fault.New(fault.Auth, "order does not allow cancellation by resolver")
	ErrUnauthorized                     = fault.New(fault.Auth, "resolver is not whitelisted")
	ErrMissingRecipient                 = fault.New(fault.Validation, "fee recipient missing")
)

// dont change the sequence, states are persisted as numbers
type State uint8

const (
	Unknown State = iota
	Created
	PartiallyFilled
	Closed
	Cancelled
	CancelledByResolver
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case PartiallyFilled:
		return "partially_filled"
	case Closed:
		return "closed"
	case Cancelled:
		return "cancelled"
	case CancelledByResolver:
		return "cancelled_by_resolver"
	default:
		return "unknown"
	}
}

// Active escrows still hold the maker's funds.
func (s State) Active() bool {
	return s == Created || s == PartiallyFilled
}

// Escrow is the maker's custody of an order's source funds.
type Escrow struct {
	Address    common.Hash    `json:"address"`
	Identity   common.Hash    `json:"identity"`
	Maker      common.Address `json:"maker"`
	Order      order.Order    `json:"order"`
	Parties    order.Parties  `json:"parties"`
	Remaining  uint64         `json:"remaining"`
	Collateral uint64         `json:"collateral"`
	State      State          `json:"state"`
}

// Custody is the ledger account holding the escrowed funds.
func (e Escrow) Custody() common.Address {
	return common.BytesToAddress(e.Address.Bytes())
}

type CreateRequest struct {
	Order      order.Order   `json:"order"`
	Parties    order.Parties `json:"parties"`
	Collateral uint64        `json:"collateral"`
}

type FillRequest struct {
	Maker    common.Address `json:"maker"`
	Order    order.Order    `json:"order"`
	Parties  order.Parties  `json:"parties"`
	Identity common.Hash    `json:"identity"`
	Amount   uint64         `json:"amount"`
}

type FillResult struct {
	Escrow    Escrow      `json:"escrow"`
	RateBump  uint64      `json:"rateBump"`
	DstAmount uint64      `json:"dstAmount"`
	Fees      fee.Amounts `json:"fees"`
}

type CancelByResolverRequest struct {
	Maker       common.Address `json:"maker"`
	Order       order.Order    `json:"order"`
	Parties     order.Parties  `json:"parties"`
	RewardLimit uint64         `json:"rewardLimit"`
}

type CancelResult struct {
	Escrow Escrow `json:"escrow"`
	Reward uint64 `json:"reward"`
}

type Quote struct {
	Timestamp          uint64          `json:"timestamp"`
	RateBump           uint64          `json:"rateBump"`
	RateBumpPercent    decimal.Decimal `json:"rateBumpPercent"`
	DstAmount          uint64          `json:"dstAmount"`
	EstimatedDstAmount uint64          `json:"estimatedDstAmount"`
}

type Store interface {
	// Escrow returns ErrEscrowNotFound when nothing was created at address.
	Escrow(ctx context.Context, address common.Hash) (Escrow, error)

	PutEscrow(ctx context.Context, escrow Escrow) error
}

// Access decides which resolvers may fill and clean up orders.
type Access interface {
	IsWhitelisted(ctx context.Context, resolver common.Address) (bool, error)
}
