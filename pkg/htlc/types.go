package htlc

import (
	"context"

	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrEscrowNotFound     = fault.New(fault.NotFound, "escrow not found")
	ErrAlreadyInitialized = fault.New(fault.State, "escrow counter already initialized")
	ErrInvalidAmount      = fault.New(fault.Validation, "amount must be positive")
	ErrInvalidDuration    = fault.New(fault.Validation, "duration must be positive")
	ErrUnauthorized       = fault.New(fault.Auth, "caller is not entitled to this escrow")
	ErrAlreadyClaimed     = fault.New(fault.State, "escrow already claimed")
	ErrAlreadyRefunded    = fault.New(fault.State, "escrow already refunded")
	ErrEscrowExpired      = fault.New(fault.State, "escrow expired")
	ErrEscrowNotExpired   = fault.New(fault.State, "escrow not expired")
	ErrInvalidSecret      = fault.New(fault.Validation, "secret does not match the hash lock")
	ErrTimeLockOverflow   = fault.New(fault.Arithmetic, "expiration overflows")
)

// dont change the sequence, states are persisted as numbers
type State uint8

const (
	Unknown State = iota
	Created
	Claimed
	Refunded
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Claimed:
		return "claimed"
	case Refunded:
		return "refunded"
	default:
		return "unknown"
	}
}

// Escrow locks Amount of Token for Beneficiary until TimeLock, after which
// Depositor can take it back.
type Escrow struct {
	ID          uint64         `json:"id"`
	Token       common.Address `json:"token"`
	Amount      uint64         `json:"amount"`
	Depositor   common.Address `json:"depositor"`
	Beneficiary common.Address `json:"beneficiary"`
	HashLock    common.Hash    `json:"hashLock"`
	TimeLock    uint64         `json:"timeLock"`
	State       State          `json:"state"`
	Secret      hexutil.Bytes  `json:"secret,omitempty"`

	// link to the order on the source chain
	SrcChainID uint32        `json:"srcChainId"`
	OrderHash  hexutil.Bytes `json:"orderHash"`
}

func (e Escrow) Claimed() bool {
	return e.State == Claimed
}

// Custody is the ledger account holding the locked amount.
func (e Escrow) Custody() common.Address {
	return CustodyAddress(e.ID)
}

func CustodyAddress(id uint64) common.Address {
	var addr common.Address
	copy(addr[:4], "htlc")
	for i := 0; i < 8; i++ {
		addr[common.AddressLength-1-i] = byte(id >> (8 * i))
	}
	return addr
}

type DepositRequest struct {
	Depositor   common.Address `json:"depositor"`
	Token       common.Address `json:"token"`
	Amount      uint64         `json:"amount"`
	Beneficiary common.Address `json:"beneficiary"`
	HashLock    common.Hash    `json:"hashLock"`
	Duration    uint64         `json:"duration"`
	SrcChainID  uint32         `json:"srcChainId"`
	OrderHash   hexutil.Bytes  `json:"orderHash"`
}

type Store interface {
	// InitCounter returns ErrAlreadyInitialized on the second call.
	InitCounter(ctx context.Context) error

	// Counter returns the last assigned escrow id, 0 before any deposit.
	Counter(ctx context.Context) (uint64, error)

	// CreateEscrow stores a new escrow and advances the counter to its id.
	CreateEscrow(ctx context.Context, escrow Escrow) error

	// HTLC returns ErrEscrowNotFound for unknown ids.
	HTLC(ctx context.Context, id uint64) (Escrow, error)

	PutHTLC(ctx context.Context, escrow Escrow) error
}
