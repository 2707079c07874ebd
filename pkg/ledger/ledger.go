package ledger

import (
	"context"
	"fmt"
	"math"

	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/ethereum/go-ethereum/common"
)

// NativeAsset identifies the chain's native currency.
var NativeAsset = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

var (
	ErrInsufficientFunds = fault.New(fault.Resource, "insufficient funds")
	ErrBalanceOverflow   = fault.New(fault.Arithmetic, "balance overflow")
)

type Kind uint8

const (
	Native Kind = iota + 1
	Token
)

func (k Kind) String() string {
	switch k {
	case Native:
		return "native"
	case Token:
		return "token"
	default:
		return "unknown"
	}
}

// Transfer moves Amount of an asset between two accounts. Asset is ignored
// for native transfers.
type Transfer struct {
	Kind   Kind           `json:"kind"`
	Asset  common.Address `json:"asset"`
	From   common.Address `json:"from"`
	To     common.Address `json:"to"`
	Amount uint64         `json:"amount"`
}

func NativeTransfer(from, to common.Address, amount uint64) Transfer {
	return Transfer{Kind: Native, Asset: NativeAsset, From: from, To: to, Amount: amount}
}

func TokenTransfer(asset, from, to common.Address, amount uint64) Transfer {
	return Transfer{Kind: Token, Asset: asset, From: from, To: to, Amount: amount}
}

// AssetTransfer picks the variant from the order's nativity flag.
func AssetTransfer(native bool, asset, from, to common.Address, amount uint64) Transfer {
	if native {
		return NativeTransfer(from, to, amount)
	}
	return TokenTransfer(asset, from, to, amount)
}

// AssetOf returns the balance key of the transfer's asset.
func (t Transfer) AssetOf() common.Address {
	if t.Kind == Native {
		return NativeAsset
	}
	return t.Asset
}

func (t Transfer) String() string {
	return fmt.Sprintf("%v %v %d %v->%v", t.Kind, t.AssetOf().Hex(), t.Amount, t.From.Hex(), t.To.Hex())
}

// Commit records the state change that goes with a batch of transfers. It
// runs inside the batch, when it fails no transfer is applied.
type Commit func(ctx context.Context) error

// Ledger executes value transfers.
type Ledger interface {
	// Execute applies every transfer in order together with commit, or
	// nothing. commit may be nil.
	Execute(ctx context.Context, commit Commit, transfers ...Transfer) error

	// Balance returns the amount of asset held by account.
	Balance(ctx context.Context, asset, account common.Address) (uint64, error)
}

// Grant mints Amount of Asset to Account.
type Grant struct {
	Asset   common.Address `json:"asset"`
	Account common.Address `json:"account"`
	Amount  uint64         `json:"amount"`
}

// Issuer is a ledger that can be funded.
type Issuer interface {
	Ledger

	// Genesis credits grants the first time a ledger is funded and reports
	// false on every later call.
	Genesis(ctx context.Context, grants ...Grant) (bool, error)
}

// Account is a balance slot.
type Account struct {
	Asset common.Address
	Owner common.Address
}

// Accounts lists the balances touched by transfers, each once.
func Accounts(transfers ...Transfer) []Account {
	seen := map[Account]struct{}{}
	accounts := make([]Account, 0, 2*len(transfers))
	for _, t := range transfers {
		if t.Amount == 0 {
			continue
		}
		for _, acc := range []Account{{t.AssetOf(), t.From}, {t.AssetOf(), t.To}} {
			if _, ok := seen[acc]; !ok {
				seen[acc] = struct{}{}
				accounts = append(accounts, acc)
			}
		}
	}
	return accounts
}

// Plan computes the balances left by applying transfers in order on top of
// balance. Only touched accounts are returned.
func Plan(balance func(Account) (uint64, error), transfers ...Transfer) (map[Account]uint64, error) {
	next := map[Account]uint64{}
	get := func(acc Account) (uint64, error) {
		if v, ok := next[acc]; ok {
			return v, nil
		}
		return balance(acc)
	}
	for i, t := range transfers {
		if t.Amount == 0 {
			continue
		}
		from, to := Account{t.AssetOf(), t.From}, Account{t.AssetOf(), t.To}
		fromBal, err := get(from)
		if err != nil {
			return nil, err
		}
		if fromBal < t.Amount {
			return nil, fmt.Errorf("transfer %d (%v): %w", i, t, ErrInsufficientFunds)
		}
		next[from] = fromBal - t.Amount
		toBal, err := get(to)
		if err != nil {
			return nil, err
		}
		if toBal > math.MaxUint64-t.Amount {
			return nil, fmt.Errorf("transfer %d (%v): %w", i, t, ErrBalanceOverflow)
		}
		next[to] = toBal + t.Amount
	}
	return next, nil
}

// Mint turns grants into credits on top of balance.
func Mint(balance func(Account) (uint64, error), grants ...Grant) (map[Account]uint64, error) {
	next := map[Account]uint64{}
	for _, g := range grants {
		acc := Account{g.Asset, g.Account}
		bal, ok := next[acc]
		if !ok {
			var err error
			if bal, err = balance(acc); err != nil {
				return nil, err
			}
		}
		if bal > math.MaxUint64-g.Amount {
			return nil, ErrBalanceOverflow
		}
		next[acc] = bal + g.Amount
	}
	return next, nil
}
