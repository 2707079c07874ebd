package ledger

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemLedger keeps balances in process memory.
type MemLedger struct {
	mu       sync.RWMutex
	balances map[Account]uint64
	funded   bool
}

func NewMemLedger() *MemLedger {
	return &MemLedger{balances: map[Account]uint64{}}
}

// Credit mints amount of asset to account.
func (l *MemLedger) Credit(asset, account common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mint(Grant{Asset: asset, Account: account, Amount: amount})
}

func (l *MemLedger) Genesis(ctx context.Context, grants ...Grant) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.funded {
		return false, nil
	}
	if err := l.mint(grants...); err != nil {
		return false, err
	}
	l.funded = true
	return true, nil
}

func (l *MemLedger) Balance(ctx context.Context, asset, account common.Address) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[Account{asset, account}], nil
}

func (l *MemLedger) Execute(ctx context.Context, commit Commit, transfers ...Transfer) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := Plan(l.balance, transfers...)
	if err != nil {
		return err
	}
	if commit != nil {
		if err := commit(ctx); err != nil {
			return err
		}
	}
	for acc, v := range next {
		l.balances[acc] = v
	}
	return nil
}

func (l *MemLedger) mint(grants ...Grant) error {
	next, err := Mint(l.balance, grants...)
	if err != nil {
		return err
	}
	for acc, v := range next {
		l.balances[acc] = v
	}
	return nil
}

func (l *MemLedger) balance(acc Account) (uint64, error) {
	return l.balances[acc], nil
}
