package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/catalogfi/fusion/pkg/fault"
	"github.com/catalogfi/fusion/pkg/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

var KeyGenesis = "ledger:genesis"

var ErrLedgerContention = fault.New(fault.Resource, "ledger busy, try again")

const maxLedgerRetries = 10

var errFunded = errors.New("ledger already funded")

type redisLedger struct {
	client *redis.Client
}

// NewRedisLedger keeps balances next to the redis store. Escrow writes made
// by a batch's commit land in the same MULTI as its balances.
func NewRedisLedger(client *redis.Client) ledger.Issuer {
	return redisLedger{client: client}
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (rl redisLedger) Balance(ctx context.Context, asset, account common.Address) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return balanceOf(ctx, rl.client, ledger.Account{Asset: asset, Owner: account})
}

func (rl redisLedger) Execute(ctx context.Context, commit ledger.Commit, transfers ...ledger.Transfer) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	accounts := ledger.Accounts(transfers...)
	if len(accounts) == 0 {
		if commit == nil {
			return nil
		}
		return commit(ctx)
	}
	return rl.settle(ctx, balanceKeys(accounts), func(tx *redis.Tx) (map[ledger.Account]uint64, error) {
		return ledger.Plan(func(acc ledger.Account) (uint64, error) {
			return balanceOf(ctx, tx, acc)
		}, transfers...)
	}, commit)
}

func (rl redisLedger) Genesis(ctx context.Context, grants ...ledger.Grant) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	accounts := make([]ledger.Account, 0, len(grants))
	for _, g := range grants {
		accounts = append(accounts, ledger.Account{Asset: g.Asset, Owner: g.Account})
	}
	mark := func(ctx context.Context) error {
		pipe, _ := pipeFrom(ctx)
		return pipe.Set(ctx, KeyGenesis, time.Now().Unix(), 0).Err()
	}
	err := rl.settle(ctx, append(balanceKeys(accounts), KeyGenesis), func(tx *redis.Tx) (map[ledger.Account]uint64, error) {
		funded, err := tx.Exists(ctx, KeyGenesis).Result()
		if err != nil {
			return nil, err
		}
		if funded > 0 {
			return nil, errFunded
		}
		return ledger.Mint(func(acc ledger.Account) (uint64, error) {
			return balanceOf(ctx, tx, acc)
		}, grants...)
	}, mark)
	if errors.Is(err, errFunded) {
		return false, nil
	}
	return err == nil, err
}

// settle writes the planned balances and the commit in one MULTI, retrying
// when a watched balance changes underneath.
func (rl redisLedger) settle(ctx context.Context, keys []string, plan func(tx *redis.Tx) (map[ledger.Account]uint64, error), commit ledger.Commit) error {
	for i := 0; i < maxLedgerRetries; i++ {
		err := rl.client.Watch(ctx, func(tx *redis.Tx) error {
			next, err := plan(tx)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for acc, bal := range next {
					pipe.Set(ctx, balanceKey(acc), strconv.FormatUint(bal, 10), 0)
				}
				if commit != nil {
					return commit(withPipe(ctx, pipe))
				}
				return nil
			})
			return err
		}, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return ErrLedgerContention
}

func balanceOf(ctx context.Context, c getter, acc ledger.Account) (uint64, error) {
	bal, err := c.Get(ctx, balanceKey(acc)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return bal, err
}

func balanceKeys(accounts []ledger.Account) []string {
	keys := make([]string, len(accounts))
	for i, acc := range accounts {
		keys[i] = balanceKey(acc)
	}
	return keys
}

func balanceKey(acc ledger.Account) string {
	return fmt.Sprintf("ledger:balance:%v:%v", acc.Asset.Hex(), acc.Owner.Hex())
}
