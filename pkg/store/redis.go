package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/catalogfi/fusion/pkg/fusion"
	"github.com/catalogfi/fusion/pkg/htlc"
	"github.com/catalogfi/fusion/pkg/whitelist"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
)

var (
	KeyCounter   = "htlc:counter"
	KeyAuthority = "whitelist:authority"
	KeyResolvers = "whitelist:resolvers"
)

type redisStore struct {
	client *redis.Client
}

// NewRedisClient connects to redis://[:password@]host:port.
func NewRedisClient(redisURL string) (*redis.Client, error) {
	parsedURL, err := url.Parse(redisURL)
	if err != nil {
		return nil, err
	}
	redisPassword, _ := parsedURL.User.Password()
	client := redis.NewClient(&redis.Options{
		Addr:     parsedURL.Host,
		Password: redisPassword,
		DB:       0, // Use default DB.
	})
	return client, nil
}

func NewRedisStore(client *redis.Client) Store {
	return redisStore{client: client}
}

func (rs redisStore) Escrow(ctx context.Context, address common.Hash) (fusion.Escrow, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var escrow fusion.Escrow
	if err := rs.get(ctx, orderKey(address), &escrow); err != nil {
		if errors.Is(err, redis.Nil) {
			return fusion.Escrow{}, fusion.ErrEscrowNotFound
		}
		return fusion.Escrow{}, err
	}
	return escrow, nil
}

func (rs redisStore) PutEscrow(ctx context.Context, escrow fusion.Escrow) error {
	data, err := json.Marshal(escrow)
	if err != nil {
		return err
	}
	return rs.set(ctx, orderKey(escrow.Address), data)
}

func (rs redisStore) InitCounter(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	ok, err := rs.client.SetNX(ctx, KeyCounter, 0, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return htlc.ErrAlreadyInitialized
	}
	return nil
}

func (rs redisStore) Counter(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	counter, err := rs.client.Get(ctx, KeyCounter).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return counter, err
}

func (rs redisStore) CreateEscrow(ctx context.Context, escrow htlc.Escrow) error {
	data, err := json.Marshal(escrow)
	if err != nil {
		return err
	}
	write := func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, htlcKey(escrow.ID), data, 0)
		pipe.Set(ctx, KeyCounter, strconv.FormatUint(escrow.ID, 10), 0)
		return nil
	}
	if pipe, ok := pipeFrom(ctx); ok {
		return write(pipe)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err = rs.client.TxPipelined(ctx, write)
	return err
}

func (rs redisStore) HTLC(ctx context.Context, id uint64) (htlc.Escrow, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var escrow htlc.Escrow
	if err := rs.get(ctx, htlcKey(id), &escrow); err != nil {
		if errors.Is(err, redis.Nil) {
			return htlc.Escrow{}, htlc.ErrEscrowNotFound
		}
		return htlc.Escrow{}, err
	}
	return escrow, nil
}

func (rs redisStore) PutHTLC(ctx context.Context, escrow htlc.Escrow) error {
	data, err := json.Marshal(escrow)
	if err != nil {
		return err
	}
	return rs.set(ctx, htlcKey(escrow.ID), data)
}

func (rs redisStore) Authority(ctx context.Context) (common.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	authority, err := rs.client.Get(ctx, KeyAuthority).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return common.Address{}, whitelist.ErrNoAuthority
		}
		return common.Address{}, err
	}
	return common.HexToAddress(authority), nil
}

func (rs redisStore) PutAuthority(ctx context.Context, authority common.Address) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rs.client.Set(ctx, KeyAuthority, authority.Hex(), 0).Err()
}

func (rs redisStore) PutResolver(ctx context.Context, resolver common.Address) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rs.client.SAdd(ctx, KeyResolvers, resolver.Hex()).Err()
}

func (rs redisStore) DeleteResolver(ctx context.Context, resolver common.Address) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rs.client.SRem(ctx, KeyResolvers, resolver.Hex()).Err()
}

func (rs redisStore) IsResolver(ctx context.Context, resolver common.Address) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rs.client.SIsMember(ctx, KeyResolvers, resolver.Hex()).Result()
}

// set joins the ledger batch carried by ctx, if any.
func (rs redisStore) set(ctx context.Context, key string, value interface{}) error {
	if pipe, ok := pipeFrom(ctx); ok {
		return pipe.Set(ctx, key, value, 0).Err()
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return rs.client.Set(ctx, key, value, 0).Err()
}

func (rs redisStore) get(ctx context.Context, key string, v interface{}) error {
	data, err := rs.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

func orderKey(address common.Hash) string {
	return fmt.Sprintf("fusion:escrow:%v", address.Hex())
}

func htlcKey(id uint64) string {
	return fmt.Sprintf("htlc:escrow:%d", id)
}
