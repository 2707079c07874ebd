package store

import (
	"context"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type (
	pipeKey struct{}
	txKey   struct{}
)

// withPipe queues redis writes made under ctx on pipe.
func withPipe(ctx context.Context, pipe redis.Pipeliner) context.Context {
	return context.WithValue(ctx, pipeKey{}, pipe)
}

func pipeFrom(ctx context.Context) (redis.Pipeliner, bool) {
	pipe, ok := ctx.Value(pipeKey{}).(redis.Pipeliner)
	return pipe, ok
}

// withTx runs gorm queries made under ctx inside tx.
func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFrom(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok
}
