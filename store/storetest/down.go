package storetest

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/perk/store"
)

// errDown is the cause carried by every Down error.
var errDown = errors.New("connection refused")

// Down is a store.Store whose every operation fails as unavailable.
type Down struct{}

var _ store.Store = Down{}

func down(op string) error { return store.Unavailable(op, errDown) }

func (Down) Get(context.Context, string) (string, error) { return "", down("get") }

func (Down) Set(context.Context, string, string, time.Duration) error { return down("set") }

func (Down) SetNX(context.Context, string, string, time.Duration) (bool, error) {
	return false, down("setnx")
}

func (Down) Del(context.Context, ...string) (int64, error) { return 0, down("del") }

func (Down) IncrBy(context.Context, string, int64) (int64, error) { return 0, down("incrby") }

func (Down) Expire(context.Context, string, time.Duration) (bool, error) {
	return false, down("expire")
}

func (Down) TTL(context.Context, string) (time.Duration, error) { return 0, down("ttl") }

func (Down) Extend(context.Context, string, string, time.Duration) (time.Duration, error) {
	return 0, down("extend")
}

func (Down) SAdd(context.Context, string, ...string) (int64, error) { return 0, down("sadd") }

func (Down) SCard(context.Context, string) (int64, error) { return 0, down("scard") }

func (Down) ZIncrBy(context.Context, string, string, float64) (float64, error) {
	return 0, down("zincrby")
}

func (Down) ZTop(context.Context, string, int) ([]store.ScoredMember, error) {
	return nil, down("ztop")
}

func (Down) ZAll(context.Context, string) ([]store.ScoredMember, error) {
	return nil, down("zall")
}

func (Down) ZScore(context.Context, string, string) (float64, error) { return 0, down("zscore") }

func (Down) Ping(context.Context) error { return down("ping") }

func (Down) Close() error { return nil }
