package quotelock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sellerflow/internal/config"
	"github.com/smallbiznis/sellerflow/internal/errs"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyQuoteLock = "quote:lock:%s"

var ErrLocked = errs.New(errs.ErrConflict, "quote_locked")

// Locker serializes writes to a single quote.
type Locker interface {
	WithLock(ctx context.Context, quoteID snowflake.ID, fn func(ctx context.Context) error) error
}

var Module = fx.Module("quotelock",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Cfg    config.Config
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

// New returns a redis backed locker when a client is configured and an
// in-process one otherwise.
func New(p Params) Locker {
	ttl := p.Cfg.Approval.LockTTL
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if p.Client == nil {
		p.Log.Named("quotelock").Info("redis not configured, using in-process quote lock")
		return NewLocal()
	}
	return &distributed{
		lock:  newRedisLock(p.Client),
		ttl:   ttl,
		retry: 25 * time.Millisecond,
		log:   p.Log.Named("quotelock"),
	}
}

type distributed struct {
	lock  *redisLock
	ttl   time.Duration
	retry time.Duration
	log   *zap.Logger
}

func (d *distributed) WithLock(ctx context.Context, quoteID snowflake.ID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf(keyQuoteLock, quoteID.String())
	deadline := time.Now().Add(d.ttl)

	var token string
	for {
		t, ok, err := d.lock.tryLock(ctx, key, d.ttl)
		if err != nil {
			return err
		}
		if ok {
			token = t
			break
		}
		if time.Now().After(deadline) {
			return ErrLocked
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.retry):
		}
	}

	defer func() {
		// release must outlive a cancelled request context
		if err := d.lock.release(context.WithoutCancel(ctx), key, token); err != nil {
			d.log.Warn("failed to release quote lock", zap.String("key", key), zap.Error(err))
		}
	}()
	return fn(ctx)
}

// Local is a keyed mutex for single-process deployments and tests.
type Local struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewLocal() *Local {
	return &Local{locks: make(map[snowflake.ID]*entry)}
}

func (l *Local) WithLock(ctx context.Context, quoteID snowflake.ID, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	e, ok := l.locks[quoteID]
	if !ok {
		e = &entry{}
		l.locks[quoteID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, quoteID)
		}
		l.mu.Unlock()
	}()
	return fn(ctx)
}
