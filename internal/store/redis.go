package store

import (
	"context"
	"time"

	"sandforge/internal/component"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures the Redis snapshot store.
type Options struct {
	URL          string
	KeyPrefix    string
	TTL          time.Duration
	PingTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Metrics receives one observation per Redis operation.
type Metrics interface {
	RecordSnapshot(operation, status string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSnapshot(string, string) {}

// Redis stores one JSON snapshot per client under <prefix>:inventory:<client>.
type Redis struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	log     *zap.Logger
	metrics Metrics
}

// NewRedis connects and pings the server. m may be nil.
func NewRedis(ctx context.Context, opts Options, log *zap.Logger, m Metrics) (*Redis, error) {
	opt, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse Redis URL")
	}
	if opts.ReadTimeout > 0 {
		opt.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		opt.WriteTimeout = opts.WriteTimeout
	}
	client := redis.NewClient(opt)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrap(err, "failed to ping Redis")
	}

	if m == nil {
		m = nopMetrics{}
	}
	log.Info("Redis snapshot store connected",
		zap.String("addr", opt.Addr),
		zap.Int("db", opt.DB),
		zap.String("prefix", opts.KeyPrefix),
	)
	return &Redis{client: client, prefix: opts.KeyPrefix, ttl: opts.TTL, log: log, metrics: m}, nil
}

// Key is the Redis key holding client's snapshot.
func Key(prefix string, client component.ClientID) string {
	if prefix == "" {
		return "inventory:" + string(client)
	}
	return prefix + ":inventory:" + string(client)
}

func (r *Redis) Load(ctx context.Context, client component.ClientID) (Snapshot, error) {
	data, err := r.client.Get(ctx, Key(r.prefix, client)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			r.metrics.RecordSnapshot("load", "miss")
			return Snapshot{}, errors.Wrapf(ErrNotFound, "%q", client)
		}
		r.metrics.RecordSnapshot("load", "error")
		return Snapshot{}, errors.Wrap(err, "failed to load snapshot")
	}
	r.metrics.RecordSnapshot("load", "hit")
	return decode(data)
}

func (r *Redis) Save(ctx context.Context, s Snapshot) error {
	data, err := encode(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, Key(r.prefix, s.Client), data, r.ttl).Err(); err != nil {
		r.metrics.RecordSnapshot("save", "error")
		return errors.Wrap(err, "failed to save snapshot")
	}
	r.metrics.RecordSnapshot("save", "ok")
	return nil
}

func (r *Redis) Delete(ctx context.Context, client component.ClientID) error {
	if err := r.client.Del(ctx, Key(r.prefix, client)).Err(); err != nil {
		r.metrics.RecordSnapshot("delete", "error")
		return errors.Wrap(err, "failed to delete snapshot")
	}
	r.metrics.RecordSnapshot("delete", "ok")
	return nil
}

// Health pings the server.
func (r *Redis) Health(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis health check failed")
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }
