package redis

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/browo-hrthis/fetchkit/pkg/retry"
)

// Open connects to the Redis server behind url (redis:// or rediss://) and
// pings it until it answers or the retry budget is spent.
//
//	client, err := redis.Open(ctx, cfg.Cache.RedisURL, redis.WithLogger(log))
func Open(ctx context.Context, url string, opts ...Option) (redis.UniversalClient, error) {
	if url == "" {
		return nil, ErrEmptyConnectionURL
	}
	if !strings.HasPrefix(url, "redis://") && !strings.HasPrefix(url, "rediss://") {
		return nil, ErrFailedToParseURL
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	ro, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseURL, err)
	}
	ro.ClientName = o.clientName
	ro.PoolSize = o.poolSize
	ro.MinIdleConns = o.minIdleConns
	ro.ConnMaxIdleTime = o.connIdleLimit
	ro.ReadTimeout = o.ioTimeout
	ro.WriteTimeout = o.ioTimeout
	ro.DialTimeout = o.dialTimeout

	return dial(ctx, ro, o)
}

func dial(ctx context.Context, ro *redis.Options, o *options) (redis.UniversalClient, error) {
	out := retry.Do(ctx, func(ctx context.Context) (redis.UniversalClient, error) {
		client := redis.NewClient(ro)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, err
		}
		return client, nil
	},
		retry.WithRetries(max(o.attempts, 1)-1),
		retry.WithDelay(o.attemptDelay),
		retry.WithBackoff(retry.Linear{}),
		retry.WithObserver(func(a retry.Attempt) {
			o.logger.Warn("redis unreachable",
				slog.String("addr", ro.Addr),
				slog.Int("attempt", a.Number),
				slog.Duration("retry_in", a.Delay),
				slog.String("error", a.Err.Error()),
			)
		}),
	)

	switch out.Status {
	case retry.Succeeded:
		o.logger.Debug("redis connected", slog.String("addr", ro.Addr), slog.Int("attempts", out.Attempts))
		return out.Value, nil
	case retry.Cancelled:
		return nil, errors.Join(ErrConnectionFailed, context.Canceled)
	default:
		return nil, errors.Join(ErrConnectionFailed, out.Err)
	}
}
