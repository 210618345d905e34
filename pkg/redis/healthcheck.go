package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/browo-hrthis/fetchkit/pkg/health"
)

// Healthcheck reports the cache backend as not ready when the server does
// not answer PING.
func Healthcheck(client redis.UniversalClient) health.CheckFunc {
	return func(ctx context.Context) error {
		if client == nil {
			return ErrHealthcheckFailed
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}
