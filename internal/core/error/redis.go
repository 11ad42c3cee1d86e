package errx

import (
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

// WrapRedis maps Redis errors to the unified error type with appropriate status codes.
func WrapRedis(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, redis.Nil) {
		return NewKind(KindNotFound, err, http.StatusNotFound, RedisNotFoundMessage)
	}

	return NewKind(KindRedis, err, http.StatusBadGateway, RedisErrorMessage)
}
