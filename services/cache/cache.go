package cachesvc

import (
	"github.com/pkg/errors"

	"github.com/trezcool/feeledger/core"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// New picks the cache driver configured under cache.driver.
func New(conf *core.Config) (core.Cache, error) {
	switch conf.Cache.Driver {
	case "", DriverMemory:
		return NewMemoryCache(), nil
	case DriverRedis:
		return NewRedisCache(NewRedisClient(conf), conf), nil
	default:
		return nil, errors.Errorf("unknown cache driver %q", conf.Cache.Driver)
	}
}
