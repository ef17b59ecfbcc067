package extension

import (
	"fmt"

	"github.com/xraph/perk/store"
	"github.com/xraph/perk/store/memory"
	"github.com/xraph/perk/store/mongo"
	"github.com/xraph/perk/store/redis"
)

// OpenStore builds the store variant cfg selects. It is called once per
// process; the memory store is private to this process.
func OpenStore(cfg Config) (store.Store, error) {
	switch cfg.Backend() {
	case BackendRedis:
		s, err := redis.Open(cfg.RedisURL, cfg.RedisToken)
		if err != nil {
			return nil, fmt.Errorf("perk: open redis store: %w", err)
		}
		return s, nil
	case BackendMongo:
		db := cfg.MongoDatabase
		if db == "" {
			db = DefaultConfig().MongoDatabase
		}
		s, err := mongo.Open(cfg.MongoURI, db)
		if err != nil {
			return nil, fmt.Errorf("perk: open mongo store: %w", err)
		}
		return s, nil
	default:
		return memory.New(), nil
	}
}

// IsLocal reports whether s keeps its state inside this process.
func IsLocal(s store.Store) bool {
	_, ok := s.(*memory.Store)
	return ok
}
