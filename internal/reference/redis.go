package reference

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Seeder reports the highest sequence already used in year so a fresh
// counter continues after existing references.
type Seeder interface {
	MaxRefSeq(ctx context.Context, year int) (int, error)
}

// seedAndIncr seeds the counter when it does not exist yet, then increments
// it. Both steps run atomically inside Redis.
var seedAndIncr = redis.NewScript(`
    if redis.call('EXISTS', KEYS[1]) == 0 then
        redis.call('SET', KEYS[1], ARGV[1])
    end
    return redis.call('INCR', KEYS[1])
`)

// RedisSequence keeps one INCR counter per year in Redis.
type RedisSequence struct {
	rdb    *redis.Client
	seeder Seeder
	prefix string
}

// NewRedisSequence returns a Redis-backed Sequence. Keys are "<prefix>:<year>".
func NewRedisSequence(rdb *redis.Client, seeder Seeder, prefix string) *RedisSequence {
	if prefix == "" {
		prefix = "refseq"
	}
	return &RedisSequence{rdb: rdb, seeder: seeder, prefix: prefix}
}

func (s *RedisSequence) key(year int) string {
	return fmt.Sprintf("%s:%d", s.prefix, year)
}

// NextSeq implements Sequence.
func (s *RedisSequence) NextSeq(ctx context.Context, year int) (int, error) {
	if s.rdb == nil {
		return 0, fmt.Errorf("reference: redis client is nil")
	}
	key := s.key(year)
	seed := 0
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("reference: check counter: %w", err)
	}
	if exists == 0 && s.seeder != nil {
		if seed, err = s.seeder.MaxRefSeq(ctx, year); err != nil {
			return 0, fmt.Errorf("reference: seed counter: %w", err)
		}
	}
	n, err := seedAndIncr.Run(ctx, s.rdb, []string{key}, seed).Int()
	if err != nil {
		return 0, fmt.Errorf("reference: incr counter: %w", err)
	}
	return n, nil
}
