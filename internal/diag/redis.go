package diag

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const recentKey = "diag:recent_errors"

// RedisLog keeps the error ring in Redis (LPUSH + LTRIM) so it survives
// process restarts and is shared across replicas.
type RedisLog struct {
	client *redis.Client
}

func NewRedisLog(client *redis.Client) *RedisLog {
	return &RedisLog{client: client}
}

func (l *RedisLog) Record(ctx context.Context, r Record) error {
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	pipe := l.client.TxPipeline()
	pipe.LPush(ctx, recentKey, b)
	pipe.LTrim(ctx, recentKey, 0, RecentLimit-1)
	_, err = pipe.Exec(ctx)
	return err
}

func (l *RedisLog) Last(ctx context.Context) (*Record, error) {
	v, err := l.client.LIndex(ctx, recentKey, 0).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal([]byte(v), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (l *RedisLog) Recent(ctx context.Context) ([]Record, error) {
	vals, err := l.client.LRange(ctx, recentKey, 0, RecentLimit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(vals))
	for _, v := range vals {
		var r Record
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}
