package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	redisapp "design_vault/internal/storage/redis"

	"github.com/redis/go-redis/v9"
)

type RedisTagCacheRepo struct {
	Client *redisapp.Client
	ttl    time.Duration
}

func NewRedisTagCacheRepo(client *redisapp.Client, ttl time.Duration) *RedisTagCacheRepo {
	return &RedisTagCacheRepo{Client: client, ttl: ttl}
}

func (r *RedisTagCacheRepo) GetAllTags(ctx context.Context) ([]string, bool, error) {
	val, err := r.Client.Get(ctx, r.allTagsKey()).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var tags []string
	if err := json.Unmarshal([]byte(val), &tags); err != nil {
		return nil, false, err
	}

	return tags, true, nil
}

func (r *RedisTagCacheRepo) SetAllTags(ctx context.Context, tags []string) error {
	if tags == nil {
		tags = []string{}
	}

	b, err := json.Marshal(tags)
	if err != nil {
		return err
	}

	return r.Client.Set(ctx, r.allTagsKey(), string(b), r.ttl).Err()
}

func (r *RedisTagCacheRepo) GetNoTagCount(ctx context.Context) (int, bool, error) {
	val, err := r.Client.Get(ctx, r.noTagCountKey()).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, err
	}

	return n, true, nil
}

func (r *RedisTagCacheRepo) SetNoTagCount(ctx context.Context, count int) error {
	return r.Client.Set(ctx, r.noTagCountKey(), strconv.Itoa(count), r.ttl).Err()
}

// Invalidate сбрасывает оба агрегата после любой мутации
func (r *RedisTagCacheRepo) Invalidate(ctx context.Context) error {
	return r.Client.Del(ctx, r.allTagsKey(), r.noTagCountKey()).Err()
}

func (r *RedisTagCacheRepo) allTagsKey() string { return r.Client.Key("tags", "all") }

func (r *RedisTagCacheRepo) noTagCountKey() string { return r.Client.Key("tags", "no_tag_count") }
