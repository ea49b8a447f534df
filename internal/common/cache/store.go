package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrDisabled 未配置 Redis
var ErrDisabled = errors.New("cache disabled")

// KeyPrefixStats 统计结果缓存，键中带有代次，任一优惠券变更后代次加一，旧键等 TTL 过期
const KeyPrefixStats = "stats:"

// KeyStatsGeneration 统计缓存当前代次
const KeyStatsGeneration = "stats:generation"

// Store 值以 JSON 保存。client 为 nil 时视为未启用，所有操作返回 ErrDisabled
type Store struct {
	client *redis.Client
}

// NewStore 创建缓存
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Enabled 是否可用，nil 接收者返回 false
func (s *Store) Enabled() bool {
	return s != nil && s.client != nil
}

// Set 写入，ttl 为 0 表示不过期
func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return s.client.Set(ctx, key, raw, ttl).Err()
}

// Get 读取到 dest，未命中时返回的错误满足 IsMiss
func (s *Store) Get(ctx context.Context, key string, dest any) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return nil
}

// Delete 删除指定键
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Unlink(ctx, keys...).Err()
}

// Generation 读取计数器，键不存在时为 0
func (s *Store) Generation(ctx context.Context, key string) (int64, error) {
	if !s.Enabled() {
		return 0, ErrDisabled
	}
	n, err := s.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cache: generation %s: %w", key, err)
	}
	return n, nil
}

// Bump 计数器加一，使带旧代次的键不再被读到
func (s *Store) Bump(ctx context.Context, key string) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return s.client.Incr(ctx, key).Err()
}

// IsMiss 是否为未命中
func IsMiss(err error) bool {
	return errors.Is(err, redis.Nil)
}

// BuildKey 前缀加冒号分隔的各段，如 stats:user:42
func BuildKey(prefix string, parts ...string) string {
	if len(parts) == 0 {
		return strings.TrimSuffix(prefix, ":")
	}
	return prefix + strings.Join(parts, ":")
}
