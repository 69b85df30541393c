package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/xxxkjing/ClassComp-Score/config"
)

// ErrLockNotAcquired 在等待时限内未能获得锁
var ErrLockNotAcquired = errors.New("未能获得分布式锁")

// Client Redis 客户端封装
// 当前用于多实例部署下串行化同一学期的周期物化
type Client struct {
	rdb    goredis.UniversalClient
	logger *zap.Logger
	// 获取锁时的轮询间隔
	retryInterval time.Duration
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return NewWithClient(rdb, logger), nil
}

// NewWithClient 包装已有的 go-redis 客户端
func NewWithClient(rdb goredis.UniversalClient, logger *zap.Logger) *Client {
	return &Client{rdb: rdb, logger: logger, retryInterval: 50 * time.Millisecond}
}

// ── 分布式锁 ──

const lockPrefix = "classcomp:lock:"

// 仅当值匹配时删除，防止误删他人在 TTL 过期后重新获得的锁
var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lock 获取以 key 命名的互斥锁，最长等待 ttl；返回的 unlock 可重复调用
func (c *Client) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := lockPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(ttl)

	for {
		ok, err := c.rdb.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("获取锁 %s 失败: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryInterval):
		}
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// 使用独立 context：请求已取消时仍需释放锁
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := unlockScript.Run(unlockCtx, c.rdb, []string{fullKey}, token).Err(); err != nil {
			c.logger.Warn("释放分布式锁失败", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
