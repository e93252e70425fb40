package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/aisgo/gorm-behaviors/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * Redis Client - 缓存 + 占位
 * ========================================================================
 * 职责: 提供 Redis 连接池、基础缓存操作、带持有者的短期占位
 * 技术: go-redis/v9
 * ======================================================================== */

// Config Redis 配置
type Config struct {
	Host         string `yaml:"host" mapstructure:"host"`
	Port         int    `yaml:"port" mapstructure:"port"`
	Password     string `yaml:"password" mapstructure:"password"`
	DB           int    `yaml:"db" mapstructure:"db"`
	PoolSize     int    `yaml:"pool_size" mapstructure:"pool_size"`
	MinIdleConns int    `yaml:"min_idle_conns" mapstructure:"min_idle_conns"`
}

// Client Redis 客户端封装
type Client struct {
	rdb *redis.Client
	log *logger.Logger
}

type ClientParams struct {
	fx.In
	Lc     fx.Lifecycle `optional:"true"`
	Config Config
	Logger *logger.Logger
}

// NewClient 创建 Redis 客户端
func NewClient(p ClientParams) *Client {
	addr := fmt.Sprintf("%s:%d", p.Config.Host, p.Config.Port)
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     p.Config.Password,
		DB:           p.Config.DB,
		PoolSize:     p.Config.PoolSize,
		MinIdleConns: p.Config.MinIdleConns,
	})

	client := NewClientFromRaw(rdb, p.Logger)
	if p.Lc == nil {
		return client
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// 测试连接
			if err := rdb.Ping(ctx).Err(); err != nil {
				client.log.Error("Redis connection failed", zap.Error(err))
				return err
			}
			client.log.Info("Redis connected", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			client.log.Info("Closing Redis connection")
			return rdb.Close()
		},
	})

	return client
}

// NewClientFromRaw 包装已有的 go-redis 客户端
func NewClientFromRaw(rdb *redis.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{rdb: rdb, log: log}
}

// Raw 返回底层 Redis 客户端 (用于高级操作)
func (c *Client) Raw() *redis.Client {
	return c.rdb
}

/* ========================================================================
 * 缓存操作
 * ======================================================================== */

// Get 获取缓存，key 不存在时返回 redis.Nil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// Set 设置缓存
func (c *Client) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// SetNX 设置缓存 (如果不存在)
func (c *Client) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, value, expiration).Result()
}

// Del 删除缓存
func (c *Client) Del(ctx context.Context, keys ...string) error {
	return c.rdb.Del(ctx, keys...).Err()
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
