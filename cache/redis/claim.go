package redis

import (
	"context"
	"time"
)

/* ========================================================================
 * Claim - 带持有者的短期占位
 * ========================================================================
 * 职责: 多实例之间对同一个 key 的短期独占（如 slug 候选值）
 * 语义:
 *   - key 不存在: 写入 owner 并设置 TTL，成功
 *   - key 属于同一 owner: 刷新 TTL，成功
 *   - key 属于其他 owner: 失败
 * ======================================================================== */

const claimScript = `
	local current = redis.call("GET", KEYS[1])
	if current == ARGV[1] then
		redis.call("PEXPIRE", KEYS[1], ARGV[2])
		return 1
	end
	if current then
		return 0
	end
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
	return 1
`

const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// Claim 以 owner 身份占用 key，返回是否占用成功
func (c *Client) Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	result, err := c.rdb.Eval(ctx, claimScript, []string{key}, owner, ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}

// Release 释放 owner 持有的 key，不属于 owner 时不做任何事
func (c *Client) Release(ctx context.Context, key, owner string) (bool, error) {
	result, err := c.rdb.Eval(ctx, releaseScript, []string{key}, owner).Int64()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
