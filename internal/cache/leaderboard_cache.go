package cache

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
)

const leaderboardKey = "credits:leaderboard"

// LeaderboardCache 以 redis ZSET 缓存学生积分余额，数据源始终是积分流水表
type LeaderboardCache interface {
	Increment(ctx context.Context, studentID uint, amount int) error
	Top(ctx context.Context, limit int) ([]Entry, error)
	Rank(ctx context.Context, studentID uint) (int64, error)
	Replace(ctx context.Context, balances map[uint]int64) error
}

type Entry struct {
	StudentID uint
	Balance   int64
}

type leaderboardCache struct {
	client *redis.Client
}

func NewLeaderboardCache(client *redis.Client) LeaderboardCache {
	return &leaderboardCache{client: client}
}

func member(studentID uint) string {
	return strconv.FormatUint(uint64(studentID), 10)
}

func (c *leaderboardCache) Increment(ctx context.Context, studentID uint, amount int) error {
	return c.client.ZIncrBy(ctx, leaderboardKey, float64(amount), member(studentID)).Err()
}

func (c *leaderboardCache) Top(ctx context.Context, limit int) ([]Entry, error) {
	results, err := c.client.ZRevRangeWithScores(ctx, leaderboardKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(results))
	for _, z := range results {
		name, _ := z.Member.(string)
		id, err := strconv.ParseUint(name, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{StudentID: uint(id), Balance: int64(z.Score)})
	}
	return entries, nil
}

// Rank 从 1 开始，不在榜单中返回 -1
func (c *leaderboardCache) Rank(ctx context.Context, studentID uint) (int64, error) {
	rank, err := c.client.ZRevRank(ctx, leaderboardKey, member(studentID)).Result()
	if err == redis.Nil {
		return -1, nil
	}
	if err != nil {
		return -1, err
	}
	return rank + 1, nil
}

// Replace 用流水汇总结果整体重建榜单
func (c *leaderboardCache) Replace(ctx context.Context, balances map[uint]int64) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, leaderboardKey)
		if len(balances) == 0 {
			return nil
		}
		zs := make([]*redis.Z, 0, len(balances))
		for id, balance := range balances {
			zs = append(zs, &redis.Z{Score: float64(balance), Member: member(id)})
		}
		pipe.ZAdd(ctx, leaderboardKey, zs...)
		return nil
	})
	return err
}
