package cache

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	redis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	docBaseTTL = time.Hour         // 基础过期时间，正常靠主动失效
	docJitter  = 5 * time.Minute   // 随机抖动范围，防止缓存雪崩
	nullTTL    = 5 * time.Minute   // 空值标记的存活时间，防止缓存穿透
	nullMarker = "\x00not-found"   // 空值标记
)

// ErrCachedNotFound 命中空值标记：库里确实没有这个文档
var ErrCachedNotFound = errors.New("document not found (cached)")

// DocCache 文档聚合视图的读穿缓存：redis 挡第一层，
// singleflight 保证同一文档并发 miss 时只回源一次。
type DocCache struct {
	rdb *redis.Client
	sf  singleflight.Group
}

func NewDocCache(rdb *redis.Client) *DocCache {
	return &DocCache{rdb: rdb}
}

// 获取随机TTL，防止同批键同时过期
func randomTTL() time.Duration {
	return docBaseTTL + time.Duration(rand.Int63n(int64(docJitter)))
}

// Get 返回文档视图的 JSON。fetch 回源取权威数据；
// 回源报"不存在"时写空值标记并返回 ErrCachedNotFound。
func (c *DocCache) Get(ctx context.Context, docID uint64, fetch func() (interface{}, error)) ([]byte, error) {
	key := docKey(docID)
	val, err, _ := c.sf.Do(key, func() (interface{}, error) {
		raw, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			if raw == nullMarker {
				return nil, ErrCachedNotFound
			}
			return []byte(raw), nil
		}
		if !errors.Is(err, redis.Nil) {
			return nil, err
		}

		// 回源 (Redis Miss)
		view, err := fetch()
		if err != nil {
			return nil, err
		}
		if view == nil {
			c.rdb.Set(ctx, key, nullMarker, nullTTL)
			return nil, ErrCachedNotFound
		}
		b, err := json.Marshal(view)
		if err != nil {
			return nil, err
		}
		c.rdb.Set(ctx, key, b, randomTTL())
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	b, ok := val.([]byte)
	if !ok {
		return nil, errors.New("internal type error")
	}
	return b, nil
}

// Invalidate 文档结构变更后把缓存踢掉，下次读重新回源。
func (c *DocCache) Invalidate(ctx context.Context, docID uint64) {
	c.rdb.Del(ctx, docKey(docID))
}
