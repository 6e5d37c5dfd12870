package cache

import (
	"context"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"catalogServer/backend/internal/entity"
)

// PresenceCache 记录"谁正在编辑哪个实体"。
// 成员靠心跳键的 TTL 判活：客户端停了心跳（崩溃/断线）就自然消失，
// 不依赖显式的离开动作。
type PresenceCache interface {
	AddEditor(ctx context.Context, kind entity.Kind, id, userID uint64, username string, ttl time.Duration) error
	RemoveEditor(ctx context.Context, kind entity.Kind, id, userID uint64) error
	AliveEditors(ctx context.Context, kind entity.Kind, id uint64) ([]Editor, error)
}

type Editor struct {
	UserID   uint64 `json:"userId"`
	Username string `json:"username,omitempty"`
}

type redisPresence struct {
	rdb *redis.Client
}

func NewRedisPresence(rdb *redis.Client) PresenceCache {
	return &redisPresence{rdb: rdb}
}

func (p *redisPresence) AddEditor(ctx context.Context, kind entity.Kind, id, userID uint64, username string, ttl time.Duration) error {
	pipe := p.rdb.Pipeline()
	// 候选集合 + 心跳键 + 名字表，一趟管道写完
	pipe.SAdd(ctx, roomKey(kind, id), userID)
	pipe.Set(ctx, memberKey(kind, id, userID), "1", ttl)
	pipe.HSet(ctx, namesKey(kind, id), userID, username)
	_, err := pipe.Exec(ctx)
	return err
}

func (p *redisPresence) RemoveEditor(ctx context.Context, kind entity.Kind, id, userID uint64) error {
	pipe := p.rdb.Pipeline()
	pipe.SRem(ctx, roomKey(kind, id), userID)
	pipe.Del(ctx, memberKey(kind, id, userID))
	pipe.HDel(ctx, namesKey(kind, id), strconv.FormatUint(userID, 10))
	_, err := pipe.Exec(ctx)
	return err
}

func (p *redisPresence) AliveEditors(ctx context.Context, kind entity.Kind, id uint64) ([]Editor, error) {
	// step1: 候选集合
	userIDs, err := p.rdb.SMembers(ctx, roomKey(kind, id)).Result()
	if err != nil {
		return nil, err
	}
	if len(userIDs) == 0 {
		return nil, nil
	}

	// step2: 心跳键还在的才算活着
	existsCmds := make([]*redis.IntCmd, 0, len(userIDs))
	pipe := p.rdb.Pipeline()
	for _, raw := range userIDs {
		uid, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, err
		}
		existsCmds = append(existsCmds, pipe.Exists(ctx, memberKey(kind, id, uid)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	aliveIDs := make([]uint64, 0, len(userIDs))
	aliveFields := make([]string, 0, len(userIDs))
	for i, cmd := range existsCmds {
		if cmd.Val() == 1 {
			uid, _ := strconv.ParseUint(userIDs[i], 10, 64)
			aliveIDs = append(aliveIDs, uid)
			aliveFields = append(aliveFields, userIDs[i])
		}
	}
	if len(aliveIDs) == 0 {
		return nil, nil
	}

	// step3: 名字表
	names, err := p.rdb.HMGet(ctx, namesKey(kind, id), aliveFields...).Result()
	if err != nil {
		return nil, err
	}
	editors := make([]Editor, 0, len(aliveIDs))
	for i, v := range names {
		name := ""
		if v != nil {
			name, _ = v.(string)
		}
		editors = append(editors, Editor{UserID: aliveIDs[i], Username: name})
	}
	return editors, nil
}
