package cache

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"

	"catalogServer/backend/internal/entity"
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379", DB: 9})
	// 若 Redis 未启动则跳过
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("skip: redis not available: %v", err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func TestPresence_AddAndList(t *testing.T) {
	rdb := testRedis(t)
	p := NewRedisPresence(rdb)
	ctx := context.Background()

	if err := p.AddEditor(ctx, entity.KindDocument, 1, 10, "alice", time.Minute); err != nil {
		t.Fatalf("AddEditor: %v", err)
	}
	if err := p.AddEditor(ctx, entity.KindDocument, 1, 11, "bob", time.Minute); err != nil {
		t.Fatalf("AddEditor: %v", err)
	}

	editors, err := p.AliveEditors(ctx, entity.KindDocument, 1)
	if err != nil {
		t.Fatalf("AliveEditors: %v", err)
	}
	if len(editors) != 2 {
		t.Fatalf("expected 2 editors, got %+v", editors)
	}

	// 别的实体不受影响
	editors, err = p.AliveEditors(ctx, entity.KindTask, 1)
	if err != nil {
		t.Fatalf("AliveEditors: %v", err)
	}
	if len(editors) != 0 {
		t.Fatalf("expected no editors on the task, got %+v", editors)
	}
}

func TestPresence_HeartbeatExpiry(t *testing.T) {
	rdb := testRedis(t)
	p := NewRedisPresence(rdb)
	ctx := context.Background()

	if err := p.AddEditor(ctx, entity.KindDocument, 2, 10, "alice", 50*time.Millisecond); err != nil {
		t.Fatalf("AddEditor: %v", err)
	}
	time.Sleep(100 * time.Millisecond)

	editors, err := p.AliveEditors(ctx, entity.KindDocument, 2)
	if err != nil {
		t.Fatalf("AliveEditors: %v", err)
	}
	if len(editors) != 0 {
		t.Fatalf("stale editor still listed: %+v", editors)
	}
}

func TestPresence_Remove(t *testing.T) {
	rdb := testRedis(t)
	p := NewRedisPresence(rdb)
	ctx := context.Background()

	if err := p.AddEditor(ctx, entity.KindTask, 3, 10, "alice", time.Minute); err != nil {
		t.Fatalf("AddEditor: %v", err)
	}
	if err := p.RemoveEditor(ctx, entity.KindTask, 3, 10); err != nil {
		t.Fatalf("RemoveEditor: %v", err)
	}
	editors, err := p.AliveEditors(ctx, entity.KindTask, 3)
	if err != nil {
		t.Fatalf("AliveEditors: %v", err)
	}
	if len(editors) != 0 {
		t.Fatalf("removed editor still listed: %+v", editors)
	}
}

func TestDocCache_ReadThroughAndInvalidate(t *testing.T) {
	rdb := testRedis(t)
	c := NewDocCache(rdb)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return map[string]string{"title": "doc"}, nil
	}

	if _, err := c.Get(ctx, 1, fetch); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := c.Get(ctx, 1, fetch); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single fetch, got %d", calls)
	}

	c.Invalidate(ctx, 1)
	if _, err := c.Get(ctx, 1, fetch); err != nil {
		t.Fatalf("Get after invalidate: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", calls)
	}
}

func TestDocCache_NullMarker(t *testing.T) {
	rdb := testRedis(t)
	c := NewDocCache(rdb)
	ctx := context.Background()

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return nil, nil
	}
	if _, err := c.Get(ctx, 404, fetch); err != ErrCachedNotFound {
		t.Fatalf("expected ErrCachedNotFound, got %v", err)
	}
	// 第二次命中空值标记，不再回源
	if _, err := c.Get(ctx, 404, fetch); err != ErrCachedNotFound {
		t.Fatalf("expected ErrCachedNotFound, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("null marker did not stop the refetch, calls=%d", calls)
	}
}
