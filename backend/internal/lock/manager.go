// Package lock 实现实体级的 TTL 悲观锁。
// 所有上锁/解锁决策都在这里做，调用方从不直接改锁字段。
// 每个实体的状态机：Unlocked --acquire(u)--> Locked(u,exp)；
// 同主重入刷新；异主且未过期拒绝；已过期可被抢占；
// release / break / sweep 回到 Unlocked。
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalogServer/backend/internal/entity"
	"catalogServer/backend/internal/events"
	"catalogServer/backend/internal/store"
)

// ErrNotOwner release/refresh 的调用者不是在册持有人
var ErrNotOwner = errors.New("lock is not held by caller")

// ConflictError 实体被他人持有且未过期。带上当前 LockView，
// 前端可以据此展示持有人并提供"等待/请求强拆"。
type ConflictError struct {
	View entity.LockView
}

func (e *ConflictError) Error() string {
	if e.View.LockedBy != nil {
		return fmt.Sprintf("locked by user %d until %s", *e.View.LockedBy, e.View.LockExpiry.Format(time.RFC3339))
	}
	return "lock conflict"
}

// EventPayload 锁事件的载荷
type EventPayload struct {
	Kind entity.Kind     `json:"kind"`
	ID   uint64          `json:"id"`
	Lock entity.LockView `json:"lock"`
}

type Manager struct {
	store *store.Store
	pub   events.Publisher

	// Now 可注入，测试里用来拨时钟
	Now func() time.Time
}

func NewManager(s *store.Store, pub events.Publisher) *Manager {
	return &Manager{store: s, pub: pub, Now: time.Now}
}

// Acquire 获取或重入刷新一把锁。
// 存储层的单条条件更新（TryLock）就是判定本身：未上锁、已过期、
// 或本人持有时命中并写入新三元组；他人未过期持有时不命中，
// 回读当前状态包成 ConflictError 返回。
func (m *Manager) Acquire(ctx context.Context, kind entity.Kind, id, userID uint64, duration time.Duration) (entity.LockView, error) {
	now := m.Now()
	expiry := now.Add(duration)
	ok, err := m.store.TryLock(ctx, kind, id, userID, now, expiry)
	if err != nil {
		return entity.LockView{}, err
	}
	if !ok {
		cur, err := m.store.GetLock(ctx, kind, id)
		if err != nil {
			return entity.LockView{}, err
		}
		return entity.LockView{}, &ConflictError{View: cur.View(now)}
	}
	view := entity.Lockable{LockedBy: &userID, LockedAt: &now, LockExpiry: &expiry}.View(now)
	m.publish(events.TypeLockAcquired, kind, id, userID, view)
	return view, nil
}

// Release 清除调用者持有的锁。策略（显式决定并有测试）：只比较在册持有人，
// 不看过期时间——锁已过期但 sweeper 还没清时，持有人仍可主动释放。
func (m *Manager) Release(ctx context.Context, kind entity.Kind, id, userID uint64) error {
	ok, err := m.store.ReleaseLock(ctx, kind, id, userID)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := m.store.GetLock(ctx, kind, id); err != nil {
			return err
		}
		return ErrNotOwner
	}
	m.publish(events.TypeLockReleased, kind, id, userID, entity.LockView{})
	return nil
}

// Refresh 把过期时间延到 now+duration，locked_at 不变。
// 与 Release 同一持有人策略：在册持有人过期后、被抢占或被清理前仍可续期。
func (m *Manager) Refresh(ctx context.Context, kind entity.Kind, id, userID uint64, duration time.Duration) (entity.LockView, error) {
	now := m.Now()
	expiry := now.Add(duration)
	ok, err := m.store.RefreshLock(ctx, kind, id, userID, expiry)
	if err != nil {
		return entity.LockView{}, err
	}
	if !ok {
		if _, err := m.store.GetLock(ctx, kind, id); err != nil {
			return entity.LockView{}, err
		}
		return entity.LockView{}, ErrNotOwner
	}
	return m.Status(ctx, kind, id)
}

// Break 特权强拆：有锁就清，不问持有人。授权是外部关心的事。
func (m *Manager) Break(ctx context.Context, kind entity.Kind, id uint64) (bool, error) {
	if _, err := m.store.GetLock(ctx, kind, id); err != nil {
		return false, err
	}
	ok, err := m.store.BreakLock(ctx, kind, id)
	if err != nil {
		return false, err
	}
	if ok {
		m.publish(events.TypeLockBroken, kind, id, 0, entity.LockView{})
	}
	return ok, nil
}

// Status 只读投影，从不改状态。
func (m *Manager) Status(ctx context.Context, kind entity.Kind, id uint64) (entity.LockView, error) {
	row, err := m.store.GetLock(ctx, kind, id)
	if err != nil {
		return entity.LockView{}, err
	}
	return row.View(m.Now()), nil
}

// HeldBy 结构性修改前的前置检查：锁在且归 userID。
func (m *Manager) HeldBy(ctx context.Context, kind entity.Kind, id, userID uint64) (bool, error) {
	view, err := m.Status(ctx, kind, id)
	if err != nil {
		return false, err
	}
	return view.IsLocked && view.LockedBy != nil && *view.LockedBy == userID, nil
}

// SweepExpired 批量清掉所有过期三元组，返回数量。
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	return m.store.SweepExpired(ctx, m.Now())
}

func (m *Manager) publish(eventType string, kind entity.Kind, id, userID uint64, view entity.LockView) {
	if m.pub == nil {
		return
	}
	m.pub.Publish(events.Event{
		Type:    eventType,
		UserID:  userID,
		Payload: EventPayload{Kind: kind, ID: id, Lock: view},
	})
}
