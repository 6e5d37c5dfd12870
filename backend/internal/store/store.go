package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"catalogServer/backend/internal/entity"
)

var ErrNotFound = errors.New("entity not found")

// kind -> gorm 模型的策略表。锁管理器按 kind 查表选存储目标，
// 各方法内部不再对 kind 做内联分支。
var lockTables = map[entity.Kind]func() interface{}{
	entity.KindTask:     func() interface{} { return &entity.Task{} },
	entity.KindDocument: func() interface{} { return &entity.Document{} },
}

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Task{}, &entity.Document{}, &entity.AllocationEntry{})
}

// Transaction 在单个数据库事务里执行 fn；fn 里通过传入的 Store 访问同一事务。
// 分配列表和触发它的结构变更必须共用一个事务（不能让任何读者看到总和 != 100）。
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func (s *Store) table(ctx context.Context, kind entity.Kind) (*gorm.DB, error) {
	newModel, ok := lockTables[kind]
	if !ok {
		return nil, errors.New("unknown entity kind: " + string(kind))
	}
	return s.db.WithContext(ctx).Model(newModel()), nil
}

// GetLock 读实体当前的锁三元组；实体不存在返回 ErrNotFound。
func (s *Store) GetLock(ctx context.Context, kind entity.Kind, id uint64) (entity.Lockable, error) {
	tbl, err := s.table(ctx, kind)
	if err != nil {
		return entity.Lockable{}, err
	}
	var row entity.Lockable
	err = tbl.Select("locked_by", "locked_at", "lock_expiry").Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.Lockable{}, ErrNotFound
	}
	return row, err
}

// TryLock 获取锁的原子条件更新（CAS）：只有"未上锁 / 已过期 / 本人持有"
// 三种情况之一才能写入新三元组。读-检查-写合并成单条 UPDATE，
// 并发获取时数据库行锁保证只有一个调用方的 WHERE 命中。
func (s *Store) TryLock(ctx context.Context, kind entity.Kind, id, userID uint64, now, expiry time.Time) (bool, error) {
	tbl, err := s.table(ctx, kind)
	if err != nil {
		return false, err
	}
	res := tbl.
		Where("id = ?", id).
		Where("locked_by IS NULL OR lock_expiry <= ? OR locked_by = ?", now, userID).
		Updates(map[string]interface{}{
			"locked_by":   userID,
			"locked_at":   now,
			"lock_expiry": expiry,
		})
	return res.RowsAffected == 1, res.Error
}

// ReleaseLock 按在册持有人清锁。只比较 locked_by，不看过期时间：
// 持有人可以显式释放一把 sweeper 还没来得及清掉的过期锁。
func (s *Store) ReleaseLock(ctx context.Context, kind entity.Kind, id, userID uint64) (bool, error) {
	tbl, err := s.table(ctx, kind)
	if err != nil {
		return false, err
	}
	res := tbl.
		Where("id = ? AND locked_by = ?", id, userID).
		Updates(clearedTriple())
	return res.RowsAffected == 1, res.Error
}

// RefreshLock 延长过期时间，locked_at 不动。同样只比较在册持有人。
func (s *Store) RefreshLock(ctx context.Context, kind entity.Kind, id, userID uint64, expiry time.Time) (bool, error) {
	tbl, err := s.table(ctx, kind)
	if err != nil {
		return false, err
	}
	res := tbl.
		Where("id = ? AND locked_by = ?", id, userID).
		Update("lock_expiry", expiry)
	return res.RowsAffected == 1, res.Error
}

// BreakLock 无条件清锁（特权操作，授权在调用方）。返回是否确有锁被清掉。
func (s *Store) BreakLock(ctx context.Context, kind entity.Kind, id uint64) (bool, error) {
	tbl, err := s.table(ctx, kind)
	if err != nil {
		return false, err
	}
	res := tbl.
		Where("id = ? AND locked_by IS NOT NULL", id).
		Updates(clearedTriple())
	return res.RowsAffected == 1, res.Error
}

// SweepExpired 跨所有实体类型批量清理过期锁，返回清掉的数量。
func (s *Store) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for kind := range lockTables {
		tbl, err := s.table(ctx, kind)
		if err != nil {
			return total, err
		}
		res := tbl.
			Where("locked_by IS NOT NULL AND lock_expiry <= ?", now).
			Updates(clearedTriple())
		if res.Error != nil {
			return total, res.Error
		}
		total += res.RowsAffected
	}
	return total, nil
}

func clearedTriple() map[string]interface{} {
	return map[string]interface{}{
		"locked_by":   nil,
		"locked_at":   nil,
		"lock_expiry": nil,
	}
}
