package entity

import "time"

// 可加锁的实体类型：任务（job task）与岗位说明书（job description document）
type Kind string

const (
	KindTask     Kind = "task"
	KindDocument Kind = "document"
)

func (k Kind) Valid() bool {
	return k == KindTask || k == KindDocument
}

// Lockable 是实体内嵌的锁三元组。
// 不变式：LockedBy 为 nil 当且仅当 LockedAt、LockExpiry 也为 nil（三个字段作为一个整体设置/清除）。
// 只有锁管理器可以修改这三个字段。
type Lockable struct {
	LockedBy   *uint64    `gorm:"index" json:"lockedBy,omitempty"`
	LockedAt   *time.Time `json:"lockedAt,omitempty"`
	LockExpiry *time.Time `json:"lockExpiry,omitempty"`
}

// Task 可复用的任务条目
type Task struct {
	ID          uint64 `gorm:"primaryKey"`
	Title       string `gorm:"type:varchar(255);uniqueIndex"`
	Description string `gorm:"type:text"`
	Lockable
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Document 岗位说明书，引用若干任务并携带百分比分配
type Document struct {
	ID      uint64 `gorm:"primaryKey"`
	Title   string `gorm:"type:varchar(255);uniqueIndex"`
	OwnerID uint64
	Lockable
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllocationEntry 文档分配列表中的一行：(taskRef, percentage, order)。
// 不变式（每次变更后都必须成立）：percentage 是 5 的倍数且 >= 5；
// 非空列表的 percentage 之和 == 100；Position 在同一文档内连续且唯一。
type AllocationEntry struct {
	ID         uint64 `gorm:"primaryKey" json:"-"`
	DocumentID uint64 `gorm:"index:idx_alloc_doc_task,unique" json:"documentId"`
	TaskID     uint64 `gorm:"index:idx_alloc_doc_task,unique" json:"taskId"`
	Percentage int    `json:"percentage"`
	Position   int    `json:"position"`
}

// LockView 是锁三元组的只读投影。
// IsLocked 计算为 lockedBy != nil 且 lockExpiry > now：
// 实体可以带着过期的锁字段存在（等待 sweeper 清理），此时 IsLocked 已经是 false。
type LockView struct {
	IsLocked   bool       `json:"isLocked"`
	LockedBy   *uint64    `json:"lockedBy,omitempty"`
	LockedAt   *time.Time `json:"lockedAt,omitempty"`
	LockExpiry *time.Time `json:"lockExpiry,omitempty"`
}

func (l Lockable) View(now time.Time) LockView {
	v := LockView{LockedBy: l.LockedBy, LockedAt: l.LockedAt, LockExpiry: l.LockExpiry}
	v.IsLocked = l.LockedBy != nil && l.LockExpiry != nil && l.LockExpiry.After(now)
	return v
}
