package events

import "time"

// 领域事件类型。heartbeat 不走 Publish，由每个通道自己定时生成。
const (
	TypeTaskChanged     = "task_changed"
	TypeDocumentChanged = "document_changed"
	TypeLockAcquired    = "lock_acquired"
	TypeLockReleased    = "lock_released"
	TypeLockBroken      = "lock_broken"
	TypeHeartbeat       = "heartbeat"
)

// Event 不可变、即发即弃，不持久化；顺序保证仅为单生产者 FIFO。
type Event struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	UserID    uint64      `json:"userId,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Publisher 由锁管理器和目录服务消费；实现是 Broadcaster 或 Fanout。
type Publisher interface {
	Publish(ev Event)
}
