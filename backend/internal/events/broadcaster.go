package events

import (
	"log"
	"sync"
	"time"
)

// DefaultHeartbeat 每个通道独立的心跳周期
const DefaultHeartbeat = 30 * time.Second

const channelBuffer = 32

// Channel 一个已连接用户的出站队列。
// 每个 userId 至多一个通道：同一用户重复连接时旧通道被显式关闭后替换，
// 而不是悄悄覆盖 map 条目。
type Channel struct {
	UserID      uint64
	ConnectedAt time.Time

	mu     sync.Mutex
	closed bool
	send   chan Event
	done   chan struct{}
}

// Events 消费端读取出站事件；通道关闭即连接结束。
func (c *Channel) Events() <-chan Event { return c.send }

// trySend 非阻塞投递。队列满或通道已关闭都算投递失败，由调用方决定是否记日志。
func (c *Channel) trySend(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Channel) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	close(c.send)
}

// Broadcaster 维护 userId -> Channel 的并发安全映射，把领域事件扇出给所有在线用户。
// 投递保证：每通道至多一次，无积压回放；慢/断的通道只影响它自己。
type Broadcaster struct {
	mu        sync.Mutex
	channels  map[uint64]*Channel
	heartbeat time.Duration
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{channels: make(map[uint64]*Channel), heartbeat: DefaultHeartbeat}
}

// NewBroadcasterWithHeartbeat 测试用：缩短心跳周期
func NewBroadcasterWithHeartbeat(hb time.Duration) *Broadcaster {
	return &Broadcaster{channels: make(map[uint64]*Channel), heartbeat: hb}
}

// Connect 为 userID 注册一个新通道。
// 同一用户已有通道时先关闭旧的再替换（close-then-replace），
// 让旧连接的读循环立刻结束，而不是留一个无法关闭的孤儿。
func (b *Broadcaster) Connect(userID uint64) *Channel {
	ch := &Channel{
		UserID:      userID,
		ConnectedAt: time.Now(),
		send:        make(chan Event, channelBuffer),
		done:        make(chan struct{}),
	}
	b.mu.Lock()
	if old, ok := b.channels[userID]; ok {
		old.close()
	}
	b.channels[userID] = ch
	b.mu.Unlock()

	go b.heartbeatLoop(ch)
	return ch
}

// Disconnect 移除并关闭通道。只在 map 里仍然是这个通道时才摘除，
// 避免断开一个已被重复连接替换掉的旧通道时误伤新通道。
func (b *Broadcaster) Disconnect(ch *Channel) {
	b.mu.Lock()
	if cur, ok := b.channels[ch.UserID]; ok && cur == ch {
		delete(b.channels, ch.UserID)
	}
	b.mu.Unlock()
	ch.close()
}

// Publish 把事件投递给所有当前注册的通道，尽力而为。
// 单个通道投递失败只记日志，不向调用方抛出，也不阻塞其他通道。
func (b *Broadcaster) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	b.mu.Lock()
	targets := make([]*Channel, 0, len(b.channels))
	for _, ch := range b.channels {
		targets = append(targets, ch)
	}
	b.mu.Unlock()

	for _, ch := range targets {
		if !ch.trySend(ev) {
			log.Printf("events: drop %s for user %d (channel full or closed)", ev.Type, ch.UserID)
		}
	}
}

// ConnectedUsers 当前在线的 userId 列表（诊断接口用）
func (b *Broadcaster) ConnectedUsers() []uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]uint64, 0, len(b.channels))
	for id := range b.channels {
		out = append(out, id)
	}
	return out
}

// 心跳不经过 Publish：它只证明本条连接还活着，不计入投递失败统计。
// 通道关闭时它的心跳随之停止，其他通道不受影响。
func (b *Broadcaster) heartbeatLoop(ch *Channel) {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ch.done:
			return
		case <-ticker.C:
			ch.trySend(Event{Type: TypeHeartbeat, Timestamp: time.Now()})
		}
	}
}
