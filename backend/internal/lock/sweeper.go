package lock

import (
	"context"
	"log"
	"time"
)

// SweepInterval 固定 5 分钟，独立于任何请求流量。
const SweepInterval = 5 * time.Minute

// Sweeper 周期性批量清理过期锁的后台任务。
// 出错只记日志，下个 tick 重试，从不上抛给任何客户端。
type Sweeper struct {
	manager  *Manager
	interval time.Duration
}

func NewSweeper(m *Manager) *Sweeper {
	return &Sweeper{manager: m, interval: SweepInterval}
}

// NewSweeperWithInterval 测试用
func NewSweeperWithInterval(m *Manager, interval time.Duration) *Sweeper {
	return &Sweeper{manager: m, interval: interval}
}

// Run 阻塞直到 ctx 取消；调用方自己 go 出去。
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.manager.SweepExpired(ctx)
			if err != nil {
				log.Printf("sweeper: sweep failed, retry next tick: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweeper: cleared %d expired locks", n)
			}
		}
	}
}
