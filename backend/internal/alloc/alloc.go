// Package alloc 维护文档分配列表的百分比不变式：
// 每个值是 5 的倍数且 >= 5，非空列表总和恒等于 100。
// 这里全部是纯函数，调用方负责把结果写回存储（与结构变更同一事务）。
package alloc

import (
	"errors"
	"fmt"

	"catalogServer/backend/internal/entity"
)

const (
	// Step 调整步长，所有百分比都对齐到它
	Step = 5
	// Floor 单个条目的最小百分比
	Floor = 5
	// Total 非空列表的总和
	Total = 100
	// RepairBudget 平衡修复的迭代上限，超过即放弃本次变更
	RepairBudget = 100
)

// ErrUnbalanceable 平衡修复在迭代预算内无法把总和凑回 100。
// 对单次请求是致命错误：触发它的结构变更必须整体回滚。
var ErrUnbalanceable = errors.New("allocation cannot be rebalanced to 100")

// Add 在列表中为 taskID 新增一个条目（N -> N+1）。
//   - 空列表：新条目直接拿 100。
//   - 否则找最大值 M 对半拆分（低半对齐到 5 的倍数）；两半拼成
//     (min, max) 放到列表头部，新任务拿 min，原持有者拿 max，其余顺序不变。
//   - M 太小拆不动（任一半 < 5）时退化为末尾追加 5 再做平衡修复。
func Add(entries []entity.AllocationEntry, docID, taskID uint64) ([]entity.AllocationEntry, error) {
	for _, e := range entries {
		if e.TaskID == taskID {
			return nil, fmt.Errorf("task %d already attached to document %d", taskID, docID)
		}
	}
	if len(entries) == 0 {
		return renumber([]entity.AllocationEntry{{DocumentID: docID, TaskID: taskID, Percentage: Total}}), nil
	}

	maxIdx := 0
	for i, e := range entries {
		if e.Percentage > entries[maxIdx].Percentage {
			maxIdx = i
		}
	}
	m := entries[maxIdx].Percentage

	if m > Floor {
		half := m / 2
		firstHalf := (half / Step) * Step
		secondHalf := m - firstHalf
		if firstHalf >= Floor && secondHalf >= Floor {
			lo, hi := firstHalf, secondHalf
			if lo > hi {
				lo, hi = hi, lo
			}
			donor := entries[maxIdx]
			donor.Percentage = hi
			out := make([]entity.AllocationEntry, 0, len(entries)+1)
			out = append(out, entity.AllocationEntry{DocumentID: docID, TaskID: taskID, Percentage: lo})
			out = append(out, donor)
			for i, e := range entries {
				if i != maxIdx {
					out = append(out, e)
				}
			}
			return renumber(out), nil
		}
	}

	// 拆分不可行：追加默认 5，交给平衡修复吸收多出来的 5
	out := append(cloneEntries(entries), entity.AllocationEntry{DocumentID: docID, TaskID: taskID, Percentage: Floor})
	if err := Rebalance(out); err != nil {
		return nil, err
	}
	return renumber(out), nil
}

// Remove 把 taskID 的条目从列表中摘除（N -> N-1）。
// 被摘除条目的百分比并入剩余列表中当前最小的条目；
// 合并结果不是 5 的倍数时放弃合并，改为对剩余列表做平衡修复。
// 摘除最后一个条目得到空列表（总和不变式对空列表不适用）。
func Remove(entries []entity.AllocationEntry, taskID uint64) ([]entity.AllocationEntry, error) {
	idx := -1
	for i, e := range entries {
		if e.TaskID == taskID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("task %d not attached", taskID)
	}
	removed := entries[idx]
	out := make([]entity.AllocationEntry, 0, len(entries)-1)
	for i, e := range entries {
		if i != idx {
			out = append(out, e)
		}
	}
	if len(out) == 0 {
		return out, nil
	}

	minIdx := 0
	for i, e := range out {
		if e.Percentage < out[minIdx].Percentage {
			minIdx = i
		}
	}
	merged := out[minIdx].Percentage + removed.Percentage
	if merged%Step == 0 {
		out[minIdx].Percentage = merged
	} else if err := Rebalance(out); err != nil {
		return nil, err
	}
	return renumber(out), nil
}

// Rebalance 平衡修复：以 5 为步长调整，直到总和回到 100 或预算耗尽。
// 总和偏小时给当前最大条目 +5；偏大时在所有 > 5 的条目里挑最大的 -5。
// 原地修改 entries。
func Rebalance(entries []entity.AllocationEntry) error {
	if len(entries) == 0 {
		return nil
	}
	for iter := 0; iter < RepairBudget; iter++ {
		sum := 0
		for _, e := range entries {
			sum += e.Percentage
		}
		if sum == Total {
			return nil
		}
		if sum < Total {
			maxIdx := 0
			for i, e := range entries {
				if e.Percentage > entries[maxIdx].Percentage {
					maxIdx = i
				}
			}
			entries[maxIdx].Percentage += Step
			continue
		}
		// sum > Total：只能从大于下限的条目里扣
		pick := -1
		for i, e := range entries {
			if e.Percentage > Floor && (pick < 0 || e.Percentage > entries[pick].Percentage) {
				pick = i
			}
		}
		if pick < 0 {
			return ErrUnbalanceable
		}
		entries[pick].Percentage -= Step
	}
	sum := 0
	for _, e := range entries {
		sum += e.Percentage
	}
	if sum != Total {
		return ErrUnbalanceable
	}
	return nil
}

// AdjustAdjacent 手动拖动：给位置 i 的条目一个有符号增量，i+1 承受相反的增量。
// 增量先向零取整到 5 的倍数，再按两侧下限 5 收缩到实际可用的幅度，
// 最后跑一次平衡修复吸收残余偏差。原地修改 entries。
func AdjustAdjacent(entries []entity.AllocationEntry, i, delta int) error {
	if i < 0 || i+1 >= len(entries) {
		return fmt.Errorf("no adjacent pair at position %d", i)
	}
	if delta > 0 {
		delta = (delta / Step) * Step
	} else {
		delta = -((-delta / Step) * Step)
	}
	// 夹紧：两侧调整后都不得低于下限
	if entries[i].Percentage+delta < Floor {
		delta = Floor - entries[i].Percentage
	}
	if entries[i+1].Percentage-delta < Floor {
		delta = entries[i+1].Percentage - Floor
	}
	entries[i].Percentage += delta
	entries[i+1].Percentage -= delta
	return Rebalance(entries)
}

// Validate 校验全部不变式，存储前的最后防线。
func Validate(entries []entity.AllocationEntry) error {
	if len(entries) == 0 {
		return nil
	}
	sum := 0
	for _, e := range entries {
		if e.Percentage < Floor {
			return fmt.Errorf("task %d below floor: %d", e.TaskID, e.Percentage)
		}
		if e.Percentage%Step != 0 {
			return fmt.Errorf("task %d not a multiple of %d: %d", e.TaskID, Step, e.Percentage)
		}
		sum += e.Percentage
	}
	if sum != Total {
		return fmt.Errorf("allocation sums to %d, want %d", sum, Total)
	}
	return nil
}

func renumber(entries []entity.AllocationEntry) []entity.AllocationEntry {
	for i := range entries {
		entries[i].Position = i
	}
	return entries
}

func cloneEntries(entries []entity.AllocationEntry) []entity.AllocationEntry {
	out := make([]entity.AllocationEntry, len(entries))
	copy(out, entries)
	return out
}
