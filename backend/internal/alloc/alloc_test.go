package alloc

import (
	"math/rand"
	"testing"

	"catalogServer/backend/internal/entity"
)

func percentages(entries []entity.AllocationEntry) []int {
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.Percentage
	}
	return out
}

func mustValid(t *testing.T, entries []entity.AllocationEntry) {
	t.Helper()
	if err := Validate(entries); err != nil {
		t.Fatalf("invariant broken: %v (list=%v)", err, percentages(entries))
	}
}

func TestAdd_EmptyList(t *testing.T) {
	out, err := Add(nil, 1, 10)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if len(out) != 1 || out[0].Percentage != 100 {
		t.Fatalf("expected [100], got %v", percentages(out))
	}
	mustValid(t, out)
}

func TestAdd_SplitSingleton(t *testing.T) {
	// [100] 新增一个条目 -> {50, 50}
	base, _ := Add(nil, 1, 10)
	out, err := Add(base, 1, 11)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].Percentage != 50 || out[1].Percentage != 50 {
		t.Fatalf("expected {50,50}, got %v", percentages(out))
	}
	if out[0].TaskID != 11 {
		t.Fatalf("new task should sit at the front, got task %d", out[0].TaskID)
	}
	mustValid(t, out)
}

func TestAdd_SplitOddMax(t *testing.T) {
	// 最大值 35：half=17 -> firstHalf=15, secondHalf=20
	entries := []entity.AllocationEntry{
		{DocumentID: 1, TaskID: 10, Percentage: 35, Position: 0},
		{DocumentID: 1, TaskID: 11, Percentage: 35, Position: 1},
		{DocumentID: 1, TaskID: 12, Percentage: 30, Position: 2},
	}
	out, err := Add(entries, 1, 13)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if out[0].TaskID != 13 || out[0].Percentage != 15 {
		t.Fatalf("expected new task with 15 at front, got %v", out[0])
	}
	if out[1].Percentage != 20 {
		t.Fatalf("expected donor to keep 20, got %v", out[1])
	}
	mustValid(t, out)
}

func TestAdd_FullListUnbalanceable(t *testing.T) {
	// 20 个条目全在下限上（5*20=100）：拆分不可行，追加第 21 个后
	// 总和 105 且无可扣条目，平衡修复必然耗尽预算
	entries := make([]entity.AllocationEntry, 0, 20)
	for i := 0; i < 20; i++ {
		entries = append(entries, entity.AllocationEntry{DocumentID: 1, TaskID: uint64(i + 1), Percentage: 5, Position: i})
	}
	if _, err := Add(entries, 1, 99); err != ErrUnbalanceable {
		t.Fatalf("expected ErrUnbalanceable, got %v", err)
	}
}

func TestAdd_DuplicateTask(t *testing.T) {
	base, _ := Add(nil, 1, 10)
	if _, err := Add(base, 1, 10); err == nil {
		t.Fatal("expected error for duplicate attach")
	}
}

func TestRemove_MergesIntoSmallest(t *testing.T) {
	// [40,30,30] 去掉一个 30 -> [40,60]
	entries := []entity.AllocationEntry{
		{DocumentID: 1, TaskID: 10, Percentage: 40, Position: 0},
		{DocumentID: 1, TaskID: 11, Percentage: 30, Position: 1},
		{DocumentID: 1, TaskID: 12, Percentage: 30, Position: 2},
	}
	out, err := Remove(entries, 11)
	if err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(out))
	}
	if out[0].Percentage != 40 || out[1].Percentage != 60 {
		t.Fatalf("expected [40,60], got %v", percentages(out))
	}
	mustValid(t, out)
}

func TestRemove_LastEntry(t *testing.T) {
	base, _ := Add(nil, 1, 10)
	out, err := Remove(base, 10)
	if err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty list, got %v", percentages(out))
	}
}

func TestRemove_NotAttached(t *testing.T) {
	base, _ := Add(nil, 1, 10)
	if _, err := Remove(base, 42); err == nil {
		t.Fatal("expected error for detaching unknown task")
	}
}

func TestRebalance_SubtractsFromLargest(t *testing.T) {
	entries := []entity.AllocationEntry{
		{TaskID: 1, Percentage: 60},
		{TaskID: 2, Percentage: 50},
	}
	if err := Rebalance(entries); err != nil {
		t.Fatalf("Rebalance error: %v", err)
	}
	mustValid(t, entries)
	if entries[0].Percentage != 50 {
		t.Fatalf("expected the largest entry to shrink, got %v", percentages(entries))
	}
}

func TestRebalance_Unbalanceable(t *testing.T) {
	// 全部在下限上且总和超 100：没有可扣的条目
	entries := make([]entity.AllocationEntry, 0, 21)
	for i := 0; i < 21; i++ {
		entries = append(entries, entity.AllocationEntry{TaskID: uint64(i + 1), Percentage: 5})
	}
	if err := Rebalance(entries); err != ErrUnbalanceable {
		t.Fatalf("expected ErrUnbalanceable, got %v", err)
	}
}

func TestAdjustAdjacent_ClampsAtFloor(t *testing.T) {
	entries := []entity.AllocationEntry{
		{TaskID: 1, Percentage: 50, Position: 0},
		{TaskID: 2, Percentage: 50, Position: 1},
	}
	// 要求 +60，但邻居最多让出 45
	if err := AdjustAdjacent(entries, 0, 60); err != nil {
		t.Fatalf("AdjustAdjacent error: %v", err)
	}
	if entries[0].Percentage != 95 || entries[1].Percentage != 5 {
		t.Fatalf("expected [95,5], got %v", percentages(entries))
	}
	mustValid(t, entries)
}

func TestAdjustAdjacent_RoundsDelta(t *testing.T) {
	entries := []entity.AllocationEntry{
		{TaskID: 1, Percentage: 50, Position: 0},
		{TaskID: 2, Percentage: 50, Position: 1},
	}
	// 13 向零取整到 10
	if err := AdjustAdjacent(entries, 0, 13); err != nil {
		t.Fatalf("AdjustAdjacent error: %v", err)
	}
	if entries[0].Percentage != 60 || entries[1].Percentage != 40 {
		t.Fatalf("expected [60,40], got %v", percentages(entries))
	}
	mustValid(t, entries)
}

// 不变式压力测试：随机的 add/remove/adjust 序列之后总和恒为 100
func TestInvariant_RandomOps(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var entries []entity.AllocationEntry
	nextTask := uint64(1)
	attached := []uint64{}

	for step := 0; step < 500; step++ {
		op := rng.Intn(3)
		switch {
		case len(attached) == 0 || (op == 0 && len(attached) < 20):
			out, err := Add(entries, 1, nextTask)
			if err != nil {
				t.Fatalf("step %d: Add error: %v", step, err)
			}
			entries = out
			attached = append(attached, nextTask)
			nextTask++
		case op == 1 && len(attached) > 0:
			pick := rng.Intn(len(attached))
			out, err := Remove(entries, attached[pick])
			if err != nil {
				t.Fatalf("step %d: Remove error: %v", step, err)
			}
			entries = out
			attached = append(attached[:pick], attached[pick+1:]...)
		default:
			if len(entries) >= 2 {
				i := rng.Intn(len(entries) - 1)
				delta := (rng.Intn(9) - 4) * 5
				if err := AdjustAdjacent(entries, i, delta); err != nil {
					t.Fatalf("step %d: AdjustAdjacent error: %v", step, err)
				}
			}
		}
		mustValid(t, entries)
	}
}
