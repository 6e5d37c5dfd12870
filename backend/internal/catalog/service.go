// Package catalog 编排目录的结构性修改：建任务/建文档、挂接/摘除任务、
// 调序、手动调权。每个修改都要求调用方先持有对应实体的锁，
// 分配算法在同一个数据库事务里执行，变更成功后广播领域事件。
package catalog

import (
	"context"
	"errors"
	"fmt"

	"catalogServer/backend/internal/alloc"
	"catalogServer/backend/internal/entity"
	"catalogServer/backend/internal/events"
	"catalogServer/backend/internal/lock"
	"catalogServer/backend/internal/store"
)

// ErrLockNotHeld 没先拿锁就想做结构性修改。与 LockConflict 是两种前置失败：
// 这个是调用方自己没走流程，不是别人占着。
var ErrLockNotHeld = errors.New("entity lock not held by caller")

// Invalidator 文档读缓存的失效钩子（可以为 nil）
type Invalidator interface {
	Invalidate(ctx context.Context, docID uint64)
}

type Service struct {
	store *store.Store
	locks *lock.Manager
	pub   events.Publisher
	inval Invalidator
}

func NewService(s *store.Store, locks *lock.Manager, pub events.Publisher, inval Invalidator) *Service {
	return &Service{store: s, locks: locks, pub: pub, inval: inval}
}

// DocumentView 文档 + 分配列表，读路径的聚合结果
type DocumentView struct {
	Document   entity.Document          `json:"document"`
	Allocation []entity.AllocationEntry `json:"allocation"`
}

func (svc *Service) CreateTask(ctx context.Context, title, description string) (*entity.Task, error) {
	task := &entity.Task{Title: title, Description: description}
	if err := svc.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	svc.publishEntity(events.TypeTaskChanged, 0, task.ID, "created")
	return task, nil
}

func (svc *Service) UpdateTask(ctx context.Context, taskID, userID uint64, title, description string) error {
	if err := svc.requireLock(ctx, entity.KindTask, taskID, userID); err != nil {
		return err
	}
	if err := svc.store.UpdateTask(ctx, taskID, title, description); err != nil {
		return err
	}
	svc.publishEntity(events.TypeTaskChanged, userID, taskID, "updated")
	return nil
}

func (svc *Service) CreateDocument(ctx context.Context, ownerID uint64, title string) (*entity.Document, error) {
	doc := &entity.Document{Title: title, OwnerID: ownerID}
	if err := svc.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	svc.publishEntity(events.TypeDocumentChanged, ownerID, doc.ID, "created")
	return doc, nil
}

func (svc *Service) ListTasks(ctx context.Context) ([]entity.Task, error) {
	return svc.store.ListTasks(ctx)
}

func (svc *Service) ListDocuments(ctx context.Context) ([]entity.Document, error) {
	return svc.store.ListDocuments(ctx)
}

func (svc *Service) GetDocument(ctx context.Context, docID uint64) (*DocumentView, error) {
	doc, err := svc.store.GetDocument(ctx, docID)
	if err != nil {
		return nil, err
	}
	entries, err := svc.store.ListAllocation(ctx, docID)
	if err != nil {
		return nil, err
	}
	return &DocumentView{Document: *doc, Allocation: entries}, nil
}

// AttachTask 把任务挂进文档的分配列表（N -> N+1）。
func (svc *Service) AttachTask(ctx context.Context, docID, taskID, userID uint64) error {
	if err := svc.requireLock(ctx, entity.KindDocument, docID, userID); err != nil {
		return err
	}
	if _, err := svc.store.GetTask(ctx, taskID); err != nil {
		return err
	}
	err := svc.store.Transaction(ctx, func(tx *store.Store) error {
		entries, err := tx.ListAllocation(ctx, docID)
		if err != nil {
			return err
		}
		next, err := alloc.Add(entries, docID, taskID)
		if err != nil {
			return err
		}
		if err := alloc.Validate(next); err != nil {
			return err
		}
		return tx.ReplaceAllocation(ctx, docID, next)
	})
	if err != nil {
		return err
	}
	svc.afterDocumentChange(ctx, userID, docID, "task_attached")
	return nil
}

// DetachTask 把任务从文档摘除（N -> N-1），权重并回剩余条目。
func (svc *Service) DetachTask(ctx context.Context, docID, taskID, userID uint64) error {
	if err := svc.requireLock(ctx, entity.KindDocument, docID, userID); err != nil {
		return err
	}
	err := svc.store.Transaction(ctx, func(tx *store.Store) error {
		entries, err := tx.ListAllocation(ctx, docID)
		if err != nil {
			return err
		}
		next, err := alloc.Remove(entries, taskID)
		if err != nil {
			return err
		}
		if err := alloc.Validate(next); err != nil {
			return err
		}
		return tx.ReplaceAllocation(ctx, docID, next)
	})
	if err != nil {
		return err
	}
	svc.afterDocumentChange(ctx, userID, docID, "task_detached")
	return nil
}

// Reorder 重排分配列表（拖拽排序）。taskIDs 是目标顺序，必须与现有集合一致；
// 百分比跟着条目走，顺序变化不触碰权重。
func (svc *Service) Reorder(ctx context.Context, docID, userID uint64, taskIDs []uint64) error {
	if err := svc.requireLock(ctx, entity.KindDocument, docID, userID); err != nil {
		return err
	}
	err := svc.store.Transaction(ctx, func(tx *store.Store) error {
		entries, err := tx.ListAllocation(ctx, docID)
		if err != nil {
			return err
		}
		if len(taskIDs) != len(entries) {
			return fmt.Errorf("reorder lists %d tasks, document has %d", len(taskIDs), len(entries))
		}
		byTask := make(map[uint64]entity.AllocationEntry, len(entries))
		for _, e := range entries {
			byTask[e.TaskID] = e
		}
		next := make([]entity.AllocationEntry, 0, len(entries))
		for pos, id := range taskIDs {
			e, ok := byTask[id]
			if !ok {
				return fmt.Errorf("task %d not attached", id)
			}
			delete(byTask, id)
			e.Position = pos
			next = append(next, e)
		}
		return tx.ReplaceAllocation(ctx, docID, next)
	})
	if err != nil {
		return err
	}
	svc.afterDocumentChange(ctx, userID, docID, "reordered")
	return nil
}

// Reweight 手动调权：给 position 位置的条目一个有符号增量，右邻承受反向增量。
func (svc *Service) Reweight(ctx context.Context, docID, userID uint64, position, delta int) error {
	if err := svc.requireLock(ctx, entity.KindDocument, docID, userID); err != nil {
		return err
	}
	err := svc.store.Transaction(ctx, func(tx *store.Store) error {
		entries, err := tx.ListAllocation(ctx, docID)
		if err != nil {
			return err
		}
		if err := alloc.AdjustAdjacent(entries, position, delta); err != nil {
			return err
		}
		if err := alloc.Validate(entries); err != nil {
			return err
		}
		return tx.ReplaceAllocation(ctx, docID, entries)
	})
	if err != nil {
		return err
	}
	svc.afterDocumentChange(ctx, userID, docID, "reweighted")
	return nil
}

func (svc *Service) requireLock(ctx context.Context, kind entity.Kind, id, userID uint64) error {
	held, err := svc.locks.HeldBy(ctx, kind, id, userID)
	if err != nil {
		return err
	}
	if !held {
		return ErrLockNotHeld
	}
	return nil
}

// EntityPayload 数据变更事件的载荷
type EntityPayload struct {
	Kind   entity.Kind `json:"kind"`
	ID     uint64      `json:"id"`
	Action string      `json:"action"`
}

func (svc *Service) publishEntity(eventType string, userID, id uint64, action string) {
	if svc.pub == nil {
		return
	}
	kind := entity.KindTask
	if eventType == events.TypeDocumentChanged {
		kind = entity.KindDocument
	}
	svc.pub.Publish(events.Event{
		Type:    eventType,
		UserID:  userID,
		Payload: EntityPayload{Kind: kind, ID: id, Action: action},
	})
}

func (svc *Service) afterDocumentChange(ctx context.Context, userID, docID uint64, action string) {
	if svc.inval != nil {
		svc.inval.Invalidate(ctx, docID)
	}
	svc.publishEntity(events.TypeDocumentChanged, userID, docID, action)
}
