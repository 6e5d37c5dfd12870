package store

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"catalogServer/backend/internal/entity"
)

// 任务与文档的业务字段读写。锁三元组只能经由 store.go 里的条件更新变化，
// 这里的更新都绕开锁字段。

func (s *Store) CreateTask(ctx context.Context, task *entity.Task) error {
	return s.db.WithContext(ctx).Create(task).Error
}

func (s *Store) GetTask(ctx context.Context, id uint64) (*entity.Task, error) {
	var task entity.Task
	err := s.db.WithContext(ctx).Take(&task, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *Store) ListTasks(ctx context.Context) ([]entity.Task, error) {
	var tasks []entity.Task
	err := s.db.WithContext(ctx).Order("id").Find(&tasks).Error
	return tasks, err
}

func (s *Store) UpdateTask(ctx context.Context, id uint64, title, description string) error {
	res := s.db.WithContext(ctx).Model(&entity.Task{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"title": title, "description": description})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *entity.Document) error {
	return s.db.WithContext(ctx).Create(doc).Error
}

func (s *Store) GetDocument(ctx context.Context, id uint64) (*entity.Document, error) {
	var doc entity.Document
	err := s.db.WithContext(ctx).Take(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]entity.Document, error) {
	var docs []entity.Document
	err := s.db.WithContext(ctx).Order("id").Find(&docs).Error
	return docs, err
}

// ListAllocation 按 position 排好序返回文档的分配列表。
func (s *Store) ListAllocation(ctx context.Context, docID uint64) ([]entity.AllocationEntry, error) {
	var entries []entity.AllocationEntry
	err := s.db.WithContext(ctx).
		Where("document_id = ?", docID).
		Order("position").
		Find(&entries).Error
	return entries, err
}

// ReplaceAllocation 整体替换文档的分配列表。必须在事务内调用
// （Transaction 包装），保证删旧插新对读者原子可见。
func (s *Store) ReplaceAllocation(ctx context.Context, docID uint64, entries []entity.AllocationEntry) error {
	db := s.db.WithContext(ctx)
	if err := db.Where("document_id = ?", docID).Delete(&entity.AllocationEntry{}).Error; err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}
	for i := range entries {
		entries[i].ID = 0
		entries[i].DocumentID = docID
	}
	return db.Create(&entries).Error
}
