package cache

import (
	"fmt"

	"catalogServer/backend/internal/entity"
)

// 键语义：
// - roomKey(kind,id):           实体的编辑者候选集合（Set<userId>）
// - memberKey(kind,id,userID):  编辑者心跳键（String，占位"1"，带 TTL）
// - namesKey(kind,id):          userId→username 映射（Hash）
// - docKey(id):                 文档聚合视图的 JSON 缓存（String，带 TTL）

const (
	keyRoomFmt   = "editing:room:%s:%d"      // Set<userId>
	keyMemberFmt = "editing:member:%s:%d:%d" // String "1" with TTL
	keyNamesFmt  = "editing:names:%s:%d"     // Hash<userId -> username>
	keyDocFmt    = "catalog:doc:%d"          // String JSON with TTL
)

func roomKey(kind entity.Kind, id uint64) string { return fmt.Sprintf(keyRoomFmt, kind, id) }
func memberKey(kind entity.Kind, id, userID uint64) string {
	return fmt.Sprintf(keyMemberFmt, kind, id, userID)
}
func namesKey(kind entity.Kind, id uint64) string { return fmt.Sprintf(keyNamesFmt, kind, id) }
func docKey(id uint64) string                     { return fmt.Sprintf(keyDocFmt, id) }
