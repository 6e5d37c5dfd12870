package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"catalogServer/backend/internal/alloc"
	"catalogServer/backend/internal/cache"
	"catalogServer/backend/internal/catalog"
	"catalogServer/backend/internal/entity"
	"catalogServer/backend/internal/events"
	"catalogServer/backend/internal/lock"
	"catalogServer/backend/internal/store"
)

// Handlers 汇集 HTTP 层依赖。presence/docCache 可以为 nil（本地裸跑）。
type Handlers struct {
	Catalog     *catalog.Service
	Locks       *lock.Manager
	Broadcaster *events.Broadcaster
	Presence    cache.PresenceCache
	DocCache    *cache.DocCache

	// DefaultLockDuration / RefreshInterval 来自配置，原样透给客户端
	DefaultLockDuration time.Duration
	RefreshInterval     time.Duration
}

// Register 挂路由。调用方负责在 group 上先挂好鉴权中间件。
func (h *Handlers) Register(g *gin.RouterGroup) {
	g.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})
	g.GET("/client-config", h.ClientConfig)

	g.POST("/tasks", h.CreateTask)
	g.GET("/tasks", h.ListTasks)
	g.PUT("/tasks/:id", h.UpdateTask)

	g.POST("/documents", h.CreateDocument)
	g.GET("/documents", h.ListDocuments)
	g.GET("/documents/:id", h.GetDocument)
	g.POST("/documents/:id/tasks", h.AttachTask)
	g.DELETE("/documents/:id/tasks/:taskId", h.DetachTask)
	g.PUT("/documents/:id/order", h.Reorder)
	g.POST("/documents/:id/reweight", h.Reweight)

	g.POST("/locks/:kind/:id", h.AcquireLock)
	g.DELETE("/locks/:kind/:id", h.ReleaseLock)
	g.POST("/locks/:kind/:id/refresh", h.RefreshLock)
	g.DELETE("/locks/:kind/:id/force", h.BreakLock)
	g.GET("/locks/:kind/:id", h.LockStatus)
	g.GET("/editors/:kind/:id", h.ListEditors)

	g.GET("/events", h.EventStream)
	g.GET("/ws", h.WebSocketStream)
}

// ClientConfig 客户端协调器要的节奏参数：默认锁时长和刷新间隔
func (h *Handlers) ClientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"defaultLockDurationMs": h.DefaultLockDuration.Milliseconds(),
		"lockRefreshIntervalMs": h.RefreshInterval.Milliseconds(),
		"heartbeatIntervalMs":   events.DefaultHeartbeat.Milliseconds(),
	})
}

func currentUser(c *gin.Context) (uint64, string) {
	return c.GetUint64("userId"), c.GetString("username")
}

func parseKind(c *gin.Context) (entity.Kind, bool) {
	kind := entity.Kind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_KIND", "message": "kind must be task or document"})
		return "", false
	}
	return kind, true
}

func parseID(c *gin.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_ID", "message": "invalid " + name})
		return 0, false
	}
	return id, true
}

// writeError 统一的错误分类：锁冲突带上当前 LockView，前端好展示持有人
func writeError(c *gin.Context, err error) {
	var conflict *lock.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "LOCK_CONFLICT",
			"message": conflict.Error(),
			"lock":    conflict.View,
		})
	case errors.Is(err, lock.ErrNotOwner):
		c.JSON(http.StatusForbidden, gin.H{"code": "LOCK_NOT_OWNER", "message": err.Error()})
	case errors.Is(err, catalog.ErrLockNotHeld):
		c.JSON(http.StatusPreconditionFailed, gin.H{"code": "LOCK_NOT_HELD", "message": err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, cache.ErrCachedNotFound):
		c.JSON(http.StatusNotFound, gin.H{"code": "NOT_FOUND", "message": err.Error()})
	case errors.Is(err, alloc.ErrUnbalanceable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"code": "ALLOCATION_UNSATISFIABLE", "message": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"code": "INTERNAL", "message": err.Error()})
	}
}
