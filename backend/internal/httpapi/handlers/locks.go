package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type lockReq struct {
	DurationMs int64 `json:"durationMs"`
}

func (h *Handlers) lockDuration(c *gin.Context) time.Duration {
	var req lockReq
	// body 可省略，省略时用配置的默认时长
	if err := c.ShouldBindJSON(&req); err == nil && req.DurationMs > 0 {
		return time.Duration(req.DurationMs) * time.Millisecond
	}
	return h.DefaultLockDuration
}

func (h *Handlers) AcquireLock(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, username := currentUser(c)
	duration := h.lockDuration(c)

	view, err := h.Locks.Acquire(c.Request.Context(), kind, id, userID, duration)
	if err != nil {
		writeError(c, err)
		return
	}
	// 拿到锁就算进入编辑状态，presence 的 TTL 跟锁寿命走
	if h.Presence != nil {
		if err := h.Presence.AddEditor(c.Request.Context(), kind, id, userID, username, duration); err != nil {
			// presence 失败不影响锁本身
			c.Header("X-Presence-Degraded", "1")
		}
	}
	c.JSON(http.StatusOK, gin.H{"lock": view})
}

func (h *Handlers) ReleaseLock(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, _ := currentUser(c)

	if err := h.Locks.Release(c.Request.Context(), kind, id, userID); err != nil {
		writeError(c, err)
		return
	}
	if h.Presence != nil {
		_ = h.Presence.RemoveEditor(c.Request.Context(), kind, id, userID)
	}
	c.JSON(http.StatusOK, gin.H{"released": true})
}

func (h *Handlers) RefreshLock(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, username := currentUser(c)
	duration := h.lockDuration(c)

	view, err := h.Locks.Refresh(c.Request.Context(), kind, id, userID, duration)
	if err != nil {
		writeError(c, err)
		return
	}
	if h.Presence != nil {
		_ = h.Presence.AddEditor(c.Request.Context(), kind, id, userID, username, duration)
	}
	c.JSON(http.StatusOK, gin.H{"lock": view})
}

func (h *Handlers) BreakLock(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	cleared, err := h.Locks.Break(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (h *Handlers) LockStatus(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	view, err := h.Locks.Status(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"lock": view})
}

func (h *Handlers) ListEditors(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		return
	}
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if h.Presence == nil {
		c.JSON(http.StatusOK, gin.H{"editors": []struct{}{}})
		return
	}
	editors, err := h.Presence.AliveEditors(c.Request.Context(), kind, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"editors": editors})
}
