package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type taskReq struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

func (h *Handlers) CreateTask(c *gin.Context) {
	var req taskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return
	}
	task, err := h.Catalog.CreateTask(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

func (h *Handlers) ListTasks(c *gin.Context) {
	tasks, err := h.Catalog.ListTasks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

// UpdateTask 结构性修改，要求调用方先持有该任务的锁
func (h *Handlers) UpdateTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req taskReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return
	}
	userID, _ := currentUser(c)
	if err := h.Catalog.UpdateTask(c.Request.Context(), id, userID, req.Title, req.Description); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}
