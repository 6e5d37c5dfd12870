package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"catalogServer/backend/internal/store"
)

type documentReq struct {
	Title string `json:"title" binding:"required"`
}

func (h *Handlers) CreateDocument(c *gin.Context) {
	var req documentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return
	}
	userID, _ := currentUser(c)
	doc, err := h.Catalog.CreateDocument(c.Request.Context(), userID, req.Title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

func (h *Handlers) ListDocuments(c *gin.Context) {
	docs, err := h.Catalog.ListDocuments(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// GetDocument 读路径：有缓存走缓存（redis + singleflight 回源），没配就直读库
func (h *Handlers) GetDocument(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if h.DocCache != nil {
		b, err := h.DocCache.Get(ctx, id, func() (interface{}, error) {
			view, err := h.Catalog.GetDocument(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				return nil, nil // 写空值标记
			}
			if err != nil {
				return nil, err
			}
			return view, nil
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "application/json", b)
		return
	}

	view, err := h.Catalog.GetDocument(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type attachReq struct {
	TaskID uint64 `json:"taskId" binding:"required"`
}

func (h *Handlers) AttachTask(c *gin.Context) {
	docID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req attachReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return
	}
	userID, _ := currentUser(c)
	if err := h.Catalog.AttachTask(c.Request.Context(), docID, req.TaskID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attached": true})
}

func (h *Handlers) DetachTask(c *gin.Context) {
	docID, ok := parseID(c, "id")
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskId")
	if !ok {
		return
	}
	userID, _ := currentUser(c)
	if err := h.Catalog.DetachTask(c.Request.Context(), docID, taskID, userID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"detached": true})
}

type reorderReq struct {
	TaskIDs []uint64 `json:"taskIds" binding:"required"`
}

func (h *Handlers) Reorder(c *gin.Context) {
	docID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req reorderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return
	}
	userID, _ := currentUser(c)
	if err := h.Catalog.Reorder(c.Request.Context(), docID, userID, req.TaskIDs); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reordered": true})
}

type reweightReq struct {
	Position int `json:"position"`
	Delta    int `json:"delta"`
}

func (h *Handlers) Reweight(c *gin.Context) {
	docID, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req reweightReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "BAD_REQUEST", "message": err.Error()})
		return
	}
	userID, _ := currentUser(c)
	if err := h.Catalog.Reweight(c.Request.Context(), docID, userID, req.Position, req.Delta); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reweighted": true})
}
