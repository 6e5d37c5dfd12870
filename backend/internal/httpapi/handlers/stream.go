package handlers

import (
	"io"

	"github.com/gin-gonic/gin"
)

// EventStream 每个已认证用户一条 SSE 长连接。
// 连接即注册广播通道（同用户重复连接会关掉旧的那条），
// 断开只影响自己：锁不受影响，错过的事件不补发，客户端重连后自己拉权威状态。
func (h *Handlers) EventStream(c *gin.Context) {
	userID, _ := currentUser(c)
	ch := h.Broadcaster.Connect(userID)
	defer h.Broadcaster.Disconnect(ch)

	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch.Events():
			if !ok {
				// 通道被替换或服务端关闭
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
