package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"catalogServer/backend/internal/entity"
)

// 全局的WebSocket upgrader（允许本地开发环境的来源）
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" {
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type wsClientMessage struct {
	Type string      `json:"type"`
	Kind entity.Kind `json:"kind,omitempty"`
	ID   uint64      `json:"id,omitempty"`
}

// ws presence 心跳的存活时长
const wsPresenceTTL = 600 * time.Second

// WebSocketStream SSE 之外的第二条事件通道，给原生客户端用。
// 同一个广播通道：SSE 和 ws 对 userId 互斥，后连的顶掉先连的。
func (h *Handlers) WebSocketStream(c *gin.Context) {
	userID, username := currentUser(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	ch := h.Broadcaster.Connect(userID)
	defer h.Broadcaster.Disconnect(ch)

	// 写循环：把广播通道的事件推给客户端；通道被替换/关闭时顺带关掉连接
	go func() {
		for ev := range ch.Events() {
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "replaced"), deadline)
		_ = conn.Close()
	}()

	// 读循环（阻塞至连接关闭）：客户端心跳维持 presence
	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "heartbeat":
			if h.Presence != nil && msg.Kind.Valid() {
				if err := h.Presence.AddEditor(c.Request.Context(), msg.Kind, msg.ID, userID, username, wsPresenceTTL); err != nil {
					log.Printf("presence heartbeat error: %v", err)
				}
			}
		default:
			// 忽略未知类型
		}
	}
}
