package handler

import (
	"fmt"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/gin-gonic/gin"
)

// NotificationHandler 通知与 SSE 推送
type NotificationHandler struct {
	svc       *service.NotificationService
	hub       *sse.Hub
	heartbeat time.Duration
}

// NewNotificationHandler creates the handler
func NewNotificationHandler(svc *service.NotificationService, hub *sse.Hub) *NotificationHandler {
	return &NotificationHandler{svc: svc, hub: hub, heartbeat: 30 * time.Second}
}

// List 当前用户的待办通知
// GET /api/v1/notifications
func (h *NotificationHandler) List(c *gin.Context) {
	n, err := h.svc.For(c.Request.Context(), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, n)
}

// Stream handles the SSE endpoint
// GET /api/v1/sse/events?token=xxx
func (h *NotificationHandler) Stream(c *gin.Context) {
	userID := GetUserID(c)
	clientID := fmt.Sprintf("%s_%d", userID, time.Now().UnixNano())

	client := &sse.Client{
		ID:     clientID,
		UserID: userID,
		Events: make(chan sse.Event, 64),
	}

	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(clientID)
		h.svc.Forget(clientID)
	}()

	// Set SSE headers
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	// Send initial connection event
	c.Writer.WriteString("event: connected\ndata: {\"client_id\":\"" + clientID + "\"}\n\n")
	c.Writer.Flush()

	// 连接后立即推送当前通知
	h.svc.Push(c.Request.Context(), h.hub, client)

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	clientGone := c.Request.Context().Done()

	for {
		select {
		case <-clientGone:
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			c.Writer.WriteString(fmt.Sprintf("event: %s\ndata: %s\n\n", event.EventType, event.Data))
			c.Writer.Flush()
		case <-heartbeat.C:
			c.Writer.WriteString(": keepalive\n\n")
			c.Writer.Flush()
		}
	}
}
