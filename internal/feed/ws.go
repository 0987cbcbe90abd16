package feed

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// Handler streams hub events to a WebSocket client as JSON text frames.
// Inbound frames are ignored.
type Handler struct {
	Hub    *Hub
	Logger *zap.Logger
	// OriginPatterns is passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/ws/opportunities", h.Stream)
}

func (h *Handler) Stream(c *gin.Context) {
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: h.OriginPatterns,
	})
	if err != nil {
		h.logger().Debug("feed accept failed", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusInternalError, "feed closed") }()

	events, cancel := h.Hub.Subscribe()
	defer cancel()

	ctx := conn.CloseRead(c.Request.Context())
	h.logger().Debug("feed subscriber joined", zap.Int("subscribers", h.Hub.Subscribers()))

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := write(ctx, conn, ev); err != nil {
				if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
					h.logger().Debug("feed write failed", zap.Error(err))
				}
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, ev Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}

func (h *Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}
