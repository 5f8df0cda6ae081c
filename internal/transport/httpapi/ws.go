package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/errs"
	"gamepub/internal/usecase/upload"
)

const (
	streamBuffer = 32
	writeWait    = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type streamMessage struct {
	Type  string       `json:"type"`
	State upload.State `json:"state"`
}

// streamUpload pushes every session snapshot to a websocket, starting with the current one.
func (s *Server) streamUpload(c *gin.Context) {
	id, m, ok := s.session(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		return
	}
	ctx := logging.WithAttrs(c.Request.Context(), slog.String("session_id", id))

	send := make(chan upload.State, streamBuffer)
	push := func(st upload.State) {
		select {
		case send <- st:
		default:
			// Slow reader: drop this snapshot, a later one supersedes it.
		}
	}
	unsubscribe := m.Subscribe(push)
	defer unsubscribe()
	push(m.State())

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logging.Warn(ctx, "upload stream read failed", slog.Any("err", errs.Loggable(err)))
				}
				return
			}
		}
	}()

	defer conn.Close()
	for {
		select {
		case <-closed:
			return
		case st := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(streamMessage{Type: "state", State: st}); err != nil {
				logging.Warn(ctx, "upload stream write failed", slog.Any("err", errs.Loggable(err)))
				return
			}
		}
	}
}
