package httpapi

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"gamepub/internal/bootstrap/logging"
	"gamepub/internal/ports"
)

const (
	actorKey        = "actor"
	requestIDHeader = "X-Request-ID"
	// Browsers cannot set headers on websocket handshakes.
	tokenQueryParam = "access_token"
)

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		ctx := logging.WithAttrs(c.Request.Context(), slog.String("component", "httpapi"))
		ctx = logging.WithRequest(ctx, requestID, "")
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()

		attrs := []slog.Attr{
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= 500 {
			logging.Warn(c.Request.Context(), "http request", attrs...)
			return
		}
		logging.Info(c.Request.Context(), "http request", attrs...)
	}
}

// authRequired resolves the bearer token into an actor for the rest of the chain.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			abortWithError(c, ports.ErrUnauthenticated)
			return
		}
		actor, err := s.identity.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(actorKey, actor)
		ctx := logging.WithRequest(c.Request.Context(), c.Writer.Header().Get(requestIDHeader), actor.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if websocket.IsWebSocketUpgrade(c.Request) {
		return strings.TrimSpace(c.Query(tokenQueryParam))
	}
	return ""
}

func actorFrom(c *gin.Context) ports.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return ports.Actor{}
	}
	actor, _ := v.(ports.Actor)
	return actor
}
