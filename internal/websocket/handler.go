package websocket

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"civic-polls/internal/metrics"
	"civic-polls/internal/services"
	"civic-polls/internal/transport/httpdto"
	"civic-polls/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Authenticator is implemented by services.AuthService.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (services.Principal, error)
}

type Handler struct {
	auth       Authenticator
	hub        *Hub
	authorizer *ChannelAuthorizer
	upgrader   websocket.Upgrader
	log        *logger.Logger
}

func NewHandler(auth Authenticator, hub *Hub, allowedOrigins []string, log *logger.Logger) *Handler {
	h := &Handler{
		auth:       auth,
		hub:        hub,
		authorizer: NewChannelAuthorizer(),
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// Connect upgrades GET /v1/realtime?token=&tables=. The access token goes in
// the query since browsers cannot set headers on a WebSocket handshake.
func (h *Handler) Connect(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	principal, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Ctx(c.Request.Context()).Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	userID := principal.UserID.String()
	client := NewClient(conn, userID, principal.SessionID.String())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h.hub.Register(client)
	channels := h.authorizer.ChannelsFor(userID, c.Query("tables"))
	for _, channel := range channels {
		h.hub.Subscribe(client, channel)
	}
	metrics.RealtimeClients.Inc()
	defer metrics.RealtimeClients.Dec()

	log := h.log.Ctx(c.Request.Context()).With(
		zap.String("component", "websocket"),
		zap.String("user_id", userID),
		zap.String("client_id", client.ID),
	)
	log.Info("realtime client connected", zap.Strings("channels", channels))
	defer log.Info("realtime client disconnected")

	go client.WriteLoop(ctx)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// The feed is server to client only; reads just detect closure and pongs.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	}

	h.hub.Unregister(client)
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if allowAll || origin == "" {
			return true
		}
		if u, err := url.Parse(origin); err == nil && set[u.Scheme+"://"+u.Host] {
			return true
		}
		return set[origin]
	}
}
