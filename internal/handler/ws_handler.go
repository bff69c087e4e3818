package handler

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/weiawesome/live-poll/internal/config"
	"github.com/weiawesome/live-poll/internal/domain"
	"github.com/weiawesome/live-poll/internal/hub"
	"github.com/weiawesome/live-poll/internal/session"
	"github.com/weiawesome/live-poll/pkg/log"
	"github.com/weiawesome/live-poll/pkg/middleware"
)

type WSHandler struct {
	hub      *hub.Hub
	session  *session.Session
	wsCfg    config.WebSocketConfig
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, s *session.Session, wsCfg config.WebSocketConfig, origins *middleware.OriginPolicy) *WSHandler {
	return &WSHandler{
		hub:     h,
		session: s,
		wsCfg:   wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.CheckOrigin,
		},
	}
}

// RegisterRoutes mounts the WebSocket endpoint behind the given middleware.
func (h *WSHandler) RegisterRoutes(r *gin.Engine, mw ...gin.HandlerFunc) {
	r.GET("/ws", append(mw, h.HandleWebSocket)...)
}

func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	role := domain.RoleParticipant
	if middleware.IsPresenter(c) {
		role = domain.RolePresenter
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		l := log.Ctx(c.Request.Context())
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	id := uuid.New().String()
	ctx := log.WithConnection(context.Background(), id)

	client := hub.NewClient(id, role, h.hub, conn, h.wsCfg)
	client.SetDisconnectHandler(func(cl *hub.Client) {
		h.session.Disconnect(ctx, cl.ID)
	})

	// Registered with the hub first so the snapshot sent by Connect has
	// somewhere to go.
	h.hub.Register(client)
	h.session.Connect(ctx, id, role)

	go client.WritePump()
	go client.ReadPump(func(cl *hub.Client, message []byte) {
		h.handleMessage(ctx, cl, message)
	})
}

// handleMessage decodes and applies one frame. Failures are never
// reported to the sender; they are only logged.
func (h *WSHandler) handleMessage(ctx context.Context, client *hub.Client, message []byte) {
	l := log.Ctx(ctx)

	cmd, err := domain.DecodeCommand(message)
	if err != nil {
		l.Warn().Err(err).Msg("malformed command dropped")
		return
	}

	err = h.session.Dispatch(ctx, client.ID, cmd)
	switch {
	case err == nil:
	case domain.IsNoOp(err):
		l.Debug().Err(err).Str(log.FieldCommand, cmd.CommandType()).Msg("command ignored")
	case errors.Is(err, domain.ErrInvalidPayload),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrPollAlreadyActive),
		errors.Is(err, domain.ErrForbidden):
		l.Warn().Err(err).Str(log.FieldCommand, cmd.CommandType()).Msg("command rejected")
	default:
		l.Error().Err(err).Str(log.FieldCommand, cmd.CommandType()).Msg("command failed")
	}
}
