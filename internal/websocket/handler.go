package websocket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/logging"
	"github.com/adi-253/duochat/internal/metrics"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/services"
)

// upgrader upgrades HTTP connections to WebSocket
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow connections from any origin (CORS handled by middleware)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// eventTimeout bounds the store work done for one inbound event.
const eventTimeout = 10 * time.Second

// Limits bounds the inbound event rate of each connection. A zero
// EventsPerSecond disables limiting.
type Limits struct {
	EventsPerSecond float64
	Burst           int
}

// Handler upgrades connections and dispatches their events to the chat
// service.
type Handler struct {
	hub     *Hub
	chat    *services.ChatService
	log     *zap.Logger
	metrics *metrics.Metrics
	limits  Limits
}

// NewHandler creates a new WebSocket handler
func NewHandler(log *zap.Logger, hub *Hub, chat *services.ChatService, m *metrics.Metrics, limits Limits) *Handler {
	return &Handler{
		hub:     hub,
		chat:    chat,
		log:     logging.OrNop(log),
		metrics: m,
		limits:  limits,
	}
}

// ServeWS handles WebSocket upgrade requests at /ws. The connection is
// anonymous until it sends register_user.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), h.hub, conn, h.newLimiter())
	h.hub.Register(client)
	client.log.Debug("new connection", zap.String("remote_addr", r.RemoteAddr))

	go client.WritePump()
	go func() {
		client.ReadPump(h.dispatch)
		h.chat.Disconnect(client.ID)
	}()
}

func (h *Handler) newLimiter() *rate.Limiter {
	if h.limits.EventsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := h.limits.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(h.limits.EventsPerSecond), burst)
}

// dispatch handles one inbound frame. Failures, including panics, turn into
// an error event for this connection only.
func (h *Handler) dispatch(c *Client, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event == "" {
		h.fail(c, env.Event, apperr.Protocol("malformed event envelope", err))
		return
	}
	if !c.limiter.Allow() {
		h.metrics.RateLimited()
		h.fail(c, env.Event, apperr.Protocol("rate limit exceeded", nil))
		return
	}

	defer func() {
		if p := recover(); p != nil {
			c.log.Error("event handler panicked",
				zap.String("event", env.Event),
				zap.Any("panic", p),
				zap.Stack("stack"))
			h.fail(c, env.Event, fmt.Errorf("panic: %v", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if err := h.handle(ctx, c, env); err != nil {
		h.fail(c, env.Event, err)
	}
}

func (h *Handler) handle(ctx context.Context, c *Client, env Envelope) error {
	switch env.Event {
	case models.EventRegisterUser:
		username, err := decodeUsername(env.Data)
		if err != nil {
			return err
		}
		return h.chat.RegisterUser(ctx, c.ID, username)

	case models.EventJoinConversation:
		var p models.JoinConversationPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.chat.JoinConversation(ctx, c.ID, p.ConversationID, p.Username)

	case models.EventLeaveConversation:
		var p models.LeaveConversationPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.chat.LeaveConversation(c.ID, p.ConversationID)

	case models.EventMarkAsRead:
		var p models.MarkAsReadPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.chat.MarkAsRead(ctx, p.ConversationID, p.Username)

	case models.EventSendMessage:
		var req models.SendMessageRequest
		if err := decode(env.Data, &req); err != nil {
			return err
		}
		_, err := h.chat.SendMessage(ctx, req)
		return err

	case models.EventEditMessage:
		var p models.EditMessagePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		_, err := h.chat.EditMessage(ctx, p.MessageID, p.Content, p.Sender)
		return err

	case models.EventUserTyping, models.EventUserStoppedTyping:
		var p models.TypingPayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		if env.Event == models.EventUserTyping {
			return h.chat.TypingStart(p.Username, p.ConversationID)
		}
		return h.chat.TypingStop(p.Username, p.ConversationID)

	case models.EventDeleteMessageForMe:
		var p models.DeleteForMePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.chat.DeleteForMe(ctx, p.MessageID, p.Username)

	case models.EventDeleteMessageForEveryone:
		var p models.DeleteForEveryonePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		return h.chat.DeleteForEveryone(ctx, p.MessageID, p.Sender)

	case models.EventForwardMessage:
		var p models.ForwardMessagePayload
		if err := decode(env.Data, &p); err != nil {
			return err
		}
		_, err := h.chat.Forward(ctx, c.ID, p.MessageID, p.ToRecipient, p.FromSender)
		return err

	default:
		return apperr.Protocol(fmt.Sprintf("unknown event %q", env.Event), nil)
	}
}

// fail reports err to the originating connection.
func (h *Handler) fail(c *Client, event string, err error) {
	kind := apperr.KindOf(err)
	h.metrics.EventError(string(kind))

	fields := []zap.Field{zap.String("event", event), zap.String("kind", string(kind)), zap.Error(err)}
	if kind == apperr.KindStore || kind == apperr.KindInternal {
		c.log.Error("event failed", fields...)
	} else {
		c.log.Debug("event rejected", fields...)
	}

	h.hub.EmitToConn(c.ID, models.EventError, models.ErrorEvent{
		Message: apperr.PublicMessage(err),
		Kind:    string(kind),
	})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return apperr.Protocol("missing event data", nil)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Protocol("malformed event data", err)
	}
	return nil
}

// decodeUsername accepts register_user data as either "alice" or
// {"username": "alice"}. Missing data yields "", which registers nothing.
func decodeUsername(data json.RawMessage) (string, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return "", nil
	}
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		return name, nil
	}
	var p models.RegisterUserPayload
	if err := decode(data, &p); err != nil {
		return "", err
	}
	return p.Username, nil
}
