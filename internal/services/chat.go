package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/adi-253/duochat/internal/logging"
	"github.com/adi-253/duochat/internal/metrics"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/session"
	"github.com/adi-253/duochat/internal/store"
)

// Emitter delivers outbound events. A room is either a conversation id or
// a username (the user's personal room).
type Emitter interface {
	EmitToRoom(room, event string, data any)
	EmitToConn(connID, event string, data any)
	EmitToAll(event string, data any)
}

// ChatStore is the persistence ChatService needs.
type ChatStore interface {
	store.MessageStore
	store.NotificationStore
}

// ChatOptions carries the optional collaborators of a ChatService.
type ChatOptions struct {
	Metrics *metrics.Metrics

	// NotificationReplayLimit caps how many unread notifications are pushed
	// to a connection when it registers. 0 uses 100, negative disables.
	NotificationReplayLimit int

	// Now replaces time.Now
	Now func() time.Time
}

// ChatService runs the real-time protocol: presence, room membership,
// sends and their delivery status, edits, deletes, forwards and typing.
// It is safe for concurrent use; all shared state lives in the store and
// the session registry.
type ChatService struct {
	log      *zap.Logger
	store    ChatStore
	registry session.Registry
	emitter  Emitter
	metrics  *metrics.Metrics

	replayLimit int
	now         func() time.Time
}

// NewChatService creates a ChatService.
func NewChatService(log *zap.Logger, st ChatStore, registry session.Registry, emitter Emitter, opts ChatOptions) *ChatService {
	s := &ChatService{
		log:         logging.OrNop(log),
		store:       st,
		registry:    registry,
		emitter:     emitter,
		metrics:     opts.Metrics,
		replayLimit: opts.NotificationReplayLimit,
		now:         opts.Now,
	}
	if s.replayLimit == 0 {
		s.replayLimit = 100
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// advance moves m to target if it has not got there yet and tells the
// sender's personal room. The store decides; a concurrent transition that
// already applied makes this a no-op.
func (s *ChatService) advance(ctx context.Context, m *models.Message, target models.DeliveryStatus) error {
	changed, err := s.store.AdvanceStatus(ctx, m.ID, target)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	m.Status = target
	s.metrics.StatusTransition(string(target))
	s.emitter.EmitToRoom(m.Sender, models.EventMessageStatus, models.MessageStatusEvent{
		ID:             m.ID,
		Status:         target,
		ConversationID: m.ConversationID,
	})
	return nil
}

// advanceAll applies target to every message in the conversation addressed
// to recipient that is still below it. It returns how many moved.
func (s *ChatService) advanceAll(ctx context.Context, conversationID, recipient string, target models.DeliveryStatus) (int, error) {
	pending, err := s.store.ListAwaitingStatus(ctx, conversationID, recipient, target)
	if err != nil {
		return 0, err
	}
	moved := 0
	for i := range pending {
		before := pending[i].Status
		if err := s.advance(ctx, &pending[i], target); err != nil {
			return moved, err
		}
		if pending[i].Status != before {
			moved++
		}
	}
	return moved, nil
}

func (s *ChatService) refreshOnlineGauge() {
	online := 0
	for _, p := range s.registry.Statuses() {
		if p.IsOnline {
			online++
		}
	}
	s.metrics.SetOnlineUsers(online)
}

func toUserStatus(p session.Presence) models.UserStatus {
	return models.UserStatus{Username: p.Username, IsOnline: p.IsOnline, LastSeen: p.LastSeen}
}
