package services

import (
	"context"
	"slices"

	"go.uber.org/zap"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/conversation"
	"github.com/adi-253/duochat/internal/models"
)

// RegisterUser binds connID to username. The first connection of a user
// flips them online for everybody; every connection joins the personal
// room and receives the user's unread notifications. Moving a connection to
// another name takes the old name offline when it was its last connection;
// repeating the same registration changes nothing.
// An empty username is ignored.
func (s *ChatService) RegisterUser(ctx context.Context, connID, username string) error {
	if username == "" {
		return nil
	}
	if err := conversation.ValidateUsername(username); err != nil {
		return err
	}

	reg := s.registry.Register(username, connID)
	if reg.Repeat {
		return nil
	}
	if reg.Displaced != nil {
		s.log.Info("user offline", zap.String("username", reg.Displaced.Username), zap.String("conn_id", connID))
		s.emitter.EmitToAll(models.EventUserStatusChanged, toUserStatus(*reg.Displaced))
	}
	if reg.First {
		s.log.Info("user online", zap.String("username", username), zap.String("conn_id", connID))
		s.emitter.EmitToAll(models.EventUserStatusChanged, toUserStatus(reg.Presence))
	}
	if reg.First || reg.Displaced != nil {
		s.refreshOnlineGauge()
	}

	s.replayUnread(ctx, connID, username)
	return nil
}

// replayUnread pushes unread notifications to a newly registered
// connection, oldest first, so notifications created while the user was
// offline still arrive as events.
func (s *ChatService) replayUnread(ctx context.Context, connID, username string) {
	if s.replayLimit < 0 {
		return
	}
	list, err := s.store.ListNotifications(ctx, username, s.replayLimit)
	if err != nil {
		s.log.Warn("load notifications for replay failed", zap.String("username", username), zap.Error(err))
		return
	}
	slices.Reverse(list)
	for _, n := range list {
		if !n.Read {
			s.emitter.EmitToConn(connID, models.EventNotification, n)
		}
	}
}

// Disconnect drops connID. When it was the user's last connection the user
// goes offline for everybody.
func (s *ChatService) Disconnect(connID string) {
	p, last := s.registry.Deregister(connID)
	if !last {
		return
	}
	s.log.Info("user offline", zap.String("username", p.Username), zap.String("conn_id", connID))
	s.emitter.EmitToAll(models.EventUserStatusChanged, toUserStatus(p))
	s.refreshOnlineGauge()
}

// JoinConversation adds connID to the conversation room. With a username,
// every message in the conversation still "sent" to that user becomes
// "delivered" and each sender is told.
func (s *ChatService) JoinConversation(ctx context.Context, connID, conversationID, username string) error {
	if conversationID == "" {
		return apperr.Validation("missing conversationId")
	}
	s.registry.Join(connID, conversationID)
	if username == "" {
		return nil
	}

	moved, err := s.advanceAll(ctx, conversationID, username, models.StatusDelivered)
	if err != nil {
		return err
	}
	if moved > 0 {
		s.log.Debug("messages delivered on join",
			zap.String("conversation_id", conversationID),
			zap.String("username", username),
			zap.Int("count", moved))
	}
	return nil
}

// LeaveConversation removes connID from the conversation room.
func (s *ChatService) LeaveConversation(connID, conversationID string) error {
	if conversationID == "" {
		return apperr.Validation("missing conversationId")
	}
	s.registry.Leave(connID, conversationID)
	return nil
}

// MarkAsRead moves every message in the conversation addressed to username
// to "read", notifying each sender.
func (s *ChatService) MarkAsRead(ctx context.Context, conversationID, username string) error {
	if conversationID == "" || username == "" {
		return apperr.Validation("missing conversationId or username")
	}
	_, err := s.advanceAll(ctx, conversationID, username, models.StatusRead)
	return err
}

// TypingStart tells the conversation room that username is typing.
func (s *ChatService) TypingStart(username, conversationID string) error {
	return s.typing(username, conversationID, true)
}

// TypingStop tells the conversation room that username stopped typing.
func (s *ChatService) TypingStop(username, conversationID string) error {
	return s.typing(username, conversationID, false)
}

func (s *ChatService) typing(username, conversationID string, isTyping bool) error {
	if username == "" || conversationID == "" {
		return apperr.Validation("missing username or conversationId")
	}
	s.emitter.EmitToRoom(conversationID, models.EventTypingIndicator, models.TypingIndicatorEvent{
		Username:       username,
		IsTyping:       isTyping,
		ConversationID: conversationID,
	})
	return nil
}

// Statuses returns the presence of every user seen since startup.
func (s *ChatService) Statuses() map[string]models.UserStatus {
	all := s.registry.Statuses()
	out := make(map[string]models.UserStatus, len(all))
	for name, p := range all {
		out[name] = toUserStatus(p)
	}
	return out
}

// Status returns one user's presence.
func (s *ChatService) Status(username string) (models.UserStatus, error) {
	p, ok := s.registry.Status(username)
	if !ok {
		return models.UserStatus{}, apperr.NotFound("user not found")
	}
	return toUserStatus(p), nil
}
