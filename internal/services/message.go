package services

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/conversation"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

// HistoryQuery selects messages of one conversation for the REST history
// endpoint.
type HistoryQuery struct {
	Participant1 string
	Participant2 string

	// Viewer hides messages the viewer deleted for themself
	Viewer string

	// Query keeps messages whose text or task title contains it,
	// case-insensitively
	Query string

	Limit  int
	Before time.Time
}

// validateSend checks a send request before anything is persisted.
func validateSend(req *models.SendMessageRequest) error {
	if req.Sender == "" || req.Recipient == "" {
		return apperr.Validation("missing sender/recipient")
	}
	if err := conversation.ValidateUsername(req.Sender); err != nil {
		return err
	}
	if err := conversation.ValidateUsername(req.Recipient); err != nil {
		return err
	}

	if req.Type == "" {
		req.Type = models.MessageTypeText
	}
	switch req.Type {
	case models.MessageTypeText:
		if req.Content == "" {
			return apperr.Validation("missing content")
		}
	case models.MessageTypeTask:
		if err := req.Task.Validate(); err != nil {
			return err
		}
	default:
		return apperr.Validationf("unknown message type %q", req.Type)
	}
	return nil
}

// SendMessage validates, persists and fans out a new message. The room of
// the conversation receives it with the caller's tempId; if the recipient
// is already in that room it is marked delivered right away; finally the
// recipient gets a notification. Nothing is persisted or emitted when
// validation fails.
func (s *ChatService) SendMessage(ctx context.Context, req models.SendMessageRequest) (*models.Message, error) {
	if err := validateSend(&req); err != nil {
		return nil, err
	}
	conversationID, err := conversation.Resolve(req.Sender, req.Recipient, req.ConversationID)
	if err != nil {
		return nil, err
	}
	if req.ReplyTo != "" {
		if err := s.checkReplyTarget(ctx, req.ReplyTo, conversationID); err != nil {
			return nil, err
		}
	}

	msg := &models.Message{
		Sender:         req.Sender,
		Recipient:      req.Recipient,
		ConversationID: conversationID,
		Type:           req.Type,
		Content:        req.Content,
		Task:           req.Task,
		Attachments:    req.Attachments,
		ReplyTo:        models.StrPtr(req.ReplyTo),
		ForwardedFrom:  models.StrPtr(req.ForwardedFrom),
		Status:         models.StatusSent,
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	s.metrics.MessageSent(string(msg.Type))

	s.emitter.EmitToRoom(conversationID, models.EventReceiveMessage, models.ReceivedMessage{
		Message: *msg,
		TempID:  models.StrPtr(req.TempID),
	})

	// Persistence already succeeded; the remaining steps are best effort
	if s.registry.IsUserOnlineInRoom(msg.Recipient, conversationID) {
		if err := s.advance(ctx, msg, models.StatusDelivered); err != nil {
			s.log.Warn("mark delivered failed", zap.String("message_id", msg.ID), zap.Error(err))
		}
	}
	s.notify(ctx, msg)
	return msg, nil
}

func (s *ChatService) checkReplyTarget(ctx context.Context, replyTo, conversationID string) error {
	parent, err := s.store.GetMessage(ctx, replyTo)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("reply target not found")
		}
		return err
	}
	if parent.ConversationID != conversationID {
		return apperr.Validation("reply target belongs to another conversation")
	}
	return nil
}

// notify persists the recipient's notification for msg and pushes it to
// the recipient's personal room.
func (s *ChatService) notify(ctx context.Context, msg *models.Message) {
	n := &models.Notification{
		Owner: msg.Recipient,
		Actor: models.StrPtr(msg.Sender),
		Data: map[string]any{
			"messageId":      msg.ID,
			"conversationId": msg.ConversationID,
			"sender":         msg.Sender,
		},
	}
	if msg.Type == models.MessageTypeTask {
		n.Type = models.NotificationTask
		n.Title = fmt.Sprintf("New task from %s", msg.Sender)
		n.Body = msg.Task.Title()
	} else {
		n.Type = models.NotificationMessage
		n.Title = fmt.Sprintf("Message from %s", msg.Sender)
		n.Body = msg.Content
	}

	if err := s.store.InsertNotification(ctx, n); err != nil {
		s.log.Warn("create notification failed",
			zap.String("message_id", msg.ID),
			zap.String("owner", n.Owner),
			zap.Error(err))
		return
	}
	s.emitter.EmitToRoom(msg.Recipient, models.EventNotification, n)
}

// getMessage loads a message, reporting a missing one as not found.
func (s *ChatService) getMessage(ctx context.Context, id string) (*models.Message, error) {
	if id == "" {
		return nil, apperr.Validation("missing messageId")
	}
	m, err := s.store.GetMessage(ctx, id)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.NotFound("message not found")
		}
		return nil, err
	}
	return m, nil
}

// EditMessage replaces the content of a text message. Only the original
// sender may edit.
func (s *ChatService) EditMessage(ctx context.Context, id, content, requester string) (*models.Message, error) {
	if content == "" || requester == "" {
		return nil, apperr.Validation("missing content or sender")
	}
	m, err := s.getMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Sender != requester {
		return nil, apperr.Permission("only the sender can edit this message")
	}
	if m.IsDeletedEveryone {
		return nil, store.ErrTombstoned
	}
	if m.Type != models.MessageTypeText {
		return nil, apperr.Validation("only text messages can be edited")
	}

	updated, err := s.store.UpdateContent(ctx, id, content, s.now())
	if err != nil {
		return nil, err
	}
	var editedAt time.Time
	if updated.EditedAt != nil {
		editedAt = *updated.EditedAt
	}
	s.emitter.EmitToRoom(updated.ConversationID, models.EventMessageEdited, models.MessageEditedEvent{
		ID:             updated.ID,
		Content:        updated.Content,
		EditedAt:       editedAt,
		ConversationID: updated.ConversationID,
	})
	return updated, nil
}

// DeleteForMe hides a message from username only. Repeating it is a no-op.
func (s *ChatService) DeleteForMe(ctx context.Context, id, username string) error {
	if id == "" || username == "" {
		return apperr.Validation("missing messageId or username")
	}
	if _, err := s.store.AddDeletedFor(ctx, id, username); err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.NotFound("message not found")
		}
		return err
	}
	s.emitter.EmitToRoom(username, models.EventMessageDeletedForMe, models.MessageDeletedForMeEvent{MessageID: id})
	return nil
}

// DeleteForEveryone tombstones a message for both participants. Only the
// original sender may do this.
func (s *ChatService) DeleteForEveryone(ctx context.Context, id, sender string) error {
	if sender == "" {
		return apperr.Validation("missing sender")
	}
	m, err := s.getMessage(ctx, id)
	if err != nil {
		return err
	}
	if m.Sender != sender {
		return apperr.Permission("only the sender can delete this message for everyone")
	}
	if _, err := s.store.MarkDeletedForEveryone(ctx, id); err != nil {
		return err
	}
	s.emitter.EmitToRoom(m.ConversationID, models.EventMessageDeletedForEveryone, models.MessageDeletedForEveryoneEvent{
		MessageID:      id,
		ConversationID: m.ConversationID,
	})
	return nil
}

// Forward copies a message into the conversation between fromSender and
// toRecipient. The original is left untouched; the forwarding connection
// gets an acknowledgement.
func (s *ChatService) Forward(ctx context.Context, connID, id, toRecipient, fromSender string) (*models.Message, error) {
	if toRecipient == "" || fromSender == "" {
		return nil, apperr.Validation("missing toRecipient or fromSender")
	}
	if err := conversation.ValidateUsername(toRecipient); err != nil {
		return nil, err
	}
	if err := conversation.ValidateUsername(fromSender); err != nil {
		return nil, err
	}
	original, err := s.getMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if original.IsDeletedEveryone {
		return nil, apperr.Validation("cannot forward a deleted message")
	}

	fwd := &models.Message{
		Sender:         fromSender,
		Recipient:      toRecipient,
		ConversationID: conversation.ID(fromSender, toRecipient),
		Type:           original.Type,
		Content:        original.Content,
		Task:           original.Task,
		Attachments:    slices.Clone(original.Attachments),
		ForwardedFrom:  models.StrPtr(original.ID),
		Status:         models.StatusSent,
	}
	if err := s.store.InsertMessage(ctx, fwd); err != nil {
		return nil, err
	}
	s.metrics.MessageSent(string(fwd.Type))

	s.emitter.EmitToRoom(fwd.ConversationID, models.EventReceiveMessage, models.ReceivedMessage{Message: *fwd})
	if connID != "" {
		s.emitter.EmitToConn(connID, models.EventMessageForwarded, models.MessageForwardedEvent{
			MessageID:   original.ID,
			ForwardedTo: toRecipient,
		})
	}
	return fwd, nil
}

// ConversationMessages returns a conversation's history, oldest first.
// Limit and Before are applied before the viewer and text filters.
func (s *ChatService) ConversationMessages(ctx context.Context, q HistoryQuery) ([]models.Message, error) {
	if q.Participant1 == "" || q.Participant2 == "" {
		return nil, apperr.Validation("participant1 and participant2 are required")
	}
	if q.Limit < 0 {
		return nil, apperr.Validation("limit must not be negative")
	}

	msgs, err := s.store.ListMessages(ctx, conversation.ID(q.Participant1, q.Participant2), store.ListOptions{
		Limit:  q.Limit,
		Before: q.Before,
	})
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(q.Query))
	out := msgs[:0]
	for _, m := range msgs {
		if q.Viewer != "" && m.DeletedForUser(q.Viewer) {
			continue
		}
		if needle != "" && !matches(m, needle) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func matches(m models.Message, needle string) bool {
	if m.IsDeletedEveryone {
		return false
	}
	return strings.Contains(strings.ToLower(m.Content), needle) ||
		strings.Contains(strings.ToLower(m.Task.Title()), needle)
}
