package services

import (
	"context"

	"github.com/adi-253/duochat/internal/apperr"
	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
)

// NotificationService reads and acknowledges a user's notifications.
// Notifications are created by ChatService when a message is sent.
type NotificationService struct {
	store    store.NotificationStore
	pageSize int
}

// NewNotificationService creates a NotificationService returning at most
// pageSize notifications per list.
func NewNotificationService(st store.NotificationStore, pageSize int) *NotificationService {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &NotificationService{store: st, pageSize: pageSize}
}

// List returns the owner's newest notifications and their unread count.
func (s *NotificationService) List(ctx context.Context, owner string) (*models.NotificationsResponse, error) {
	if owner == "" {
		return nil, apperr.Validation("owner required")
	}
	list, err := s.store.ListNotifications(ctx, owner, s.pageSize)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnread(ctx, owner)
	if err != nil {
		return nil, err
	}
	return &models.NotificationsResponse{Notifications: list, UnreadCount: unread}, nil
}

// UnreadCount returns how many of the owner's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, owner string) (int64, error) {
	if owner == "" {
		return 0, apperr.Validation("owner required")
	}
	return s.store.CountUnread(ctx, owner)
}

// MarkRead marks ids read. Ids owned by somebody else are ignored. It
// returns the owner's remaining unread count.
func (s *NotificationService) MarkRead(ctx context.Context, owner string, ids []string) (int64, error) {
	if owner == "" || ids == nil {
		return 0, apperr.Validation("owner and ids array required")
	}
	if _, err := s.store.MarkNotificationsRead(ctx, owner, ids); err != nil {
		return 0, err
	}
	return s.store.CountUnread(ctx, owner)
}
