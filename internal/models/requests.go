package models

import "time"

// SendMessageRequest is the payload of send_message and of the REST
// fallback send.
type SendMessageRequest struct {
	Sender         string       `json:"sender"`
	Recipient      string       `json:"recipient"`
	Content        string       `json:"content"`
	Type           MessageType  `json:"type"`
	Task           Task         `json:"task,omitempty"`
	Attachments    []Attachment `json:"attachments,omitempty"`
	ConversationID string       `json:"conversationId,omitempty"`
	ReplyTo        string       `json:"replyTo,omitempty"`
	ForwardedFrom  string       `json:"forwardedFrom,omitempty"`

	// TempID is the client's optimistic id, echoed back untouched
	TempID string `json:"tempId,omitempty"`
}

// EditMessageRequest is the body of PUT /api/messages/{id}/edit.
type EditMessageRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// SaveNoteRequest is the body of POST /api/messages/notes.
type SaveNoteRequest struct {
	Username string `json:"username"`
	Content  string `json:"content"`
}

// MarkReadRequest is the body of POST /api/notifications/mark-read.
type MarkReadRequest struct {
	Owner string   `json:"owner"`
	IDs   []string `json:"ids"`
}

// MarkReadResponse reports the owner's remaining unread notifications.
type MarkReadResponse struct {
	OK          bool  `json:"ok"`
	UnreadCount int64 `json:"unreadCount"`
}

// NotificationsResponse is the response of GET /api/notifications/{owner}.
type NotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
	UnreadCount   int64          `json:"unreadCount"`
}

// UnreadCountResponse is the response of GET /api/notifications/unread/{owner}.
type UnreadCountResponse struct {
	UnreadCount int64 `json:"unreadCount"`
}

// UpsertTaskDraftRequest is the body of POST /api/task-drafts.
type UpsertTaskDraftRequest struct {
	Owner string `json:"owner"`
	Task  Task   `json:"task"`
}

// UserStatus is a user's presence as exposed over REST and in
// user_status_changed events.
type UserStatus struct {
	Username string    `json:"username"`
	IsOnline bool      `json:"isOnline"`
	LastSeen time.Time `json:"lastSeen"`
}

// UserStatusesResponse is the response of GET /api/users/statuses.
type UserStatusesResponse struct {
	Statuses map[string]UserStatus `json:"statuses"`
}
