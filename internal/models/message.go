package models

import (
	"slices"
	"time"
)

// MessageType distinguishes free-text messages from task messages.
type MessageType string

const (
	MessageTypeText MessageType = "text"
	MessageTypeTask MessageType = "task"
)

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageTypeText || t == MessageTypeTask
}

// DeliveryStatus tracks how far a message has progressed towards its
// recipient. It only ever moves forward: sent -> delivered -> read.
type DeliveryStatus string

const (
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusRead      DeliveryStatus = "read"
)

func (s DeliveryStatus) rank() int {
	switch s {
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	default:
		return 0
	}
}

// Advances reports whether moving from s to next is a forward transition.
func (s DeliveryStatus) Advances(next DeliveryStatus) bool {
	return next.rank() > s.rank()
}

// Below returns the statuses that rank lower than s. These are the states
// a message may be in for a transition to s to apply.
func (s DeliveryStatus) Below() []DeliveryStatus {
	var out []DeliveryStatus
	for _, st := range []DeliveryStatus{StatusSent, StatusDelivered, StatusRead} {
		if st.rank() < s.rank() {
			out = append(out, st)
		}
	}
	return out
}

// Attachment describes a file uploaded to the object store and linked to a
// message. Uploading itself happens elsewhere.
type Attachment struct {
	URL          string `json:"url,omitempty" bson:"url,omitempty"`
	SecureURL    string `json:"secureUrl,omitempty" bson:"secureUrl,omitempty"`
	PublicID     string `json:"publicId,omitempty" bson:"publicId,omitempty"`
	Filename     string `json:"filename,omitempty" bson:"filename,omitempty"`
	MimeType     string `json:"mimeType,omitempty" bson:"mimeType,omitempty"`
	Size         int64  `json:"size,omitempty" bson:"size,omitempty"`
	ResourceType string `json:"resourceType,omitempty" bson:"resourceType,omitempty"`
	Provider     string `json:"provider,omitempty" bson:"provider,omitempty"`
}

// DefaultAttachmentProvider is recorded when an attachment names no provider.
const DefaultAttachmentProvider = "cloudinary"

// Message is a direct message between two users.
type Message struct {
	// ID is assigned by the store on insert
	ID string `json:"_id" bson:"_id"`

	Sender         string      `json:"sender" bson:"sender"`
	Recipient      string      `json:"recipient" bson:"recipient"`
	ConversationID string      `json:"conversationId" bson:"conversationId"`
	Type           MessageType `json:"type" bson:"type"`

	// Content is only populated for text messages
	Content string `json:"content" bson:"content"`

	// Task is only populated for task messages
	Task Task `json:"task" bson:"task"`

	Attachments []Attachment `json:"attachments" bson:"attachments"`

	ReplyTo       *string `json:"replyTo" bson:"replyTo"`
	ForwardedFrom *string `json:"forwardedFrom" bson:"forwardedFrom"`

	// DeletedFor lists users who removed the message from their own view
	DeletedFor        []string `json:"deletedFor" bson:"deletedFor"`
	IsDeletedEveryone bool     `json:"isDeletedEveryone" bson:"isDeletedEveryone"`

	Status   DeliveryStatus `json:"status" bson:"status"`
	EditedAt *time.Time     `json:"editedAt,omitempty" bson:"editedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// DeletedForUser reports whether username removed the message from their view.
func (m *Message) DeletedForUser(username string) bool {
	return slices.Contains(m.DeletedFor, username)
}

// Normalize fills defaults so every backend stores the same shape.
func (m *Message) Normalize() {
	if m.Type == "" {
		m.Type = MessageTypeText
	}
	if m.Status == "" {
		m.Status = StatusSent
	}
	if m.Type == MessageTypeTask {
		m.Content = ""
	} else {
		m.Task = nil
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	for i := range m.Attachments {
		if m.Attachments[i].Provider == "" {
			m.Attachments[i].Provider = DefaultAttachmentProvider
		}
	}
	if m.DeletedFor == nil {
		m.DeletedFor = []string{}
	}
}

// PersonalNote is a single-party text note kept by one user.
type PersonalNote struct {
	ID        string    `json:"_id" bson:"_id"`
	Username  string    `json:"username" bson:"username"`
	Content   string    `json:"content" bson:"content"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// StrPtr returns a pointer to s, or nil when s is empty.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
