package models

import "time"

// NotificationType says what produced a notification.
type NotificationType string

const (
	NotificationMessage NotificationType = "message"
	NotificationTask    NotificationType = "task"
	NotificationUpload  NotificationType = "upload"
)

// Notification is a per-owner record created whenever a message is sent to
// them. It is only ever mutated by marking it read.
type Notification struct {
	ID    string           `json:"_id" bson:"_id"`
	Owner string           `json:"owner" bson:"owner"`
	Actor *string          `json:"actor" bson:"actor"`
	Type  NotificationType `json:"type" bson:"type"`
	Title string           `json:"title" bson:"title"`
	Body  string           `json:"body" bson:"body"`
	Read  bool             `json:"read" bson:"read"`

	// Data carries at least messageId and conversationId
	Data map[string]any `json:"data" bson:"data"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}
