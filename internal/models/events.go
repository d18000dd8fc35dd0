package models

import "time"

// Inbound socket events.
const (
	EventRegisterUser             = "register_user"
	EventJoinConversation         = "join_conversation"
	EventLeaveConversation        = "leave_conversation"
	EventMarkAsRead               = "mark_as_read"
	EventSendMessage              = "send_message"
	EventEditMessage              = "edit_message"
	EventUserTyping               = "user_typing"
	EventUserStoppedTyping        = "user_stopped_typing"
	EventDeleteMessageForMe       = "delete_message_for_me"
	EventDeleteMessageForEveryone = "delete_message_for_everyone"
	EventForwardMessage           = "forward_message"
)

// Outbound socket events.
const (
	EventUserStatusChanged         = "user_status_changed"
	EventReceiveMessage            = "receive_message"
	EventMessageStatus             = "message_status"
	EventMessageEdited             = "message_edited"
	EventMessageDeletedForMe       = "message_deleted_for_me"
	EventMessageDeletedForEveryone = "message_deleted_for_everyone"
	EventMessageForwarded          = "message_forwarded"
	EventTypingIndicator           = "typing_indicator"
	EventNotification              = "notification"
	EventError                     = "error"
)

// RegisterUserPayload is accepted both as a bare JSON string and as an object.
type RegisterUserPayload struct {
	Username string `json:"username"`
}

type JoinConversationPayload struct {
	ConversationID string `json:"conversationId"`
	Username       string `json:"username,omitempty"`
}

type LeaveConversationPayload struct {
	ConversationID string `json:"conversationId"`
}

type MarkAsReadPayload struct {
	ConversationID string `json:"conversationId"`
	Username       string `json:"username"`
}

type TypingPayload struct {
	Username       string `json:"username"`
	ConversationID string `json:"conversationId"`
}

type EditMessagePayload struct {
	MessageID string `json:"messageId"`
	Content   string `json:"content"`
	Sender    string `json:"sender"`
}

type DeleteForMePayload struct {
	MessageID string `json:"messageId"`
	Username  string `json:"username"`
}

type DeleteForEveryonePayload struct {
	MessageID string `json:"messageId"`
	Sender    string `json:"sender"`
}

type ForwardMessagePayload struct {
	MessageID   string `json:"messageId"`
	ToRecipient string `json:"toRecipient"`
	FromSender  string `json:"fromSender"`
}

// ReceivedMessage is a persisted message as fanned out to a conversation
// room. TempID echoes the sender's optimistic id.
type ReceivedMessage struct {
	Message
	TempID *string `json:"tempId"`
}

type MessageStatusEvent struct {
	ID             string         `json:"_id"`
	Status         DeliveryStatus `json:"status"`
	ConversationID string         `json:"conversationId"`
}

type MessageEditedEvent struct {
	ID             string    `json:"_id"`
	Content        string    `json:"content"`
	EditedAt       time.Time `json:"editedAt"`
	ConversationID string    `json:"conversationId"`
}

type MessageDeletedForMeEvent struct {
	MessageID string `json:"messageId"`
}

type MessageDeletedForEveryoneEvent struct {
	MessageID      string `json:"messageId"`
	ConversationID string `json:"conversationId"`
}

type MessageForwardedEvent struct {
	MessageID   string `json:"messageId"`
	ForwardedTo string `json:"forwardedTo"`
}

type TypingIndicatorEvent struct {
	Username       string `json:"username"`
	IsTyping       bool   `json:"isTyping"`
	ConversationID string `json:"conversationId"`
}

type ErrorEvent struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
}
