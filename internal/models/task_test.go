package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/apperr"
)

func TestTaskValidate(t *testing.T) {
	screen := map[string]any{"id": "s1", "fields": []any{map[string]any{"type": "text"}}}
	emptyScreen := map[string]any{"id": "s0", "fields": []any{}}

	tests := []struct {
		name    string
		task    Task
		wantErr string
	}{
		{"nil payload", nil, "missing task payload"},
		{"no title", Task{"screens": []any{screen}}, "task missing title"},
		{"no screens", Task{"title": "Survey"}, "task missing screens"},
		{"only empty screens", Task{"title": "Survey", "screens": []any{emptyScreen}}, "task missing screens"},
		{"valid", Task{"title": "Survey", "screens": []any{emptyScreen, screen}}, ""},
		{"typed screens", Task{"title": "Survey", "screens": []map[string]any{screen}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, apperr.ErrValidation)
			assert.Equal(t, tt.wantErr, err.Error())
		})
	}
}

func TestDeliveryStatusAdvances(t *testing.T) {
	assert.True(t, StatusSent.Advances(StatusDelivered))
	assert.True(t, StatusSent.Advances(StatusRead))
	assert.True(t, StatusDelivered.Advances(StatusRead))
	assert.False(t, StatusRead.Advances(StatusDelivered))
	assert.False(t, StatusDelivered.Advances(StatusDelivered))
	assert.False(t, StatusRead.Advances(StatusSent))

	assert.Equal(t, []DeliveryStatus{StatusSent}, StatusDelivered.Below())
	assert.Equal(t, []DeliveryStatus{StatusSent, StatusDelivered}, StatusRead.Below())
	assert.Empty(t, StatusSent.Below())
}

func TestMessageNormalize(t *testing.T) {
	m := &Message{Type: MessageTypeTask, Content: "ignored", Task: Task{"title": "x"},
		Attachments: []Attachment{{URL: "u"}}}
	m.Normalize()
	assert.Equal(t, "", m.Content)
	assert.Equal(t, StatusSent, m.Status)
	assert.Equal(t, DefaultAttachmentProvider, m.Attachments[0].Provider)
	assert.NotNil(t, m.DeletedFor)

	text := &Message{Content: "hi", Task: Task{"title": "x"}}
	text.Normalize()
	assert.Equal(t, MessageTypeText, text.Type)
	assert.Nil(t, text.Task)
}
