package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
	"github.com/adi-253/duochat/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return New() })
}

func TestReturnedMessagesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	m := &models.Message{Sender: "alice", Recipient: "bob", ConversationID: "alice::bob", Content: "hi"}
	require.NoError(t, s.InsertMessage(ctx, m))

	got, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	got.Content = "tampered"
	got.DeletedFor = append(got.DeletedFor, "mallory")

	again, err := s.GetMessage(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "hi", again.Content)
	assert.Empty(t, again.DeletedFor)
}
