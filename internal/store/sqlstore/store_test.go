package sqlstore

import (
	"context"
	"sync"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adi-253/duochat/internal/models"
	"github.com/adi-253/duochat/internal/store"
	"github.com/adi-253/duochat/internal/store/storetest"
)

func setupTestDB(t *testing.T) *SQLStore {
	t.Helper()
	s, err := New("sqlite3", ":memory:")
	require.NoError(t, err, "open test database")
	return s
}

func TestSQLStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return setupTestDB(t) })
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{driverName: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)",
		pg.rebind("SELECT * FROM t WHERE a = ? AND b IN ("+placeholders(2)+")"))

	lite := &SQLStore{driverName: "sqlite3"}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestConcurrentAdvanceStatusChangesOnce(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()
	ctx := context.Background()

	m := &models.Message{Sender: "alice", Recipient: "bob", ConversationID: "alice::bob", Content: "hi"}
	require.NoError(t, s.InsertMessage(ctx, m))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		changed int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.AdvanceStatus(ctx, m.ID, models.StatusDelivered)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				changed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, changed)
}

func TestDraftUpsertKeepsOneRowPerOwner(t *testing.T) {
	s := setupTestDB(t)
	defer s.Close()
	ctx := context.Background()

	first, err := s.UpsertTaskDraft(ctx, "alice", models.Task{"title": "a"})
	require.NoError(t, err)
	second, err := s.UpsertTaskDraft(ctx, "alice", models.Task{"title": "b"})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(*) FROM task_drafts`).Scan(&count))
	assert.Equal(t, 1, count)
}
