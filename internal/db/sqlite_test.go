package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RichardoC/insurance-assistant/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestReplayUnknownSession(t *testing.T) {
	database := newTestDB(t)

	messages, err := database.Replay(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.NotNil(t, messages)
	assert.Empty(t, messages)
}

func TestAppendAndReplayOrder(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	want := []struct {
		role    models.Role
		content string
	}{
		{models.RoleSystem, "system note"},
		{models.RoleUser, "hello"},
		{models.RoleAssistant, "hi there"},
		{models.RoleUser, "hello"},
		{models.RoleAssistant, "hi there"},
	}
	for i, w := range want {
		msg, err := database.Append(ctx, "s1", w.role, w.content)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), msg.Seq)
		assert.Equal(t, "s1", msg.SessionID)
	}

	messages, err := database.Replay(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, len(want))
	for i, w := range want {
		assert.Equal(t, w.role, messages[i].Role)
		assert.Equal(t, w.content, messages[i].Content, "duplicates must not be merged")
		assert.Equal(t, int64(i+1), messages[i].Seq)
		assert.False(t, messages[i].CreatedAt.IsZero())
	}
}

func TestAppendValidation(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	_, err := database.Append(ctx, "", models.RoleUser, "hi")
	assert.ErrorIs(t, err, ErrMissingSession)

	_, err = database.Append(ctx, "s1", models.Role("tool"), "hi")
	assert.ErrorIs(t, err, ErrInvalidRole)

	assert.ErrorIs(t, database.AppendTurn(ctx, "", "hi", "hello"), ErrMissingSession)

	messages, err := database.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestAppendTurn(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.AppendTurn(ctx, "s1", "q1", "a1"))
	require.NoError(t, database.AppendTurn(ctx, "s1", "q2", "a2"))

	messages, err := database.Replay(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, messages, 4)

	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents(messages))
	assert.Equal(t, []models.Role{models.RoleUser, models.RoleAssistant, models.RoleUser, models.RoleAssistant}, roles(messages))
}

func TestAppendTurnCancelledContext(t *testing.T) {
	database := newTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, database.AppendTurn(ctx, "s1", "q1", "a1"))

	messages, err := database.Replay(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, messages, "a failed turn must leave no partial record")
}

func TestSessionsAreIndependent(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.AppendTurn(ctx, "a", "qa", "ra"))
	require.NoError(t, database.AppendTurn(ctx, "b", "qb", "rb"))

	a, err := database.Replay(ctx, "a")
	require.NoError(t, err)
	b, err := database.Replay(ctx, "b")
	require.NoError(t, err)

	assert.Equal(t, []string{"qa", "ra"}, contents(a))
	assert.Equal(t, []string{"qb", "rb"}, contents(b))
	assert.Equal(t, int64(1), b[0].Seq, "seq is per session")
}

func TestConcurrentAppendTurns(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	const sessions, turns = 4, 10
	var wg sync.WaitGroup
	for s := 0; s < sessions; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", s)
			for i := 0; i < turns; i++ {
				assert.NoError(t, database.AppendTurn(ctx, id, fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i)))
			}
		}(s)
	}
	wg.Wait()

	for s := 0; s < sessions; s++ {
		messages, err := database.Replay(ctx, fmt.Sprintf("session-%d", s))
		require.NoError(t, err)
		require.Len(t, messages, 2*turns)
		for i := 0; i < turns; i++ {
			assert.Equal(t, fmt.Sprintf("q%d", i), messages[2*i].Content)
			assert.Equal(t, fmt.Sprintf("a%d", i), messages[2*i+1].Content)
			assert.Equal(t, int64(2*i+1), messages[2*i].Seq)
		}
	}
}

func TestListSessions(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	sessions, err := database.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	require.NoError(t, database.AppendTurn(ctx, "old", "q", "a"))
	require.NoError(t, database.AppendTurn(ctx, "new", "q", "a"))
	_, err = database.Append(ctx, "new", models.RoleUser, "again")
	require.NoError(t, err)

	sessions, err = database.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, "new", sessions[0].ID)
	assert.Equal(t, 3, sessions[0].MessageCount)
	assert.Equal(t, "old", sessions[1].ID)
	assert.Equal(t, 2, sessions[1].MessageCount)
	assert.False(t, sessions[0].LastActivity.IsZero())
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	first, err := New(path)
	require.NoError(t, err)
	require.NoError(t, first.AppendTurn(ctx, "s1", "q1", "a1"))
	require.NoError(t, first.Close())

	second, err := New(path)
	require.NoError(t, err)
	defer second.Close()

	require.NoError(t, second.AppendTurn(ctx, "s1", "q2", "a2"))
	messages, err := second.Replay(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"q1", "a1", "q2", "a2"}, contents(messages))
}

func contents(messages []models.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Content
	}
	return out
}

func roles(messages []models.Message) []models.Role {
	out := make([]models.Role, len(messages))
	for i, m := range messages {
		out[i] = m.Role
	}
	return out
}
