package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open("sqlite", ":memory:")
	require.NoError(t, err)

	s, err := New(db, zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestStore_CreateGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{
		ID:           uuid.NewString(),
		Status:       string(types.RunStatusRunning),
		TestCase:     "login works",
		ScriptSource: "import pytest",
	}
	require.NoError(t, s.Create(ctx, run))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "login works", got.TestCase)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestStore_GetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, types.ErrRunNotFound, types.GetErrorCode(err))
}

func TestStore_Update(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := &Run{ID: uuid.NewString(), Status: string(types.RunStatusRunning)}
	require.NoError(t, s.Create(ctx, run))

	run.Status = string(types.RunStatusCompleted)
	run.Verdict = string(types.VerdictPass)
	run.Reason = "all validations passed"
	run.TotalTokens = 230
	run.RunnerDuration = 3 * time.Second
	require.NoError(t, s.Update(ctx, run))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, string(types.VerdictPass), got.Verdict)
	assert.Equal(t, 230, got.TotalTokens)
	assert.Equal(t, 3*time.Second, got.RunnerDuration)
}

func TestStore_List(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := &Run{
			ID:        uuid.NewString(),
			Status:    string(types.RunStatusCompleted),
			TestCase:  fmt.Sprintf("case %d", i),
			CreatedAt: time.Now().Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.Create(ctx, run))
	}

	runs, total, err := s.List(ctx, 3, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, runs, 3)
	assert.Equal(t, "case 4", runs[0].TestCase, "newest first")

	rest, _, err := s.List(ctx, 3, 3)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
}

func TestStore_ListDefaultsLimit(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.List(context.Background(), -1, -5)
	require.NoError(t, err)
}
