package tabstate

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tabcoach/tabcoach/internal/storage"
	"github.com/tabcoach/tabcoach/pkg/types"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(storage.New(t.TempDir()), nil)
}

func TestGet_EmptyForUnknownTab(t *testing.T) {
	svc := newTestService(t)

	state, err := svc.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, state.Context)
	assert.Nil(t, state.CodeSnapshot)
}

func TestMerge_PartialPatchKeepsOtherFields(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	pctx := &types.ProblemContext{Site: types.SiteLeetCode, Title: "Two Sum", URL: "https://leetcode.com/problems/two-sum/"}
	_, err := svc.Merge(ctx, "tab-1", types.TabStatePatch{Context: pctx})
	require.NoError(t, err)

	snap := &types.CodeSnapshot{Source: types.SourceMonaco, Code: "def two_sum(nums, target): ..."}
	state, err := svc.Merge(ctx, "tab-1", types.TabStatePatch{CodeSnapshot: snap})
	require.NoError(t, err)

	require.NotNil(t, state.Context)
	assert.Equal(t, "Two Sum", state.Context.Title)
	require.NotNil(t, state.CodeSnapshot)
	assert.Equal(t, types.SourceMonaco, state.CodeSnapshot.Source)
}

func TestMerge_ContextReplacedWhole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Merge(ctx, "tab-1", types.TabStatePatch{
		Context: &types.ProblemContext{Title: "Old", Constraints: "1 <= n <= 10^5"},
	})
	require.NoError(t, err)

	state, err := svc.Merge(ctx, "tab-1", types.TabStatePatch{
		Context: &types.ProblemContext{Title: "New"},
	})
	require.NoError(t, err)

	// Whole-unit replacement: the old constraints must not survive.
	assert.Equal(t, "New", state.Context.Title)
	assert.Empty(t, state.Context.Constraints)
}

func TestMerge_WhitespaceSnapshotDiscarded(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	good := &types.CodeSnapshot{Source: types.SourceAce, Code: "x = 1"}
	_, err := svc.Merge(ctx, "tab-1", types.TabStatePatch{CodeSnapshot: good})
	require.NoError(t, err)

	state, err := svc.Merge(ctx, "tab-1", types.TabStatePatch{
		CodeSnapshot: &types.CodeSnapshot{Source: types.SourceTextArea, Code: "   \n\t  "},
	})
	require.NoError(t, err)

	// The empty capture is dropped; the previous snapshot stands.
	require.NotNil(t, state.CodeSnapshot)
	assert.Equal(t, "x = 1", state.CodeSnapshot.Code)
}

func TestAppendExchange_OrderAndCap(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	history, err := svc.AppendExchange(ctx, "tab-1", "how do I start?", "what does the problem ask for?")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, types.RoleUser, history[0].Role)
	assert.Equal(t, types.RoleAssistant, history[1].Role)

	for i := 0; i < types.HistoryCap; i++ {
		history, err = svc.AppendExchange(ctx, "tab-1", fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
		require.NoError(t, err)
	}

	assert.Len(t, history, types.HistoryCap)
	// Oldest items fell off the front; the newest exchange is intact at the end.
	assert.Equal(t, fmt.Sprintf("q%d", types.HistoryCap-1), history[len(history)-2].Content)
	assert.Equal(t, fmt.Sprintf("a%d", types.HistoryCap-1), history[len(history)-1].Content)
}

func TestAppendExchange_ConcurrentAppendsLoseNothing(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.AppendExchange(ctx, "tab-1", fmt.Sprintf("q%d", n), fmt.Sprintf("a%d", n))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := svc.History(ctx, "tab-1")
	require.NoError(t, err)
	assert.Len(t, history, 10)
}

func TestClearHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AppendExchange(ctx, "tab-1", "q", "a")
	require.NoError(t, err)
	require.NoError(t, svc.ClearHistory(ctx, "tab-1"))

	history, err := svc.History(ctx, "tab-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDelete_RemovesStateAndHistory(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Merge(ctx, "tab-1", types.TabStatePatch{
		Context: &types.ProblemContext{Title: "T"},
	})
	require.NoError(t, err)
	_, err = svc.AppendExchange(ctx, "tab-1", "q", "a")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "tab-1"))

	state, err := svc.Get(ctx, "tab-1")
	require.NoError(t, err)
	assert.Nil(t, state.Context)

	history, err := svc.History(ctx, "tab-1")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDelete_KeepsHistoryLockInstance(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.AppendExchange(ctx, "tab-1", "q", "a")
	require.NoError(t, err)

	before := svc.tabLock("tab-1")
	require.NoError(t, svc.Delete(ctx, "tab-1"))

	// An append racing the delete must contend on the same mutex, not a
	// replacement created after the entry was dropped.
	assert.Same(t, before, svc.tabLock("tab-1"))
}
