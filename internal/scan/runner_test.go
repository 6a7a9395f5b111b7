package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/archscan/internal/model"
)

func TestRunnerSkipsInapplicablePlugins(t *testing.T) {
	reg, err := NewRegistry([]Plugin{
		&fakePlugin{id: "skipped", priority: 10, applies: false},
		&fakePlugin{id: "ran", priority: 20, applies: true, result: &Result{
			PluginID: "ran", Success: true,
			Components: []model.Component{{ID: "c"}},
		}},
	}, nil)
	require.NoError(t, err)

	sc := newTestContext(t, map[string]string{"f": ""})
	results, err := NewRunner(reg).Run(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.False(t, results[0].HasFindings())
	assert.True(t, results[1].HasFindings())
}

func TestRunnerPluginErrorDoesNotAbortRun(t *testing.T) {
	reg, err := NewRegistry([]Plugin{
		&fakePlugin{id: "broken", priority: 10, applies: true, err: errors.New("boom")},
		&fakePlugin{id: "fine", priority: 20, applies: true, result: &Result{PluginID: "fine", Success: true}},
	}, nil)
	require.NoError(t, err)

	sc := newTestContext(t, map[string]string{"f": ""})
	results, err := NewRunner(reg).Run(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Contains(t, results[0].Errors, "boom")
	assert.True(t, results[1].Success)
}

func TestRunnerFeedsPreviousResultsForward(t *testing.T) {
	producer := &fakePlugin{id: "deps", priority: 10, applies: true, result: &Result{
		PluginID: "deps", Success: true,
		Components: []model.Component{{ID: "svc", Metadata: map[string]string{"dir": "svc"}}},
	}}

	var seen []model.Component
	consumer := &fakePlugin{id: "endpoints", priority: 50, applies: true,
		scan: func(sc *Context) (*Result, error) {
			seen = sc.PreviousComponents()
			return EmptyResult("endpoints"), nil
		}}

	reg, err := NewRegistry([]Plugin{consumer, producer}, nil)
	require.NoError(t, err)

	sc := newTestContext(t, map[string]string{"f": ""})
	_, err = NewRunner(reg).Run(context.Background(), sc)
	require.NoError(t, err)

	// The producer runs first by priority, so the consumer sees its output.
	require.Len(t, seen, 1)
	assert.Equal(t, "svc", seen[0].ID)
}

func TestRunnerNilResultBecomesEmpty(t *testing.T) {
	reg, err := NewRegistry([]Plugin{
		&fakePlugin{id: "nilly", priority: 10, applies: true},
	}, nil)
	require.NoError(t, err)

	sc := newTestContext(t, map[string]string{"f": ""})
	results, err := NewRunner(reg).Run(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	reg, err := NewRegistry([]Plugin{
		&fakePlugin{id: "a", priority: 10, applies: true, result: EmptyResult("a")},
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := newTestContext(t, map[string]string{"f": ""})
	_, err = NewRunner(reg).Run(ctx, sc)
	assert.Error(t, err)
}
