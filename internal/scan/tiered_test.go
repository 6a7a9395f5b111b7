package scan

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBadSyntax = errors.New("bad syntax")

func TestPipelineStructuralSuccess(t *testing.T) {
	sc := newTestContext(t, map[string]string{"a.txt": "alpha", "b.txt": "beta"})
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) {
			return []string{string(content)}, nil
		},
	}
	results := pipe.Run(context.Background(), sc, []string{"a.txt", "b.txt"}, stats)

	require.Len(t, results, 2)
	assert.Equal(t, "a.txt", results[0].Path)
	assert.Equal(t, ConfidenceHigh, results[0].Confidence)
	assert.Equal(t, []string{"alpha"}, results[0].Facts)

	s := stats.Build()
	assert.Equal(t, 2, s.Structural)
	assert.Equal(t, 2, s.FilesScanned)
}

func TestPipelineStructuralZeroFactsIsStillHigh(t *testing.T) {
	sc := newTestContext(t, map[string]string{"empty.txt": ""})
	stats := NewStatsBuilder()

	fallbackRan := false
	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) { return nil, nil },
		Fallback: func(path string, content []byte) ([]string, error) {
			fallbackRan = true
			return nil, nil
		},
	}
	results := pipe.Run(context.Background(), sc, []string{"empty.txt"}, stats)

	require.Len(t, results, 1)
	assert.Equal(t, ConfidenceHigh, results[0].Confidence)
	assert.Empty(t, results[0].Facts)
	assert.False(t, fallbackRan, "fallback must not run after structural success")
}

func TestPipelineFallbackAfterStructuralError(t *testing.T) {
	sc := newTestContext(t, map[string]string{"f.txt": "content"})
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) { return nil, errBadSyntax },
		Fallback: func(path string, content []byte) ([]string, error) {
			return []string{"partial"}, nil
		},
	}
	results := pipe.Run(context.Background(), sc, []string{"f.txt"}, stats)

	require.Len(t, results, 1)
	assert.Equal(t, ConfidenceMedium, results[0].Confidence)
	assert.Equal(t, []string{"partial"}, results[0].Facts)
	assert.Equal(t, 1, stats.Build().Fallback)
}

func TestPipelineFallbackZeroMatchesIsFailed(t *testing.T) {
	sc := newTestContext(t, map[string]string{"f.txt": "content"})
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) { return nil, errBadSyntax },
		Fallback:   func(path string, content []byte) ([]string, error) { return nil, nil },
	}
	results := pipe.Run(context.Background(), sc, []string{"f.txt"}, stats)

	require.Len(t, results, 1)
	assert.Equal(t, ConfidenceFailed, results[0].Confidence)
	assert.Empty(t, results[0].Facts)
	require.NotNil(t, results[0].Failure)
	assert.Equal(t, TierFallback, results[0].Failure.Tier)
	assert.Contains(t, results[0].Failure.Message, "bad syntax")
}

func TestPipelineNoFallbackConfigured(t *testing.T) {
	sc := newTestContext(t, map[string]string{"f.txt": "x"})
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) { return nil, errBadSyntax },
	}
	results := pipe.Run(context.Background(), sc, []string{"f.txt"}, stats)

	require.Len(t, results, 1)
	assert.Equal(t, ConfidenceFailed, results[0].Confidence)
	assert.Equal(t, TierStructural, results[0].Failure.Tier)
}

func TestPipelinePreFilterSkipIsNotAnAttempt(t *testing.T) {
	sc := newTestContext(t, map[string]string{"keep.txt": "marker here", "skip.txt": "nothing"})
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		PreFilter: func(path string, content []byte) bool {
			return strings.Contains(string(content), "marker")
		},
		Structural: func(path string, content []byte) ([]string, error) {
			return []string{path}, nil
		},
	}
	results := pipe.Run(context.Background(), sc, []string{"keep.txt", "skip.txt"}, stats)

	require.Len(t, results, 1)
	assert.Equal(t, "keep.txt", results[0].Path)

	s := stats.Build()
	assert.Equal(t, 2, s.FilesDiscovered)
	assert.Equal(t, 1, s.FilesScanned)
	assert.Equal(t, s.FilesScanned, s.Structural+s.Fallback+s.Failed)
}

func TestPipelineUnreadableFileCountsAsFailed(t *testing.T) {
	sc := newTestContext(t, map[string]string{"real.txt": "x"})
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) { return nil, nil },
	}
	results := pipe.Run(context.Background(), sc, []string{"real.txt", "ghost.txt"}, stats)

	require.Len(t, results, 2)
	assert.Equal(t, "ghost.txt", results[0].Path)
	assert.Equal(t, ConfidenceFailed, results[0].Confidence)
	assert.Equal(t, TierNone, results[0].Failure.Tier)

	s := stats.Build()
	assert.Equal(t, 1, s.ErrorCounts["read"])
}

func TestPipelineTimeoutIsTierFailure(t *testing.T) {
	sc := newTestContext(t, map[string]string{"slow.txt": "x"})
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) {
			time.Sleep(200 * time.Millisecond)
			return []string{"late"}, nil
		},
		Timeout: 10 * time.Millisecond,
	}
	results := pipe.Run(context.Background(), sc, []string{"slow.txt"}, stats)

	require.Len(t, results, 1)
	assert.Equal(t, ConfidenceFailed, results[0].Confidence)
}

func TestPipelineResultsSortedUnderConcurrency(t *testing.T) {
	files := map[string]string{}
	var names []string
	for _, n := range []string{"d.txt", "a.txt", "c.txt", "b.txt"} {
		files[n] = n
		names = append(names, n)
	}
	sc := newTestContext(t, files)
	stats := NewStatsBuilder()

	pipe := Pipeline[string]{
		Structural: func(path string, content []byte) ([]string, error) {
			return []string{path}, nil
		},
		Concurrency: 4,
	}
	results := pipe.Run(context.Background(), sc, names, stats)

	require.Len(t, results, 4)
	for i, want := range []string{"a.txt", "b.txt", "c.txt", "d.txt"} {
		assert.Equal(t, want, results[i].Path)
	}
}
