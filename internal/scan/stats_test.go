package scan

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatisticsRates(t *testing.T) {
	s := Statistics{FilesDiscovered: 10, FilesScanned: 8, Structural: 5, Fallback: 2, Failed: 1}

	assert.InDelta(t, 0.875, s.SuccessRate(), 1e-9)
	assert.InDelta(t, 0.7, s.OverallParseRate(), 1e-9)
	assert.True(t, s.HasFailures())
	assert.True(t, s.UsedFallback())
}

func TestStatisticsZeroDivision(t *testing.T) {
	var s Statistics
	assert.Equal(t, 0.0, s.SuccessRate())
	assert.Equal(t, 0.0, s.OverallParseRate())
	assert.False(t, s.HasFailures())
	assert.False(t, s.UsedFallback())
}

func TestStatsBuilderAccumulates(t *testing.T) {
	b := NewStatsBuilder()
	b.FilesDiscovered(3)
	for i := 0; i < 3; i++ {
		b.IncrementFilesScanned()
	}
	b.RecordTier(ConfidenceHigh)
	b.RecordTier(ConfidenceMedium)
	b.RecordTier(ConfidenceFailed)
	b.AddError("fallback", "a.py: no fallback matches")

	s := b.Build()
	assert.Equal(t, 3, s.FilesDiscovered)
	assert.Equal(t, 3, s.FilesScanned)
	assert.Equal(t, 1, s.Structural)
	assert.Equal(t, 1, s.Fallback)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.ErrorCounts["fallback"])

	// The tier counts always partition the scanned files.
	assert.Equal(t, s.FilesScanned, s.Structural+s.Fallback+s.Failed)
}

func TestStatsBuilderSnapshotIsFrozen(t *testing.T) {
	b := NewStatsBuilder()
	b.AddError("read", "first")
	snap := b.Build()

	b.AddError("read", "second")
	assert.Equal(t, 1, snap.ErrorCounts["read"])
	assert.Len(t, snap.TopErrors, 1)
}

func TestStatsBuilderCapsTopErrors(t *testing.T) {
	b := NewStatsBuilder()
	for i := 0; i < maxTopErrors+5; i++ {
		b.AddError("fallback", fmt.Sprintf("file-%d", i))
	}

	s := b.Build()
	assert.Len(t, s.TopErrors, maxTopErrors)
	assert.Equal(t, maxTopErrors+5, s.ErrorCounts["fallback"])
}
