package scan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// ExtractFunc turns file content into zero or more typed facts. Extractors
// must be pure with respect to shared state so per-file invocations can run
// concurrently.
type ExtractFunc[T any] func(path string, content []byte) ([]T, error)

// PreFilterFunc is a cheap content/name heuristic that decides whether a
// file is worth attempting at all. Files rejected here are skipped and not
// counted as parse attempts.
type PreFilterFunc func(path string, content []byte) bool

// FileResult is the confidence-tagged outcome of running the tiered pipeline
// over one file. Exactly one of the three confidence values is recorded per
// accepted file; Facts is empty when Confidence is ConfidenceFailed.
type FileResult[T any] struct {
	Path       string
	Confidence Confidence
	Facts      []T
	Failure    *FileFailure
}

// Pipeline applies the tiered extraction strategy per file:
//
//	PreFilter -> Tier 1 structural -> Tier 2 fallback -> Failed
//
// Tier 1 success (even with zero facts) ends processing at HIGH confidence.
// Tier 2 runs only when Tier 1 returns an error; it succeeds at MEDIUM
// confidence when it emits at least one fact, and otherwise the file is
// recorded as FAILED. A pipeline with a nil Structural extractor is
// pattern-only: its successes are MEDIUM confidence.
//
// Tiers are all-or-nothing per file: a tier that times out or errors
// contributes no facts. The confidence tag is a first-class value rather
// than inferred from which error handler ran.
type Pipeline[T any] struct {
	PreFilter  PreFilterFunc  // nil accepts every file
	Structural ExtractFunc[T] // Tier 1; nil skips straight to Fallback
	Fallback   ExtractFunc[T] // Tier 2; nil means no fallback

	// Timeout bounds a single tier invocation so a pathological input
	// cannot stall the whole scan. Zero means no bound. A timeout is
	// treated identically to a tier failure.
	Timeout time.Duration

	// Concurrency caps parallel per-file workers. Values below 1 run
	// files sequentially.
	Concurrency int
}

// Run processes every file through the tiered strategy, recording counts
// into stats as it goes. Results are returned sorted by path so output is
// invariant to scheduling order. Files are read through the scan context;
// unreadable files count as scanned and failed.
func (p Pipeline[T]) Run(ctx context.Context, sc *Context, files []string, stats *StatsBuilder) []FileResult[T] {
	stats.FilesDiscovered(len(files))

	workers := p.Concurrency
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var results []FileResult[T]

	wp := pool.New().WithMaxGoroutines(workers)
	for _, file := range files {
		file := file
		wp.Go(func() {
			res, attempted := p.processFile(ctx, sc, file, stats)
			if !attempted {
				return // pre-filter skip: not a parse attempt
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
		})
	}
	wp.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results
}

// processFile runs the tier state machine for one file. The second return
// value is false when the pre-filter rejected the file.
func (p Pipeline[T]) processFile(ctx context.Context, sc *Context, file string, stats *StatsBuilder) (FileResult[T], bool) {
	content, err := sc.ReadFile(file)
	if err != nil {
		stats.IncrementFilesScanned()
		stats.RecordTier(ConfidenceFailed)
		stats.AddError("read", fmt.Sprintf("%s: %v", file, err))
		return FileResult[T]{
			Path:       file,
			Confidence: ConfidenceFailed,
			Failure:    &FileFailure{Path: file, Tier: TierNone, Message: err.Error()},
		}, true
	}

	if p.PreFilter != nil && !p.PreFilter(file, content) {
		return FileResult[T]{}, false
	}
	stats.IncrementFilesScanned()

	// Tier 1: structural extraction. Success, even with zero facts, is a
	// HIGH confidence result.
	var structuralErr error
	if p.Structural != nil {
		facts, err := p.runTier(ctx, file, content, p.Structural)
		if err == nil {
			stats.RecordTier(ConfidenceHigh)
			return FileResult[T]{Path: file, Confidence: ConfidenceHigh, Facts: facts}, true
		}
		structuralErr = err
	}

	// Tier 2: pattern-based fallback, only reached on Tier 1 error (or for
	// pattern-only pipelines). Zero matches here is terminal for the file.
	if p.Fallback != nil {
		facts, err := p.runTier(ctx, file, content, p.Fallback)
		if err == nil && len(facts) > 0 {
			stats.RecordTier(ConfidenceMedium)
			return FileResult[T]{Path: file, Confidence: ConfidenceMedium, Facts: facts}, true
		}
		stats.RecordTier(ConfidenceFailed)
		failure := &FileFailure{Path: file, Tier: TierFallback}
		switch {
		case err != nil:
			failure.Message = err.Error()
			stats.AddError("fallback", fmt.Sprintf("%s: %v", file, err))
		case structuralErr != nil:
			failure.Message = fmt.Sprintf("no fallback matches after structural failure: %v", structuralErr)
			stats.AddError("fallback", failure.Message)
		default:
			failure.Message = "no fallback matches"
			stats.AddError("fallback", fmt.Sprintf("%s: no fallback matches", file))
		}
		return FileResult[T]{Path: file, Confidence: ConfidenceFailed, Failure: failure}, true
	}

	// No fallback configured: the structural failure is terminal.
	stats.RecordTier(ConfidenceFailed)
	msg := "no extractor configured"
	if structuralErr != nil {
		msg = structuralErr.Error()
		stats.AddError("structural", fmt.Sprintf("%s: %v", file, structuralErr))
	}
	return FileResult[T]{
		Path:       file,
		Confidence: ConfidenceFailed,
		Failure:    &FileFailure{Path: file, Tier: TierStructural, Message: msg},
	}, true
}

// runTier invokes one extractor, bounded by the pipeline timeout and the
// caller's context. No partial results survive a cancelled tier.
func (p Pipeline[T]) runTier(ctx context.Context, file string, content []byte, fn ExtractFunc[T]) ([]T, error) {
	if p.Timeout <= 0 && ctx.Done() == nil {
		return fn(file, content)
	}

	tierCtx := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		tierCtx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	type outcome struct {
		facts []T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		facts, err := fn(file, content)
		done <- outcome{facts, err}
	}()

	select {
	case o := <-done:
		return o.facts, o.err
	case <-tierCtx.Done():
		return nil, fmt.Errorf("parse %s: %w", file, tierCtx.Err())
	}
}
