package scan

import (
	"context"
	"fmt"
	"log"
	"os"
)

// Runner executes every applicable plugin of a registry over one scan
// context, in registry order. Plugins run sequentially because later plugins
// may consume earlier plugins' results through the context; per-file work
// inside each plugin is free to parallelize.
type Runner struct {
	registry *Registry
	verbose  bool
}

// NewRunner creates a runner over the given registry.
func NewRunner(registry *Registry) *Runner {
	return &Runner{registry: registry}
}

// Verbose enables per-plugin progress lines on stderr.
func (r *Runner) Verbose(v bool) *Runner {
	r.verbose = v
	return r
}

// Run executes the scan and returns every plugin's result in execution
// order. A plugin whose applicability predicate rejects the context
// contributes an empty successful result. A plugin that returns an error
// contributes a failed result; the run continues. Only context cancellation
// stops the run early.
func (r *Runner) Run(ctx context.Context, sc *Context) ([]*Result, error) {
	var results []*Result

	for _, p := range r.registry.Plugins() {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("scan cancelled: %w", err)
		}

		if !p.AppliesTo(sc) {
			log.Printf("scan: plugin %s does not apply, skipping", p.ID())
			res := EmptyResult(p.ID())
			sc.addResult(res)
			results = append(results, res)
			continue
		}

		if r.verbose {
			fmt.Fprintf(os.Stderr, "scan: running %s...\n", p.Name())
		}

		res, err := p.Scan(ctx, sc)
		if err != nil {
			log.Printf("scan: plugin %s failed: %v", p.ID(), err)
			res = FailedResult(p.ID(), err.Error())
		}
		if res == nil {
			res = EmptyResult(p.ID())
		}

		sc.addResult(res)
		results = append(results, res)

		if r.verbose && res.HasFindings() {
			fmt.Fprintf(os.Stderr, "scan: %s found %d components, %d dependencies, %d endpoints, %d entities, %d flows (%s)\n",
				p.ID(), len(res.Components), len(res.Dependencies), len(res.Endpoints),
				len(res.Entities), len(res.Flows), res.Stats.Summary())
		}
	}

	return results, nil
}
