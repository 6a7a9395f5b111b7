package scan

import (
	"github.com/julianshen/archscan/internal/model"
)

// Result is the immutable per-plugin outcome of a scan: the extracted facts,
// non-fatal warnings, plugin-fatal errors, recorded file failures, and the
// statistics snapshot. Produced once, consumed once by the merger.
type Result struct {
	PluginID      string               `json:"plugin_id"`
	Success       bool                 `json:"success"`
	Components    []model.Component    `json:"components,omitempty"`
	Dependencies  []model.Dependency   `json:"dependencies,omitempty"`
	Endpoints     []model.ApiEndpoint  `json:"api_endpoints,omitempty"`
	Entities      []model.DataEntity   `json:"data_entities,omitempty"`
	Flows         []model.MessageFlow  `json:"message_flows,omitempty"`
	Relationships []model.Relationship `json:"relationships,omitempty"`
	Warnings      []string             `json:"warnings,omitempty"`
	Errors        []string             `json:"errors,omitempty"`
	Failures      []FileFailure        `json:"failures,omitempty"`
	Stats         Statistics           `json:"statistics"`
}

// EmptyResult returns a successful result with no findings. Used when a
// plugin's applicability predicate rejects the scan context.
func EmptyResult(pluginID string) *Result {
	return &Result{PluginID: pluginID, Success: true}
}

// FailedResult returns an unsuccessful result carrying plugin-level errors.
func FailedResult(pluginID string, errs ...string) *Result {
	return &Result{PluginID: pluginID, Success: false, Errors: errs}
}

// HasFindings reports whether the result carries any extracted facts.
func (r *Result) HasFindings() bool {
	return len(r.Components) > 0 ||
		len(r.Dependencies) > 0 ||
		len(r.Endpoints) > 0 ||
		len(r.Entities) > 0 ||
		len(r.Flows) > 0 ||
		len(r.Relationships) > 0
}
