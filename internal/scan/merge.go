package scan

import (
	"fmt"
	"sort"

	"github.com/julianshen/archscan/internal/model"
)

// Assembler merges every plugin's partial result set into one consistent
// ArchitectureModel. Results are merged in execution order; a component id
// seen twice keeps its first-seen definition with a recorded warning
// (last-writer-wins is disallowed because plugin order is priority-driven,
// not correctness-driven). All other fact kinds are appended as emitted:
// duplicates across plugins are genuine multi-plugin corroboration and are
// left for the consuming formatter to decide how to display.
type Assembler struct {
	ProjectName    string
	ProjectVersion string
	Repositories   []string
}

// Merge builds the immutable model plus the merge-level warnings (component
// id collisions and unresolved component references). Merging is pure and
// deterministic: the same results in the same order produce an
// element-for-element equal model.
func (a Assembler) Merge(results []*Result) (*model.ArchitectureModel, []string) {
	m := &model.ArchitectureModel{
		ProjectName:    a.ProjectName,
		ProjectVersion: a.ProjectVersion,
		Repositories:   append([]string(nil), a.Repositories...),
	}
	if m.ProjectVersion == "" {
		m.ProjectVersion = "unknown"
	}

	var warnings []string
	seen := make(map[string]string) // component id -> plugin that defined it

	for _, res := range results {
		if res == nil || !res.Success {
			continue
		}
		for _, comp := range res.Components {
			if firstBy, dup := seen[comp.ID]; dup {
				warnings = append(warnings, fmt.Sprintf(
					"component %q from plugin %s duplicates a definition from plugin %s; keeping the first",
					comp.ID, res.PluginID, firstBy))
				continue
			}
			seen[comp.ID] = res.PluginID
			m.Components = append(m.Components, comp)
		}
		m.Dependencies = append(m.Dependencies, res.Dependencies...)
		m.ApiEndpoints = append(m.ApiEndpoints, res.Endpoints...)
		m.DataEntities = append(m.DataEntities, res.Entities...)
		m.MessageFlows = append(m.MessageFlows, res.Flows...)
		m.Relationships = append(m.Relationships, res.Relationships...)
	}

	warnings = append(warnings, a.checkReferences(m, seen)...)
	return m, warnings
}

// checkReferences reports component ids referenced by facts but defined by
// no plugin. Unresolved references are tolerated, but the operator should
// know about them.
func (a Assembler) checkReferences(m *model.ArchitectureModel, seen map[string]string) []string {
	unresolved := make(map[string]bool)
	note := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; !ok {
			unresolved[id] = true
		}
	}

	for _, d := range m.Dependencies {
		note(d.SourceComponentID)
	}
	for _, e := range m.ApiEndpoints {
		note(e.ComponentID)
	}
	for _, e := range m.DataEntities {
		note(e.ComponentID)
	}
	for _, f := range m.MessageFlows {
		note(f.PublisherComponentID)
		note(f.SubscriberComponentID)
	}
	for _, r := range m.Relationships {
		note(r.SourceID)
		note(r.TargetID)
	}

	var warnings []string
	for _, id := range sortedKeys(unresolved) {
		warnings = append(warnings, fmt.Sprintf("component reference %q does not resolve to any scanned component", id))
	}
	return warnings
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
