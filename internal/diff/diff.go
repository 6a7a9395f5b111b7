// Package diff compares two architecture models and reports what changed
// between scans: components and endpoints appearing or disappearing, and
// dependency versions moving.
package diff

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"

	"github.com/julianshen/archscan/internal/model"
)

// VersionChange classifies how a dependency version moved.
type VersionChange string

const (
	ChangeUpgraded   VersionChange = "upgraded"
	ChangeDowngraded VersionChange = "downgraded"
	ChangeChanged    VersionChange = "changed" // not comparable as semver
)

// DependencyDelta is one dependency whose declared version differs.
type DependencyDelta struct {
	ComponentID string
	Artifact    string
	OldVersion  string
	NewVersion  string
	Change      VersionChange
}

// Report lists everything that differs between two models. Every slice is
// sorted, so equal inputs produce an empty report and fixed inputs always
// produce the same report.
type Report struct {
	AddedComponents     []string
	RemovedComponents   []string
	AddedEndpoints      []string
	RemovedEndpoints    []string
	AddedDependencies   []string
	RemovedDependencies []string
	ChangedDependencies []DependencyDelta
}

// Empty reports whether nothing changed.
func (r *Report) Empty() bool {
	return len(r.AddedComponents) == 0 && len(r.RemovedComponents) == 0 &&
		len(r.AddedEndpoints) == 0 && len(r.RemovedEndpoints) == 0 &&
		len(r.AddedDependencies) == 0 && len(r.RemovedDependencies) == 0 &&
		len(r.ChangedDependencies) == 0
}

// Lines renders the report as human-readable lines.
func (r *Report) Lines() []string {
	var out []string
	for _, id := range r.AddedComponents {
		out = append(out, "+ component "+id)
	}
	for _, id := range r.RemovedComponents {
		out = append(out, "- component "+id)
	}
	for _, ep := range r.AddedEndpoints {
		out = append(out, "+ endpoint "+ep)
	}
	for _, ep := range r.RemovedEndpoints {
		out = append(out, "- endpoint "+ep)
	}
	for _, d := range r.AddedDependencies {
		out = append(out, "+ dependency "+d)
	}
	for _, d := range r.RemovedDependencies {
		out = append(out, "- dependency "+d)
	}
	for _, d := range r.ChangedDependencies {
		out = append(out, fmt.Sprintf("~ dependency %s/%s %s: %s -> %s",
			d.ComponentID, d.Artifact, d.Change, d.OldVersion, d.NewVersion))
	}
	return out
}

// Compare diffs two models. Components are keyed by id, endpoints by
// method+path+component, dependencies by component+group+artifact.
func Compare(old, new *model.ArchitectureModel) *Report {
	r := &Report{}

	oldComps := componentIDs(old)
	newComps := componentIDs(new)
	r.AddedComponents = missingFrom(newComps, oldComps)
	r.RemovedComponents = missingFrom(oldComps, newComps)

	oldEps := endpointKeys(old)
	newEps := endpointKeys(new)
	r.AddedEndpoints = missingFrom(newEps, oldEps)
	r.RemovedEndpoints = missingFrom(oldEps, newEps)

	oldDeps := dependencyVersions(old)
	newDeps := dependencyVersions(new)
	for key, newVersion := range newDeps {
		oldVersion, ok := oldDeps[key]
		if !ok {
			r.AddedDependencies = append(r.AddedDependencies, key)
			continue
		}
		if oldVersion == newVersion {
			continue
		}
		compID, artifact := splitDepKey(key)
		r.ChangedDependencies = append(r.ChangedDependencies, DependencyDelta{
			ComponentID: compID,
			Artifact:    artifact,
			OldVersion:  oldVersion,
			NewVersion:  newVersion,
			Change:      classify(oldVersion, newVersion),
		})
	}
	for key := range oldDeps {
		if _, ok := newDeps[key]; !ok {
			r.RemovedDependencies = append(r.RemovedDependencies, key)
		}
	}

	sort.Strings(r.AddedDependencies)
	sort.Strings(r.RemovedDependencies)
	sort.Slice(r.ChangedDependencies, func(i, j int) bool {
		a, b := r.ChangedDependencies[i], r.ChangedDependencies[j]
		if a.ComponentID != b.ComponentID {
			return a.ComponentID < b.ComponentID
		}
		return a.Artifact < b.Artifact
	})
	return r
}

// classify compares two versions as semver where possible. Versions that do
// not parse are reported as plain changes.
func classify(oldV, newV string) VersionChange {
	ov, err1 := semver.NewVersion(oldV)
	nv, err2 := semver.NewVersion(newV)
	if err1 != nil || err2 != nil {
		return ChangeChanged
	}
	switch {
	case nv.GreaterThan(ov):
		return ChangeUpgraded
	case nv.LessThan(ov):
		return ChangeDowngraded
	default:
		return ChangeChanged
	}
}

func componentIDs(m *model.ArchitectureModel) map[string]bool {
	out := make(map[string]bool, len(m.Components))
	for _, c := range m.Components {
		out[c.ID] = true
	}
	return out
}

func endpointKeys(m *model.ArchitectureModel) map[string]bool {
	out := make(map[string]bool, len(m.ApiEndpoints))
	for _, ep := range m.ApiEndpoints {
		out[fmt.Sprintf("%s %s %s", ep.Method, ep.Path, ep.ComponentID)] = true
	}
	return out
}

func dependencyVersions(m *model.ArchitectureModel) map[string]string {
	out := make(map[string]string, len(m.Dependencies))
	for _, d := range m.Dependencies {
		artifact := d.Artifact
		if d.Group != "" {
			artifact = d.Group + "/" + d.Artifact
		}
		out[d.SourceComponentID+"/"+artifact] = d.Version
	}
	return out
}

func splitDepKey(key string) (componentID, artifact string) {
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			return key[:i], key[i+1:]
		}
	}
	return key, ""
}

func missingFrom(have, other map[string]bool) []string {
	var out []string
	for k := range have {
		if !other[k] {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
