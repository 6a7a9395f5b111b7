package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/archscan/internal/model"
)

func baseModel() *model.ArchitectureModel {
	return &model.ArchitectureModel{
		Components: []model.Component{
			{ID: "api", Name: "api"},
			{ID: "worker", Name: "worker"},
		},
		ApiEndpoints: []model.ApiEndpoint{
			{ComponentID: "api", Method: "GET", Path: "/users"},
		},
		Dependencies: []model.Dependency{
			{SourceComponentID: "api", Artifact: "express", Version: "4.18.2"},
			{SourceComponentID: "api", Artifact: "pg", Version: "8.11.0"},
		},
	}
}

func TestCompareEqualModelsIsEmpty(t *testing.T) {
	r := Compare(baseModel(), baseModel())
	assert.True(t, r.Empty())
	assert.Empty(t, r.Lines())
}

func TestCompareComponentAndEndpointChanges(t *testing.T) {
	newer := baseModel()
	newer.Components = append(newer.Components[:1], model.Component{ID: "billing"})
	newer.ApiEndpoints = []model.ApiEndpoint{
		{ComponentID: "api", Method: "POST", Path: "/users"},
	}

	r := Compare(baseModel(), newer)
	assert.Equal(t, []string{"billing"}, r.AddedComponents)
	assert.Equal(t, []string{"worker"}, r.RemovedComponents)
	assert.Equal(t, []string{"POST /users api"}, r.AddedEndpoints)
	assert.Equal(t, []string{"GET /users api"}, r.RemovedEndpoints)
}

func TestCompareDependencyVersions(t *testing.T) {
	newer := baseModel()
	newer.Dependencies = []model.Dependency{
		{SourceComponentID: "api", Artifact: "express", Version: "4.19.0"},
		{SourceComponentID: "api", Artifact: "pg", Version: "8.10.0"},
		{SourceComponentID: "api", Artifact: "redis", Version: "4.6.0"},
	}

	r := Compare(baseModel(), newer)
	assert.Equal(t, []string{"api/redis"}, r.AddedDependencies)
	assert.Empty(t, r.RemovedDependencies)

	require.Len(t, r.ChangedDependencies, 2)
	assert.Equal(t, ChangeUpgraded, r.ChangedDependencies[0].Change)
	assert.Equal(t, "express", r.ChangedDependencies[0].Artifact)
	assert.Equal(t, ChangeDowngraded, r.ChangedDependencies[1].Change)
	assert.Equal(t, "pg", r.ChangedDependencies[1].Artifact)
}

func TestClassifyNonSemver(t *testing.T) {
	assert.Equal(t, ChangeChanged, classify("latest", "1.0.0"))
	assert.Equal(t, ChangeUpgraded, classify("1.2.3", "2.0.0"))
	assert.Equal(t, ChangeDowngraded, classify("2.0.0", "1.9.9"))
}

func TestLinesRendering(t *testing.T) {
	newer := baseModel()
	newer.Dependencies[0].Version = "5.0.0"

	r := Compare(baseModel(), newer)
	lines := r.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "~ dependency api/express upgraded: 4.18.2 -> 5.0.0", lines[0])
}
