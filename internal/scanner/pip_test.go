package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/archscan/internal/model"
)

const goodPyproject = `[project]
name = "order-service"
version = "1.2.0"
description = "order management"
dependencies = [
    "fastapi>=0.110.0",
    "uvicorn[standard]==0.29.0",
    "httpx",
]
`

func TestPipPyprojectStructural(t *testing.T) {
	sc := testContext(t, map[string]string{"pyproject.toml": goodPyproject})

	res, err := newPipPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.Components, 1)
	comp := res.Components[0]
	assert.Equal(t, "order-service", comp.ID)
	assert.Equal(t, model.ComponentService, comp.Type)
	assert.Equal(t, "python", comp.Technology)
	assert.Equal(t, "1.2.0", comp.Metadata["version"])

	require.Len(t, res.Dependencies, 3)
	byArtifact := map[string]model.Dependency{}
	for _, d := range res.Dependencies {
		byArtifact[d.Artifact] = d
	}
	assert.Equal(t, "0.110.0", byArtifact["fastapi"].Version)
	assert.Equal(t, "0.29.0", byArtifact["uvicorn"].Version)
	assert.Equal(t, "", byArtifact["httpx"].Version)

	assert.Equal(t, 1, res.Stats.Structural)
}

func TestPipPoetryDependencies(t *testing.T) {
	poetry := `[tool.poetry]
name = "billing"
version = "0.3.0"

[tool.poetry.dependencies]
python = "^3.11"
requests = "^2.31.0"
celery = { version = "5.3.0", extras = ["redis"] }
`
	sc := testContext(t, map[string]string{"pyproject.toml": poetry})

	res, err := newPipPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, res.Components, 1)
	assert.Equal(t, "billing", res.Components[0].Name)

	// python itself is the runtime, not a dependency.
	require.Len(t, res.Dependencies, 2)
	assert.Equal(t, "celery", res.Dependencies[0].Artifact)
	assert.Equal(t, "5.3.0", res.Dependencies[0].Version)
	assert.Equal(t, "requests", res.Dependencies[1].Artifact)
}

func TestPipRequirementsStructural(t *testing.T) {
	reqs := `# pinned deps
requests>=2.31.0
Flask==3.0.0
-r extra.txt
gunicorn
`
	sc := testContext(t, map[string]string{"api/requirements.txt": reqs})

	res, err := newPipPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, res.Components, 1)
	assert.Equal(t, "api", res.Components[0].ID)

	require.Len(t, res.Dependencies, 3)
	assert.Equal(t, "requests", res.Dependencies[0].Artifact)
	assert.Equal(t, "flask", res.Dependencies[1].Artifact)
	assert.Equal(t, "3.0.0", res.Dependencies[1].Version)
	assert.Equal(t, 1, res.Stats.Structural)
}

func TestPipRequirementsFallbackOnGarbageLine(t *testing.T) {
	reqs := "requests>=2.31.0\nthis is not a requirement\nflask==3.0.0\n"
	sc := testContext(t, map[string]string{"requirements.txt": reqs})

	res, err := newPipPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, res.Dependencies, 2)
	assert.Equal(t, 1, res.Stats.Fallback)
	assert.Equal(t, 0, res.Stats.Structural)
}

func TestParseRequirement(t *testing.T) {
	dep, ok := parseRequirement("c", "uvicorn[standard]==0.29.0 ; python_version >= '3.8'")
	require.True(t, ok)
	assert.Equal(t, "uvicorn", dep.Artifact)
	assert.Equal(t, "0.29.0", dep.Version)

	_, ok = parseRequirement("c", "not a valid spec")
	assert.False(t, ok)
}
