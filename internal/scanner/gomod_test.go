package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/archscan/internal/model"
)

const goodGoMod = `module github.com/acme/payments

go 1.22

require (
	github.com/pkg/errors v0.9.1
	golang.org/x/sync v0.7.0 // indirect
)
`

func TestGomodStructural(t *testing.T) {
	sc := testContext(t, map[string]string{"go.mod": goodGoMod})

	res, err := newGomodPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.Components, 1)
	comp := res.Components[0]
	assert.Equal(t, "github-com-acme-payments", comp.ID)
	assert.Equal(t, "github.com/acme/payments", comp.Name)
	assert.Equal(t, model.ComponentModule, comp.Type)
	assert.Equal(t, ".", comp.Metadata["dir"])
	assert.Equal(t, "1.22", comp.Metadata["go_version"])

	require.Len(t, res.Dependencies, 2)
	assert.Equal(t, "github.com/pkg/errors", res.Dependencies[0].Artifact)
	assert.Equal(t, "0.9.1", res.Dependencies[0].Version)
	assert.True(t, res.Dependencies[0].Direct)
	assert.False(t, res.Dependencies[1].Direct)

	assert.Equal(t, 1, res.Stats.Structural)
	assert.Equal(t, 0, res.Stats.Fallback)
	assert.Equal(t, 1.0, res.Stats.SuccessRate())
}

func TestGomodFallbackOnDamagedFile(t *testing.T) {
	damaged := "module github.com/acme/broken\n\ngo 1.22\n\nrequire (\n\tgithub.com/pkg/errors v0.9.1\n"
	sc := testContext(t, map[string]string{"go.mod": damaged})

	res, err := newGomodPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.Components, 1)
	assert.Equal(t, "github.com/acme/broken", res.Components[0].Name)

	assert.Equal(t, 0, res.Stats.Structural)
	assert.Equal(t, 1, res.Stats.Fallback)
	assert.True(t, res.Stats.UsedFallback())
}

func TestGomodMultiModuleTree(t *testing.T) {
	sc := testContext(t, map[string]string{
		"go.mod":             "module github.com/acme/root\n\ngo 1.22\n",
		"services/a/go.mod":  "module github.com/acme/a\n\ngo 1.22\n",
		"vendor/x/go.mod":    "module github.com/vendored/x\n",
		"services/a/main.go": "package main\n",
	})

	res, err := newGomodPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	// vendor/ is excluded at the file-index level.
	require.Len(t, res.Components, 2)
	assert.Equal(t, 2, res.Stats.FilesDiscovered)

	dirs := map[string]string{}
	for _, c := range res.Components {
		dirs[c.Name] = c.Metadata["dir"]
	}
	assert.Equal(t, ".", dirs["github.com/acme/root"])
	assert.Equal(t, "services/a", dirs["github.com/acme/a"])
}

func TestGomodAppliesTo(t *testing.T) {
	p := newGomodPlugin()
	assert.True(t, p.AppliesTo(testContext(t, map[string]string{"go.mod": "module x\n"})))
	assert.False(t, p.AppliesTo(testContext(t, map[string]string{"main.py": ""})))
}
