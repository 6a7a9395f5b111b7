package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/archscan/internal/model"
	"github.com/julianshen/archscan/internal/scan"
)

const goodPom = `<?xml version="1.0" encoding="UTF-8"?>
<project xmlns="http://maven.apache.org/POM/4.0.0">
  <parent>
    <groupId>com.acme</groupId>
    <artifactId>acme-parent</artifactId>
    <version>2.0.0</version>
  </parent>
  <artifactId>order-service</artifactId>
  <packaging>war</packaging>
  <properties>
    <spring.version>3.2.1</spring.version>
  </properties>
  <dependencies>
    <dependency>
      <groupId>org.springframework</groupId>
      <artifactId>spring-web</artifactId>
      <version>${spring.version}</version>
    </dependency>
    <dependency>
      <groupId>org.junit.jupiter</groupId>
      <artifactId>junit-jupiter</artifactId>
      <version>5.10.0</version>
      <scope>test</scope>
    </dependency>
  </dependencies>
  <dependencyManagement>
    <dependencies>
      <dependency>
        <groupId>com.acme</groupId>
        <artifactId>acme-bom</artifactId>
        <version>${project.version}</version>
      </dependency>
    </dependencies>
  </dependencyManagement>
</project>
`

func TestMavenStructural(t *testing.T) {
	sc := testContext(t, map[string]string{"pom.xml": goodPom})

	res, err := newMavenPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.Components, 1)
	comp := res.Components[0]
	assert.Equal(t, "com-acme-order-service", comp.ID)
	assert.Equal(t, "order-service", comp.Name)
	assert.Equal(t, model.ComponentService, comp.Type)
	assert.Equal(t, ".", comp.Metadata["dir"])
	assert.Equal(t, "com.acme", comp.Metadata["group_id"])
	// version inherits from the parent POM.
	assert.Equal(t, "2.0.0", comp.Metadata["version"])

	require.Len(t, res.Dependencies, 3)
	deps := map[string]model.Dependency{}
	for _, d := range res.Dependencies {
		deps[d.Artifact] = d
	}
	assert.Equal(t, "3.2.1", deps["spring-web"].Version)
	assert.Equal(t, "compile", deps["spring-web"].Scope)
	assert.Equal(t, "test", deps["junit-jupiter"].Scope)
	assert.Equal(t, "2.0.0", deps["acme-bom"].Version)

	assert.Equal(t, 1, res.Stats.Structural)
	assert.Equal(t, 0, res.Stats.Fallback)
}

func TestMavenFallbackOnDamagedPom(t *testing.T) {
	damaged := `<project>
  <groupId>com.acme</groupId>
  <artifactId>broken-service</artifactId>
  <dependencies>
    <dependency>
      <groupId>org.slf4j</groupId>
      <artifactId>slf4j-api</artifactId>
      <version>2.0.9</version>
    </dependency>
`
	sc := testContext(t, map[string]string{"pom.xml": damaged})

	res, err := newMavenPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.Components, 1)
	assert.Equal(t, "broken-service", res.Components[0].Name)
	assert.Equal(t, "com-acme-broken-service", res.Components[0].ID)

	require.Len(t, res.Dependencies, 1)
	assert.Equal(t, "org.slf4j", res.Dependencies[0].Group)
	assert.Equal(t, "slf4j-api", res.Dependencies[0].Artifact)
	assert.Equal(t, "2.0.9", res.Dependencies[0].Version)

	assert.Equal(t, 0, res.Stats.Structural)
	assert.Equal(t, 1, res.Stats.Fallback)
}

func TestMavenLibraryPackagingDefault(t *testing.T) {
	pom := `<project>
  <groupId>com.acme</groupId>
  <artifactId>acme-commons</artifactId>
  <version>1.0.0</version>
</project>
`
	sc := testContext(t, map[string]string{"libs/commons/pom.xml": pom})

	res, err := newMavenPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, res.Components, 1)
	assert.Equal(t, model.ComponentLibrary, res.Components[0].Type)
	assert.Equal(t, "libs/commons", res.Components[0].Metadata["dir"])
}

func TestMavenAppliesTo(t *testing.T) {
	p := newMavenPlugin()
	assert.True(t, p.AppliesTo(testContext(t, map[string]string{"svc/pom.xml": "<project/>"})))
	assert.False(t, p.AppliesTo(testContext(t, map[string]string{"go.mod": "module x\n"})))
}

func TestSpringEndpointOwnedByMavenComponent(t *testing.T) {
	controller := `package com.acme.orders;

@RestController
@RequestMapping("/orders")
public class OrderController {
    @GetMapping("/{id}")
    public Order get(@PathVariable String id) { return null; }
}
`
	pom := `<project>
  <groupId>com.acme</groupId>
  <artifactId>order-service</artifactId>
  <version>1.0.0</version>
</project>
`
	sc := testContext(t, map[string]string{
		"order-service/pom.xml": pom,
		"order-service/src/main/java/OrderController.java": controller,
	})

	mres, err := newMavenPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, mres.Components, 1)

	sc2, err := scan.NewContext(sc.Root(),
		scan.WithPreviousResults(map[string]*scan.Result{"maven": mres}))
	require.NoError(t, err)

	sres, err := newSpringPlugin().Scan(context.Background(), sc2)
	require.NoError(t, err)
	require.NotEmpty(t, sres.Endpoints)

	// Java endpoints attach to the POM's component, not the root fallback.
	assert.Equal(t, mres.Components[0].ID, sres.Endpoints[0].ComponentID)
	assert.Equal(t, "/orders/{id}", sres.Endpoints[0].Path)
}
