package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const springController = `package com.acme.orders;

import org.springframework.web.bind.annotation.*;

@RestController
@RequestMapping("/api/orders")
public class OrderController {

    @GetMapping("/{id}")
    public Order getOrder(@PathVariable String id) {
        return null;
    }

    @PostMapping
    public Order createOrder(@RequestBody Order order) {
        return null;
    }

    @RequestMapping(value = "/search", method = RequestMethod.GET)
    public Order search(@RequestParam String q) {
        return null;
    }
}
`

func TestSpringStructural(t *testing.T) {
	sc := testContext(t, map[string]string{"src/OrderController.java": springController})

	res, err := newSpringPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.Endpoints, 3)

	assert.Equal(t, "GET", res.Endpoints[0].Method)
	assert.Equal(t, "/api/orders/{id}", res.Endpoints[0].Path)
	assert.Equal(t, "OrderController.getOrder", res.Endpoints[0].Handler)

	// Marker annotation without arguments inherits the class base path.
	assert.Equal(t, "POST", res.Endpoints[1].Method)
	assert.Equal(t, "/api/orders", res.Endpoints[1].Path)

	// RequestMapping takes its method from the RequestMethod argument.
	assert.Equal(t, "GET", res.Endpoints[2].Method)
	assert.Equal(t, "/api/orders/search", res.Endpoints[2].Path)

	assert.Equal(t, 1, res.Stats.Structural)
}

func TestSpringFallbackMultiLineAnnotation(t *testing.T) {
	broken := `@RequestMapping("/api/v1")
public class Broken {

    @RequestMapping(
        value = "/items",
        method = RequestMethod.GET
    )
    public List<Item> items() {
        return items
    }
`
	sc := testContext(t, map[string]string{"Broken.java": broken})

	res, err := newSpringPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, res.Endpoints, 1)
	assert.Equal(t, "/api/v1/items", res.Endpoints[0].Path)
	assert.Equal(t, "GET", res.Endpoints[0].Method)
	assert.Equal(t, "items", res.Endpoints[0].Handler)

	assert.Equal(t, 1, res.Stats.Fallback)
}

func TestSpringPreFilter(t *testing.T) {
	sc := testContext(t, map[string]string{
		"Plain.java":          "package x;\n\npublic class Plain {}\n",
		"src/Controller.java": springController,
		"src/OtherThing.java": "package y;\n\npublic class OtherThing {}\n",
	})

	res, err := newSpringPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Stats.FilesDiscovered)
	assert.Equal(t, 1, res.Stats.FilesScanned)
	assert.Len(t, res.Endpoints, 3)
}

func TestJoinPaths(t *testing.T) {
	assert.Equal(t, "/api/users", joinPaths("/api", "/users"))
	assert.Equal(t, "/api/users", joinPaths("/api/", "users"))
	assert.Equal(t, "/api", joinPaths("/api", ""))
	assert.Equal(t, "/users", joinPaths("", "/users"))
}
