package scanner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/julianshen/archscan/internal/model"
)

const fastapiApp = `from fastapi import FastAPI

app = FastAPI()


@app.get("/users")
def list_users():
    return []


@app.post(
    "/users",
    status_code=201,
)
def create_user(user: dict):
    return user


@app.websocket("/ws")
async def updates(ws):
    pass
`

func TestFastapiStructural(t *testing.T) {
	sc := testContext(t, map[string]string{"main.py": fastapiApp})

	res, err := newFastapiPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.True(t, res.Success)

	require.Len(t, res.Endpoints, 3)
	assert.Equal(t, "GET", res.Endpoints[0].Method)
	assert.Equal(t, "/users", res.Endpoints[0].Path)
	assert.Equal(t, "list_users", res.Endpoints[0].Handler)

	// Multi-line decorator arguments resolve like single-line ones.
	assert.Equal(t, "POST", res.Endpoints[1].Method)
	assert.Equal(t, "/users", res.Endpoints[1].Path)
	assert.Equal(t, "create_user", res.Endpoints[1].Handler)

	assert.Equal(t, model.ApiWebSocket, res.Endpoints[2].Type)
	assert.Equal(t, "/ws", res.Endpoints[2].Path)

	assert.Equal(t, 1, res.Stats.Structural)
}

func TestFastapiFallbackOnSyntaxError(t *testing.T) {
	broken := `from fastapi import FastAPI

app = FastAPI()

def broken(:
    pass

@app.get("/health")
def health():
    return {"ok": True}

@app.put(
    "/items/{id}",
)
def update_item(id: int):
    pass
`
	sc := testContext(t, map[string]string{"api.py": broken})

	res, err := newFastapiPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	require.Len(t, res.Endpoints, 2)
	assert.Equal(t, "/health", res.Endpoints[0].Path)
	assert.Equal(t, "health", res.Endpoints[0].Handler)
	assert.Equal(t, "/items/{id}", res.Endpoints[1].Path)
	assert.Equal(t, "update_item", res.Endpoints[1].Handler)

	assert.Equal(t, 1, res.Stats.Fallback)
	assert.Equal(t, 0, res.Stats.Structural)
}

func TestFastapiPreFilterSkipsUnrelatedPython(t *testing.T) {
	sc := testContext(t, map[string]string{
		"script.py": "print('hello')\n",
		"main.py":   fastapiApp,
	})

	res, err := newFastapiPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)

	// The unrelated script is discovered but never counted as an attempt.
	assert.Equal(t, 2, res.Stats.FilesDiscovered)
	assert.Equal(t, 1, res.Stats.FilesScanned)
	require.Len(t, res.Endpoints, 3)
}

func TestFastapiRouterDecorators(t *testing.T) {
	routerFile := `from fastapi import APIRouter

router = APIRouter(prefix="/v1")


@router.delete("/items/{id}")
def remove_item(id: int):
    pass
`
	sc := testContext(t, map[string]string{"routes.py": routerFile})

	res, err := newFastapiPlugin().Scan(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, res.Endpoints, 1)
	assert.Equal(t, "DELETE", res.Endpoints[0].Method)
	assert.Equal(t, "/items/{id}", res.Endpoints[0].Path)
}
