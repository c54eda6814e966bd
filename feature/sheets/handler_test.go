package sheets

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestApp(t *testing.T) (*fiber.App, *stubRemote) {
	t.Helper()
	app := fiber.New()
	r := newStubRemote()
	svc := newTestService(t, r, nil)
	handler := NewHandler(svc)
	handler.RegisterRoutes(app)
	return app, r
}

func TestHandleApply(t *testing.T) {
	app, r := setupTestApp(t)

	body, err := json.Marshal(fiber.Map{
		"intents": []fiber.Map{
			{"resource_id": "S1", "kind": "update", "payload": "v1"},
			{"resource_id": "S1", "kind": "update", "payload": "v2"},
		},
	})
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/sheets/apply", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var report map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.EqualValues(t, 1, report["succeeded"])
	assert.EqualValues(t, 0, report["failed"])
	assert.Equal(t, 1, r.batchCalls())
}

func TestHandleApply_EmptyBody(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest("POST", "/sheets/apply", bytes.NewReader([]byte(`{}`)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHandleApply_InvalidIntent(t *testing.T) {
	app, r := setupTestApp(t)

	body := []byte(`{"intents":[{"resource_id":"","kind":"update","payload":"v1"}]}`)
	req := httptest.NewRequest("POST", "/sheets/apply", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 400, resp.StatusCode)
	assert.Equal(t, 0, r.batchCalls())
}

func TestHandleDiff(t *testing.T) {
	app, r := setupTestApp(t)
	r.set("u1", "alpha")

	req := httptest.NewRequest("POST", "/sheets/S1/diff", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "S1", body["resource_id"])
	assert.EqualValues(t, 1, body["unit_count"])

	changes, ok := body["changes"].([]any)
	require.True(t, ok)
	require.Len(t, changes, 1)
}

func TestHandleJournal_NoJournalAttached(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest("GET", "/sheets/S1/journal", nil)
	resp, err := app.Test(req)

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Empty(t, body["entries"])
}
