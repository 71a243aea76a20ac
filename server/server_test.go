package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatgraph/chat"
	"github.com/hupe1980/chatgraph/logging"
	"github.com/hupe1980/chatgraph/model"
	"github.com/hupe1980/chatgraph/session"
)

func newTestServer(t *testing.T) (*Server, *session.InMemoryStore) {
	t.Helper()
	store := session.NewInMemoryStore()
	svc, err := chat.NewService(model.NewMockModel("test", "mock"), store,
		func(o *chat.ServiceOptions) { o.Logger = logging.NoOpLogger{} })
	require.NoError(t, err)

	srv := New(svc, func(o *Options) { o.Logger = logging.NoOpLogger{} })
	return srv, store
}

func postChat(t *testing.T, srv *Server, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/memory", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestChatEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postChat(t, srv, map[string]any{
		"message":   "What are your support hours?",
		"sessionId": "http-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		AssistantText    string `json:"assistantText"`
		SessionID        string `json:"sessionId"`
		ProcessingTimeMS *int64 `json:"processing_time_ms"`
		Triage           struct {
			Route     string   `json:"route"`
			TriageLog []string `json:"triageLog"`
		} `json:"triage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.NotEmpty(t, body.AssistantText)
	assert.Equal(t, "http-1", body.SessionID)
	assert.Equal(t, "llm", body.Triage.Route)
	assert.NotEmpty(t, body.Triage.TriageLog)
	require.NotNil(t, body.ProcessingTimeMS)
}

func TestChatEndpointRequiresMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postChat(t, srv, map[string]any{"sessionId": "http-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEndpointRejectsInvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/chat/memory", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	srv.Routes().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatEndpointMemoryOptOut(t *testing.T) {
	srv, store := newTestServer(t)

	rec := postChat(t, srv, map[string]any{
		"message":   "What are your support hours?",
		"sessionId": "http-nomem",
		"useMemory": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	sess, err := store.Load(context.Background(), "http-nomem")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestDeleteSessionEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postChat(t, srv, map[string]any{
		"message":   "What are your support hours?",
		"sessionId": "http-del",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodDelete, "/api/chat/memory/http-del", nil)
	del := httptest.NewRecorder()
	srv.Routes().ServeHTTP(del, req)
	assert.Equal(t, http.StatusOK, del.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/chat/memory/http-del", nil)
	del = httptest.NewRecorder()
	srv.Routes().ServeHTTP(del, req)
	assert.Equal(t, http.StatusNotFound, del.Code)
}
