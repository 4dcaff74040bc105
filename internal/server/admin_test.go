package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/multiplayer-trader/internal/auth"
	"github.com/example/multiplayer-trader/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndPing(t *testing.T) {
	env := newTestEnv(t, 0)

	resp := get(t, env.srv.URL+"/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "OK", string(body))

	resp = get(t, env.srv.URL+"/ping", "")
	body, _ = io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
}

func TestAdminSessions(t *testing.T) {
	env := newTestEnv(t, 0)
	token, err := auth.NewAdminConfig("s3cret").NewToken("ops", time.Minute)
	require.NoError(t, err)

	c := env.dial(t)
	c.join("alice")

	resp := get(t, env.srv.URL+"/api/sessions", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = get(t, env.srv.URL+"/api/sessions", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []sessionSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, store.DefaultSessionName, list[0].Name)
	assert.Equal(t, 1, list[0].PlayerCount)
	assert.Equal(t, 1, list[0].OnlineCount)

	resp = get(t, env.srv.URL+"/api/sessions/"+store.DefaultSessionName, token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detail sessionDetail
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&detail))
	require.Len(t, detail.OnlinePlayers, 1)
	assert.Equal(t, "alice", detail.OnlinePlayers[0].Username)

	resp = get(t, env.srv.URL+"/api/sessions/Nowhere", token)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminSessions_NotConfigured(t *testing.T) {
	gs := NewGameServer(store.NewMemStore("", 0), Options{})
	srv := httptest.NewServer(gs.Routes(auth.NewAdminConfig("")))
	t.Cleanup(srv.Close)

	resp := get(t, srv.URL+"/api/sessions", "anything")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
