package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrocast/retrocast/internal/models"
)

func boolPtr(v bool) *bool    { return &v }
func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

func TestGetSession_UnknownReturnsDefaults(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/sessions/fresh-client", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var sess models.ViewerSession
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sess))
	assert.Equal(t, "fresh-client", sess.SessionID)
	assert.True(t, sess.PowerOn)
	assert.Equal(t, 50, sess.Volume)
}

func TestUpdateSession_FlushPersistsImmediately(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	body, _ := json.Marshal(UpdateSessionRequest{
		PowerOn:       boolPtr(false),
		Volume:        intPtr(20),
		ChannelFilter: strPtr("cartoons"),
		ActiveIndex:   intPtr(3),
		Flush:         true,
	})
	req := httptest.NewRequest("PUT", "/api/sessions/tv-main", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.repos.Sessions.Get(context.Background(), "tv-main")
	require.NoError(t, err)
	assert.False(t, stored.PowerOn)
	assert.Equal(t, 20, stored.Volume)
	assert.Equal(t, "cartoons", stored.ChannelFilter)
	assert.Equal(t, 3, stored.ActiveIndex)
}

func TestUpdateSession_DebouncedWriteLands(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	body, _ := json.Marshal(UpdateSessionRequest{Volume: intPtr(75)})
	req := httptest.NewRequest("PUT", "/api/sessions/tv-main", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		stored, err := env.repos.Sessions.Get(context.Background(), "tv-main")
		return err == nil && stored.Volume == 75
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUpdateSession_PartialKeepsOtherFields(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	body, _ := json.Marshal(UpdateSessionRequest{Volume: intPtr(10), Flush: true})
	req := httptest.NewRequest("PUT", "/api/sessions/tv-main", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	body, _ = json.Marshal(UpdateSessionRequest{ActiveIndex: intPtr(5), Flush: true})
	req = httptest.NewRequest("PUT", "/api/sessions/tv-main", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := env.repos.Sessions.Get(context.Background(), "tv-main")
	require.NoError(t, err)
	assert.Equal(t, 10, stored.Volume)
	assert.Equal(t, 5, stored.ActiveIndex)
}

func TestUpdateSession_RejectsVolumeOutOfRange(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	body, _ := json.Marshal(UpdateSessionRequest{Volume: intPtr(150)})
	req := httptest.NewRequest("PUT", "/api/sessions/tv-main", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
