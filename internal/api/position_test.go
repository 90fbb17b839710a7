package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retrocast/retrocast/internal/position"
)

func TestGetPosition(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ch := seedChannel(t, env.repos, "Movies", 600, 900, 300)
	env.clk.Advance(1020 * time.Second)

	req := httptest.NewRequest("GET", "/api/channels/"+ch.ID.String()+"/position", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var res position.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, ch.ID, res.ChannelID)
	assert.Equal(t, "Movies", res.ChannelName)
	assert.Equal(t, 1, res.Position.VideoIndex)
	assert.InDelta(t, 420.0, res.Position.OffsetInVideo, 0.001)
	assert.Equal(t, testEpoch.UnixMilli(), res.EpochMS)
	assert.Equal(t, env.clk.Now().UnixMilli(), res.ServerTimeMS)
	require.NotNil(t, res.Item)
	assert.Equal(t, "Movies", res.Item.Title)
}

func TestGetPosition_UnknownChannel(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/channels/"+uuid.NewString()+"/position", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error)
}

func TestGetPosition_InvalidID(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	req := httptest.NewRequest("GET", "/api/channels/not-a-uuid/position", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetPosition_InvalidTimezone(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ch := seedChannel(t, env.repos, "Movies", 600)

	req := httptest.NewRequest("GET", "/api/channels/"+ch.ID.String()+"/position?tz=Mars%2FOlympus", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_timezone", resp.Error)
}

func TestBatchPositions(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	a := seedChannel(t, env.repos, "Movies", 600, 900)
	b := seedChannel(t, env.repos, "Cartoons", 300, 300)
	unknown := uuid.New()
	env.clk.Advance(700 * time.Second)

	body, _ := json.Marshal(BatchPositionsRequest{
		ChannelIDs: []string{a.ID.String(), b.ID.String(), unknown.String()},
	})
	req := httptest.NewRequest("POST", "/api/positions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp BatchPositionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Positions, 2)
	assert.Equal(t, 1, resp.Positions[a.ID.String()].Position.VideoIndex)
	assert.Equal(t, 0, resp.Positions[b.ID.String()].Position.VideoIndex)
	assert.NotContains(t, resp.Positions, unknown.String())
}

func TestBatchPositions_RejectsEmptyList(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	body, _ := json.Marshal(BatchPositionsRequest{ChannelIDs: []string{}})
	req := httptest.NewRequest("POST", "/api/positions", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTimeline(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ch := seedChannel(t, env.repos, "Movies", 600, 900, 300)
	env.clk.Advance(3700 * time.Second)

	req := httptest.NewRequest("GET", "/api/channels/"+ch.ID.String()+"/timeline", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var info position.TimelineInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, int64(1800), info.TotalDuration)
	assert.InDelta(t, 3700.0, info.Elapsed, 0.001)
	assert.InDelta(t, 100.0, info.CyclePosition, 0.001)
	assert.Equal(t, int64(2), info.CycleCount)
}

func TestJump(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ch := seedChannel(t, env.repos, "Movies", 600, 900, 300)
	env.clk.Advance(1020 * time.Second)

	body, _ := json.Marshal(JumpRequest{VideoIndex: 2, OffsetSeconds: 0})
	req := httptest.NewRequest("POST", "/api/channels/"+ch.ID.String()+"/jump", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var res position.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Position.VideoIndex)
	assert.InDelta(t, 0.0, res.Position.OffsetInVideo, 0.001)

	// The jump is immediately visible to a plain position query.
	req = httptest.NewRequest("GET", "/api/channels/"+ch.ID.String()+"/position", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 2, res.Position.VideoIndex)
}

func TestJump_TargetOutOfRange(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ch := seedChannel(t, env.repos, "Movies", 600, 900, 300)

	body, _ := json.Marshal(JumpRequest{VideoIndex: 9, OffsetSeconds: 0})
	req := httptest.NewRequest("POST", "/api/channels/"+ch.ID.String()+"/jump", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "invalid_target", resp.Error)
}

func TestClearState(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ch := seedChannel(t, env.repos, "Movies", 600, 900, 300)
	env.clk.Advance(1020 * time.Second)

	body, _ := json.Marshal(JumpRequest{VideoIndex: 0, OffsetSeconds: 30})
	req := httptest.NewRequest("POST", "/api/channels/"+ch.ID.String()+"/jump", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("POST", "/api/channels/"+ch.ID.String()+"/state/clear", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// Back on the shared timeline.
	req = httptest.NewRequest("GET", "/api/channels/"+ch.ID.String()+"/position", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	var res position.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Position.VideoIndex)
	assert.InDelta(t, 420.0, res.Position.OffsetInVideo, 0.001)
}

func TestListStates(t *testing.T) {
	env, cleanup := setupTestEnv(t)
	defer cleanup()

	ch := seedChannel(t, env.repos, "Movies", 600, 900, 300)
	env.clk.Advance(100 * time.Second)

	body, _ := json.Marshal(JumpRequest{VideoIndex: 1, OffsetSeconds: 0})
	req := httptest.NewRequest("POST", "/api/channels/"+ch.ID.String()+"/jump", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest("GET", "/api/states", nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp StateListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.States, 1)
	assert.Equal(t, ch.ID.String(), resp.States[0].ChannelID)
	assert.True(t, resp.States[0].ManualMode)
	assert.InDelta(t, 500.0, resp.States[0].OffsetSeconds, 0.001)
}
