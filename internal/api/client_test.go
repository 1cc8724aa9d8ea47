package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenery67/boss/internal/apperrors"
	"github.com/scenery67/boss/internal/config"
)

func newTestClient(baseURL string) *Client {
	return New(config.ServerConfig{
		BaseURL:        baseURL,
		RequestTimeout: 2 * time.Second,
	}, "test-token")
}

func TestClient_GetRaidRoom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/raid-rooms/42", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": 42,
			"boss": {"name": "黑龙"},
			"raidDate": "2026-08-31",
			"channels": [{"id": 1, "channelNumber": 1234, "users": []}]
		}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	room, err := client.GetRaidRoom(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), room.ID)
	assert.Equal(t, "黑龙", room.Boss.Name)
	require.Len(t, room.Channels, 1)
	assert.Equal(t, 1234, room.Channels[0].ChannelNumber)
}

func TestClient_CreateRaidRoom(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		assert.Equal(t, "DRAGON_WATER_FIRE", body["bossType"])
		assert.Equal(t, "2026-08-31", body["raidDate"])
		// 空的 raidTime 不应被提交
		_, hasTime := body["raidTime"]
		assert.False(t, hasTime)

		w.Write([]byte(`{"roomId": 77}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	roomID, err := client.CreateRaidRoom(context.Background(), "DRAGON_WATER_FIRE", "2026-08-31", "  ")

	require.NoError(t, err)
	assert.Equal(t, int64(77), roomID)
}

func TestClient_ServerRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error": "频道已存在"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.CreateChannel(context.Background(), 42, 1234)

	require.Error(t, err)
	assert.Equal(t, apperrors.CodeServerRejected, apperrors.GetCode(err))
	assert.Equal(t, "频道已存在", apperrors.GetMessage(err))
	// 服务器的明确拒绝不是瞬时错误
	assert.False(t, apperrors.IsTransient(err))
}

func TestClient_EnvelopeRejection(t *testing.T) {
	// HTTP 200 但包装标记失败
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "message": "房间不存在"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.CompleteRoom(context.Background(), 42)

	require.Error(t, err)
	assert.Equal(t, "房间不存在", apperrors.GetMessage(err))
}

func TestClient_NetworkErrorIsTransient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // 立即关闭，让请求失败

	client := newTestClient(server.URL)
	err := client.MarkDefeated(context.Background(), 42, 1)

	require.Error(t, err)
	assert.True(t, apperrors.IsTransient(err))
	assert.Equal(t, apperrors.CodeNetwork, apperrors.GetCode(err))
}

func TestClient_ToggleParticipation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/raid-rooms/42/participate", r.URL.Path)
		w.Write([]byte(`{"isParticipating": true}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	participating, err := client.ToggleParticipation(context.Background(), 42, 7)

	require.NoError(t, err)
	assert.True(t, participating)
}

func TestClient_CreateChannelsBatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string][]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []int{1001, 1002}, body["channelNumbers"])

		w.Write([]byte(`{"created": [1001], "failed": [1002]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	result, err := client.CreateChannelsBatch(context.Background(), 42, []int{1001, 1002})

	require.NoError(t, err)
	assert.Equal(t, []int{1001}, result.Created)
	assert.Equal(t, []int{1002}, result.Failed)
}
