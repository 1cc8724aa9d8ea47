package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenery67/boss/internal/api"
	"github.com/scenery67/boss/internal/cache"
	"github.com/scenery67/boss/internal/config"
	"github.com/scenery67/boss/internal/service"
	"github.com/scenery67/boss/internal/topics"
)

type lobbyBackend struct {
	server    *httptest.Server
	listCalls atomic.Int32
}

func newLobbyBackend() *lobbyBackend {
	b := &lobbyBackend{}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/bosses/today", func(w http.ResponseWriter, r *http.Request) {
		b.listCalls.Add(1)
		w.Write([]byte(`{"bosses": [{"id": 1, "name": "黑龙", "rooms": [{"id": 42, "channelCount": 3}]}]}`))
	})
	b.server = httptest.NewServer(mux)
	return b
}

func newTestLobby(t *testing.T, backend *lobbyBackend, pubsub *fakePubsub) *Lobby {
	t.Helper()

	client := api.New(config.ServerConfig{
		BaseURL:        backend.server.URL,
		RequestTimeout: 2 * time.Second,
	}, "")
	svc := service.NewBossService(client, cache.NewMemory())

	lobby := NewLobby(svc, pubsub, nil)
	require.NoError(t, lobby.Open(context.Background()))
	return lobby
}

func TestLobbyOpen(t *testing.T) {
	backend := newLobbyBackend()
	defer backend.server.Close()
	pubsub := newFakePubsub()

	lobby := newTestLobby(t, backend, pubsub)
	defer lobby.Close()

	// 初次打开拉取一次
	assert.Equal(t, int32(1), backend.listCalls.Load())

	bosses := lobby.Bosses()
	require.Len(t, bosses, 1)
	assert.Equal(t, "黑龙", bosses[0].Name)
	require.Len(t, bosses[0].Rooms, 1)
	assert.Equal(t, int64(42), bosses[0].Rooms[0].ID)
}

func TestLobbyPushUpdatesList(t *testing.T) {
	backend := newLobbyBackend()
	defer backend.server.Close()
	pubsub := newFakePubsub()

	lobby := newTestLobby(t, backend, pubsub)
	defer lobby.Close()

	// 列表推送直接携带新列表，应用载荷即可
	pubsub.push(topics.SubjectBossesToday, []byte(`{"bosses": [
		{"id": 1, "name": "黑龙", "rooms": []},
		{"id": 2, "name": "水火龙", "rooms": [{"id": 77, "channelCount": 5}]}
	]}`))

	bosses := lobby.Bosses()
	require.Len(t, bosses, 2)
	assert.Equal(t, "水火龙", bosses[1].Name)

	// 推送不触发回源拉取
	assert.Equal(t, int32(1), backend.listCalls.Load())
}

func TestLobbyPushMalformedDropped(t *testing.T) {
	backend := newLobbyBackend()
	defer backend.server.Close()
	pubsub := newFakePubsub()

	lobby := newTestLobby(t, backend, pubsub)
	defer lobby.Close()

	// 无法解析或不携带 bosses 字段的载荷被丢弃，列表不变
	pubsub.push(topics.SubjectBossesToday, []byte(`{broken`))
	pubsub.push(topics.SubjectBossesToday, []byte(`{"message": "ping"}`))

	bosses := lobby.Bosses()
	require.Len(t, bosses, 1)
	assert.Equal(t, "黑龙", bosses[0].Name)
}

func TestLobbyClose(t *testing.T) {
	backend := newLobbyBackend()
	defer backend.server.Close()
	pubsub := newFakePubsub()

	lobby := newTestLobby(t, backend, pubsub)
	lobby.Close()

	// 关闭后推送不再触达列表
	pubsub.push(topics.SubjectBossesToday, []byte(`{"bosses": []}`))
	assert.Len(t, lobby.Bosses(), 1)
}

func TestLobbyRefreshForce(t *testing.T) {
	backend := newLobbyBackend()
	defer backend.server.Close()

	lobby := newTestLobby(t, backend, newFakePubsub())
	defer lobby.Close()

	// 强制刷新绕过缓存
	require.NoError(t, lobby.Refresh(context.Background(), true))
	assert.Equal(t, int32(2), backend.listCalls.Load())
}
