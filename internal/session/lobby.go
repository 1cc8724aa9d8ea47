package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/scenery67/boss/internal/model"
	"github.com/scenery67/boss/internal/service"
	"github.com/scenery67/boss/internal/topics"
)

// Lobby 今日 Boss 列表的会话：初始拉取一次，之后靠列表推送保持最新。
// 推送直接携带完整的列表，应用载荷即可，不需要回源拉取
type Lobby struct {
	svc       *service.BossService
	transport Pubsub
	onChange  func()
	logger    *slog.Logger

	mu     sync.Mutex
	bosses []model.Boss
	unsub  func()
}

// NewLobby 创建列表会话，onChange 可以为 nil
func NewLobby(svc *service.BossService, pubsub Pubsub, onChange func()) *Lobby {
	return &Lobby{
		svc:       svc,
		transport: pubsub,
		onChange:  onChange,
		logger:    slog.Default().With("component", "lobby"),
	}
}

// Open 订阅列表推送并做初次拉取
func (l *Lobby) Open(ctx context.Context) error {
	l.transport.Connect()

	l.mu.Lock()
	l.unsub = l.transport.Subscribe(topics.SubjectBossesToday, l.handlePush)
	l.mu.Unlock()

	return l.Refresh(ctx, false)
}

// Close 取消订阅
func (l *Lobby) Close() {
	l.mu.Lock()
	unsub := l.unsub
	l.unsub = nil
	l.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

// Refresh 重新拉取列表，force 为 true 时绕过缓存
func (l *Lobby) Refresh(ctx context.Context, force bool) error {
	resp, err := l.svc.GetTodayBosses(ctx, force)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.bosses = resp.Bosses
	l.mu.Unlock()

	l.notify()
	return nil
}

// Bosses 返回当前列表的拷贝
func (l *Lobby) Bosses() []model.Boss {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.Boss{}, l.bosses...)
}

// handlePush 应用列表推送
// 不携带 bosses 字段的载荷逐条丢弃
func (l *Lobby) handlePush(data []byte) {
	var payload struct {
		Bosses *[]model.Boss `json:"bosses"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Bosses == nil {
		l.logger.Warn("Dropping malformed boss list payload", "error", err)
		return
	}

	l.mu.Lock()
	l.bosses = *payload.Bosses
	l.mu.Unlock()

	l.notify()
}

func (l *Lobby) notify() {
	if l.onChange != nil {
		l.onChange()
	}
}
