// Package transport 封装 NATS 客户端，提供订阅注册表和显式的连接状态机。
// 订阅在连接建立之前就可以注册，连接（或重连）成功后自动补挂；
// 未连接时的发布静默丢弃，调用方不得假设送达。
package transport

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/scenery67/boss/internal/config"
)

// State 连接状态
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Handler 订阅回调，收到原始消息体
type Handler = func(data []byte)

// Transport 发布/订阅传输适配器
//
// 使用示例：
//
//	t := transport.New(cfg.NATS)
//	t.Connect()
//	unsubscribe := t.Subscribe(topics.BuildRoomSubject(roomID), onMessage)
//	defer unsubscribe()
type Transport struct {
	mu       sync.Mutex
	cfg      config.NATSConfig
	conn     *nats.Conn
	state    State
	subs     map[string]map[int64]Handler
	natsSubs map[string]*nats.Subscription
	nextID   int64
	logger   *slog.Logger

	// dial 可替换便于测试
	dial func(url string, options ...nats.Option) (*nats.Conn, error)
}

// New 创建传输适配器（不发起连接）
func New(cfg config.NATSConfig) *Transport {
	return &Transport{
		cfg:      cfg,
		state:    StateDisconnected,
		subs:     make(map[string]map[int64]Handler),
		natsSubs: make(map[string]*nats.Subscription),
		logger:   slog.Default().With("component", "transport"),
		dial:     nats.Connect,
	}
}

// Connect 发起异步连接，幂等
// 初次连接失败和中途断开都按固定间隔重试，重试次数有上限；
// 次数耗尽后停止，需要显式再次调用 Connect。
// 拨号在锁外进行，连接期间状态查询和发布不被阻塞
func (t *Transport) Connect() {
	t.mu.Lock()
	switch t.state {
	case StateConnecting, StateConnected, StateReconnecting:
		t.mu.Unlock()
		return
	}
	t.state = StateConnecting
	t.mu.Unlock()

	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(t.cfg.MaxReconnects),
		nats.ReconnectWait(t.cfg.ReconnectWait),
		nats.Timeout(10 * time.Second),
		nats.ConnectHandler(func(nc *nats.Conn) {
			t.onConnected(nc)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			t.logger.Info("Reconnected to NATS", "url", nc.ConnectedUrl())
			t.onConnected(nc)
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			t.logger.Warn("Disconnected from NATS", "error", err)
			t.mu.Lock()
			if t.state == StateConnected {
				t.state = StateReconnecting
			}
			t.mu.Unlock()
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			t.logger.Warn("NATS connection closed, reconnect attempts exhausted")
			t.mu.Lock()
			if t.state != StateClosed {
				t.state = StateDisconnected
				t.conn = nil
				t.natsSubs = make(map[string]*nats.Subscription)
			}
			t.mu.Unlock()
		}),
	}

	conn, err := t.dial(t.cfg.URL, opts...)

	t.mu.Lock()
	defer t.mu.Unlock()

	if err != nil {
		t.logger.Error("Failed to start NATS connection", "url", t.cfg.URL, "error", err)
		if t.state == StateConnecting {
			t.state = StateDisconnected
		}
		return
	}

	// 拨号期间 Disconnect 被调用
	if t.state == StateClosed {
		conn.Close()
		return
	}
	t.conn = conn

	// 同步连接成功时 ConnectHandler 不会触发，这里直接补挂订阅
	if conn.IsConnected() {
		t.state = StateConnected
		t.applySubscriptionsLocked()
		t.logger.Info("Connected to NATS", "url", conn.ConnectedUrl())
	}
}

// onConnected 连接/重连成功回调：补挂所有注册的订阅
func (t *Transport) onConnected(nc *nats.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conn = nc
	t.state = StateConnected
	t.applySubscriptionsLocked()
	t.logger.Info("NATS transport connected", "url", nc.ConnectedUrl())
}

// applySubscriptionsLocked 为注册表中的每个主题确保存在底层订阅
func (t *Transport) applySubscriptionsLocked() {
	for topic := range t.subs {
		t.ensureSubscribedLocked(topic)
	}
}

func (t *Transport) ensureSubscribedLocked(topic string) {
	if t.conn == nil {
		return
	}
	if sub, ok := t.natsSubs[topic]; ok && sub.IsValid() {
		return
	}
	sub, err := t.conn.Subscribe(topic, func(msg *nats.Msg) {
		t.dispatch(msg.Subject, msg.Data)
	})
	if err != nil {
		t.logger.Error("Failed to subscribe", "subject", topic, "error", err)
		return
	}
	t.natsSubs[topic] = sub
}

// dispatch 把消息分发给该主题注册的所有回调
// 单个回调 panic 不影响同主题其余回调
func (t *Transport) dispatch(topic string, data []byte) {
	t.mu.Lock()
	handlers := make([]Handler, 0, len(t.subs[topic]))
	for _, h := range t.subs[topic] {
		handlers = append(handlers, h)
	}
	t.mu.Unlock()

	for _, h := range handlers {
		t.invoke(topic, h, data)
	}
}

func (t *Transport) invoke(topic string, h Handler, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Subscription handler panicked", "subject", topic, "panic", r)
		}
	}()
	h(data)
}

// Subscribe 注册主题回调，返回取消订阅函数
// 已连接时立即建立底层订阅，否则触发 Connect，连接成功后补挂
func (t *Transport) Subscribe(topic string, handler Handler) func() {
	t.mu.Lock()
	if t.subs[topic] == nil {
		t.subs[topic] = make(map[int64]Handler)
	}
	t.nextID++
	id := t.nextID
	t.subs[topic][id] = handler

	connected := t.state == StateConnected
	if connected {
		t.ensureSubscribedLocked(topic)
	}
	t.mu.Unlock()

	if !connected {
		t.Connect()
	}

	return func() {
		t.unsubscribe(topic, id)
	}
}

func (t *Transport) unsubscribe(topic string, id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	handlers, ok := t.subs[topic]
	if !ok {
		return
	}
	delete(handlers, id)
	if len(handlers) > 0 {
		return
	}

	delete(t.subs, topic)
	if sub, ok := t.natsSubs[topic]; ok {
		if err := sub.Unsubscribe(); err != nil {
			t.logger.Warn("Failed to unsubscribe", "subject", topic, "error", err)
		}
		delete(t.natsSubs, topic)
	}
}

// Publish 发布 JSON 消息
// 未连接时静默跳过（仅记录日志），由推送驱动的对账兜底
func (t *Transport) Publish(topic string, payload any) error {
	t.mu.Lock()
	conn := t.conn
	connected := t.state == StateConnected && conn != nil && conn.IsConnected()
	t.mu.Unlock()

	if !connected {
		t.logger.Debug("Publish skipped, not connected", "subject", topic)
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.Publish(topic, data)
}

// IsConnected 检查连接状态
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == StateConnected && t.conn != nil && t.conn.IsConnected()
}

// State 返回当前连接状态
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Disconnect 清空所有订阅并关闭连接
func (t *Transport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for topic, sub := range t.natsSubs {
		if err := sub.Unsubscribe(); err != nil {
			t.logger.Warn("Failed to unsubscribe", "subject", topic, "error", err)
		}
	}
	t.natsSubs = make(map[string]*nats.Subscription)
	t.subs = make(map[string]map[int64]Handler)

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.state = StateClosed
}
