// Package session 把一个打开的房间页面所需的全部动作装配到一起：
// 订阅推送、驱动状态协调器、发布进出房间通告、执行乐观写操作。
// 所有回调都在各自的 goroutine 里触发，共享状态的并发安全由
// room.State 和本包的互斥量保证。
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/scenery67/boss/internal/apperrors"
	"github.com/scenery67/boss/internal/identity"
	"github.com/scenery67/boss/internal/imports"
	"github.com/scenery67/boss/internal/model"
	"github.com/scenery67/boss/internal/room"
	"github.com/scenery67/boss/internal/service"
	"github.com/scenery67/boss/internal/topics"
)

// Pubsub 会话依赖的传输能力，由 transport.Transport 实现
type Pubsub interface {
	Connect()
	IsConnected() bool
	Subscribe(topic string, handler func(data []byte)) func()
	Publish(topic string, payload any) error
}

// Session 一个打开的房间会话
type Session struct {
	roomID    int64
	user      *identity.User
	sessionID string

	svc       *service.BossService
	state     *room.State
	transport Pubsub

	fallbackDelay time.Duration
	onChange      func()
	logger        *slog.Logger

	mu            sync.Mutex
	fallbackTimer *time.Timer
	unsubRoom     func()
	unsubUsers    func()

	addingChannel atomic.Bool
}

// New 创建房间会话
// onChange 在本地视图变化后回调（渲染方用），可以为 nil
func New(roomID int64, user *identity.User, svc *service.BossService, pubsub Pubsub, fallbackDelay time.Duration, onChange func()) *Session {
	if fallbackDelay <= 0 {
		fallbackDelay = time.Second
	}
	return &Session{
		roomID:        roomID,
		user:          user,
		sessionID:     uuid.NewString(),
		svc:           svc,
		state:         room.NewState(user.ID),
		transport:     pubsub,
		fallbackDelay: fallbackDelay,
		onChange:      onChange,
		logger: slog.Default().With(
			"component", "session",
			"roomId", roomID,
		),
	}
}

// State 返回底层状态协调器（渲染方读快照用）
func (s *Session) State() *room.State {
	return s.state
}

// Open 订阅房间推送、发布进入通告并做初次强制拉取
func (s *Session) Open(ctx context.Context) error {
	s.transport.Connect()

	s.mu.Lock()
	s.unsubRoom = s.transport.Subscribe(topics.BuildRoomSubject(s.roomID), s.handlePush)
	s.unsubUsers = s.transport.Subscribe(topics.BuildRoomUsersSubject(s.roomID), s.handlePush)
	s.mu.Unlock()

	s.announce(topics.SubjectRoomConnect)

	return s.reload(ctx, true)
}

// Close 取消订阅并发布离开通告
// 迟到的响应在取消订阅后被自然丢弃，不做显式的请求取消
func (s *Session) Close() {
	s.mu.Lock()
	if s.fallbackTimer != nil {
		s.fallbackTimer.Stop()
		s.fallbackTimer = nil
	}
	unsubRoom, unsubUsers := s.unsubRoom, s.unsubUsers
	s.unsubRoom, s.unsubUsers = nil, nil
	s.mu.Unlock()

	if unsubRoom != nil {
		unsubRoom()
	}
	if unsubUsers != nil {
		unsubUsers()
	}

	s.announce(topics.SubjectRoomDisconnect)
}

// announce 发布进出房间通告，未连接时由 Publish 静默跳过
func (s *Session) announce(subject string) {
	err := s.transport.Publish(subject, topics.PresenceAnnouncement{
		RoomID:    s.roomID,
		UserID:    s.user.ID,
		SessionID: s.sessionID,
	})
	if err != nil {
		s.logger.Warn("Failed to publish presence announcement", "subject", subject, "error", err)
	}
}

// reload 拉取房间详情，forced 绕过缓存且允许清除本地选中
func (s *Session) reload(ctx context.Context, forced bool) error {
	data, err := s.svc.GetRaidRoom(ctx, s.roomID, forced)
	if err != nil {
		return err
	}
	s.state.ApplyFetch(data, forced)
	s.notify()
	return nil
}

// silentReload 后台静默刷新：绕过缓存但保留本地选中
func (s *Session) silentReload(ctx context.Context) {
	data, err := s.svc.GetRaidRoom(ctx, s.roomID, true)
	if err != nil {
		s.logger.Warn("Silent reload failed", "error", err)
		return
	}
	s.state.ApplyFetch(data, false)
	s.notify()
}

// handlePush 处理房间推送
// 无法解析的载荷逐条丢弃，不影响后续消息
func (s *Session) handlePush(data []byte) {
	upd, err := model.ParseRoomUpdate(data)
	if err != nil {
		s.logger.Warn("Dropping malformed push payload", "error", err)
		return
	}

	// 推送到达即视为写操作已被服务器处理
	s.cancelFallback()

	switch upd.Type {
	case model.UpdateTypeFull:
		// 只有房间状态更新能确认建频道请求已被处理；
		// 无关用户进出触发的在线推送不解除守卫
		s.addingChannel.Store(false)
		s.state.ApplyFullPush(upd.Full)
	case model.UpdateTypeIncremental:
		s.addingChannel.Store(false)
		s.state.ApplyIncremental(upd.Incremental)
	case model.UpdateTypeConnectedUsers:
		s.state.ApplyConnectedUsers(upd.Presence.Users)
	}
	s.notify()
}

// armFallback 设置兜底定时器：推送迟迟不到时做一次强制静默刷新，
// 防止传输层丢消息导致本地视图停在乐观状态
func (s *Session) armFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fallbackTimer != nil {
		s.fallbackTimer.Stop()
	}
	s.fallbackTimer = time.AfterFunc(s.fallbackDelay, func() {
		s.addingChannel.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.silentReload(ctx)
	})
}

func (s *Session) cancelFallback() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fallbackTimer != nil {
		s.fallbackTimer.Stop()
		s.fallbackTimer = nil
	}
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

// ============== 本地选中 ==============

// ToggleSelect 切换本地选中（纯本地，不产生网络请求）
func (s *Session) ToggleSelect(channelID int64) {
	if s.state.IsCompleted() {
		return
	}
	s.state.ToggleSelect(channelID)
	s.notify()
}

// ============== 写操作（统一乐观更新模式） ==============
//
// 先改本地视图，再发请求；永久失败回滚并返回错误，瞬时失败保留
// 乐观值并武装兜底刷新（推送仍会到达并修正状态）

// ToggleDefeated 切换频道击杀标记
func (s *Session) ToggleDefeated(ctx context.Context, channelID int64) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	prev, ok := s.state.ToggleDefeated(channelID)
	if !ok {
		return apperrors.ErrChannelNotFound
	}
	s.notify()

	if err := s.svc.MarkDefeated(ctx, s.roomID, channelID); err != nil {
		if apperrors.IsTransient(err) {
			s.logger.Warn("MarkDefeated timed out, keeping optimistic state", "channelId", channelID)
			s.armFallback()
			return nil
		}
		s.state.SetDefeated(channelID, prev)
		s.notify()
		return err
	}

	s.armFallback()
	return nil
}

// SaveMemo 保存频道备注
func (s *Session) SaveMemo(ctx context.Context, channelID int64, memo string) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	memo = strings.TrimSpace(memo)
	prev, ok := s.state.SetMemo(channelID, memo)
	if !ok {
		return apperrors.ErrChannelNotFound
	}
	s.notify()

	if err := s.svc.UpdateMemo(ctx, s.roomID, channelID, memo); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		s.state.SetMemo(channelID, prev)
		s.notify()
		return err
	}

	s.armFallback()
	return nil
}

// SetBossColor 设置频道上某个 Boss 标记位的颜色
func (s *Session) SetBossColor(ctx context.Context, channelID int64, tag model.BossTag, color string) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	prev, ok := s.state.SetBossColor(channelID, tag, color)
	if !ok {
		return apperrors.ErrChannelNotFound
	}
	s.state.EndColorPick()
	s.notify()

	if err := s.svc.UpdateBossColor(ctx, s.roomID, channelID, tag, color); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		s.state.SetBossColor(channelID, tag, prev)
		s.notify()
		return err
	}

	s.armFallback()
	return nil
}

// AddChannel 创建频道
// 编号校验在任何网络请求之前完成；请求在途期间的重复提交被拒绝
func (s *Session) AddChannel(ctx context.Context, channelNumber int) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}
	if channelNumber <= 0 {
		return apperrors.ErrInvalidChannelNumber
	}
	if s.state.HasChannelNumber(channelNumber) {
		return apperrors.ErrChannelExists
	}
	if !s.addingChannel.CompareAndSwap(false, true) {
		return apperrors.ErrRequestInFlight
	}

	// 临时 ID 取负数，和服务器分配的正 ID 不会冲突
	tempID := -time.Now().UnixMilli()
	s.state.AddChannel(model.Channel{
		ID:            tempID,
		ChannelNumber: channelNumber,
		Memo:          "",
		Users:         []model.ChannelUser{},
	})
	s.notify()

	if err := s.svc.CreateChannel(ctx, s.roomID, channelNumber); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		s.addingChannel.Store(false)
		s.state.RemoveChannel(tempID)
		s.notify()
		return err
	}

	// 推送到达时替换临时频道；推送丢失由兜底刷新处理
	s.armFallback()
	return nil
}

// ImportChannels 从识别文本批量创建频道
// 返回实际提交的候选编号集合
func (s *Session) ImportChannels(ctx context.Context, recognizedText string) ([]int, error) {
	if s.state.IsCompleted() {
		return nil, apperrors.ErrRoomCompleted
	}

	numbers := imports.ExtractChannelNumbers(recognizedText)
	if len(numbers) == 0 {
		return nil, apperrors.ErrNoChannelsFound
	}

	snapshot := s.state.Snapshot()
	existing := []int{}
	if snapshot != nil {
		for _, ch := range snapshot.Channels {
			existing = append(existing, ch.ChannelNumber)
		}
	}
	candidates := imports.NewCandidates(numbers, existing)
	if len(candidates) == 0 {
		return nil, apperrors.ErrNoNewChannels
	}

	if _, err := s.svc.CreateChannelsBatch(ctx, s.roomID, candidates); err != nil {
		return nil, err
	}

	s.armFallback()
	return candidates, nil
}

// DeleteChannel 删除当前选中的频道并清除选中
func (s *Session) DeleteChannel(ctx context.Context) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	ch := s.state.SelectedChannel()
	if ch == nil {
		return apperrors.ErrNoChannelSelected
	}

	removed, ok := s.state.RemoveChannel(ch.ID)
	if !ok {
		return apperrors.ErrChannelNotFound
	}
	s.state.ClearSelection()
	s.notify()

	if err := s.svc.DeleteChannel(ctx, s.roomID, ch.ID); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		s.state.AddChannel(removed)
		s.state.Select(removed.ID)
		s.notify()
		return err
	}

	s.armFallback()
	return nil
}

// SetMoving 在当前选中的频道上声明移动中
// 标记本身来自后续推送，本地不做乐观翻转（见服务器端的约定语义）
func (s *Session) SetMoving(ctx context.Context) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	ch := s.state.SelectedChannel()
	if ch == nil {
		return apperrors.ErrNoChannelSelected
	}

	if err := s.svc.ToggleChannelSelection(ctx, s.roomID, ch.ID, s.user.ID); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		return err
	}

	s.armFallback()
	return nil
}

// ClearMoving 取消当前选中频道上的移动中声明（同一切换接口）
func (s *Session) ClearMoving(ctx context.Context) error {
	return s.SetMoving(ctx)
}

// ToggleParticipation 切换当前用户的房间参与状态
func (s *Session) ToggleParticipation(ctx context.Context) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	me := model.Participant{
		UserID:      s.user.ID,
		Username:    s.user.Username,
		DisplayName: s.user.DisplayName,
	}

	snapshot := s.state.Snapshot()
	if snapshot == nil {
		return apperrors.ErrRoomNotLoaded
	}
	participating := false
	for _, p := range snapshot.Participants {
		if p.UserID == s.user.ID {
			participating = true
			break
		}
	}

	prev, _ := s.state.SetParticipating(me, !participating)
	s.notify()

	if _, err := s.svc.ToggleParticipation(ctx, s.roomID, s.user.ID); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		s.state.SetParticipating(me, prev)
		s.notify()
		return err
	}

	s.armFallback()
	return nil
}

// CompleteRoom 标记房间完成
// 完成后服务器拒绝一切修改，客户端同样不再发起
func (s *Session) CompleteRoom(ctx context.Context) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	prev, _ := s.state.SetCompleted(true)
	s.notify()

	if err := s.svc.CompleteRoom(ctx, s.roomID); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		s.state.SetCompleted(prev)
		s.notify()
		return err
	}

	s.armFallback()
	return nil
}

// DeleteRoom 删除房间，成功后调用方负责离开会话
func (s *Session) DeleteRoom(ctx context.Context) error {
	return s.svc.DeleteRoom(ctx, s.roomID)
}

// SetDragonDefeatedAt 更新水/火龙击杀时间，空字符串表示清除
func (s *Session) SetDragonDefeatedAt(ctx context.Context, channelID int64, kind model.DragonKind, defeatedAt string) error {
	if s.state.IsCompleted() {
		return apperrors.ErrRoomCompleted
	}

	prev, ok := s.state.SetDragonAt(channelID, kind, defeatedAt)
	if !ok {
		return apperrors.ErrChannelNotFound
	}
	s.notify()

	if err := s.svc.UpdateDragonDefeatedTime(ctx, s.roomID, channelID, kind, defeatedAt); err != nil {
		if apperrors.IsTransient(err) {
			s.armFallback()
			return nil
		}
		s.state.SetDragonAt(channelID, kind, prev)
		s.notify()
		return err
	}

	s.armFallback()
	return nil
}
