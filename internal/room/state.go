// Package room 维护单个讨伐房间的权威本地视图。
// 三类输入——显式拉取、全量推送、增量推送——在这里合并；
// 服务器不掌握的本地瞬时状态（选中频道、编辑中的备注、颜色选择）
// 绝不被推送覆盖。
package room

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/scenery67/boss/internal/model"
)

// MemoEdit 编辑中的备注缓冲
type MemoEdit struct {
	ChannelID int64
	Text      string
}

// ColorPick 进行中的 Boss 颜色选择
type ColorPick struct {
	ChannelID int64
	Tag       model.BossTag
}

// State 房间状态协调器
// 使用 RWMutex 保证并发安全；渲染方通过 Snapshot 取深拷贝
type State struct {
	mu sync.RWMutex

	userID int64
	room   *model.RaidRoom

	// 本地瞬时状态，不随服务器数据变化
	selectedChannelID int64
	memoEdit          *MemoEdit
	colorPick         *ColorPick

	logger *slog.Logger
}

// NewState 创建房间状态协调器
func NewState(userID int64) *State {
	return &State{
		userID: userID,
		logger: slog.Default().With("component", "room-state"),
	}
}

// normalize 入站数据归一化：
// 频道按编号升序排序保证稳定展示；切片字段不留 nil
func normalize(room *model.RaidRoom) {
	if room.Channels == nil {
		room.Channels = []model.Channel{}
	}
	sort.Slice(room.Channels, func(i, j int) bool {
		return room.Channels[i].ChannelNumber < room.Channels[j].ChannelNumber
	})
	for i := range room.Channels {
		if room.Channels[i].Users == nil {
			room.Channels[i].Users = []model.ChannelUser{}
		}
	}
	if room.Participants == nil {
		room.Participants = []model.Participant{}
	}
}

// movingChannelID 返回当前用户标记为移动中的频道 ID，没有返回 0
func movingChannelID(room *model.RaidRoom, userID int64) int64 {
	if userID <= 0 {
		return 0
	}
	for i := range room.Channels {
		if room.Channels[i].MovingUser(userID) != nil {
			return room.Channels[i].ID
		}
	}
	return 0
}

// ApplyFetch 用拉取结果整体替换工作副本
// 只有强制拉取才允许清除本地选中（服务器确实没有匹配的移动中标记时）；
// 静默后台刷新即使没有匹配也保留本地选中，容忍推送与拉取的竞态
func (s *State) ApplyFetch(room *model.RaidRoom, forced bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalize(room)

	if sel := movingChannelID(room, s.userID); sel != 0 {
		s.selectedChannelID = sel
	} else if forced {
		s.selectedChannelID = 0
	}

	s.room = room
}

// ApplyFullPush 应用全量推送
// 载荷缺失 connectedUsers 时沿用已知的在线用户列表——在线状态和
// 房间更新走各自独立的推送通道，到达时序互不保证
func (s *State) ApplyFullPush(room *model.RaidRoom) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalize(room)

	if room.ConnectedUsers == nil && s.room != nil {
		room.ConnectedUsers = s.room.ConnectedUsers
	}

	if sel := movingChannelID(room, s.userID); sel != 0 {
		s.selectedChannelID = sel
	}

	s.room = room
}

// ApplyIncremental 逐字段合并增量推送
// 只处理 channels / participants / connectedUsers 三个字段，
// 其余字段（Boss 信息、日期、完成标记）保持不变；
// 收到首个全量状态之前的增量直接忽略
func (s *State) ApplyIncremental(delta *model.RoomDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return
	}

	if delta.Channels != nil {
		channels := *delta.Channels
		s.room.Channels = channels
		normalize(s.room)
		if sel := movingChannelID(s.room, s.userID); sel != 0 {
			s.selectedChannelID = sel
		}
	}
	if delta.Participants != nil {
		s.room.Participants = *delta.Participants
	}
	if delta.ConnectedUsers != nil {
		s.room.ConnectedUsers = *delta.ConnectedUsers
	}
}

// ApplyConnectedUsers 应用在线用户推送
func (s *State) ApplyConnectedUsers(users []model.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return
	}
	s.room.ConnectedUsers = users
}

// Snapshot 返回房间的深拷贝，尚无数据时返回 nil
func (s *State) Snapshot() *model.RaidRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.room == nil {
		return nil
	}

	snapshot := *s.room
	snapshot.Channels = make([]model.Channel, len(s.room.Channels))
	for i, ch := range s.room.Channels {
		c := ch
		c.Users = append([]model.ChannelUser{}, ch.Users...)
		snapshot.Channels[i] = c
	}
	snapshot.Participants = append([]model.Participant{}, s.room.Participants...)
	if s.room.ConnectedUsers != nil {
		snapshot.ConnectedUsers = append([]model.Participant{}, s.room.ConnectedUsers...)
	}
	return &snapshot
}

// IsCompleted 房间是否已完成
func (s *State) IsCompleted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room != nil && s.room.IsCompleted
}

// HasChannelNumber 频道编号是否已存在
func (s *State) HasChannelNumber(number int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.room != nil && s.room.HasChannelNumber(number)
}

// ============== 本地选中 ==============

// ToggleSelect 切换选中：再次点击同一频道取消选中
func (s *State) ToggleSelect(channelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selectedChannelID == channelID {
		s.selectedChannelID = 0
	} else {
		s.selectedChannelID = channelID
	}
}

// Select 选中频道
func (s *State) Select(channelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedChannelID = channelID
}

// ClearSelection 取消选中
func (s *State) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedChannelID = 0
}

// SelectedChannelID 返回原始选中 ID（可能悬空），未选中返回 0
func (s *State) SelectedChannelID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedChannelID
}

// SelectedChannel 返回选中频道的拷贝
// 选中 ID 悬空（频道已被其他客户端删除）时按未选中处理返回 nil，
// 动作可用性判断统一依赖这个语义
func (s *State) SelectedChannel() *model.Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.room == nil || s.selectedChannelID == 0 {
		return nil
	}
	ch := s.room.ChannelByID(s.selectedChannelID)
	if ch == nil {
		return nil
	}
	c := *ch
	c.Users = append([]model.ChannelUser{}, ch.Users...)
	return &c
}

// ============== 备注/颜色编辑缓冲 ==============

// BeginMemoEdit 开始编辑频道备注，缓冲以当前备注为初值
func (s *State) BeginMemoEdit(channelID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil || s.room.IsCompleted {
		return false
	}
	ch := s.room.ChannelByID(channelID)
	if ch == nil {
		return false
	}
	s.memoEdit = &MemoEdit{ChannelID: channelID, Text: ch.Memo}
	return true
}

// UpdateMemoEdit 更新编辑缓冲
func (s *State) UpdateMemoEdit(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.memoEdit != nil {
		s.memoEdit.Text = text
	}
}

// EndMemoEdit 结束编辑并返回缓冲内容，未在编辑返回 nil
func (s *State) EndMemoEdit() *MemoEdit {
	s.mu.Lock()
	defer s.mu.Unlock()

	edit := s.memoEdit
	s.memoEdit = nil
	return edit
}

// MemoEditing 当前编辑缓冲（拷贝），未在编辑返回 nil
func (s *State) MemoEditing() *MemoEdit {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.memoEdit == nil {
		return nil
	}
	edit := *s.memoEdit
	return &edit
}

// BeginColorPick 开始选择 Boss 颜色
func (s *State) BeginColorPick(channelID int64, tag model.BossTag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.colorPick = &ColorPick{ChannelID: channelID, Tag: tag}
}

// EndColorPick 结束颜色选择
func (s *State) EndColorPick() *ColorPick {
	s.mu.Lock()
	defer s.mu.Unlock()

	pick := s.colorPick
	s.colorPick = nil
	return pick
}

// ============== 乐观更新 ==============
// 每个修改器返回修改前的值，供请求失败时回滚

// ToggleDefeated 切换击杀标记，返回修改前的值
func (s *State) ToggleDefeated(channelID int64) (prev bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channelLocked(channelID)
	if ch == nil {
		return false, false
	}
	prev = ch.IsDefeated
	ch.IsDefeated = !ch.IsDefeated
	return prev, true
}

// SetDefeated 写入击杀标记（回滚用）
func (s *State) SetDefeated(channelID int64, defeated bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channelLocked(channelID)
	if ch == nil {
		return false
	}
	ch.IsDefeated = defeated
	return true
}

// SetMemo 写入备注，返回修改前的值
func (s *State) SetMemo(channelID int64, memo string) (prev string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channelLocked(channelID)
	if ch == nil {
		return "", false
	}
	prev = ch.Memo
	ch.Memo = memo
	return prev, true
}

// SetBossColor 写入某个标记位的颜色，返回修改前的值
func (s *State) SetBossColor(channelID int64, tag model.BossTag, color string) (prev string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channelLocked(channelID)
	if ch == nil {
		return "", false
	}
	prev = ch.BossColor(tag)
	ch.SetBossColor(tag, color)
	return prev, true
}

// SetDragonAt 写入水/火龙击杀时间，返回修改前的值
func (s *State) SetDragonAt(channelID int64, kind model.DragonKind, at string) (prev string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := s.channelLocked(channelID)
	if ch == nil {
		return "", false
	}
	prev = ch.DragonDefeatedAt(kind)
	ch.SetDragonDefeatedAt(kind, at)
	return prev, true
}

// AddChannel 插入频道并保持编号升序
func (s *State) AddChannel(ch model.Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return false
	}
	if ch.Users == nil {
		ch.Users = []model.ChannelUser{}
	}
	s.room.Channels = append(s.room.Channels, ch)
	sort.Slice(s.room.Channels, func(i, j int) bool {
		return s.room.Channels[i].ChannelNumber < s.room.Channels[j].ChannelNumber
	})
	return true
}

// RemoveChannel 删除频道，返回被删除的频道（回滚用）
func (s *State) RemoveChannel(channelID int64) (removed model.Channel, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return model.Channel{}, false
	}
	for i := range s.room.Channels {
		if s.room.Channels[i].ID == channelID {
			removed = s.room.Channels[i]
			s.room.Channels = append(s.room.Channels[:i], s.room.Channels[i+1:]...)
			return removed, true
		}
	}
	return model.Channel{}, false
}

// SetCompleted 写入完成标记，返回修改前的值
func (s *State) SetCompleted(completed bool) (prev bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return false, false
	}
	prev = s.room.IsCompleted
	s.room.IsCompleted = completed
	return prev, true
}

// SetParticipating 切换当前用户的参与状态，返回修改前是否参与
func (s *State) SetParticipating(user model.Participant, participating bool) (prev bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.room == nil {
		return false, false
	}

	idx := -1
	for i := range s.room.Participants {
		if s.room.Participants[i].UserID == user.UserID {
			idx = i
			break
		}
	}
	prev = idx >= 0

	if participating && idx < 0 {
		s.room.Participants = append(s.room.Participants, user)
	}
	if !participating && idx >= 0 {
		s.room.Participants = append(s.room.Participants[:idx], s.room.Participants[idx+1:]...)
	}
	return prev, true
}

// channelLocked 按 ID 查找频道，调用方必须持有锁
func (s *State) channelLocked(channelID int64) *model.Channel {
	if s.room == nil {
		return nil
	}
	return s.room.ChannelByID(channelID)
}
