package room

import (
	"testing"

	"github.com/scenery67/boss/internal/model"
)

const testUserID = int64(7)

func testRoom() *model.RaidRoom {
	return &model.RaidRoom{
		ID:       42,
		Boss:     model.BossInfo{Name: "黑龙", Type: "DRAGON"},
		RaidDate: "2026-08-31",
		Channels: []model.Channel{
			{ID: 3, ChannelNumber: 3333, Users: []model.ChannelUser{}},
			{ID: 1, ChannelNumber: 1111, Users: []model.ChannelUser{}},
			{ID: 2, ChannelNumber: 2222, Users: []model.ChannelUser{}},
		},
		Participants:   []model.Participant{},
		ConnectedUsers: []model.Participant{{UserID: 9, Username: "bob"}},
	}
}

// TestApplyFetchSortsChannels 测试入站频道按编号升序排序
func TestApplyFetchSortsChannels(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	snapshot := s.Snapshot()
	if snapshot == nil {
		t.Fatal("期望快照非空")
	}

	prev := 0
	for _, ch := range snapshot.Channels {
		if ch.ChannelNumber < prev {
			t.Fatalf("期望频道升序排序, 实际 = %+v", snapshot.Channels)
		}
		prev = ch.ChannelNumber
	}
}

// TestApplyFetchSelectionForced 测试强制拉取才允许清除本地选中
func TestApplyFetchSelectionForced(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)
	s.Select(2)

	// 静默刷新：服务器没有匹配的移动中标记，选中保留
	s.ApplyFetch(testRoom(), false)
	if s.SelectedChannelID() != 2 {
		t.Errorf("期望静默刷新保留选中, 实际 = %d", s.SelectedChannelID())
	}

	// 强制拉取：服务器确实没有标记，选中清除
	s.ApplyFetch(testRoom(), true)
	if s.SelectedChannelID() != 0 {
		t.Errorf("期望强制拉取清除选中, 实际 = %d", s.SelectedChannelID())
	}
}

// TestApplyFetchMovingRestoresSelection 测试服务器端的移动中标记恢复选中
func TestApplyFetchMovingRestoresSelection(t *testing.T) {
	s := NewState(testUserID)

	room := testRoom()
	room.Channels[0].Users = []model.ChannelUser{
		{UserID: testUserID, Username: "me", IsMoving: true},
	}
	s.ApplyFetch(room, true)

	// Channels[0] 是 ID=3 的频道
	if s.SelectedChannelID() != 3 {
		t.Errorf("期望选中移动中的频道 3, 实际 = %d", s.SelectedChannelID())
	}
}

// TestApplyFullPushKeepsConnectedUsers 测试全量推送缺失在线列表时沿用已知值
func TestApplyFullPushKeepsConnectedUsers(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	push := testRoom()
	push.ConnectedUsers = nil
	s.ApplyFullPush(push)

	snapshot := s.Snapshot()
	if len(snapshot.ConnectedUsers) != 1 || snapshot.ConnectedUsers[0].UserID != 9 {
		t.Errorf("期望沿用已知的在线列表, 实际 = %+v", snapshot.ConnectedUsers)
	}
}

// TestApplyFullPushNeverClearsSelection 测试全量推送不清除本地选中
func TestApplyFullPushNeverClearsSelection(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)
	s.Select(1)

	s.ApplyFullPush(testRoom())

	if s.SelectedChannelID() != 1 {
		t.Errorf("期望推送保留选中, 实际 = %d", s.SelectedChannelID())
	}
}

// TestApplyIncrementalMerge 测试增量推送逐字段合并
func TestApplyIncrementalMerge(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	channels := []model.Channel{
		{ID: 5, ChannelNumber: 5555, IsDefeated: true, Users: []model.ChannelUser{}},
	}
	s.ApplyIncremental(&model.RoomDelta{Channels: &channels})

	snapshot := s.Snapshot()

	// 携带的字段被替换
	if len(snapshot.Channels) != 1 || snapshot.Channels[0].ID != 5 {
		t.Errorf("期望频道被替换, 实际 = %+v", snapshot.Channels)
	}
	// 未携带的字段保持不变
	if snapshot.Boss.Name != "黑龙" {
		t.Errorf("期望 Boss 信息不变, 实际 = %s", snapshot.Boss.Name)
	}
	if snapshot.RaidDate != "2026-08-31" {
		t.Errorf("期望日期不变, 实际 = %s", snapshot.RaidDate)
	}
	if len(snapshot.ConnectedUsers) != 1 {
		t.Errorf("期望在线列表不变, 实际 = %+v", snapshot.ConnectedUsers)
	}
}

// TestApplyIncrementalBeforeFirstState 测试首个全量状态之前的增量被忽略
func TestApplyIncrementalBeforeFirstState(t *testing.T) {
	s := NewState(testUserID)

	channels := []model.Channel{{ID: 5, ChannelNumber: 5555}}
	s.ApplyIncremental(&model.RoomDelta{Channels: &channels})

	if s.Snapshot() != nil {
		t.Error("期望首个全量状态之前增量被忽略")
	}
}

// TestApplyConnectedUsers 测试在线用户推送
func TestApplyConnectedUsers(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	s.ApplyConnectedUsers([]model.Participant{
		{UserID: 1, Username: "alice"},
		{UserID: 2, Username: "bob"},
	})

	snapshot := s.Snapshot()
	if len(snapshot.ConnectedUsers) != 2 {
		t.Errorf("期望 2 个在线用户, 实际 = %d", len(snapshot.ConnectedUsers))
	}
}

// TestSelectedChannelDangling 测试悬空选中按未选中处理
func TestSelectedChannelDangling(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)
	s.Select(2)

	// 其他客户端删除了频道 2
	s.RemoveChannel(2)

	if s.SelectedChannel() != nil {
		t.Error("期望悬空选中返回 nil")
	}
	// 原始 ID 仍保留，频道重新出现时选中恢复
	if s.SelectedChannelID() != 2 {
		t.Errorf("期望原始选中 ID 保留, 实际 = %d", s.SelectedChannelID())
	}
}

// TestToggleSelect 测试再次点击同一频道取消选中
func TestToggleSelect(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	s.ToggleSelect(1)
	if s.SelectedChannelID() != 1 {
		t.Errorf("期望选中 1, 实际 = %d", s.SelectedChannelID())
	}

	s.ToggleSelect(1)
	if s.SelectedChannelID() != 0 {
		t.Errorf("期望取消选中, 实际 = %d", s.SelectedChannelID())
	}
}

// TestToggleDefeatedAndRevert 测试乐观翻转和回滚
func TestToggleDefeatedAndRevert(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	prev, ok := s.ToggleDefeated(1)
	if !ok {
		t.Fatal("期望翻转成功")
	}
	if prev {
		t.Error("期望修改前为 false")
	}

	snapshot := s.Snapshot()
	if !snapshot.ChannelByID(1).IsDefeated {
		t.Error("期望乐观翻转已生效")
	}

	// 请求失败后回滚
	s.SetDefeated(1, prev)
	snapshot = s.Snapshot()
	if snapshot.ChannelByID(1).IsDefeated {
		t.Error("期望回滚后恢复原值")
	}

	// 不存在的频道
	if _, ok := s.ToggleDefeated(999); ok {
		t.Error("期望不存在的频道翻转失败")
	}
}

// TestSetMemoRevert 测试备注的乐观写入和回滚
func TestSetMemoRevert(t *testing.T) {
	s := NewState(testUserID)
	room := testRoom()
	room.Channels[1].Memo = "旧备注"
	s.ApplyFetch(room, true)

	prev, ok := s.SetMemo(1, "新备注")
	if !ok {
		t.Fatal("期望写入成功")
	}
	if prev != "旧备注" {
		t.Errorf("期望返回旧值 旧备注, 实际 = %s", prev)
	}

	s.SetMemo(1, prev)
	if s.Snapshot().ChannelByID(1).Memo != "旧备注" {
		t.Error("期望回滚后恢复旧备注")
	}
}

// TestSetBossColor 测试按标记位写入颜色
func TestSetBossColor(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	prev, ok := s.SetBossColor(1, model.TagJin, "red")
	if !ok {
		t.Fatal("期望写入成功")
	}
	if prev != "" {
		t.Errorf("期望旧值为空, 实际 = %s", prev)
	}

	ch := s.Snapshot().ChannelByID(1)
	if ch.BossColor(model.TagJin) != "red" {
		t.Errorf("期望 jin = red, 实际 = %s", ch.BossColor(model.TagJin))
	}
	// 其他标记位不受影响
	if ch.BossColor(model.TagHeuk) != "" {
		t.Errorf("期望 heuk 不变, 实际 = %s", ch.BossColor(model.TagHeuk))
	}
}

// TestSetDragonAt 测试水火龙击杀时间写入
func TestSetDragonAt(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	_, ok := s.SetDragonAt(1, model.DragonWater, "2026-08-31T12:00:00")
	if !ok {
		t.Fatal("期望写入成功")
	}

	ch := s.Snapshot().ChannelByID(1)
	if ch.WaterDragonDefeatedAt != "2026-08-31T12:00:00" {
		t.Errorf("期望水龙时间已写入, 实际 = %s", ch.WaterDragonDefeatedAt)
	}
	if ch.FireDragonDefeatedAt != "" {
		t.Errorf("期望火龙时间不变, 实际 = %s", ch.FireDragonDefeatedAt)
	}
}

// TestAddChannelKeepsOrder 测试插入频道保持编号升序
func TestAddChannelKeepsOrder(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	s.AddChannel(model.Channel{ID: 10, ChannelNumber: 1500})

	snapshot := s.Snapshot()
	numbers := make([]int, 0, len(snapshot.Channels))
	for _, ch := range snapshot.Channels {
		numbers = append(numbers, ch.ChannelNumber)
	}

	expected := []int{1111, 1500, 2222, 3333}
	for i, n := range expected {
		if numbers[i] != n {
			t.Fatalf("期望顺序 %v, 实际 = %v", expected, numbers)
		}
	}
}

// TestRemoveChannelReturnsRemoved 测试删除返回被删除的频道
func TestRemoveChannelReturnsRemoved(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	removed, ok := s.RemoveChannel(2)
	if !ok {
		t.Fatal("期望删除成功")
	}
	if removed.ChannelNumber != 2222 {
		t.Errorf("期望返回频道 2222, 实际 = %d", removed.ChannelNumber)
	}

	if _, ok := s.RemoveChannel(999); ok {
		t.Error("期望删除不存在的频道失败")
	}
}

// TestSetParticipating 测试参与状态的乐观切换
func TestSetParticipating(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	me := model.Participant{UserID: testUserID, Username: "me"}

	prev, ok := s.SetParticipating(me, true)
	if !ok {
		t.Fatal("期望切换成功")
	}
	if prev {
		t.Error("期望修改前未参与")
	}
	if len(s.Snapshot().Participants) != 1 {
		t.Errorf("期望 1 个参与者, 实际 = %d", len(s.Snapshot().Participants))
	}

	// 重复加入不产生重复条目
	s.SetParticipating(me, true)
	if len(s.Snapshot().Participants) != 1 {
		t.Errorf("期望仍为 1 个参与者, 实际 = %d", len(s.Snapshot().Participants))
	}

	prev, _ = s.SetParticipating(me, false)
	if !prev {
		t.Error("期望修改前已参与")
	}
	if len(s.Snapshot().Participants) != 0 {
		t.Errorf("期望 0 个参与者, 实际 = %d", len(s.Snapshot().Participants))
	}
}

// TestMemoEditBuffer 测试备注编辑缓冲
func TestMemoEditBuffer(t *testing.T) {
	s := NewState(testUserID)
	room := testRoom()
	room.Channels[1].Memo = "初值"
	s.ApplyFetch(room, true)

	if !s.BeginMemoEdit(1) {
		t.Fatal("期望开始编辑成功")
	}

	edit := s.MemoEditing()
	if edit == nil || edit.Text != "初值" {
		t.Fatalf("期望缓冲以当前备注为初值, 实际 = %+v", edit)
	}

	s.UpdateMemoEdit("改过的备注")

	// 推送覆盖服务器数据不影响编辑缓冲
	s.ApplyFullPush(testRoom())
	edit = s.EndMemoEdit()
	if edit == nil || edit.Text != "改过的备注" {
		t.Fatalf("期望编辑缓冲不被推送覆盖, 实际 = %+v", edit)
	}

	if s.EndMemoEdit() != nil {
		t.Error("期望结束编辑后缓冲为空")
	}
}

// TestMemoEditCompletedRoom 测试已完成的房间不允许开始编辑
func TestMemoEditCompletedRoom(t *testing.T) {
	s := NewState(testUserID)
	room := testRoom()
	room.IsCompleted = true
	s.ApplyFetch(room, true)

	if s.BeginMemoEdit(1) {
		t.Error("期望已完成的房间编辑被拒绝")
	}
}

// TestSnapshotIsDeepCopy 测试快照与内部状态隔离
func TestSnapshotIsDeepCopy(t *testing.T) {
	s := NewState(testUserID)
	s.ApplyFetch(testRoom(), true)

	snapshot := s.Snapshot()
	snapshot.Channels[0].Memo = "篡改"
	snapshot.Channels[0].Users = append(snapshot.Channels[0].Users, model.ChannelUser{UserID: 99})

	fresh := s.Snapshot()
	if fresh.Channels[0].Memo == "篡改" {
		t.Error("期望快照修改不影响内部状态")
	}
	if len(fresh.Channels[0].Users) != 0 {
		t.Error("期望用户列表未被篡改")
	}
}
