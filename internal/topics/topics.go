package topics

import "strconv"

// NATS Subject 常量定义
const (
	// SubjectBossesToday 今日 Boss 房间列表更新
	SubjectBossesToday = "raid.bosses.today"

	// SubjectRoomPrefix 房间状态推送前缀
	// 完整格式: raid.room.{room_id}
	SubjectRoomPrefix      = "raid.room."
	SubjectRoomUsersSuffix = ".users"

	// SubjectRoomConnect 客户端进入房间时发布的上行通告
	SubjectRoomConnect = "raid.room.connect"
	// SubjectRoomDisconnect 客户端离开房间时发布的上行通告
	SubjectRoomDisconnect = "raid.room.disconnect"
)

// BuildRoomSubject 构建房间状态 Subject
func BuildRoomSubject(roomID int64) string {
	return SubjectRoomPrefix + strconv.FormatInt(roomID, 10)
}

// BuildRoomUsersSubject 构建房间在线用户 Subject
func BuildRoomUsersSubject(roomID int64) string {
	return SubjectRoomPrefix + strconv.FormatInt(roomID, 10) + SubjectRoomUsersSuffix
}

// PresenceAnnouncement 进出房间通告载荷
type PresenceAnnouncement struct {
	RoomID    int64  `json:"roomId"`
	UserID    int64  `json:"userId"`
	SessionID string `json:"sessionId"`
}
