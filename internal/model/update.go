package model

import (
	"encoding/json"

	"github.com/scenery67/boss/internal/apperrors"
)

// UpdateType 推送消息类型判别字段
type UpdateType string

const (
	// UpdateTypeFull 全量房间状态
	UpdateTypeFull UpdateType = "full"
	// UpdateTypeIncremental 增量房间状态（仅携带变化的字段）
	UpdateTypeIncremental UpdateType = "incremental"
	// UpdateTypeConnectedUsers 在线用户列表
	UpdateTypeConnectedUsers UpdateType = "connected_users"
)

// RoomDelta 增量更新载荷
// 指针字段为 nil 表示本次载荷未携带该字段，合并时逐字段判断，
// 不做盲目的浅合并
type RoomDelta struct {
	Channels       *[]Channel     `json:"channels,omitempty"`
	Participants   *[]Participant `json:"participants,omitempty"`
	ConnectedUsers *[]Participant `json:"connectedUsers,omitempty"`
	Timestamp      int64          `json:"_timestamp,omitempty"`
}

// PresenceUpdate 在线用户推送载荷
type PresenceUpdate struct {
	Users []Participant `json:"users"`
}

// RoomUpdate 房间推送消息的带标签变体
// 同一时刻只有一个载荷字段非 nil
type RoomUpdate struct {
	Type        UpdateType
	Full        *RaidRoom
	Incremental *RoomDelta
	Presence    *PresenceUpdate
}

// ParseRoomUpdate 在边界处解析推送载荷为严格类型
// 无 type 字段但携带 boss 的载荷按全量处理（兼容旧版服务器推送）；
// 无法识别的载荷返回错误，由调用方丢弃
func ParseRoomUpdate(data []byte) (*RoomUpdate, error) {
	var probe struct {
		Type UpdateType      `json:"type"`
		Boss json.RawMessage `json:"boss"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, apperrors.ErrMalformedPayload.Wrap(err)
	}

	switch probe.Type {
	case UpdateTypeConnectedUsers:
		var presence PresenceUpdate
		if err := json.Unmarshal(data, &presence); err != nil {
			return nil, apperrors.ErrMalformedPayload.Wrap(err)
		}
		return &RoomUpdate{Type: UpdateTypeConnectedUsers, Presence: &presence}, nil

	case UpdateTypeIncremental:
		var delta RoomDelta
		if err := json.Unmarshal(data, &delta); err != nil {
			return nil, apperrors.ErrMalformedPayload.Wrap(err)
		}
		return &RoomUpdate{Type: UpdateTypeIncremental, Incremental: &delta}, nil

	case UpdateTypeFull:
		var room RaidRoom
		if err := json.Unmarshal(data, &room); err != nil {
			return nil, apperrors.ErrMalformedPayload.Wrap(err)
		}
		return &RoomUpdate{Type: UpdateTypeFull, Full: &room}, nil

	case "":
		if len(probe.Boss) > 0 {
			var room RaidRoom
			if err := json.Unmarshal(data, &room); err != nil {
				return nil, apperrors.ErrMalformedPayload.Wrap(err)
			}
			return &RoomUpdate{Type: UpdateTypeFull, Full: &room}, nil
		}
	}

	return nil, apperrors.ErrMalformedPayload
}
