package model

// DragonKind 水火龙子实体类型
type DragonKind string

const (
	DragonWater DragonKind = "water"
	DragonFire  DragonKind = "fire"
)

// BossTag 频道上的四个 Boss 颜色标记位
type BossTag string

const (
	TagHeuk BossTag = "heuk"
	TagJin  BossTag = "jin"
	TagMuk  BossTag = "muk"
	TagGam  BossTag = "gam"
)

// BossTypeDragonWaterFire 水火龙讨伐的 Boss 类型标识
const BossTypeDragonWaterFire = "DRAGON_WATER_FIRE"

// Boss 今日 Boss 及其讨伐房间列表
type Boss struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Rooms       []Room `json:"rooms"`
}

// Room 房间列表项（列表接口返回的摘要信息）
type Room struct {
	ID           int64  `json:"id"`
	ChannelCount int    `json:"channelCount"`
	RaidDate     string `json:"raidDate,omitempty"`
	RaidTime     string `json:"raidTime,omitempty"`
	CreatedAt    string `json:"createdAt,omitempty"`
	BossName     string `json:"bossName,omitempty"`
	BossType     string `json:"bossType,omitempty"`
	IsCompleted  bool   `json:"isCompleted,omitempty"`
}

// ChannelUser 频道内的用户条目
// IsMoving 表示该用户已声明正在前往该频道
type ChannelUser struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	IsMoving    bool   `json:"isMoving"`
}

// Participant 房间参与者（报名参加讨伐的用户）
type Participant struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
}

// Channel 房间内编号的 Boss 子实例
type Channel struct {
	ID            int64         `json:"id"`
	ChannelNumber int           `json:"channelNumber"`
	IsDefeated    bool          `json:"isDefeated"`
	Memo          string        `json:"memo"`
	BossHeukColor string        `json:"bossHeukColor,omitempty"`
	BossJinColor  string        `json:"bossJinColor,omitempty"`
	BossMukColor  string        `json:"bossMukColor,omitempty"`
	BossGamColor  string        `json:"bossGamColor,omitempty"`
	Users         []ChannelUser `json:"users"`

	// 水火龙变体：两个子实体各自的最近击杀时间（ISO 字符串，空表示未记录）
	WaterDragonDefeatedAt string `json:"waterDragonDefeatedAt,omitempty"`
	FireDragonDefeatedAt  string `json:"fireDragonDefeatedAt,omitempty"`
}

// BossColor 按标记位读取颜色
func (c *Channel) BossColor(tag BossTag) string {
	switch tag {
	case TagHeuk:
		return c.BossHeukColor
	case TagJin:
		return c.BossJinColor
	case TagMuk:
		return c.BossMukColor
	case TagGam:
		return c.BossGamColor
	}
	return ""
}

// SetBossColor 按标记位写入颜色
func (c *Channel) SetBossColor(tag BossTag, color string) {
	switch tag {
	case TagHeuk:
		c.BossHeukColor = color
	case TagJin:
		c.BossJinColor = color
	case TagMuk:
		c.BossMukColor = color
	case TagGam:
		c.BossGamColor = color
	}
}

// DragonDefeatedAt 按子实体类型读取击杀时间
func (c *Channel) DragonDefeatedAt(kind DragonKind) string {
	if kind == DragonFire {
		return c.FireDragonDefeatedAt
	}
	return c.WaterDragonDefeatedAt
}

// SetDragonDefeatedAt 按子实体类型写入击杀时间
func (c *Channel) SetDragonDefeatedAt(kind DragonKind, at string) {
	if kind == DragonFire {
		c.FireDragonDefeatedAt = at
	} else {
		c.WaterDragonDefeatedAt = at
	}
}

// MovingUser 返回该频道内标记为移动中的指定用户，不存在返回 nil
func (c *Channel) MovingUser(userID int64) *ChannelUser {
	for i := range c.Users {
		if c.Users[i].UserID == userID && c.Users[i].IsMoving {
			return &c.Users[i]
		}
	}
	return nil
}

// BossInfo 房间详情里内嵌的 Boss 信息
type BossInfo struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// RaidRoom 讨伐房间详情（服务器持有的权威数据，客户端保存一份本地副本）
// ConnectedUsers 为 nil 表示本次载荷未携带该字段，与空列表有区分
type RaidRoom struct {
	ID           int64         `json:"id,omitempty"`
	Boss         BossInfo      `json:"boss"`
	RaidDate     string        `json:"raidDate"`
	RaidTime     string        `json:"raidTime,omitempty"`
	IsCompleted  bool          `json:"isCompleted,omitempty"`
	Channels     []Channel     `json:"channels"`
	Participants []Participant `json:"participants,omitempty"`

	ConnectedUsers []Participant `json:"connectedUsers,omitempty"`
}

// ChannelByID 按 ID 查找频道，不存在返回 nil
func (r *RaidRoom) ChannelByID(id int64) *Channel {
	for i := range r.Channels {
		if r.Channels[i].ID == id {
			return &r.Channels[i]
		}
	}
	return nil
}

// HasChannelNumber 判断频道编号是否已存在
func (r *RaidRoom) HasChannelNumber(number int) bool {
	for i := range r.Channels {
		if r.Channels[i].ChannelNumber == number {
			return true
		}
	}
	return false
}

// CompletedRoom 已完成房间列表项
type CompletedRoom struct {
	ID           int64  `json:"id"`
	BossName     string `json:"bossName"`
	BossType     string `json:"bossType,omitempty"`
	RaidDate     string `json:"raidDate"`
	RaidTime     string `json:"raidTime,omitempty"`
	CompletedAt  string `json:"completedAt,omitempty"`
	ChannelCount int    `json:"channelCount"`
}

// BossListResponse 今日 Boss 列表响应
type BossListResponse struct {
	Bosses []Boss `json:"bosses"`
}
