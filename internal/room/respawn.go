package room

import (
	"math"
	"sort"
	"time"

	"github.com/scenery67/boss/internal/model"
)

// RespawnBucket 重生状态分档
type RespawnBucket int

const (
	// BucketImminent 剩余 [-5, 5] 分钟：已经或即将重生
	BucketImminent RespawnBucket = iota
	// BucketSoon 剩余 (5, 10] 分钟
	BucketSoon
	// BucketWaiting 剩余 (10, ∞) 分钟
	BucketWaiting
	// BucketElapsed 剩余 (-∞, -5) 分钟：重生已过去较久
	BucketElapsed
)

// RespawnEntry 一个频道里一个子实体的重生信息
type RespawnEntry struct {
	Channel          model.Channel
	Kind             model.DragonKind
	RespawnAt        time.Time
	RemainingMinutes int
}

// RespawnBuckets 按剩余时间分档的重生视图，档内按重生时间升序
type RespawnBuckets struct {
	Imminent []RespawnEntry
	Soon     []RespawnEntry
	Waiting  []RespawnEntry
	Elapsed  []RespawnEntry
}

// RespawnAt 重生预估时间 = 击杀时间 + 配置偏移
func RespawnAt(defeatedAt time.Time, offset time.Duration) time.Time {
	return defeatedAt.Add(offset)
}

// RemainingMinutes 距重生的剩余分钟数，向负无穷取整
func RemainingMinutes(respawnAt, now time.Time) int {
	return int(math.Floor(respawnAt.Sub(now).Minutes()))
}

// defeatedAtLayouts 服务器返回的击杀时间格式
// 带时区的 ISO 字符串优先，旧数据可能没有时区后缀
var defeatedAtLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
}

func parseDefeatedAt(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range defeatedAtLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// BucketRespawns 对水火龙房间的所有频道做重生分档
// now 是输入：调用方按固定间隔（秒级）重算，时间流逝本身会让
// 条目在档间迁移
func BucketRespawns(channels []model.Channel, waterOffset, fireOffset time.Duration, now time.Time) *RespawnBuckets {
	buckets := &RespawnBuckets{}

	add := func(ch model.Channel, kind model.DragonKind, offset time.Duration) {
		defeated, ok := parseDefeatedAt(ch.DragonDefeatedAt(kind))
		if !ok {
			return
		}
		respawn := RespawnAt(defeated, offset)
		remaining := RemainingMinutes(respawn, now)

		e := RespawnEntry{
			Channel:          ch,
			Kind:             kind,
			RespawnAt:        respawn,
			RemainingMinutes: remaining,
		}
		switch {
		case remaining >= -5 && remaining <= 5:
			buckets.Imminent = append(buckets.Imminent, e)
		case remaining > 5 && remaining <= 10:
			buckets.Soon = append(buckets.Soon, e)
		case remaining > 10:
			buckets.Waiting = append(buckets.Waiting, e)
		default:
			buckets.Elapsed = append(buckets.Elapsed, e)
		}
	}

	for _, ch := range channels {
		add(ch, model.DragonWater, waterOffset)
		add(ch, model.DragonFire, fireOffset)
	}

	byTime := func(entries []RespawnEntry) {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].RespawnAt.Before(entries[j].RespawnAt)
		})
	}
	byTime(buckets.Imminent)
	byTime(buckets.Soon)
	byTime(buckets.Waiting)
	byTime(buckets.Elapsed)

	return buckets
}
