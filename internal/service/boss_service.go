// Package service 在 REST 客户端之上叠加读缓存和失效规则。
// 房间列表 30 秒、房间详情 10 秒（变化频繁）；每个写操作使对应
// 房间的缓存失效，影响房间列表的操作按模式清掉所有列表缓存。
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/scenery67/boss/internal/api"
	"github.com/scenery67/boss/internal/cache"
	"github.com/scenery67/boss/internal/model"
)

const (
	todayBossesTTL = 30 * time.Second
	raidRoomTTL    = 10 * time.Second

	// todayBossesPattern 匹配所有日期的房间列表缓存键
	todayBossesPattern = "todayBosses.*"
)

func todayBossesKey(now time.Time) string {
	return "todayBosses_" + now.Format("2006-01-02")
}

func raidRoomKey(roomID int64) string {
	return fmt.Sprintf("raidRoom_%d", roomID)
}

// BossService Boss/房间读写门面
type BossService struct {
	api    *api.Client
	cache  cache.Store
	logger *slog.Logger
}

// NewBossService 创建服务
func NewBossService(apiClient *api.Client, store cache.Store) *BossService {
	return &BossService{
		api:    apiClient,
		cache:  store,
		logger: slog.Default().With("component", "boss-service"),
	}
}

// GetTodayBosses 获取今日 Boss 列表，force 为 true 时绕过缓存
func (s *BossService) GetTodayBosses(ctx context.Context, force bool) (*model.BossListResponse, error) {
	key := todayBossesKey(time.Now())

	if !force {
		if data, ok := s.cache.Get(ctx, key); ok {
			var cached model.BossListResponse
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	resp, err := s.api.GetTodayBosses(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		s.cache.Set(ctx, key, data, todayBossesTTL)
	}
	return resp, nil
}

// GetRaidRoom 获取房间详情，force 为 true 时绕过缓存
func (s *BossService) GetRaidRoom(ctx context.Context, roomID int64, force bool) (*model.RaidRoom, error) {
	key := raidRoomKey(roomID)

	if !force {
		if data, ok := s.cache.Get(ctx, key); ok {
			var cached model.RaidRoom
			if err := json.Unmarshal(data, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	room, err := s.api.GetRaidRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(room); err == nil {
		s.cache.Set(ctx, key, data, raidRoomTTL)
	}
	return room, nil
}

// GetCompletedRooms 获取已完成房间列表（不缓存）
func (s *BossService) GetCompletedRooms(ctx context.Context) ([]model.CompletedRoom, error) {
	return s.api.GetCompletedRooms(ctx)
}

// CreateRaidRoom 创建房间并清掉所有房间列表缓存
func (s *BossService) CreateRaidRoom(ctx context.Context, bossType, raidDate, raidTime string) (int64, error) {
	defer s.invalidateLists(ctx)
	return s.api.CreateRaidRoom(ctx, bossType, raidDate, raidTime)
}

// CreateChannel 创建频道
func (s *BossService) CreateChannel(ctx context.Context, roomID int64, channelNumber int) error {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.CreateChannel(ctx, roomID, channelNumber)
}

// CreateChannelsBatch 批量创建频道
func (s *BossService) CreateChannelsBatch(ctx context.Context, roomID int64, numbers []int) (*api.BatchResult, error) {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.CreateChannelsBatch(ctx, roomID, numbers)
}

// DeleteChannel 删除频道，频道数变化会体现在房间列表上
func (s *BossService) DeleteChannel(ctx context.Context, roomID, channelID int64) error {
	defer func() {
		s.invalidateRoom(ctx, roomID)
		s.invalidateLists(ctx)
	}()
	return s.api.DeleteChannel(ctx, roomID, channelID)
}

// MarkDefeated 切换击杀标记
func (s *BossService) MarkDefeated(ctx context.Context, roomID, channelID int64) error {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.MarkDefeated(ctx, roomID, channelID)
}

// UpdateMemo 更新频道备注
func (s *BossService) UpdateMemo(ctx context.Context, roomID, channelID int64, memo string) error {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.UpdateMemo(ctx, roomID, channelID, memo)
}

// UpdateBossColor 更新 Boss 颜色标记
func (s *BossService) UpdateBossColor(ctx context.Context, roomID, channelID int64, tag model.BossTag, color string) error {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.UpdateBossColor(ctx, roomID, channelID, tag, color)
}

// ToggleChannelSelection 切换移动中标记
func (s *BossService) ToggleChannelSelection(ctx context.Context, roomID, channelID, userID int64) error {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.ToggleChannelSelection(ctx, roomID, channelID, userID)
}

// ToggleParticipation 切换参与状态
func (s *BossService) ToggleParticipation(ctx context.Context, roomID, userID int64) (bool, error) {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.ToggleParticipation(ctx, roomID, userID)
}

// CompleteRoom 标记房间完成
func (s *BossService) CompleteRoom(ctx context.Context, roomID int64) error {
	defer func() {
		s.invalidateRoom(ctx, roomID)
		s.invalidateLists(ctx)
	}()
	return s.api.CompleteRoom(ctx, roomID)
}

// DeleteRoom 删除房间
func (s *BossService) DeleteRoom(ctx context.Context, roomID int64) error {
	defer func() {
		s.invalidateRoom(ctx, roomID)
		s.invalidateLists(ctx)
	}()
	return s.api.DeleteRoom(ctx, roomID)
}

// UpdateDragonDefeatedTime 更新水/火龙击杀时间
func (s *BossService) UpdateDragonDefeatedTime(ctx context.Context, roomID, channelID int64, kind model.DragonKind, defeatedAt string) error {
	defer s.invalidateRoom(ctx, roomID)
	return s.api.UpdateDragonDefeatedTime(ctx, roomID, channelID, kind, defeatedAt)
}

func (s *BossService) invalidateRoom(ctx context.Context, roomID int64) {
	s.cache.Delete(ctx, raidRoomKey(roomID))
}

func (s *BossService) invalidateLists(ctx context.Context) {
	if err := s.cache.DeletePattern(ctx, todayBossesPattern); err != nil {
		s.logger.Warn("Failed to invalidate list caches", "error", err)
	}
}
