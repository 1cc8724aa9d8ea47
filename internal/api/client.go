// Package api 封装讨伐后端的 REST 接口。
// 网络/超时类错误归类为瞬时错误（apperrors.IsTransient），调用方据此决定
// 是否向用户提示；服务器拒绝的请求携带服务器返回的消息。
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/scenery67/boss/internal/apperrors"
	"github.com/scenery67/boss/internal/config"
	"github.com/scenery67/boss/internal/model"
)

// Client REST 客户端
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// New 创建 REST 客户端
func New(cfg config.ServerConfig, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: slog.Default().With("component", "api"),
	}
}

// envelope 服务器响应的公共包装
type envelope struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *envelope) rejected() bool {
	return e.Success != nil && !*e.Success
}

func (e *envelope) errorMessage() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Message
}

// do 发送请求并解析响应体
// out 为 nil 时只检查响应包装
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.ErrNetwork.Wrap(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.ErrNetwork.Wrap(err)
	}

	var env envelope
	// 包装解析失败不致命，按状态码处理
	_ = json.Unmarshal(data, &env)

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("Request rejected",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return apperrors.ServerError(env.errorMessage())
	}
	if env.rejected() {
		return apperrors.ServerError(env.errorMessage())
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return apperrors.ServerError("响应解析失败").Wrap(err)
		}
	}
	return nil
}

// GetTodayBosses 获取今日 Boss 及房间列表
func (c *Client) GetTodayBosses(ctx context.Context) (*model.BossListResponse, error) {
	var out model.BossListResponse
	if err := c.do(ctx, http.MethodGet, "/api/bosses/today", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetCompletedRooms 获取已完成房间列表
func (c *Client) GetCompletedRooms(ctx context.Context) ([]model.CompletedRoom, error) {
	var out struct {
		Rooms []model.CompletedRoom `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/bosses/completed", nil, &out); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

// CreateRaidRoom 创建讨伐房间，raidTime 为空时不提交该字段
func (c *Client) CreateRaidRoom(ctx context.Context, bossType, raidDate, raidTime string) (int64, error) {
	body := map[string]string{
		"bossType": bossType,
		"raidDate": raidDate,
	}
	if strings.TrimSpace(raidTime) != "" {
		body["raidTime"] = raidTime
	}

	var out struct {
		RoomID int64 `json:"roomId"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/bosses/rooms", body, &out); err != nil {
		return 0, err
	}
	return out.RoomID, nil
}

// GetRaidRoom 获取单个房间详情
func (c *Client) GetRaidRoom(ctx context.Context, roomID int64) (*model.RaidRoom, error) {
	var out model.RaidRoom
	path := fmt.Sprintf("/api/raid-rooms/%d", roomID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChannel 创建单个频道
func (c *Client) CreateChannel(ctx context.Context, roomID int64, channelNumber int) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels", roomID)
	return c.do(ctx, http.MethodPost, path, map[string]int{"channelNumber": channelNumber}, nil)
}

// BatchResult 批量创建结果
type BatchResult struct {
	Created []int `json:"created"`
	Failed  []int `json:"failed"`
}

// CreateChannelsBatch 批量创建频道
func (c *Client) CreateChannelsBatch(ctx context.Context, roomID int64, numbers []int) (*BatchResult, error) {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels/batch", roomID)
	var out BatchResult
	if err := c.do(ctx, http.MethodPost, path, map[string][]int{"channelNumbers": numbers}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChannel 删除频道
func (c *Client) DeleteChannel(ctx context.Context, roomID, channelID int64) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels/%d", roomID, channelID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// MarkDefeated 切换频道的击杀标记
func (c *Client) MarkDefeated(ctx context.Context, roomID, channelID int64) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels/%d/defeated", roomID, channelID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// UpdateMemo 更新频道备注
func (c *Client) UpdateMemo(ctx context.Context, roomID, channelID int64, memo string) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels/%d/memo", roomID, channelID)
	return c.do(ctx, http.MethodPut, path, map[string]string{"memo": memo}, nil)
}

// UpdateBossColor 更新频道上某个 Boss 标记位的颜色
func (c *Client) UpdateBossColor(ctx context.Context, roomID, channelID int64, tag model.BossTag, color string) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels/%d/boss-color", roomID, channelID)
	body := map[string]string{
		"bossType":  string(tag),
		"bossColor": color,
	}
	return c.do(ctx, http.MethodPut, path, body, nil)
}

// ToggleChannelSelection 切换用户在频道上的移动中标记
func (c *Client) ToggleChannelSelection(ctx context.Context, roomID, channelID, userID int64) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels/%d/select", roomID, channelID)
	return c.do(ctx, http.MethodPut, path, map[string]int64{"userId": userID}, nil)
}

// ToggleParticipation 切换用户的房间参与状态，返回切换后的状态
func (c *Client) ToggleParticipation(ctx context.Context, roomID, userID int64) (bool, error) {
	path := fmt.Sprintf("/api/raid-rooms/%d/participate", roomID)
	var out struct {
		IsParticipating bool `json:"isParticipating"`
	}
	if err := c.do(ctx, http.MethodPut, path, map[string]int64{"userId": userID}, &out); err != nil {
		return false, err
	}
	return out.IsParticipating, nil
}

// CompleteRoom 标记房间为已完成
func (c *Client) CompleteRoom(ctx context.Context, roomID int64) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/complete", roomID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// DeleteRoom 删除房间
func (c *Client) DeleteRoom(ctx context.Context, roomID int64) error {
	path := fmt.Sprintf("/api/raid-rooms/%d", roomID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// UpdateDragonDefeatedTime 更新水/火龙的击杀时间，空字符串表示清除
func (c *Client) UpdateDragonDefeatedTime(ctx context.Context, roomID, channelID int64, kind model.DragonKind, defeatedAt string) error {
	path := fmt.Sprintf("/api/raid-rooms/%d/channels/%d/dragon-time", roomID, channelID)
	body := map[string]string{
		"dragonType": string(kind),
		"defeatedAt": defeatedAt,
	}
	return c.do(ctx, http.MethodPut, path, body, nil)
}
