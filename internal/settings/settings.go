// Package settings 管理本地个人设置。
// 对应原版浏览器端的 localStorage：只存在本机，不同步到服务器。
package settings

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// 默认重生偏移，与社区通用的刷新周期一致
const (
	DefaultWaterRespawnMinutes = 35
	DefaultFireRespawnMinutes  = 45
)

// Settings 本地个人设置
type Settings struct {
	WaterRespawnMinutes int `yaml:"water_respawn_minutes"`
	FireRespawnMinutes  int `yaml:"fire_respawn_minutes"`
}

// Default 默认设置
func Default() *Settings {
	return &Settings{
		WaterRespawnMinutes: DefaultWaterRespawnMinutes,
		FireRespawnMinutes:  DefaultFireRespawnMinutes,
	}
}

// Load 从指定路径加载设置，文件不存在时返回默认值
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}

	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, err
	}
	if s.WaterRespawnMinutes <= 0 {
		s.WaterRespawnMinutes = DefaultWaterRespawnMinutes
	}
	if s.FireRespawnMinutes <= 0 {
		s.FireRespawnMinutes = DefaultFireRespawnMinutes
	}
	return s, nil
}

// Save 保存设置到指定路径，父目录不存在时创建
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// DefaultPath 默认设置文件路径（用户配置目录下）
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "raidclient", "settings.yaml")
}
