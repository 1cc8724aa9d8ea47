package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/scenery67/boss/internal/api"
	"github.com/scenery67/boss/internal/cache"
	"github.com/scenery67/boss/internal/config"
	"github.com/scenery67/boss/internal/identity"
	"github.com/scenery67/boss/internal/model"
	"github.com/scenery67/boss/internal/room"
	"github.com/scenery67/boss/internal/service"
	"github.com/scenery67/boss/internal/session"
	"github.com/scenery67/boss/internal/settings"
	"github.com/scenery67/boss/internal/transport"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "配置文件路径")
	roomID := flag.Int64("room", 0, "要进入的房间 ID，0 表示只列出今日房间")
	listCompleted := flag.Bool("completed", false, "列出已完成的房间后退出")
	watch := flag.Bool("watch", false, "列表模式下持续订阅更新而不是列出后退出")
	flag.Parse()

	// 初始化日志
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// 从令牌解析当前用户
	user, err := identity.FromToken(cfg.Auth.Token)
	if err != nil {
		logger.Error("Failed to parse auth token", "error", err)
		os.Exit(1)
	}
	logger.Info("Authenticated", "userId", user.ID, "username", user.Username)

	// 创建上下文
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 选择缓存后端
	store, closeStore, err := newCacheStore(ctx, cfg.Cache)
	if err != nil {
		logger.Error("Failed to initialize cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// 初始化服务
	apiClient := api.New(cfg.Server, cfg.Auth.Token)
	svc := service.NewBossService(apiClient, store)

	// 只列出已完成的房间
	if *listCompleted {
		if err := listCompletedRooms(ctx, svc); err != nil {
			logger.Error("Failed to list completed rooms", "error", err)
			os.Exit(1)
		}
		return
	}

	// 列表模式
	if *roomID == 0 {
		if !*watch {
			if err := listToday(ctx, svc); err != nil {
				logger.Error("Failed to list today's rooms", "error", err)
				os.Exit(1)
			}
			return
		}
		if err := watchToday(ctx, cfg, svc, logger); err != nil {
			logger.Error("Failed to watch today's rooms", "error", err)
			os.Exit(1)
		}
		return
	}

	// 加载本地设置（重生偏移）
	prefs, err := settings.Load(settings.DefaultPath())
	if err != nil {
		logger.Warn("Failed to load settings, using defaults", "error", err)
		prefs = settings.Default()
	}

	// 初始化传输并进入房间
	nats := transport.New(cfg.NATS)
	defer nats.Disconnect()

	render := make(chan struct{}, 1)
	sess := session.New(*roomID, user, svc, nats, cfg.Client.FallbackRefreshDelay, func() {
		select {
		case render <- struct{}{}:
		default:
		}
	})

	if err := sess.Open(ctx); err != nil {
		logger.Error("Failed to open room session", "roomId", *roomID, "error", err)
		os.Exit(1)
	}
	defer sess.Close()
	logger.Info("Room session opened", "roomId", *roomID)

	// 重生分档按固定间隔重算，时间流逝本身会让条目在档间迁移
	ticker := time.NewTicker(cfg.Client.RespawnTickInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-render:
			printRoom(sess.State(), prefs)
		case <-ticker.C:
			snapshot := sess.State().Snapshot()
			if snapshot != nil && snapshot.Boss.Type == model.BossTypeDragonWaterFire {
				printRespawns(snapshot, prefs)
			}
		case <-quit:
			logger.Info("Shutting down...")
			return
		}
	}
}

// newCacheStore 按配置选择缓存后端
func newCacheStore(ctx context.Context, cfg config.CacheConfig) (cache.Store, func(), error) {
	if cfg.Backend == "redis" {
		r := cache.NewRedis(cfg.Redis)
		if err := r.Ping(ctx); err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	}
	return cache.NewMemory(), func() {}, nil
}

// listToday 打印今日 Boss 和房间列表
func listToday(ctx context.Context, svc *service.BossService) error {
	resp, err := svc.GetTodayBosses(ctx, false)
	if err != nil {
		return err
	}
	printBosses(resp.Bosses)
	return nil
}

// watchToday 订阅列表推送并在每次更新后重新打印
func watchToday(ctx context.Context, cfg *config.Config, svc *service.BossService, logger *slog.Logger) error {
	nats := transport.New(cfg.NATS)
	defer nats.Disconnect()

	render := make(chan struct{}, 1)
	lobby := session.NewLobby(svc, nats, func() {
		select {
		case render <- struct{}{}:
		default:
		}
	})

	if err := lobby.Open(ctx); err != nil {
		return err
	}
	defer lobby.Close()
	logger.Info("Watching today's boss list")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-render:
			printBosses(lobby.Bosses())
		case <-quit:
			logger.Info("Shutting down...")
			return nil
		}
	}
}

func printBosses(bosses []model.Boss) {
	for _, boss := range bosses {
		fmt.Printf("%s (%s)\n", boss.Name, boss.Type)
		for _, r := range boss.Rooms {
			status := "进行中"
			if r.IsCompleted {
				status = "已完成"
			}
			fmt.Printf("  房间 %d  %s %s  频道 %d  [%s]\n",
				r.ID, r.RaidDate, r.RaidTime, r.ChannelCount, status)
		}
	}
}

// listCompletedRooms 打印已完成的房间列表
func listCompletedRooms(ctx context.Context, svc *service.BossService) error {
	rooms, err := svc.GetCompletedRooms(ctx)
	if err != nil {
		return err
	}

	for _, r := range rooms {
		fmt.Printf("房间 %d  %s  %s %s  频道 %d  完成于 %s\n",
			r.ID, r.BossName, r.RaidDate, r.RaidTime, r.ChannelCount, r.CompletedAt)
	}
	return nil
}

// printRoom 打印房间当前视图
func printRoom(state *room.State, prefs *settings.Settings) {
	snapshot := state.Snapshot()
	if snapshot == nil {
		return
	}

	status := "进行中"
	if snapshot.IsCompleted {
		status = "已完成"
	}
	fmt.Printf("\n=== %s  %s %s  [%s] ===\n",
		snapshot.Boss.Name, snapshot.RaidDate, snapshot.RaidTime, status)

	selected := state.SelectedChannelID()
	for _, ch := range snapshot.Channels {
		marks := []string{}
		if ch.IsDefeated {
			marks = append(marks, "击杀")
		}
		if ch.ID == selected {
			marks = append(marks, "选中")
		}
		for _, u := range ch.Users {
			if u.IsMoving {
				marks = append(marks, u.DisplayName+"移动中")
			}
		}
		line := fmt.Sprintf("  #%04d", ch.ChannelNumber)
		if len(marks) > 0 {
			line += "  [" + strings.Join(marks, " ") + "]"
		}
		if ch.Memo != "" {
			line += "  " + ch.Memo
		}
		fmt.Println(line)
	}

	if len(snapshot.ConnectedUsers) > 0 {
		names := make([]string, 0, len(snapshot.ConnectedUsers))
		for _, u := range snapshot.ConnectedUsers {
			names = append(names, u.DisplayName)
		}
		fmt.Printf("在线: %s\n", strings.Join(names, ", "))
	}

	if snapshot.Boss.Type == model.BossTypeDragonWaterFire {
		printRespawns(snapshot, prefs)
	}
}

// printRespawns 打印水火龙重生分档
func printRespawns(snapshot *model.RaidRoom, prefs *settings.Settings) {
	buckets := room.BucketRespawns(
		snapshot.Channels,
		time.Duration(prefs.WaterRespawnMinutes)*time.Minute,
		time.Duration(prefs.FireRespawnMinutes)*time.Minute,
		time.Now(),
	)

	printBucket := func(label string, entries []room.RespawnEntry) {
		if len(entries) == 0 {
			return
		}
		fmt.Printf("%s:\n", label)
		for _, e := range entries {
			kind := "水龙"
			if e.Kind == model.DragonFire {
				kind = "火龙"
			}
			fmt.Printf("  #%04d %s  %s (%+d 分钟)\n",
				e.Channel.ChannelNumber, kind,
				e.RespawnAt.Format("15:04"), e.RemainingMinutes)
		}
	}

	printBucket("即将重生", buckets.Imminent)
	printBucket("快了", buckets.Soon)
	printBucket("等待中", buckets.Waiting)
	printBucket("已过期", buckets.Elapsed)
}
