package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	meowstatus "github.com/meowhuan/meowstatus"
	"github.com/meowhuan/meowstatus/internal/config"
	"github.com/meowhuan/meowstatus/internal/probe"
)

func newAgentCmd() *cobra.Command {
	var (
		endpoint         string
		token            string
		deviceID         string
		deviceName       string
		notificationPipe string
		noMedia          bool
		noIdle           bool
	)
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "设备侧上报进程：心跳、锁屏状态与播放状态",
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				endpoint = config.String("STATUS_ENDPOINT", "")
			}
			if endpoint == "" {
				return fmt.Errorf("endpoint is required (flag --endpoint or STATUS_ENDPOINT)")
			}
			if token == "" {
				token = config.String("STATUS_TOKEN", "")
			}
			if deviceID == "" {
				deviceID = config.String("DEVICE_ID", "")
			}
			if deviceID == "" {
				host, err := os.Hostname()
				if err != nil {
					return fmt.Errorf("device id is required (flag --device-id or DEVICE_ID)")
				}
				deviceID = host
			}
			if deviceName == "" {
				deviceName = config.String("DEVICE_NAME", deviceID)
			}

			feed, err := meowstatus.NewFeedClient(meowstatus.FeedConfig{
				BaseURL: endpoint,
				Token:   token,
			})
			if err != nil {
				return err
			}

			tracker, err := meowstatus.NewNowPlayingTracker(meowstatus.NowPlayingConfig{
				DeviceID:        deviceID,
				DeviceName:      deviceName,
				Sender:          feed,
				SourcePackage:   config.String("MUSIC_SOURCE_PACKAGE", ""),
				SourceLabel:     config.String("MUSIC_SOURCE_LABEL", ""),
				MinPushInterval: config.Duration("MUSIC_PUSH_MIN_INTERVAL_SECS", meowstatus.DefaultMusicMinPushInterval),
			})
			if err != nil {
				return err
			}

			presence, err := meowstatus.NewPresenceMachine(meowstatus.PresenceConfig{
				DeviceID:          deviceID,
				DeviceName:        deviceName,
				Sender:            feed,
				NowPlaying:        tracker,
				HeartbeatInterval: config.Duration("HEARTBEAT_INTERVAL_SECS", meowstatus.DefaultHeartbeatInterval),
				OfflineDelay:      config.Duration("OFFLINE_DELAY_SECS", meowstatus.DefaultOfflineDelay),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			agentCfg := meowstatus.AgentConfig{
				Presence:          presence,
				NowPlaying:        tracker,
				MusicPollInterval: config.Duration("MUSIC_POLL_INTERVAL_SECS", meowstatus.DefaultMusicPollInterval),
				IdleTimeout:       config.Duration("IDLE_TIMEOUT_SECS", meowstatus.DefaultIdleTimeout),
			}
			if !noMedia {
				agentCfg.Media = &probe.PlayerctlProber{}
			}
			if !noIdle {
				agentCfg.Idle = &probe.XPrintIdleProber{}
			}
			if notificationPipe != "" {
				pipe, err := os.Open(notificationPipe)
				if err != nil {
					return err
				}
				defer pipe.Close()
				agentCfg.Notifications = probe.ReadNotifications(ctx, pipe)
			}

			agent, err := meowstatus.NewAgent(agentCfg)
			if err != nil {
				return err
			}
			log.Info().Str("device", deviceID).Str("endpoint", endpoint).Msg("agent starting")
			return agent.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "状态后端地址，覆盖 STATUS_ENDPOINT")
	cmd.Flags().StringVar(&token, "token", "", "写操作凭证，覆盖 STATUS_TOKEN")
	cmd.Flags().StringVar(&deviceID, "device-id", "", "设备标识，覆盖 DEVICE_ID，默认主机名")
	cmd.Flags().StringVar(&deviceName, "device-name", "", "设备展示名，覆盖 DEVICE_NAME")
	cmd.Flags().StringVar(&notificationPipe, "notification-pipe", "", "通知流 FIFO 路径，可选")
	cmd.Flags().BoolVar(&noMedia, "no-media", false, "关闭 playerctl 媒体轮询")
	cmd.Flags().BoolVar(&noIdle, "no-idle", false, "关闭 xprintidle 空闲检测")
	return cmd
}
