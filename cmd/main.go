package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/meowhuan/meowstatus/internal/env"
)

var rootCmd = &cobra.Command{
	Use:   "meowstatus",
	Short: "个人主页状态套件",
	Long:  `meowstatus 提供个人主页的状态链路：serve 运行存储后端，agent 在设备侧上报心跳与播放状态，home 以消费者身份轮询并聚合展示数据。`,
}

func init() {
	output := zerolog.ConsoleWriter{Out: os.Stderr}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
	rootCmd.AddCommand(
		newServeCmd(),
		newAgentCmd(),
		newHomeCmd(),
	)
	_ = env.Ensure()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("meowstatus command failed")
	}
}
