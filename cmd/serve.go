package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/meowhuan/meowstatus/internal/config"
	"github.com/meowhuan/meowstatus/internal/server"
	"github.com/meowhuan/meowstatus/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		dbPath string
		token  string
		port   int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "运行状态存储后端",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = config.String("STATUS_DB", "status.db")
			}
			if token == "" {
				token = config.String("STATUS_TOKEN", "")
			}
			if token == "" {
				return fmt.Errorf("token is required (flag --token or STATUS_TOKEN)")
			}
			if port == 0 {
				port = config.Int("STATUS_PORT", 7999)
			}

			store, err := storage.Open(dbPath)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := store.Close(); cerr != nil {
					log.Warn().Err(cerr).Msg("close store failed")
				}
			}()

			srv, err := server.New(server.Config{
				Store:   store,
				Token:   token,
				Version: config.String("STATUS_BUILD", "meowstatus v1.1-music"),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx, fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "sqlite 数据库路径，覆盖 STATUS_DB")
	cmd.Flags().StringVar(&token, "token", "", "写操作凭证，覆盖 STATUS_TOKEN")
	cmd.Flags().IntVar(&port, "port", 0, "监听端口，覆盖 STATUS_PORT")
	return cmd
}
