package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	meowstatus "github.com/meowhuan/meowstatus"
	"github.com/meowhuan/meowstatus/internal/config"
)

func newHomeCmd() *cobra.Command {
	var (
		endpoint string
		quoteURL string
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "home",
		Short: "以主页消费者身份轮询后端并打印聚合状态",
		RunE: func(cmd *cobra.Command, args []string) error {
			if endpoint == "" {
				endpoint = config.String("STATUS_ENDPOINT", "")
			}
			if endpoint == "" {
				return fmt.Errorf("endpoint is required (flag --endpoint or STATUS_ENDPOINT)")
			}
			if quoteURL == "" {
				quoteURL = config.String("QUOTE_URL", "")
			}

			feed, err := meowstatus.NewFeedClient(meowstatus.FeedConfig{
				BaseURL:  endpoint,
				QuoteURL: quoteURL,
			})
			if err != nil {
				return err
			}

			session, err := meowstatus.NewSession(meowstatus.SessionConfig{
				Feed:      feed,
				VisitorID: meowstatus.LoadOrCreateVisitorID(config.String("VISITOR_ID_PATH", "")),
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			session.Start(ctx)
			defer session.Close()

			if once {
				printHome(cmd, session)
				return nil
			}

			ticker := time.NewTicker(10 * time.Second)
			defer ticker.Stop()
			lastSummary := ""
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if summary := session.Summary(); summary != lastSummary {
						log.Info().Str("summary", summary).Msg("summary changed")
						lastSummary = summary
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "状态后端地址，覆盖 STATUS_ENDPOINT")
	cmd.Flags().StringVar(&quoteURL, "quote-url", "", "一言接口地址，覆盖 QUOTE_URL")
	cmd.Flags().BoolVar(&once, "once", false, "抓取一轮后打印聚合结果并退出")
	return cmd
}

func printHome(cmd *cobra.Command, session *meowstatus.Session) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "summary: %s\n", session.Summary())

	quote, quoteInfo := session.Quote()
	fmt.Fprintf(out, "quote: %s", quote.Text)
	if quote.From != "" {
		fmt.Fprintf(out, " —— %s", quote.From)
	}
	if quoteInfo.Errored {
		fmt.Fprint(out, " (fallback)")
	}
	fmt.Fprintln(out)

	records, _ := session.Status()
	for _, rec := range records {
		line := fmt.Sprintf("device %s online=%v", rec.DeviceName, rec.Online)
		if rec.MusicPlaying {
			line += fmt.Sprintf(" playing=%s - %s", rec.MusicTitle, rec.MusicArtist)
		}
		fmt.Fprintln(out, line)
	}

	items, _ := session.Schedule()
	for _, item := range items {
		fmt.Fprintf(out, "schedule %s %s\n", item.Time, item.Title)
	}

	posts, _ := session.Blog()
	for _, post := range posts {
		fmt.Fprintf(out, "blog %s (%s)\n", post.Title, post.Slug)
	}

	stats, _ := session.VisitorStats()
	fmt.Fprintf(out, "visitors today=%d month=%d total=%d\n", stats.Today, stats.Month, stats.Total)
}
