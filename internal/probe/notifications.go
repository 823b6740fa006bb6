package probe

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	meowstatus "github.com/meowhuan/meowstatus"
)

// ReadNotifications streams tab-separated notification dumps
// (package\ttitle\ttext\tsubtext, one per line) into a channel, e.g. from a
// FIFO fed by a platform-side listener. The channel closes on EOF or context
// cancellation; malformed lines are skipped.
func ReadNotifications(ctx context.Context, r io.Reader) <-chan meowstatus.Notification {
	out := make(chan meowstatus.Notification)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			n, ok := parseNotificationLine(scanner.Text())
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return
			case out <- n:
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("notification stream read failed")
		}
	}()
	return out
}

func parseNotificationLine(line string) (meowstatus.Notification, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return meowstatus.Notification{}, false
	}
	parts := strings.SplitN(line, "\t", 4)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" {
		return meowstatus.Notification{}, false
	}
	n := meowstatus.Notification{
		Package: strings.TrimSpace(parts[0]),
		Title:   strings.TrimSpace(parts[1]),
	}
	if len(parts) > 2 {
		n.Text = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		n.SubText = strings.TrimSpace(parts[3])
	}
	return n, true
}
