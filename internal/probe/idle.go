package probe

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// XPrintIdleProber reports seconds since the last input via xprintidle,
// which prints idle time in milliseconds.
type XPrintIdleProber struct {
	Binary string
}

// IdleSeconds implements meowstatus.IdleProber.
func (p *XPrintIdleProber) IdleSeconds(ctx context.Context) (int64, bool) {
	binary := p.Binary
	if binary == "" {
		binary = "xprintidle"
	}
	out, err := exec.CommandContext(ctx, binary).Output()
	if err != nil {
		log.Debug().Err(err).Msg("idle probe failed")
		return 0, false
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(string(out)), 10, 64)
	if err != nil {
		log.Debug().Err(err).Msg("idle probe output unparseable")
		return 0, false
	}
	return millis / 1000, true
}
