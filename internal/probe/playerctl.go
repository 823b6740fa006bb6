// Package probe collects best-effort local device signals for the agent.
// Every probe degrades to "no data" on failure; nothing here returns an error
// to its caller.
package probe

import (
	"context"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	meowstatus "github.com/meowhuan/meowstatus"
)

// PlayerctlProber reads the current media session via playerctl. A playing
// session wins over paused ones; with no playing session the first non-empty
// line is reported.
type PlayerctlProber struct {
	// Binary 可覆盖 playerctl 路径，空值用 PATH 查找。
	Binary string
}

const playerctlFormat = "{{status}}\t{{title}}\t{{artist}}\t{{playerName}}"

// Current implements meowstatus.MediaProber.
func (p *PlayerctlProber) Current(ctx context.Context) (meowstatus.MusicState, bool) {
	binary := p.Binary
	if binary == "" {
		binary = "playerctl"
	}
	out, err := exec.CommandContext(ctx, binary, "-a", "metadata", "--format", playerctlFormat).Output()
	if err != nil {
		log.Debug().Err(err).Msg("playerctl probe failed")
		return meowstatus.MusicState{}, false
	}
	return parsePlayerctlOutput(string(out))
}

func parsePlayerctlOutput(output string) (meowstatus.MusicState, bool) {
	var first meowstatus.MusicState
	found := false
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 4)
		state := meowstatus.MusicState{
			Playing: strings.EqualFold(strings.TrimSpace(parts[0]), "playing"),
		}
		if len(parts) > 1 {
			state.Title = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			state.Artist = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			state.Source = strings.TrimSpace(parts[3])
		}
		if state.Playing {
			return state, true
		}
		if !found {
			first = state
			found = true
		}
	}
	return first, found
}
