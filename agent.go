package meowstatus

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMusicPollInterval = 5 * time.Second
	DefaultIdlePollInterval  = 5 * time.Second
	DefaultIdleTimeout       = 5 * time.Minute
)

// MediaProber reports the currently playing media, if any.
type MediaProber interface {
	Current(ctx context.Context) (MusicState, bool)
}

// IdleProber reports seconds since the last user input.
type IdleProber interface {
	IdleSeconds(ctx context.Context) (int64, bool)
}

// AgentConfig wires the producer loops together.
type AgentConfig struct {
	Presence   *PresenceMachine
	NowPlaying *NowPlayingTracker

	// Media, when set, is polled and fed into NowPlaying.
	Media MediaProber
	// Idle, when set, synthesizes screen_off/screen_on transitions around
	// IdleTimeout, driving the presence machine on hosts without lock events.
	Idle IdleProber
	// Notifications, when set, is drained into NowPlaying.
	Notifications <-chan Notification

	MusicPollInterval time.Duration
	IdlePollInterval  time.Duration
	IdleTimeout       time.Duration
}

// Agent 设备侧常驻进程：心跳、媒体轮询、空闲检测三条循环互不阻塞，
// 任一探测失败只会缺数据，不会让进程退出。
type Agent struct {
	cfg AgentConfig
}

// NewAgent validates the wiring.
func NewAgent(cfg AgentConfig) (*Agent, error) {
	if cfg.Presence == nil {
		return nil, errors.New("agent requires a presence machine")
	}
	if cfg.MusicPollInterval <= 0 {
		cfg.MusicPollInterval = DefaultMusicPollInterval
	}
	if cfg.IdlePollInterval <= 0 {
		cfg.IdlePollInterval = DefaultIdlePollInterval
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	return &Agent{cfg: cfg}, nil
}

// Run starts every loop and blocks until the context is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	a.cfg.Presence.Start(ctx)
	defer a.cfg.Presence.Close()

	group := newGuardedGroup(ctx)
	if a.cfg.Media != nil && a.cfg.NowPlaying != nil {
		group.Go("media-poll", a.mediaLoop)
	}
	if a.cfg.Idle != nil {
		group.Go("idle-watch", a.idleLoop)
	}
	if a.cfg.Notifications != nil && a.cfg.NowPlaying != nil {
		group.Go("notification-drain", a.notificationLoop)
	}
	err := group.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *Agent) mediaLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.MusicPollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			state, ok := a.cfg.Media.Current(ctx)
			if !ok {
				continue
			}
			state.UpdatedAt = time.Now()
			a.cfg.NowPlaying.Observe(ctx, state)
		}
	}
}

func (a *Agent) idleLoop(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.IdlePollInterval)
	defer ticker.Stop()
	wasIdle := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			idle, ok := a.cfg.Idle.IdleSeconds(ctx)
			if !ok {
				continue
			}
			isIdle := time.Duration(idle)*time.Second >= a.cfg.IdleTimeout
			switch {
			case isIdle && !wasIdle:
				log.Debug().Int64("idle_seconds", idle).Msg("idle threshold crossed, arming offline delay")
				a.cfg.Presence.ScreenOff(ctx)
			case !isIdle && wasIdle:
				log.Debug().Int64("idle_seconds", idle).Msg("activity resumed")
				a.cfg.Presence.ScreenOn(ctx)
			}
			wasIdle = isIdle
		}
	}
}

func (a *Agent) notificationLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-a.cfg.Notifications:
			if !ok {
				return nil
			}
			a.cfg.NowPlaying.Ingest(ctx, n)
		}
	}
}
