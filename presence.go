package meowstatus

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var (
	errNilSender  = errors.New("heartbeat sender cannot be nil")
	errNoDeviceID = errors.New("device id is required")
)

// HeartbeatSender 心跳传输接口，FeedClient 即实现。
type HeartbeatSender interface {
	PushHeartbeat(ctx context.Context, hb Heartbeat) error
}

// PresenceState 锁屏状态机的三个状态。
type PresenceState string

const (
	PresenceActive           PresenceState = "active"
	PresenceLockPending      PresenceState = "lock_pending"
	PresenceConfirmedOffline PresenceState = "confirmed_offline"
)

const (
	DefaultHeartbeatInterval = time.Minute
	DefaultOfflineDelay      = 5 * time.Minute
)

// PresenceConfig configures the producer-side presence machine.
type PresenceConfig struct {
	DeviceID   string
	DeviceName string
	Sender     HeartbeatSender
	// NowPlaying, when set, lets heartbeats carry the current fresh music state.
	NowPlaying *NowPlayingTracker

	HeartbeatInterval time.Duration
	OfflineDelay      time.Duration
}

// PresenceMachine tracks lock-screen transitions and emits heartbeats:
// immediate on unlock, delayed-confirm on lock, periodic regardless of screen
// state. There is at most one pending offline confirmation at a time; a newly
// scheduled one supersedes and cancels the previous.
//
// The periodic heartbeat deliberately reports online=true without consulting
// the lock state, matching the deployed producer; only the elapsed offline
// delay reports offline. Heartbeats are fire-and-forget: transport failures are
// logged and swallowed, a missed report is simply absent data.
type PresenceMachine struct {
	cfg PresenceConfig

	mu             sync.Mutex
	state          PresenceState
	pendingOffline *time.Timer
	closed         bool

	workers sync.WaitGroup
	cancel  context.CancelFunc
}

// NewPresenceMachine builds the machine in the Active state.
func NewPresenceMachine(cfg PresenceConfig) (*PresenceMachine, error) {
	if cfg.Sender == nil {
		return nil, errNilSender
	}
	if cfg.DeviceID == "" {
		return nil, errNoDeviceID
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = cfg.DeviceID
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.OfflineDelay <= 0 {
		cfg.OfflineDelay = DefaultOfflineDelay
	}
	return &PresenceMachine{cfg: cfg, state: PresenceActive}, nil
}

// Start sends the initial heartbeat and launches the periodic loop.
func (m *PresenceMachine) Start(ctx context.Context) {
	m.mu.Lock()
	if m.cancel != nil || m.closed {
		m.mu.Unlock()
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.mu.Unlock()

	m.sendHeartbeat(ctx, true, 0, "startup")

	m.workers.Add(1)
	go func() {
		defer m.workers.Done()
		ticker := time.NewTicker(m.cfg.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.sendHeartbeat(ctx, true, 0, "periodic")
			}
		}
	}()
}

// Close cancels the periodic loop and any pending offline confirmation.
func (m *PresenceMachine) Close() {
	m.mu.Lock()
	m.closed = true
	cancel := m.cancel
	m.cancel = nil
	m.cancelPendingLocked()
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.workers.Wait()
}

// State returns the current machine state.
func (m *PresenceMachine) State() PresenceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ScreenOn cancels any pending offline confirmation and reports online now.
// After Close it is a no-op, like ScreenOff.
func (m *PresenceMachine) ScreenOn(ctx context.Context) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.cancelPendingLocked()
	m.state = PresenceActive
	m.mu.Unlock()
	m.sendHeartbeat(ctx, true, 0, "screen_on")
}

// ScreenOff arms the offline confirmation delay, replacing any previous one.
// The offline report only goes out if no ScreenOn arrives before it fires.
func (m *PresenceMachine) ScreenOff(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.cancelPendingLocked()
	m.state = PresenceLockPending
	delay := m.cfg.OfflineDelay
	m.pendingOffline = time.AfterFunc(delay, func() {
		m.confirmOffline(ctx, delay)
	})
}

func (m *PresenceMachine) confirmOffline(ctx context.Context, delay time.Duration) {
	m.mu.Lock()
	if m.closed || m.state != PresenceLockPending {
		m.mu.Unlock()
		return
	}
	m.state = PresenceConfirmedOffline
	m.pendingOffline = nil
	m.mu.Unlock()
	m.sendHeartbeat(ctx, false, int64(delay/time.Second), "offline_confirm")
}

func (m *PresenceMachine) cancelPendingLocked() {
	if m.pendingOffline != nil {
		m.pendingOffline.Stop()
		m.pendingOffline = nil
	}
}

func (m *PresenceMachine) sendHeartbeat(ctx context.Context, online bool, idleSeconds int64, reason string) {
	hb := Heartbeat{
		DeviceID:    m.cfg.DeviceID,
		DeviceName:  m.cfg.DeviceName,
		Online:      online,
		IdleSeconds: idleSeconds,
	}
	if m.cfg.NowPlaying != nil {
		music := m.cfg.NowPlaying.Current(time.Now())
		hb.MusicPlaying = music.Playing
		hb.MusicTitle = music.Title
		hb.MusicArtist = music.Artist
		hb.MusicSource = music.Source
	}
	if err := m.cfg.Sender.PushHeartbeat(ctx, hb); err != nil {
		log.Warn().Err(err).Str("reason", reason).Bool("online", online).Msg("heartbeat push failed")
		return
	}
	log.Debug().Str("reason", reason).Bool("online", online).Int64("idle", idleSeconds).Msg("heartbeat sent")
}
