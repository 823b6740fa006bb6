package meowstatus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultMusicStaleWindow     = 3 * time.Minute
	DefaultMusicMinPushInterval = 6 * time.Second

	trackDelimiter = " - "
)

// Notification 原始通知字段，由平台侧监听器投递。
type Notification struct {
	Package string
	Title   string
	Text    string
	SubText string
}

// NowPlayingConfig configures the producer-side music debouncer.
type NowPlayingConfig struct {
	DeviceID   string
	DeviceName string
	Sender     HeartbeatSender
	// SourcePackage 只接受该包名的通知，其余一律忽略。
	SourcePackage string
	// SourceLabel 上报给后端的 music_source，默认取 SourcePackage。
	SourceLabel string

	StaleWindow     time.Duration
	MinPushInterval time.Duration
}

// NowPlayingTracker ingests noisy notification text, keeps the latest music
// state, and pushes a heartbeat only when the state's signature changes, at
// most once per MinPushInterval. A suppressed push is dropped, not queued; the
// stored state still advances so the next real change produces a fresh delta.
type NowPlayingTracker struct {
	cfg NowPlayingConfig

	mu       sync.Mutex
	state    MusicState
	lastSig  string
	lastPush time.Time
}

// NewNowPlayingTracker starts from the not-playing state.
func NewNowPlayingTracker(cfg NowPlayingConfig) (*NowPlayingTracker, error) {
	if cfg.Sender == nil {
		return nil, errNilSender
	}
	if cfg.DeviceID == "" {
		return nil, errNoDeviceID
	}
	if cfg.DeviceName == "" {
		cfg.DeviceName = cfg.DeviceID
	}
	if cfg.SourceLabel == "" {
		cfg.SourceLabel = cfg.SourcePackage
	}
	if cfg.StaleWindow <= 0 {
		cfg.StaleWindow = DefaultMusicStaleWindow
	}
	if cfg.MinPushInterval <= 0 {
		cfg.MinPushInterval = DefaultMusicMinPushInterval
	}
	return &NowPlayingTracker{cfg: cfg}, nil
}

// Ingest consumes one notification. Notifications from other packages and
// notifications no title/artist can be extracted from are silently skipped.
func (t *NowPlayingTracker) Ingest(ctx context.Context, n Notification) {
	t.ingestAt(ctx, n, time.Now())
}

func (t *NowPlayingTracker) ingestAt(ctx context.Context, n Notification, now time.Time) {
	if t.cfg.SourcePackage != "" && n.Package != t.cfg.SourcePackage {
		return
	}
	title, artist, ok := ExtractTrack(n)
	if !ok {
		log.Debug().Str("package", n.Package).Msg("notification yielded no track, skipped")
		return
	}
	t.Observe(ctx, MusicState{
		Playing:   true,
		Title:     title,
		Artist:    artist,
		Source:    t.cfg.SourceLabel,
		UpdatedAt: now,
	})
}

// Observe records a structured music state (e.g. from a media probe) and pushes
// a heartbeat when its signature differs from the currently stored fresh state.
func (t *NowPlayingTracker) Observe(ctx context.Context, state MusicState) {
	t.observeAt(ctx, state, state.UpdatedAt)
}

func (t *NowPlayingTracker) observeAt(ctx context.Context, state MusicState, now time.Time) {
	if now.IsZero() {
		now = time.Now()
	}
	state.UpdatedAt = now

	t.mu.Lock()
	prevSig := t.lastSig
	if !t.state.Fresh(now, t.cfg.StaleWindow) {
		// 过期状态视同未在播放，任何有效观察都算变化。
		prevSig = MusicState{}.Signature()
	}
	sig := state.Signature()
	t.state = state
	t.lastSig = sig
	changed := sig != prevSig
	canPush := t.lastPush.IsZero() || now.Sub(t.lastPush) >= t.cfg.MinPushInterval
	if changed && canPush {
		t.lastPush = now
	}
	t.mu.Unlock()

	if !changed {
		return
	}
	if !canPush {
		log.Debug().Str("title", state.Title).Msg("music change within min push interval, dropped")
		return
	}
	hb := Heartbeat{
		DeviceID:     t.cfg.DeviceID,
		DeviceName:   t.cfg.DeviceName,
		Online:       true,
		IdleSeconds:  0,
		MusicPlaying: state.Playing,
		MusicTitle:   state.Title,
		MusicArtist:  state.Artist,
		MusicSource:  state.Source,
	}
	if err := t.cfg.Sender.PushHeartbeat(ctx, hb); err != nil {
		log.Warn().Err(err).Str("title", state.Title).Msg("music heartbeat push failed")
		return
	}
	log.Info().Bool("playing", state.Playing).Str("title", state.Title).Str("artist", state.Artist).Msg("music change pushed")
}

// Current returns the stored state with staleness applied: once the stale
// window has elapsed the reader sees not-playing, whatever was stored. The
// record itself is never cleared on a timer.
func (t *NowPlayingTracker) Current(now time.Time) MusicState {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.Fresh(now, t.cfg.StaleWindow) {
		return MusicState{Source: t.state.Source, UpdatedAt: t.state.UpdatedAt}
	}
	return t.state
}

// ExtractTrack derives a title/artist pair from raw notification fields.
// Strategies apply in order until a title is found: notification title plus
// subtext-as-artist, then body-text-as-artist, then a " - " split of the title
// (which overrides), then the same split of the body text for missing pieces.
// Fields that trim to empty are absent. ok is false when no title survives.
func ExtractTrack(n Notification) (title, artist string, ok bool) {
	title = strings.TrimSpace(n.Title)
	artist = strings.TrimSpace(n.SubText)
	if artist == "" {
		artist = strings.TrimSpace(n.Text)
	}
	if left, right, found := splitTrack(title); found {
		title, artist = left, right
	}
	if (title == "" || artist == "") && strings.TrimSpace(n.Text) != "" {
		if left, right, found := splitTrack(strings.TrimSpace(n.Text)); found {
			if title == "" {
				title = left
			}
			if artist == "" {
				artist = right
			}
		}
	}
	if title == "" {
		return "", "", false
	}
	return title, artist, true
}

func splitTrack(value string) (title, artist string, ok bool) {
	idx := strings.Index(value, trackDelimiter)
	if idx < 0 {
		return "", "", false
	}
	title = strings.TrimSpace(value[:idx])
	artist = strings.TrimSpace(value[idx+len(trackDelimiter):])
	if title == "" && artist == "" {
		return "", "", false
	}
	return title, artist, true
}
