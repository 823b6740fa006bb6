package meowstatus

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingSender struct {
	mu    sync.Mutex
	beats []Heartbeat
	err   error
}

func (s *recordingSender) PushHeartbeat(ctx context.Context, hb Heartbeat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.beats = append(s.beats, hb)
	return nil
}

func (s *recordingSender) snapshot() []Heartbeat {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Heartbeat, len(s.beats))
	copy(out, s.beats)
	return out
}

func countOnline(beats []Heartbeat) (online, offline int) {
	for _, hb := range beats {
		if hb.Online {
			online++
		} else {
			offline++
		}
	}
	return online, offline
}

func newTestMachine(t *testing.T, sender *recordingSender, delay time.Duration) *PresenceMachine {
	t.Helper()
	m, err := NewPresenceMachine(PresenceConfig{
		DeviceID:     "desk",
		Sender:       sender,
		OfflineDelay: delay,
	})
	if err != nil {
		t.Fatalf("NewPresenceMachine: %v", err)
	}
	return m
}

func TestPresenceValidation(t *testing.T) {
	if _, err := NewPresenceMachine(PresenceConfig{DeviceID: "desk"}); err == nil {
		t.Fatal("nil sender must be rejected")
	}
	if _, err := NewPresenceMachine(PresenceConfig{Sender: &recordingSender{}}); err == nil {
		t.Fatal("empty device id must be rejected")
	}
}

func TestScreenOnCancelsPendingOffline(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMachine(t, sender, 60*time.Millisecond)
	ctx := context.Background()

	m.ScreenOff(ctx)
	m.ScreenOn(ctx)
	time.Sleep(150 * time.Millisecond)

	online, offline := countOnline(sender.snapshot())
	if offline != 0 {
		t.Fatalf("cancelled offline confirmation must not fire, got %d offline beats", offline)
	}
	if online != 1 {
		t.Fatalf("expected exactly one screen_on heartbeat, got %d", online)
	}
	if m.State() != PresenceActive {
		t.Fatalf("expected active state, got %s", m.State())
	}
}

func TestScreenOffConfirmsAfterDelay(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMachine(t, sender, 40*time.Millisecond)
	ctx := context.Background()

	m.ScreenOff(ctx)
	if m.State() != PresenceLockPending {
		t.Fatalf("expected lock_pending right after ScreenOff, got %s", m.State())
	}
	time.Sleep(120 * time.Millisecond)

	beats := sender.snapshot()
	online, offline := countOnline(beats)
	if offline != 1 || online != 0 {
		t.Fatalf("expected exactly one offline heartbeat, got online=%d offline=%d", online, offline)
	}
	if beats[0].IdleSeconds != int64(40*time.Millisecond/time.Second) {
		t.Fatalf("unexpected idle seconds %d", beats[0].IdleSeconds)
	}
	if m.State() != PresenceConfirmedOffline {
		t.Fatalf("expected confirmed_offline, got %s", m.State())
	}
}

func TestRepeatedScreenOffReplacesTimer(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMachine(t, sender, 60*time.Millisecond)
	ctx := context.Background()

	m.ScreenOff(ctx)
	time.Sleep(30 * time.Millisecond)
	m.ScreenOff(ctx)
	time.Sleep(200 * time.Millisecond)

	_, offline := countOnline(sender.snapshot())
	if offline != 1 {
		t.Fatalf("superseded timer must not fire, got %d offline beats", offline)
	}
}

func TestStartSendsStartupAndPeriodicHeartbeats(t *testing.T) {
	sender := &recordingSender{}
	m, err := NewPresenceMachine(PresenceConfig{
		DeviceID:          "desk",
		Sender:            sender,
		HeartbeatInterval: 25 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewPresenceMachine: %v", err)
	}

	m.Start(context.Background())
	time.Sleep(90 * time.Millisecond)
	m.Close()

	beats := sender.snapshot()
	online, offline := countOnline(beats)
	if offline != 0 {
		t.Fatalf("periodic heartbeats are always online, got %d offline", offline)
	}
	if online < 2 {
		t.Fatalf("expected startup plus periodic heartbeats, got %d", online)
	}
}

func TestHeartbeatCarriesFreshMusic(t *testing.T) {
	sender := &recordingSender{}
	tracker, err := NewNowPlayingTracker(NowPlayingConfig{DeviceID: "desk", Sender: &recordingSender{}})
	if err != nil {
		t.Fatalf("NewNowPlayingTracker: %v", err)
	}
	tracker.Observe(context.Background(), MusicState{
		Playing:   true,
		Title:     "晴天",
		Artist:    "周杰伦",
		UpdatedAt: time.Now(),
	})

	m, err := NewPresenceMachine(PresenceConfig{DeviceID: "desk", Sender: sender, NowPlaying: tracker})
	if err != nil {
		t.Fatalf("NewPresenceMachine: %v", err)
	}
	m.sendHeartbeat(context.Background(), true, 0, "test")

	beats := sender.snapshot()
	if len(beats) != 1 {
		t.Fatalf("expected one heartbeat, got %d", len(beats))
	}
	if !beats[0].MusicPlaying || beats[0].MusicTitle != "晴天" || beats[0].MusicArtist != "周杰伦" {
		t.Fatalf("heartbeat should carry the fresh music state, got %+v", beats[0])
	}
}

func TestScreenEventsAfterCloseAreNoops(t *testing.T) {
	sender := &recordingSender{}
	m := newTestMachine(t, sender, 20*time.Millisecond)
	ctx := context.Background()

	m.Close()
	m.ScreenOn(ctx)
	m.ScreenOff(ctx)
	time.Sleep(60 * time.Millisecond)

	if got := len(sender.snapshot()); got != 0 {
		t.Fatalf("closed machine must not emit heartbeats, got %d", got)
	}
}

func TestHeartbeatFailureIsSwallowed(t *testing.T) {
	sender := &recordingSender{err: context.DeadlineExceeded}
	m := newTestMachine(t, sender, time.Minute)
	// Must not panic or propagate.
	m.ScreenOn(context.Background())
}
