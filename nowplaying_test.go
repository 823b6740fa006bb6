package meowstatus

import (
	"context"
	"testing"
	"time"
)

func TestExtractTrack(t *testing.T) {
	cases := []struct {
		name       string
		n          Notification
		wantTitle  string
		wantArtist string
		wantOK     bool
	}{
		{
			name:       "title plus subtext artist",
			n:          Notification{Title: "晴天", SubText: "周杰伦"},
			wantTitle:  "晴天",
			wantArtist: "周杰伦",
			wantOK:     true,
		},
		{
			name:       "body text as artist",
			n:          Notification{Title: "晴天", Text: "周杰伦"},
			wantTitle:  "晴天",
			wantArtist: "周杰伦",
			wantOK:     true,
		},
		{
			name:       "dash split of title overrides",
			n:          Notification{Title: "晴天 - 周杰伦", Text: "正在播放"},
			wantTitle:  "晴天",
			wantArtist: "周杰伦",
			wantOK:     true,
		},
		{
			name:       "dash split of body fills gaps",
			n:          Notification{Title: "正在播放", Text: "晴天 - 周杰伦"},
			wantTitle:  "正在播放",
			wantArtist: "晴天 - 周杰伦",
			wantOK:     true,
		},
		{
			name:   "no title",
			n:      Notification{Text: "something"},
			wantOK: false,
		},
		{
			name:   "whitespace only",
			n:      Notification{Title: "   ", SubText: " "},
			wantOK: false,
		},
		{
			name:       "title without artist",
			n:          Notification{Title: "晴天"},
			wantTitle:  "晴天",
			wantArtist: "",
			wantOK:     true,
		},
	}
	for _, c := range cases {
		title, artist, ok := ExtractTrack(c.n)
		if ok != c.wantOK {
			t.Errorf("%s: ok=%v, want %v", c.name, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if title != c.wantTitle || artist != c.wantArtist {
			t.Errorf("%s: got (%q, %q), want (%q, %q)", c.name, title, artist, c.wantTitle, c.wantArtist)
		}
	}
}

func newTestTracker(t *testing.T, sender HeartbeatSender, pkg string) *NowPlayingTracker {
	t.Helper()
	tracker, err := NewNowPlayingTracker(NowPlayingConfig{
		DeviceID:      "phone",
		Sender:        sender,
		SourcePackage: pkg,
	})
	if err != nil {
		t.Fatalf("NewNowPlayingTracker: %v", err)
	}
	return tracker
}

func TestIngestFiltersForeignPackages(t *testing.T) {
	sender := &recordingSender{}
	tracker := newTestTracker(t, sender, "com.netease.cloudmusic")
	ctx := context.Background()
	now := time.Now()

	tracker.ingestAt(ctx, Notification{Package: "com.tencent.mm", Title: "消息"}, now)
	if len(sender.snapshot()) != 0 {
		t.Fatal("foreign package notification must be ignored")
	}

	tracker.ingestAt(ctx, Notification{Package: "com.netease.cloudmusic", Title: "晴天", SubText: "周杰伦"}, now)
	beats := sender.snapshot()
	if len(beats) != 1 {
		t.Fatalf("expected one push, got %d", len(beats))
	}
	if beats[0].MusicSource != "com.netease.cloudmusic" {
		t.Fatalf("source label should default to the package, got %q", beats[0].MusicSource)
	}
}

func TestObserveDedupesBySignature(t *testing.T) {
	sender := &recordingSender{}
	tracker := newTestTracker(t, sender, "")
	ctx := context.Background()
	base := time.Now()

	state := MusicState{Playing: true, Title: "晴天", Artist: "周杰伦", UpdatedAt: base}
	tracker.observeAt(ctx, state, base)
	// Same track, later timestamp: no new push.
	tracker.observeAt(ctx, state, base.Add(10*time.Second))
	if got := len(sender.snapshot()); got != 1 {
		t.Fatalf("identical signature must not push again, got %d", got)
	}

	next := state
	next.Title = "稻香"
	tracker.observeAt(ctx, next, base.Add(20*time.Second))
	if got := len(sender.snapshot()); got != 2 {
		t.Fatalf("changed signature must push, got %d", got)
	}
}

func TestObserveMinPushInterval(t *testing.T) {
	sender := &recordingSender{}
	tracker := newTestTracker(t, sender, "")
	ctx := context.Background()
	base := time.Now()

	tracker.observeAt(ctx, MusicState{Playing: true, Title: "a"}, base)
	// Change within the 6s window is dropped, not queued.
	tracker.observeAt(ctx, MusicState{Playing: true, Title: "b"}, base.Add(2*time.Second))
	if got := len(sender.snapshot()); got != 1 {
		t.Fatalf("change within min push interval must be dropped, got %d pushes", got)
	}

	// The stored state advanced to b, so re-observing b later is not a change.
	tracker.observeAt(ctx, MusicState{Playing: true, Title: "b"}, base.Add(10*time.Second))
	if got := len(sender.snapshot()); got != 1 {
		t.Fatalf("suppressed push must not be re-sent, got %d", got)
	}

	tracker.observeAt(ctx, MusicState{Playing: true, Title: "c"}, base.Add(12*time.Second))
	if got := len(sender.snapshot()); got != 2 {
		t.Fatalf("change after the window must push, got %d", got)
	}
}

func TestStaleStateReadsAsNotPlaying(t *testing.T) {
	sender := &recordingSender{}
	tracker := newTestTracker(t, sender, "")
	base := time.Now()

	tracker.observeAt(context.Background(), MusicState{Playing: true, Title: "晴天", Source: "netease"}, base)

	fresh := tracker.Current(base.Add(time.Minute))
	if !fresh.Playing || fresh.Title != "晴天" {
		t.Fatalf("state within the window should read back verbatim, got %+v", fresh)
	}

	stale := tracker.Current(base.Add(4 * time.Minute))
	if stale.Playing || stale.Title != "" {
		t.Fatalf("stale state must read as not playing, got %+v", stale)
	}
}

func TestStaleStateMakesAnyObservationAChange(t *testing.T) {
	sender := &recordingSender{}
	tracker := newTestTracker(t, sender, "")
	ctx := context.Background()
	base := time.Now()

	state := MusicState{Playing: true, Title: "晴天", Artist: "周杰伦"}
	tracker.observeAt(ctx, state, base)
	// Same signature but the stored state went stale in between.
	tracker.observeAt(ctx, state, base.Add(10*time.Minute))
	if got := len(sender.snapshot()); got != 2 {
		t.Fatalf("observation after staleness must push even with an equal signature, got %d", got)
	}
}
