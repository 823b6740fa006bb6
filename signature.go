package meowstatus

import (
	"strings"
	"time"
)

// absentMark stands in for a missing field inside a signature so that an empty
// title and an empty artist cannot collide with swapped non-empty values.
const absentMark = "\x00absent"

// MusicState 当前播放状态。UpdatedAt 只用于新鲜度判断，不参与签名。
type MusicState struct {
	Playing   bool
	Title     string
	Artist    string
	Source    string
	UpdatedAt time.Time
}

// Fresh reports whether the state was updated within the stale window.
func (s MusicState) Fresh(now time.Time, staleWindow time.Duration) bool {
	if s.UpdatedAt.IsZero() {
		return false
	}
	return now.Sub(s.UpdatedAt) <= staleWindow
}

// Signature collapses the significant fields into one comparable token.
// Two states with the same playing/title/artist/source always yield the same
// token; any change to one of those fields changes it. Timestamps are ignored.
func (s MusicState) Signature() string {
	return musicSignature(s.Playing, s.Title, s.Artist, s.Source)
}

func musicSignature(playing bool, title, artist, source string) string {
	flag := "0"
	if playing {
		flag = "1"
	}
	return strings.Join([]string{
		flag,
		normalizeField(title),
		normalizeField(artist),
		normalizeField(source),
	}, "\x1f")
}

func normalizeField(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return absentMark
	}
	return value
}
