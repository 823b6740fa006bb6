package meowstatus

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultVisitorIDPath 访客标识的默认存放位置。
func DefaultVisitorIDPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "meowstatus", "visitor-id")
	}
	return filepath.Join(dir, "meowstatus", "visitor-id")
}

// LoadOrCreateVisitorID returns the persisted visitor identity, creating it on
// first use. The token is never rotated. When the state file cannot be read or
// written, a fresh non-persisted identity serves the current session; this is
// never fatal.
func LoadOrCreateVisitorID(path string) string {
	if path == "" {
		path = DefaultVisitorIDPath()
	}
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}
	id := "v-" + uuid.NewString()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("visitor id dir create failed, using session-only id")
		return id
	}
	if err := os.WriteFile(path, []byte(id+"\n"), 0o644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("visitor id persist failed, using session-only id")
	}
	return id
}
