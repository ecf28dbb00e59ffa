package store

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/ironsheep/dot-tracker-mcp/internal/pipeline"
)

// ErrNotFound is returned when no snapshot exists for a key.
var ErrNotFound = errors.New("snapshot not found")

// Store saves and loads snapshots by key. The key is the frame source path.
type Store interface {
	// Save persists snap under key and returns where it was written.
	Save(ctx context.Context, key string, snap *pipeline.Snapshot) (string, error)

	// Load returns the snapshot saved under key, or ErrNotFound.
	Load(ctx context.Context, key string) (*pipeline.Snapshot, error)
}

// TrakSuffix is appended to a frame source to name its snapshot file.
const TrakSuffix = ".trak"

// TrakPath returns the snapshot file beside source. A directory source
// "frames/" maps to "frames.trak".
func TrakPath(source string) string {
	clean := filepath.Clean(source)
	if strings.HasSuffix(clean, TrakSuffix) {
		return clean
	}
	return clean + TrakSuffix
}
