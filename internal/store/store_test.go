package store

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/dot-tracker-mcp/internal/config"
	"github.com/ironsheep/dot-tracker-mcp/internal/pipeline"
	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// testSnapshot builds a small two-frame stack with two dots per frame.
func testSnapshot(t *testing.T) *pipeline.Snapshot {
	t.Helper()
	const w, h = 16, 10
	frames := make([]*refine.Frame, 2)
	for i := range frames {
		pix := make([]int, w*h)
		for _, c := range [][2]int{{3 + i, 4}, {9 + i, 5}} {
			x, y := c[0], c[1]
			pix[y*w+x] = 200
			pix[(y-1)*w+x] = 100
			pix[(y+1)*w+x] = 100
			pix[y*w+x-1] = 100
			pix[y*w+x+1] = 100
		}
		f, err := refine.NewFrame(i, w, h, pix)
		require.NoError(t, err)
		frames[i] = f
	}
	cfg := config.Default()
	cfg.SearchRadius = 3
	cfg.DistanceCutoff = 7

	s, err := pipeline.NewSession(context.Background(), frames, cfg,
		pipeline.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	snap := s.Snapshot()
	require.NotEmpty(t, snap.Graph.Features)
	require.NotEmpty(t, snap.Graph.Edges)
	return snap
}

func TestTrakPath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"movie.gif", "movie.gif.trak"},
		{"frames/", "frames.trak"},
		{"frames", "frames.trak"},
		{"movie.gif.trak", "movie.gif.trak"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TrakPath(tt.in), tt.in)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	snap := testSnapshot(t)
	source := filepath.Join(t.TempDir(), "movie.gif")

	fs := NewFileStore()
	path, err := fs.Save(ctx, source, snap)
	require.NoError(t, err)
	assert.Equal(t, source+TrakSuffix, path)

	loaded, err := fs.Load(ctx, source)
	require.NoError(t, err)
	if diff := cmp.Diff(snap, loaded); diff != "" {
		t.Errorf("snapshot differs after round trip (-want +got):\n%s", diff)
	}

	restored, err := pipeline.Restore(loaded, snap.Frames)
	require.NoError(t, err)
	assert.Equal(t, len(snap.Graph.Features), restored.Graph.Len())
}

func TestFileStore_Errors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	fs := NewFileStore()

	_, err := fs.Load(ctx, filepath.Join(dir, "missing.gif"))
	assert.ErrorIs(t, err, ErrNotFound)

	junk := filepath.Join(dir, "junk.gif")
	require.NoError(t, os.WriteFile(TrakPath(junk), []byte("not a snapshot"), 0o600))
	_, err = fs.Load(ctx, junk)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	snap := testSnapshot(t)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	defer db.Close()

	id, err := db.Save(ctx, "movie.gif", snap)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	loaded, err := db.Load(ctx, "movie.gif")
	require.NoError(t, err)
	if diff := cmp.Diff(snap, loaded); diff != "" {
		t.Errorf("snapshot differs after round trip (-want +got):\n%s", diff)
	}

	// Saving again replaces the previous snapshot.
	id2, err := db.Save(ctx, "movie.gif", snap)
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
	var count int
	require.NoError(t, db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM features`).Scan(&count))
	assert.Equal(t, len(snap.Graph.Features), count)

	require.NoError(t, db.Delete(ctx, "movie.gif"))
	_, err = db.Load(ctx, "movie.gif")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStore_StaleOnReload(t *testing.T) {
	ctx := context.Background()
	snap := testSnapshot(t)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "tracker.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Save(ctx, "movie.gif", snap)
	require.NoError(t, err)
	loaded, err := db.Load(ctx, "movie.gif")
	require.NoError(t, err)

	_, err = pipeline.Restore(loaded, snap.Frames+1)
	assert.ErrorIs(t, err, pipeline.ErrStalePersistedGraph)
}

func TestValuesCodec(t *testing.T) {
	in := []float64{0, 1, 0.375, 1e-12}
	out, err := decodeValues(encodeValues(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = decodeValues([]byte{1, 2, 3})
	assert.Error(t, err)
}
