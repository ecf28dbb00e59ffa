package pipeline

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/dot-tracker-mcp/internal/config"
	"github.com/ironsheep/dot-tracker-mcp/internal/detection"
	"github.com/ironsheep/dot-tracker-mcp/internal/graph"
	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

const (
	testWidth  = 14
	testHeight = 10
)

// testConfig keeps the default thresholds with a small search radius.
func testConfig() config.Config {
	cfg := config.Default()
	cfg.SearchRadius = 3
	cfg.DistanceCutoff = 2
	return cfg
}

// plusFrame draws a bright plus (10 in the centre, 5 on the arms) at each
// centre on an otherwise black frame. Every plus refines to a single peak.
func plusFrame(t *testing.T, index int, centres ...[2]int) *refine.Frame {
	t.Helper()
	pix := make([]int, testWidth*testHeight)
	for _, c := range centres {
		x, y := c[0], c[1]
		pix[y*testWidth+x] = 10
		pix[(y-1)*testWidth+x] = 5
		pix[(y+1)*testWidth+x] = 5
		pix[y*testWidth+x-1] = 5
		pix[y*testWidth+x+1] = 5
	}
	f, err := refine.NewFrame(index, testWidth, testHeight, pix)
	require.NoError(t, err)
	return f
}

// movingDot is a three-frame stack of one dot drifting right.
func movingDot(t *testing.T) []*refine.Frame {
	t.Helper()
	return []*refine.Frame{
		plusFrame(t, 0, [2]int{3, 4}),
		plusFrame(t, 1, [2]int{4, 4}),
		plusFrame(t, 2, [2]int{5, 4}),
	}
}

func noiseStack(t *testing.T, n int, seed int64) []*refine.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	frames := make([]*refine.Frame, n)
	for i := range frames {
		pix := make([]int, 32*24)
		for j := range pix {
			pix[j] = rng.Intn(256)
		}
		f, err := refine.NewFrame(i, 32, 24, pix)
		require.NoError(t, err)
		frames[i] = f
	}
	return frames
}

func TestBuildStack_MovingDot(t *testing.T) {
	res, err := BuildStack(context.Background(), movingDot(t), testConfig())
	require.NoError(t, err)

	assert.Equal(t, 3, res.FrameCount())
	assert.Equal(t, testWidth, res.Width)
	assert.Equal(t, refine.IntensityRange{Min: 0, Max: 10}, res.Range)

	want := [][]detection.Peak{
		{{X: 3, Y: 4, Confidence: 0.375}},
		{{X: 4, Y: 4, Confidence: 0.375}},
		{{X: 5, Y: 4, Confidence: 0.375}},
	}
	approx := cmp.Comparer(func(a, b float64) bool { return a-b < 1e-9 && b-a < 1e-9 })
	if diff := cmp.Diff(want, res.Peaks, approx); diff != "" {
		t.Errorf("peaks mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []graph.Edge{
		{Kind: graph.EdgeChild, From: 0, To: 1},
		{Kind: graph.EdgeChild, From: 1, To: 2},
	}, res.Graph.EdgesInRange(0, 2))
}

func TestBuildStack_SiblingsWithinFrame(t *testing.T) {
	frames := []*refine.Frame{plusFrame(t, 0, [2]int{3, 4}, [2]int{8, 4})}
	cfg := testConfig()
	cfg.DistanceCutoff = 6

	res, err := BuildStack(context.Background(), frames, cfg)
	require.NoError(t, err)
	require.Equal(t, 2, res.Graph.Len())

	children, siblings := res.Graph.EdgeCounts()
	assert.Equal(t, 0, children)
	assert.Equal(t, 1, siblings)
}

func TestBuildStack_IndependentOfWorkers(t *testing.T) {
	frames := noiseStack(t, 6, 11)
	cfg := config.Default()
	cfg.SearchRadius = 2
	cfg.DistanceCutoff = 5

	cfg.Workers = 1
	serial, err := BuildStack(context.Background(), frames, cfg)
	require.NoError(t, err)

	cfg.Workers = 4
	parallel, err := BuildStack(context.Background(), frames, cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Grids, parallel.Grids); diff != "" {
		t.Errorf("grids differ (-serial +parallel):\n%s", diff)
	}
	if diff := cmp.Diff(serial.Graph.Export(), parallel.Graph.Export()); diff != "" {
		t.Errorf("graphs differ (-serial +parallel):\n%s", diff)
	}
}

func TestBuildStack_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := BuildStack(ctx, nil, testConfig())
	assert.ErrorIs(t, err, refine.ErrInvalidStackShape)

	odd, err := refine.NewFrame(1, 5, 5, make([]int, 25))
	require.NoError(t, err)
	_, err = BuildStack(ctx, []*refine.Frame{plusFrame(t, 0, [2]int{3, 4}), odd}, testConfig())
	assert.ErrorIs(t, err, refine.ErrInvalidStackShape)

	bad := testConfig()
	bad.DistanceCutoff = -1
	_, err = BuildStack(ctx, movingDot(t), bad)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestRefineStack_Cancelled(t *testing.T) {
	frames := movingDot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	grids, err := RefineStack(ctx, frames, refine.IntensityRange{Min: 0, Max: 10}, testConfig())
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, grids, len(frames))
	for _, g := range grids {
		assert.Nil(t, g)
	}

	_, err = BuildStack(ctx, frames, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExtractStack_MissingGrid(t *testing.T) {
	_, err := ExtractStack(context.Background(), []*refine.ConfidenceGrid{nil}, testConfig())
	assert.Error(t, err)
}

func TestRebuild_Scopes(t *testing.T) {
	ctx := context.Background()
	frames := movingDot(t)
	base, err := BuildStack(ctx, frames, testConfig())
	require.NoError(t, err)

	t.Run("links", func(t *testing.T) {
		cfg := base.Config
		cfg.DistanceCutoff = 0.5
		next, err := Rebuild(ctx, base, nil, cfg, config.Diff(base.Config, cfg))
		require.NoError(t, err)

		assert.Same(t, base.Grids[0], next.Grids[0], "grids are reused")
		assert.Equal(t, base.Graph.Len(), next.Graph.Len())
		assert.Empty(t, next.Graph.EdgesInRange(0, 2))
		assert.Len(t, base.Graph.EdgesInRange(0, 2), 2, "previous result untouched")
	})

	t.Run("peaks", func(t *testing.T) {
		cfg := base.Config
		cfg.PeakCutoff = 0.9
		next, err := Rebuild(ctx, base, nil, cfg, config.Diff(base.Config, cfg))
		require.NoError(t, err)
		assert.Same(t, base.Grids[1], next.Grids[1])
		assert.Equal(t, 0, next.Graph.Len())
		assert.Equal(t, 3, base.Graph.Len())
	})

	t.Run("refine needs frames", func(t *testing.T) {
		cfg := base.Config
		cfg.SearchRadius = 1
		_, err := Rebuild(ctx, base, nil, cfg, config.ScopeRefine)
		assert.ErrorIs(t, err, ErrFramesRequired)
	})

	t.Run("refine", func(t *testing.T) {
		cfg := base.Config
		cfg.SearchRadius = 2
		next, err := Rebuild(ctx, base, frames, cfg, config.ScopeRefine)
		require.NoError(t, err)
		assert.NotSame(t, base.Grids[0], next.Grids[0])
		assert.Equal(t, 2, next.Config.SearchRadius)
	})

	t.Run("none", func(t *testing.T) {
		cfg := base.Config
		cfg.Workers = 2
		next, err := Rebuild(ctx, base, nil, cfg, config.ScopeNone)
		require.NoError(t, err)
		assert.Same(t, base.Graph, next.Graph)
		assert.Equal(t, 2, next.Config.Workers)
	})
}

func TestSummarize(t *testing.T) {
	res, err := BuildStack(context.Background(), movingDot(t), testConfig())
	require.NoError(t, err)

	s := Summarize(res)
	assert.Equal(t, 3, s.Frames)
	assert.Equal(t, 3, s.Features)
	assert.Equal(t, 2, s.ChildEdges)
	assert.Equal(t, 0, s.SiblingPairs)
	require.Len(t, s.PerFrame, 3)
	for _, fs := range s.PerFrame {
		assert.Equal(t, 1, fs.Features)
		assert.InDelta(t, 0.375, fs.MaxConfidence, 1e-9)
		assert.Greater(t, fs.MeanConfidence, 0.0)
		assert.Less(t, fs.MeanConfidence, fs.MaxConfidence)
	}
}
