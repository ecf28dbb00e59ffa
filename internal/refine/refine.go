package refine

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Params holds the refinement tunables. Changing any of them invalidates every
// confidence grid of the stack.
type Params struct {
	// SearchRadius is the Euclidean radius of the neighbourhood scanned for the
	// local minimum and maximum. Zero means the pixel itself only.
	SearchRadius int

	// RangeCutoff is the minimum local dynamic range, in stack-rescaled units,
	// below which a pixel is forced to zero.
	RangeCutoff float64

	// IntensityFloor is the locally stretched value below which a pixel is
	// treated as background. Values in [floor,1] are stretched back to [0,1].
	IntensityFloor float64
}

// ConfidenceGrid is the refined map of one frame. Values lie in [0,1].
type ConfidenceGrid struct {
	Index  int
	Width  int
	Height int
	Values []float64
}

// At returns the confidence at (x, y). The caller must stay in bounds.
func (g *ConfidenceGrid) At(x, y int) float64 {
	return g.Values[y*g.Width+x]
}

// InBounds reports whether (x, y) lies inside the grid.
func (g *ConfidenceGrid) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < g.Width && y < g.Height
}

// Mean returns the average confidence of the grid.
func (g *ConfidenceGrid) Mean() float64 {
	if len(g.Values) == 0 {
		return 0
	}
	return stat.Mean(g.Values, nil)
}

type offset struct{ dx, dy int }

// circleOffsets lists every integer offset within radius r of the origin.
func circleOffsets(r int) []offset {
	if r < 0 {
		r = 0
	}
	out := make([]offset, 0, (2*r+1)*(2*r+1))
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				out = append(out, offset{dx, dy})
			}
		}
	}
	return out
}

// neighbours8 are the immediate neighbours used by the disorder penalty.
var neighbours8 = [8]offset{
	{-1, -1}, {0, -1}, {1, -1},
	{-1, 0}, {1, 0},
	{-1, 1}, {0, 1}, {1, 1},
}

// Refine computes the confidence grid of f.
//
// The stack range r must come from StackRange over the stack that f belongs
// to. Refine never modifies f and always writes into a new grid, so a failed
// or cancelled build leaves previously computed grids untouched.
//
// # Algorithm
//
//  1. Local min/max over the circular neighbourhood of radius SearchRadius,
//     clipped to the frame.
//  2. Local range = rescale(localMax) - rescale(localMin) against r. Ranges
//     below RangeCutoff give 0.
//  3. Otherwise the raw value is stretched against the local min/max, clamped
//     to [IntensityFloor,1] and stretched again to [0,1].
//  4. A disorder score is computed from the 8 neighbours of the provisional
//     map and subtracted; the result is clamped to [0,1].
func Refine(f *Frame, r IntensityRange, p Params) *ConfidenceGrid {
	w, h := f.Width, f.Height
	provisional := make([]float64, w*h)
	circle := circleOffsets(p.SearchRadius)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			provisional[y*w+x] = provisionalAt(f, x, y, circle, r, p)
		}
	}

	out := &ConfidenceGrid{Index: f.Index, Width: w, Height: h, Values: make([]float64, w*h)}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := provisional[y*w+x] - disorder(provisional, w, h, x, y)
			out.Values[y*w+x] = clamp(v, 0, 1)
		}
	}
	return out
}

func provisionalAt(f *Frame, x, y int, circle []offset, r IntensityRange, p Params) float64 {
	localMin := math.Inf(1)
	localMax := math.Inf(-1)
	for _, o := range circle {
		nx, ny := x+o.dx, y+o.dy
		if nx < 0 || ny < 0 || nx >= f.Width || ny >= f.Height {
			continue
		}
		v := float64(f.At(nx, ny))
		localMin = math.Min(localMin, v)
		localMax = math.Max(localMax, v)
	}

	localRange := rescale(localMax, r.Min, r.Max) - rescale(localMin, r.Min, r.Max)
	if localRange < p.RangeCutoff {
		return 0
	}

	v := rescale(float64(f.At(x, y)), localMin, localMax)
	v = clamp(v, p.IntensityFloor, 1)
	return rescale(v, p.IntensityFloor, 1)
}

// disorder averages 1-ratio over the neighbours whose provisional value is
// non-zero, where ratio is the smaller of the two values over the larger.
// A non-zero pixel with no such neighbour is isolated and scores 1.
func disorder(prov []float64, w, h, x, y int) float64 {
	self := prov[y*w+x]
	var sum float64
	var n int
	for _, o := range neighbours8 {
		nx, ny := x+o.dx, y+o.dy
		if nx < 0 || ny < 0 || nx >= w || ny >= h {
			continue
		}
		other := prov[ny*w+nx]
		if other == 0 {
			continue
		}
		ratio := self / other
		if ratio > 1 {
			ratio = 1 / ratio
		}
		sum += 1 - ratio
		n++
	}
	if n == 0 {
		if self > 0 {
			return 1
		}
		return 0
	}
	return sum / float64(n)
}

// rescale maps val linearly so that lo becomes 0 and hi becomes 1.
// An empty interval maps everything to 0.
func rescale(val, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return (val - lo) / (hi - lo)
}

func clamp(val, lo, hi float64) float64 {
	if val < lo {
		return lo
	}
	if val > hi {
		return hi
	}
	return val
}
