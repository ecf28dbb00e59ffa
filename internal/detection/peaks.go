package detection

import (
	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// Peak is a detected feature position on one frame.
type Peak struct {
	// X is the column of the peak pixel.
	X int `json:"x"`

	// Y is the row of the peak pixel.
	Y int `json:"y"`

	// Confidence is the grid value at the peak, in (cutoff, 1].
	Confidence float64 `json:"confidence"`
}

// ExtractPeaks finds every local maximum of grid whose confidence exceeds
// cutoff.
//
// Parameters:
//   - grid: The refined confidence map of one frame.
//   - cutoff: Minimum confidence (exclusive). Typical: 0.3-0.4.
//
// Returns:
//   - []Peak: Peaks in column-major scan order. Never nil.
func ExtractPeaks(grid *refine.ConfidenceGrid, cutoff float64) []Peak {
	peaks := make([]Peak, 0)
	for x := 0; x < grid.Width; x++ {
		for y := 0; y < grid.Height; y++ {
			v := grid.At(x, y)
			if v > cutoff && isLocalMax(grid, x, y, v) {
				peaks = append(peaks, Peak{X: x, Y: y, Confidence: v})
			}
		}
	}
	return peaks
}

func isLocalMax(grid *refine.ConfidenceGrid, x, y int, v float64) bool {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if !grid.InBounds(nx, ny) {
				continue
			}
			if v < grid.At(nx, ny) {
				return false
			}
		}
	}
	return true
}
