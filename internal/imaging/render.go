package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"github.com/disintegration/imaging"

	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// DefaultScale is the display magnification used by the original viewer.
const DefaultScale = 6

// MaxScale bounds the magnification of a render.
const MaxScale = 32

// MaxRenderPixels bounds the size of the scaled image, before cropping.
const MaxRenderPixels = 64 << 20

// RenderOptions controls how a confidence grid is turned into an image.
type RenderOptions struct {
	// Scale is the integer magnification. Values below 1 mean 1.
	Scale int

	// Region, when non-empty, crops the result to this rectangle given in
	// frame pixel coordinates. (x1,y1) is inclusive, (x2,y2) exclusive.
	Region image.Rectangle

	// Overlay is drawn on top of the scaled grid. May be nil.
	Overlay *Overlay
}

// ImageResult contains an encoded render.
type ImageResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// RenderConfidence draws grid as a grayscale image, 0 black and 1 white.
func RenderConfidence(grid *refine.ConfidenceGrid) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, grid.Width, grid.Height))
	for i, v := range grid.Values {
		c := uint8(clampUnit(v)*255 + 0.5)
		img.Pix[i*4] = c
		img.Pix[i*4+1] = c
		img.Pix[i*4+2] = c
		img.Pix[i*4+3] = 255
	}
	return img
}

// Render draws grid magnified by opts.Scale with the overlay on top and
// crops the result to opts.Region.
//
// Parameters:
//   - grid: The confidence grid of the frame to show.
//   - opts: Scale, crop region and overlay.
//
// Returns:
//   - *image.NRGBA: The rendered image.
//   - error: Non-nil if the region lies outside the grid or is empty.
func Render(grid *refine.ConfidenceGrid, opts RenderOptions) (*image.NRGBA, error) {
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}
	if scale > MaxScale {
		return nil, fmt.Errorf("scale %d exceeds maximum %d", scale, MaxScale)
	}
	if int64(grid.Width)*int64(scale)*int64(grid.Height)*int64(scale) > MaxRenderPixels {
		return nil, fmt.Errorf("render of %dx%d at scale %d exceeds %d pixels",
			grid.Width, grid.Height, scale, MaxRenderPixels)
	}

	bounds := image.Rect(0, 0, grid.Width, grid.Height)
	region := opts.Region
	if !region.Empty() {
		if !region.In(bounds) {
			return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (%d,%d)-(%d,%d)",
				region.Min.X, region.Min.Y, region.Max.X, region.Max.Y,
				bounds.Min.X, bounds.Min.Y, bounds.Max.X, bounds.Max.Y)
		}
	} else if region != (image.Rectangle{}) {
		return nil, fmt.Errorf("invalid crop region: x1 must be < x2, y1 must be < y2")
	}

	img := RenderConfidence(grid)
	if scale > 1 {
		img = imaging.Resize(img, grid.Width*scale, grid.Height*scale, imaging.NearestNeighbor)
	}
	if opts.Overlay != nil {
		opts.Overlay.Draw(img, scale)
	}
	if !region.Empty() {
		img = imaging.Crop(img, image.Rect(
			region.Min.X*scale, region.Min.Y*scale,
			region.Max.X*scale, region.Max.Y*scale,
		))
	}
	return img, nil
}

// EncodePNG encodes img as a base64 PNG.
func EncodePNG(img image.Image) (*ImageResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &ImageResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0 || v != v:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
