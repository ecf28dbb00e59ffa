package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"
	"strings"
	"testing"

	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

func testGrid(w, h int) *refine.ConfidenceGrid {
	g := &refine.ConfidenceGrid{Width: w, Height: h, Values: make([]float64, w*h)}
	for i := range g.Values {
		g.Values[i] = float64(i%4) / 3
	}
	return g
}

func TestRenderConfidence(t *testing.T) {
	g := testGrid(4, 2)
	img := RenderConfidence(g)

	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 2 {
		t.Fatalf("size = %v, want 4x2", img.Bounds())
	}
	if c := img.NRGBAAt(0, 0); c.R != 0 || c.A != 255 {
		t.Errorf("zero confidence = %v, want opaque black", c)
	}
	if c := img.NRGBAAt(3, 0); c.R != 255 || c.G != 255 || c.B != 255 {
		t.Errorf("full confidence = %v, want white", c)
	}
}

func TestRender(t *testing.T) {
	g := testGrid(8, 6)

	tests := []struct {
		name         string
		opts         RenderOptions
		wantW, wantH int
		wantErr      bool
	}{
		{"unscaled", RenderOptions{}, 8, 6, false},
		{"scaled", RenderOptions{Scale: 3}, 24, 18, false},
		{"cropped", RenderOptions{Scale: 2, Region: image.Rect(2, 1, 6, 4)}, 8, 6, false},
		{"region outside", RenderOptions{Region: image.Rect(4, 4, 10, 10)}, 0, 0, true},
		{"inverted region", RenderOptions{Region: image.Rectangle{Min: image.Pt(5, 5), Max: image.Pt(2, 2)}}, 0, 0, true},
		{"scale too large", RenderOptions{Scale: MaxScale + 1}, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img, err := Render(g, tt.opts)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", img.Bounds().Dx(), img.Bounds().Dy(), tt.wantW, tt.wantH)
			}
		})
	}
}

func TestRender_OutputLimit(t *testing.T) {
	// The size check runs before any pixel is touched, so the grids carry no
	// values.
	tests := []struct {
		name          string
		width, height int
		scale         int
		wantErr       bool
	}{
		{"at limit", 2048, 2048, 4, false},
		{"one column over", 2049, 2048, 4, true},
		{"large frame at maximum scale", 4096, 4096, MaxScale, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &refine.ConfidenceGrid{Width: tt.width, Height: tt.height}
			// An inverted region fails right after the size check.
			opts := RenderOptions{Scale: tt.scale, Region: image.Rectangle{Min: image.Pt(1, 1)}}
			_, err := Render(g, opts)
			if err == nil {
				t.Fatal("expected an error")
			}
			tooLarge := strings.Contains(err.Error(), "exceeds")
			if tooLarge != tt.wantErr {
				t.Errorf("size error = %v, want %v (err: %v)", tooLarge, tt.wantErr, err)
			}
		})
	}
}

func TestRender_NearestNeighbourBlocks(t *testing.T) {
	g := testGrid(4, 1)
	img, err := Render(g, RenderOptions{Scale: 4})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// Every pixel of the block for grid column 3 is white.
	for y := 0; y < 4; y++ {
		for x := 12; x < 16; x++ {
			if c := img.NRGBAAt(x, y); c.R != 255 {
				t.Fatalf("pixel (%d,%d) = %v, want white", x, y, c)
			}
		}
	}
}

func TestEncodePNG(t *testing.T) {
	img := RenderConfidence(testGrid(5, 3))
	res, err := EncodePNG(img)
	if err != nil {
		t.Fatalf("EncodePNG failed: %v", err)
	}
	if res.MimeType != "image/png" || res.Width != 5 || res.Height != 3 {
		t.Errorf("result header = %+v", res)
	}
	data, err := base64.StdEncoding.DecodeString(res.ImageBase64)
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	decoded, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid png: %v", err)
	}
	if decoded.Bounds().Dx() != 5 {
		t.Errorf("decoded width = %d, want 5", decoded.Bounds().Dx())
	}
}
