package imaging

import (
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"golang.org/x/image/tiff"

	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// writePNG writes a uniform gray PNG of the given size and level.
func writePNG(t *testing.T, path string, width, height int, level uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{level, level, level, 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

func TestFrameFromImage(t *testing.T) {
	gray16 := image.NewGray16(image.Rect(0, 0, 2, 1))
	gray16.SetGray16(1, 0, color.Gray16{Y: 40000})

	gray := image.NewGray(image.Rect(0, 0, 2, 1))
	gray.SetGray(0, 0, color.Gray{Y: 7})

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 1))
	rgba.Set(0, 0, color.RGBA{255, 255, 255, 255})
	rgba.Set(1, 0, color.RGBA{128, 128, 128, 255})

	tests := []struct {
		name      string
		img       image.Image
		wantPix   []int
		wantDepth int
		tolerance int
	}{
		{"gray16 keeps full range", gray16, []int{0, 40000}, 16, 0},
		{"gray", gray, []int{7, 0}, 8, 0},
		{"rgba luminance", rgba, []int{255, 128}, 8, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, depth, err := FrameFromImage(3, tt.img)
			if err != nil {
				t.Fatalf("FrameFromImage failed: %v", err)
			}
			if depth != tt.wantDepth {
				t.Errorf("depth = %d, want %d", depth, tt.wantDepth)
			}
			if f.Index != 3 || f.Width != 2 || f.Height != 1 {
				t.Errorf("frame header = %d %dx%d, want 3 2x1", f.Index, f.Width, f.Height)
			}
			for i, want := range tt.wantPix {
				if d := f.Pix[i] - want; d < -tt.tolerance || d > tt.tolerance {
					t.Errorf("pix[%d] = %d, want %d", i, f.Pix[i], want)
				}
			}
		})
	}
}

func TestFrameFromImage_OffsetBounds(t *testing.T) {
	img := image.NewGray(image.Rect(5, 5, 8, 7))
	img.SetGray(7, 6, color.Gray{Y: 99})

	f, _, err := FrameFromImage(0, img)
	if err != nil {
		t.Fatalf("FrameFromImage failed: %v", err)
	}
	if f.Width != 3 || f.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", f.Width, f.Height)
	}
	if got := f.At(2, 1); got != 99 {
		t.Errorf("At(2,1) = %d, want 99", got)
	}
}

func TestLoadStack_Directory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "f02.png"), 4, 3, 30)
	writePNG(t, filepath.Join(dir, "f00.png"), 4, 3, 10)
	writePNG(t, filepath.Join(dir, "f01.png"), 4, 3, 20)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := LoadStack(dir)
	if err != nil {
		t.Fatalf("LoadStack failed: %v", err)
	}
	if s.Info.Frames != 3 || s.Info.Width != 4 || s.Info.Height != 3 {
		t.Errorf("info = %+v, want 3 frames of 4x3", s.Info)
	}
	if s.Info.Format != "png" || s.Info.BitDepth != 8 {
		t.Errorf("format/depth = %s/%d, want png/8", s.Info.Format, s.Info.BitDepth)
	}
	for i, want := range []int{10, 20, 30} {
		if got := s.Frames[i].At(0, 0); got != want {
			t.Errorf("frame %d intensity = %d, want %d", i, got, want)
		}
		if s.Frames[i].Index != i {
			t.Errorf("frame %d has index %d", i, s.Frames[i].Index)
		}
	}
}

func TestLoadStack_FileList(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "b.png")
	b := filepath.Join(dir, "a.png")
	writePNG(t, a, 2, 2, 50)
	writePNG(t, b, 2, 2, 60)

	s, err := LoadStack(a, b)
	if err != nil {
		t.Fatalf("LoadStack failed: %v", err)
	}
	// Explicit lists keep the caller's order.
	if s.Frames[0].At(0, 0) != 50 || s.Frames[1].At(0, 0) != 60 {
		t.Errorf("frames out of order")
	}
	if s.Source != a {
		t.Errorf("source = %s, want %s", s.Source, a)
	}
}

func TestLoadStack_Errors(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.png")
	big := filepath.Join(dir, "big.png")
	writePNG(t, small, 2, 2, 0)
	writePNG(t, big, 3, 2, 0)

	if _, err := LoadStack(small, big); !errors.Is(err, refine.ErrInvalidStackShape) {
		t.Errorf("mixed sizes: got %v, want ErrInvalidStackShape", err)
	}
	if _, err := LoadStack(); !errors.Is(err, ErrNoFrames) {
		t.Errorf("no paths: got %v, want ErrNoFrames", err)
	}
	empty := t.TempDir()
	if _, err := LoadStack(empty); !errors.Is(err, ErrNoFrames) {
		t.Errorf("empty dir: got %v, want ErrNoFrames", err)
	}
	if _, err := LoadStack(filepath.Join(dir, "missing.png")); err == nil {
		t.Error("missing file: expected error")
	}
	bad := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(bad, []byte("not a png"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadStack(bad, small); err == nil {
		t.Error("corrupt file: expected error")
	}
}

func TestLoadStack_AnimatedGIF(t *testing.T) {
	pal := color.Palette{color.Gray{0}, color.Gray{100}, color.Gray{200}}
	anim := &gif.GIF{Config: image.Config{Width: 4, Height: 4, ColorModel: pal}}

	full := image.NewPaletted(image.Rect(0, 0, 4, 4), pal)
	full.SetColorIndex(1, 1, 2)
	anim.Image = append(anim.Image, full)
	anim.Delay = append(anim.Delay, 10)
	anim.Disposal = append(anim.Disposal, gif.DisposalNone)

	// A partial frame only covering the bottom-right corner.
	part := image.NewPaletted(image.Rect(2, 2, 4, 4), pal)
	for i := range part.Pix {
		part.Pix[i] = 1
	}
	anim.Image = append(anim.Image, part)
	anim.Delay = append(anim.Delay, 10)
	anim.Disposal = append(anim.Disposal, gif.DisposalNone)

	path := filepath.Join(t.TempDir(), "movie.gif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := gif.EncodeAll(f, anim); err != nil {
		t.Fatalf("failed to encode gif: %v", err)
	}
	f.Close()

	s, err := LoadStack(path)
	if err != nil {
		t.Fatalf("LoadStack failed: %v", err)
	}
	if s.Info.Frames != 2 || s.Info.Format != "gif" {
		t.Fatalf("info = %+v, want 2 gif frames", s.Info)
	}
	second := s.Frames[1]
	if second.Width != 4 || second.Height != 4 {
		t.Fatalf("second frame is %dx%d, want full screen 4x4", second.Width, second.Height)
	}
	if got := second.At(1, 1); got < 199 || got > 201 {
		t.Errorf("composited pixel (1,1) = %d, want about 200", got)
	}
	if got := second.At(3, 3); got < 99 || got > 101 {
		t.Errorf("partial frame pixel (3,3) = %d, want about 100", got)
	}
}

func TestLoadStack_TIFF16(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 3, 2))
	img.SetGray16(2, 1, color.Gray16{Y: 4095})

	path := filepath.Join(t.TempDir(), "frame.tif")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := tiff.Encode(f, img, nil); err != nil {
		t.Fatalf("failed to encode tiff: %v", err)
	}
	f.Close()

	s, err := LoadStack(path)
	if err != nil {
		t.Fatalf("LoadStack failed: %v", err)
	}
	if s.Info.BitDepth != 16 || s.Info.Format != "tiff" {
		t.Errorf("info = %+v, want 16-bit tiff", s.Info)
	}
	if got := s.Frames[0].At(2, 1); got != 4095 {
		t.Errorf("intensity = %d, want 4095", got)
	}
}

func TestStackCache(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), 2, 2, 1)

	cache := NewStackCache()
	first, err := cache.Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := cache.Load(dir)
			if err != nil {
				t.Errorf("concurrent Load failed: %v", err)
				return
			}
			if s != first {
				t.Error("cache returned a different stack")
			}
		}()
	}
	wg.Wait()

	cache.Evict(dir)
	again, err := cache.Load(dir)
	if err != nil {
		t.Fatalf("Load after Evict failed: %v", err)
	}
	if again == first {
		t.Error("Evict did not drop the cached stack")
	}

	cache.Clear()
	if len(cache.stacks) != 0 {
		t.Error("Clear left entries behind")
	}
}
