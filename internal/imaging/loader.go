package imaging

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"image/gif"
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// ErrNoFrames is returned when a source yields no decodable frames.
var ErrNoFrames = errors.New("no frames found")

// frameExtensions lists the file types accepted when a directory is loaded.
var frameExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".tif":  true,
	".tiff": true,
}

// Stack is a decoded frame sequence ready for the pipeline.
type Stack struct {
	// Source is the path the stack was loaded from. For a list of files it
	// is the first file.
	Source string `json:"source"`

	// Frames are in time order with Index equal to position.
	Frames []*refine.Frame `json:"-"`

	// Info describes the stack without its pixels.
	Info StackInfo `json:"info"`
}

// StackInfo contains metadata about a loaded stack.
type StackInfo struct {
	// Frames is the number of frames in the stack.
	Frames int `json:"frames"`

	// Width is the frame width in pixels.
	Width int `json:"width"`

	// Height is the frame height in pixels.
	Height int `json:"height"`

	// Format is "gif" for an animated GIF, otherwise the format of the
	// first file: "png", "jpeg", "gif", "tiff" or "unknown".
	Format string `json:"format"`

	// BitDepth is 16 when intensities were read from 16-bit grayscale
	// sources, otherwise 8.
	BitDepth int `json:"bit_depth"`
}

// StackCache provides thread-safe caching of decoded stacks keyed by their
// source, so reloading a stack with new thresholds skips decoding.
//
// Cached stacks remain in memory until explicitly removed via Evict() or
// Clear().
type StackCache struct {
	mu     sync.RWMutex
	stacks map[string]*Stack
}

// NewStackCache creates an empty stack cache.
func NewStackCache() *StackCache {
	return &StackCache{
		stacks: make(map[string]*Stack),
	}
}

// Load retrieves a stack from the cache or decodes it with LoadStack.
//
// Parameters:
//   - paths: Same as LoadStack. The joined list is the cache key.
//
// Returns:
//   - *Stack: The decoded stack. Callers must not modify its frames.
//   - error: Non-nil if the stack cannot be loaded.
func (c *StackCache) Load(paths ...string) (*Stack, error) {
	key := strings.Join(paths, "\x00")

	c.mu.RLock()
	if s, ok := c.stacks[key]; ok {
		c.mu.RUnlock()
		return s, nil
	}
	c.mu.RUnlock()

	s, err := LoadStack(paths...)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stacks[key] = s
	c.mu.Unlock()

	return s, nil
}

// Evict removes a stack from the cache.
func (c *StackCache) Evict(paths ...string) {
	c.mu.Lock()
	delete(c.stacks, strings.Join(paths, "\x00"))
	c.mu.Unlock()
}

// Clear removes all stacks from the cache.
func (c *StackCache) Clear() {
	c.mu.Lock()
	c.stacks = make(map[string]*Stack)
	c.mu.Unlock()
}

// LoadStack decodes a frame stack.
//
// Parameters:
//   - paths: Either a single animated GIF or multi-page TIFF (every frame
//     or page is used), a single directory (every PNG/JPEG/GIF/TIFF file in
//     it, sorted by name, one frame per file), or a list of image files in
//     time order. A multi-page TIFF inside a directory or list is an error.
//
// Returns:
//   - *Stack: The frames, validated to share one size.
//   - error: ErrNoFrames, refine.ErrInvalidStackShape, or an I/O or decode
//     error naming the offending file.
//
// # Intensity
//
// 16-bit grayscale sources keep their full range. Everything else is
// converted with a luminance grayscale and uses 8-bit intensities.
func LoadStack(paths ...string) (*Stack, error) {
	if len(paths) == 0 {
		return nil, ErrNoFrames
	}

	files := paths
	if len(paths) == 1 {
		st, err := os.Stat(paths[0])
		if err != nil {
			return nil, fmt.Errorf("failed to open stack: %w", err)
		}
		if st.IsDir() {
			files, err = listFrameFiles(paths[0])
			if err != nil {
				return nil, err
			}
		} else {
			switch formatOf(paths[0]) {
			case "gif":
				return loadAnimatedGIF(paths[0])
			case "tiff":
				return loadTIFFStack(paths[0])
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, paths[0])
	}

	frames := make([]*refine.Frame, len(files))
	depths := make([]int, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			var img image.Image
			var err error
			if formatOf(path) == "tiff" {
				img, err = openSinglePageTIFF(path)
			} else if img, err = imgio.Open(path); err != nil {
				err = fmt.Errorf("failed to decode %s: %w", path, err)
			}
			if err != nil {
				return err
			}
			f, depth, err := FrameFromImage(i, img)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			frames[i], depths[i] = f, depth
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return newStack(paths[0], formatOf(files[0]), frames, depths)
}

func newStack(source, format string, frames []*refine.Frame, depths []int) (*Stack, error) {
	if err := refine.ValidateStack(frames); err != nil {
		return nil, err
	}
	depth := 16
	for _, d := range depths {
		depth = min(depth, d)
	}
	return &Stack{
		Source: source,
		Frames: frames,
		Info: StackInfo{
			Frames:   len(frames),
			Width:    frames[0].Width,
			Height:   frames[0].Height,
			Format:   format,
			BitDepth: depth,
		},
	}, nil
}

func listFrameFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if frameExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func formatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".tif", ".tiff":
		return "tiff"
	default:
		return "unknown"
	}
}

// loadAnimatedGIF composites every frame of a GIF onto the logical screen,
// honouring the frame disposal methods, and converts each to a Frame.
func loadAnimatedGIF(path string) (*Stack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	anim, err := gif.DecodeAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(anim.Image) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFrames, path)
	}

	screen := image.Rect(0, 0, anim.Config.Width, anim.Config.Height)
	if screen.Empty() {
		screen = anim.Image[0].Bounds()
	}
	canvas := image.NewRGBA(screen)
	frames := make([]*refine.Frame, len(anim.Image))
	depths := make([]int, len(anim.Image))

	for i, p := range anim.Image {
		var previous *image.RGBA
		disposal := byte(0)
		if i < len(anim.Disposal) {
			disposal = anim.Disposal[i]
		}
		if disposal == gif.DisposalPrevious {
			previous = image.NewRGBA(screen)
			draw.Draw(previous, screen, canvas, screen.Min, draw.Src)
		}

		draw.Draw(canvas, p.Bounds(), p, p.Bounds().Min, draw.Over)
		frame, depth, err := FrameFromImage(i, canvas)
		if err != nil {
			return nil, fmt.Errorf("%s frame %d: %w", path, i, err)
		}
		frames[i], depths[i] = frame, depth

		switch disposal {
		case gif.DisposalBackground:
			draw.Draw(canvas, p.Bounds(), image.Transparent, image.Point{}, draw.Src)
		case gif.DisposalPrevious:
			canvas = previous
		}
	}

	return newStack(path, "gif", frames, depths)
}

// FrameFromImage converts img into a Frame.
//
// Returns the frame and the bit depth of its intensities (8 or 16).
func FrameFromImage(index int, img image.Image) (*refine.Frame, int, error) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	pix := make([]int, w*h)

	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				pix[y*w+x] = int(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		f, err := refine.NewFrame(index, w, h, pix)
		return f, 16, err
	case *image.Gray:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				pix[y*w+x] = int(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			}
		}
		f, err := refine.NewFrame(index, w, h, pix)
		return f, 8, err
	}

	// Grayscale returns an NRGBA image with equal R, G and B channels.
	gray := imaging.Grayscale(img)
	for i := range pix {
		pix[i] = int(gray.Pix[i*4])
	}
	f, err := refine.NewFrame(index, w, h, pix)
	return f, 8, err
}
