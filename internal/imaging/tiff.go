package imaging

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"runtime"

	"golang.org/x/image/tiff"
	"golang.org/x/sync/errgroup"

	"github.com/ironsheep/dot-tracker-mcp/internal/refine"
)

// errNotTIFF is returned for files without a classic TIFF header. BigTIFF is
// not supported.
var errNotTIFF = errors.New("not a TIFF file")

// tiffPages returns the byte order of data and the offset of every image
// file directory in it, in file order.
func tiffPages(data []byte) (binary.ByteOrder, []uint32, error) {
	if len(data) < 8 {
		return nil, nil, errNotTIFF
	}
	var order binary.ByteOrder
	switch string(data[:4]) {
	case "II\x2a\x00":
		order = binary.LittleEndian
	case "MM\x00\x2a":
		order = binary.BigEndian
	default:
		return nil, nil, errNotTIFF
	}

	var pages []uint32
	seen := make(map[uint32]bool)
	for off := order.Uint32(data[4:8]); off != 0; {
		if seen[off] {
			return nil, nil, fmt.Errorf("directory chain loops at offset %d", off)
		}
		seen[off] = true
		if uint64(off)+2 > uint64(len(data)) {
			return nil, nil, fmt.Errorf("directory %d at offset %d is truncated", len(pages), off)
		}
		entries := uint64(order.Uint16(data[off:]))
		next := uint64(off) + 2 + entries*12
		if next+4 > uint64(len(data)) {
			return nil, nil, fmt.Errorf("directory %d at offset %d is truncated", len(pages), off)
		}
		pages = append(pages, off)
		off = order.Uint32(data[next:])
	}
	if len(pages) == 0 {
		return nil, nil, ErrNoFrames
	}
	return order, pages, nil
}

// pageReader serves data with the first-directory offset of the header
// replaced, which makes the single-image decoder read another page.
type pageReader struct {
	data   []byte
	header [8]byte
}

func (p *pageReader) ReadAt(b []byte, off int64) (int, error) {
	if off < 0 {
		return 0, errors.New("negative offset")
	}
	if off >= int64(len(p.data)) {
		return 0, io.EOF
	}
	n := copy(b, p.data[off:])
	if off < int64(len(p.header)) {
		copy(b, p.header[off:])
	}
	if n < len(b) {
		return n, io.EOF
	}
	return n, nil
}

// decodeTIFFPages decodes every page of a TIFF file.
func decodeTIFFPages(data []byte) ([]image.Image, error) {
	order, pages, err := tiffPages(data)
	if err != nil {
		return nil, err
	}

	images := make([]image.Image, len(pages))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, off := range pages {
		i, off := i, off
		g.Go(func() error {
			pr := &pageReader{data: data}
			copy(pr.header[:], data[:8])
			order.PutUint32(pr.header[4:], off)

			img, err := tiff.Decode(io.NewSectionReader(pr, 0, int64(len(data))))
			if err != nil {
				return fmt.Errorf("page %d: %w", i, err)
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// loadTIFFStack turns every page of a TIFF file into one frame.
func loadTIFFStack(path string) (*Stack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	images, err := decodeTIFFPages(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	frames := make([]*refine.Frame, len(images))
	depths := make([]int, len(images))
	for i, img := range images {
		f, depth, err := FrameFromImage(i, img)
		if err != nil {
			return nil, fmt.Errorf("%s page %d: %w", path, i, err)
		}
		frames[i], depths[i] = f, depth
	}
	return newStack(path, "tiff", frames, depths)
}

// openSinglePageTIFF decodes a TIFF that is one frame of a file list. A
// multi-page file there is ambiguous and rejected.
func openSinglePageTIFF(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	_, pages, err := tiffPages(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if len(pages) > 1 {
		return nil, fmt.Errorf("%s has %d pages; load a multi-page TIFF on its own", path, len(pages))
	}
	img, err := tiff.Decode(io.NewSectionReader(&pageReader{data: data, header: [8]byte(data[:8])}, 0, int64(len(data))))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}
