// Package imaging handles the image side of the tracker: decoding frame
// stacks and drawing confidence grids with their feature paths.
//
// # Loading
//
// LoadStack accepts an animated GIF, a multi-page TIFF, a directory of
// images, or an explicit list of image files (PNG, JPEG, GIF, TIFF). Each
// image, GIF frame or TIFF page becomes one
// refine.Frame of integer intensities. 16-bit grayscale sources keep their
// full range; everything else is reduced to 8-bit luminance.
//
// # Coordinate System
//
// All pixel coordinates in this package are 0-based:
//   - X: horizontal position (0 = leftmost pixel)
//   - Y: vertical position (0 = topmost pixel)
//   - For regions, (x1,y1) is inclusive (top-left), (x2,y2) is exclusive (bottom-right)
//
// Rendered images are magnified by an integer scale. A frame pixel (x, y)
// covers the block starting at (x*scale, y*scale), and overlays are drawn
// through the centre of each block.
//
// # Overlays
//
// BuildOverlay resolves what to draw from the graph (walks through the
// current frame, one-step edges of all or some frames, lineage markers) and
// Overlay.Draw paints it. Keeping the two apart lets callers inspect an
// overlay without rendering it.
//
// # Thread Safety
//
// StackCache is safe for concurrent use. Loading and rendering functions are
// stateless and may run concurrently.
package imaging
