package imaging

import (
	"fmt"
	"image"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/dot-tracker-mcp/internal/graph"
)

// PathMode selects which relations an overlay draws.
type PathMode string

const (
	// PathsShown draws every path through the current frame: the forward
	// and backward walks from each of its features.
	PathsShown PathMode = "shown"
	// PathsAll draws the one-step edges of every frame.
	PathsAll PathMode = "all"
	// PathsRange draws the one-step edges of frames Start..End.
	PathsRange PathMode = "range"
	// PathsNone draws no relations.
	PathsNone PathMode = "none"
)

// ParsePathMode validates a mode name. The empty string means PathsShown.
func ParsePathMode(s string) (PathMode, error) {
	switch m := PathMode(strings.ToLower(s)); m {
	case "":
		return PathsShown, nil
	case PathsShown, PathsAll, PathsRange, PathsNone:
		return m, nil
	}
	return "", fmt.Errorf("unknown path mode %q (want shown, all, range or none)", s)
}

// Palette holds the overlay colours.
type Palette struct {
	Forward  colorful.Color
	Backward colorful.Color
	Sibling  colorful.Color
	Dot      colorful.Color

	// LineageBefore, LineageCurrent and LineageAfter colour lineage
	// features on frames before, at and after the current frame.
	LineageBefore  colorful.Color
	LineageCurrent colorful.Color
	LineageAfter   colorful.Color
}

// DefaultPalette returns the viewer colours: forward paths green, backward
// paths blue, features red.
func DefaultPalette() Palette {
	return Palette{
		Forward:        mustColor("#00c000"),
		Backward:       mustColor("#3060ff"),
		Sibling:        mustColor("#e0c000"),
		Dot:            mustColor("#ff2020"),
		LineageBefore:  mustColor("#3060ff"),
		LineageCurrent: mustColor("#ff2020"),
		LineageAfter:   mustColor("#00c000"),
	}
}

// ParseColor parses "#RRGGBB", "RRGGBB" or the short "#RGB" form.
func ParseColor(s string) (colorful.Color, error) {
	if s == "" {
		return colorful.Color{}, fmt.Errorf("empty color string")
	}
	if s[0] != '#' {
		s = "#" + s
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return c, nil
}

func mustColor(s string) colorful.Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

func toNRGBA(c colorful.Color) color.NRGBA {
	r, g, b := c.Clamped().RGB255()
	return color.NRGBA{R: r, G: g, B: b, A: 255}
}

// Segment is one relation to draw, in frame pixel coordinates.
type Segment struct {
	From  graph.Point
	To    graph.Point
	Color color.NRGBA
}

// Marker is one feature to draw, in frame pixel coordinates.
type Marker struct {
	Pos   graph.Point
	Color color.NRGBA
	Label string
}

// Overlay is a resolved set of segments and markers.
type Overlay struct {
	Segments []Segment
	Markers  []Marker
}

// OverlayOptions selects what BuildOverlay collects.
type OverlayOptions struct {
	// Mode selects the relations to draw.
	Mode PathMode

	// Frame is the frame being shown.
	Frame int

	// Start and End bound PathsRange, inclusive. Frames outside the stack
	// are skipped.
	Start, End int

	// ShowDots marks the features of Frame.
	ShowDots bool

	// Labels writes the feature id next to each marker.
	Labels bool

	// Lineage is an expansion starting at LineageFrame, as returned by
	// Graph.ExpandLineage. Its features are marked by frame relative to
	// Frame.
	Lineage      [][]graph.FeatureID
	LineageFrame int

	Palette Palette
}

// BuildOverlay collects the segments and markers opts asks for.
//
// Parameters:
//   - g: The linked graph of the stack.
//   - opts: Mode, frame and colours.
//
// Returns:
//   - *Overlay: Ready to Draw onto a render of opts.Frame.
//   - error: graph.ErrOutOfRange for a frame outside the stack.
func BuildOverlay(g *graph.Graph, opts OverlayOptions) (*Overlay, error) {
	if opts.Frame < 0 || opts.Frame >= g.FrameCount() {
		return nil, fmt.Errorf("%w: frame %d (stack has %d)", graph.ErrOutOfRange, opts.Frame, g.FrameCount())
	}
	pal := opts.Palette
	ov := &Overlay{}

	switch opts.Mode {
	case PathsShown, "":
		vs := graph.NewVisitSet(g)
		for _, dir := range []graph.Direction{graph.Forward, graph.Backward} {
			results, err := g.WalkFrame(opts.Frame, dir, vs)
			if err != nil {
				return nil, err
			}
			child := pal.Forward
			if dir == graph.Backward {
				child = pal.Backward
			}
			for _, r := range results {
				ov.addEdges(g, r.Edges, child, pal.Sibling)
			}
		}
	case PathsAll:
		ov.addEdges(g, g.EdgesInRange(0, g.FrameCount()-1), pal.Forward, pal.Sibling)
	case PathsRange:
		ov.addEdges(g, g.EdgesInRange(opts.Start, opts.End), pal.Forward, pal.Sibling)
	case PathsNone:
	default:
		return nil, fmt.Errorf("unknown path mode %q", opts.Mode)
	}

	for i, gen := range opts.Lineage {
		frame := opts.LineageFrame + i
		c := pal.LineageCurrent
		switch {
		case frame < opts.Frame:
			c = fade(pal.LineageBefore, opts.Frame-frame)
		case frame > opts.Frame:
			c = fade(pal.LineageAfter, frame-opts.Frame)
		}
		for _, id := range gen {
			f, err := g.Feature(id)
			if err != nil {
				return nil, err
			}
			ov.Markers = append(ov.Markers, Marker{Pos: f.Pos, Color: toNRGBA(c)})
		}
	}

	if opts.ShowDots {
		features, err := g.Features(opts.Frame)
		if err != nil {
			return nil, err
		}
		for _, f := range features {
			m := Marker{Pos: f.Pos, Color: toNRGBA(pal.Dot)}
			if opts.Labels {
				m.Label = strconv.Itoa(int(f.ID))
			}
			ov.Markers = append(ov.Markers, m)
		}
	}
	return ov, nil
}

// fade darkens c for frames further from the current one.
func fade(c colorful.Color, distance int) colorful.Color {
	t := min(0.7, 0.15*float64(distance))
	return c.BlendLab(colorful.Color{}, t)
}

func (o *Overlay) addEdges(g *graph.Graph, edges []graph.Edge, child, sibling colorful.Color) {
	childC, siblingC := toNRGBA(child), toNRGBA(sibling)
	for _, e := range edges {
		from, err := g.Feature(e.From)
		if err != nil {
			continue
		}
		to, err := g.Feature(e.To)
		if err != nil {
			continue
		}
		c := childC
		if e.Kind == graph.EdgeSibling {
			c = siblingC
		}
		o.Segments = append(o.Segments, Segment{From: from.Pos, To: to.Pos, Color: c})
	}
}

// Draw paints the overlay onto img, which must be the frame magnified by
// scale with its origin at (0,0). Pixels outside img are skipped.
func (o *Overlay) Draw(img *image.NRGBA, scale int) {
	if scale < 1 {
		scale = 1
	}
	for _, s := range o.Segments {
		x0, y0 := toScreen(s.From, scale)
		x1, y1 := toScreen(s.To, scale)
		drawLine(img, x0, y0, x1, y1, s.Color)
	}

	half := max(1, scale/3)
	labelFG := color.NRGBA{255, 255, 255, 255}
	labelBG := color.NRGBA{0, 0, 0, 180}
	for _, m := range o.Markers {
		cx, cy := toScreen(m.Pos, scale)
		for dy := -half; dy <= half; dy++ {
			for dx := -half; dx <= half; dx++ {
				setIn(img, cx+dx, cy+dy, m.Color)
			}
		}
		if m.Label != "" {
			drawLabel(img, cx+half+2, cy-half, m.Label, labelFG, labelBG)
		}
	}
}

// toScreen maps a frame pixel to the centre of its magnified block.
func toScreen(p graph.Point, scale int) (int, int) {
	return int(p.X*float64(scale)) + scale/2, int(p.Y*float64(scale)) + scale/2
}

func setIn(img *image.NRGBA, x, y int, c color.NRGBA) {
	if (image.Point{X: x, Y: y}).In(img.Bounds()) {
		img.SetNRGBA(x, y, c)
	}
}

// drawLine draws a one pixel wide line with Bresenham's algorithm.
func drawLine(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		setIn(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawLabel draws a small numeric label with a 3x5 pixel font.
func drawLabel(img *image.NRGBA, x, y int, text string, fg, bg color.NRGBA) {
	glyphs := map[rune][]string{
		'0': {"111", "101", "101", "101", "111"},
		'1': {"010", "110", "010", "010", "111"},
		'2': {"111", "001", "111", "100", "111"},
		'3': {"111", "001", "111", "001", "111"},
		'4': {"101", "101", "111", "001", "001"},
		'5': {"111", "100", "111", "001", "111"},
		'6': {"111", "100", "111", "101", "111"},
		'7': {"111", "001", "001", "001", "001"},
		'8': {"111", "101", "111", "101", "111"},
		'9': {"111", "101", "111", "001", "111"},
		',': {"000", "000", "000", "010", "010"},
	}

	charWidth := 4
	labelWidth := len(text) * charWidth
	labelHeight := 7

	for dy := -1; dy < labelHeight; dy++ {
		for dx := -1; dx < labelWidth; dx++ {
			setIn(img, x+dx, y+dy, bg)
		}
	}

	cx := x
	for _, ch := range text {
		glyph, ok := glyphs[ch]
		if !ok {
			cx += charWidth
			continue
		}
		for row, line := range glyph {
			for col, pixel := range line {
				if pixel == '1' {
					setIn(img, cx+col, y+row, fg)
				}
			}
		}
		cx += charWidth
	}
}
