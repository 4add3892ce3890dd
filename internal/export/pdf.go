// Package export renders a room's operation log to files a user can keep.
package export

import (
	"io"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"MyLocalBoard/internal/state"
	"MyLocalBoard/internal/stroke"
)

const (
	margin = 20.0
	// blank canvases export as a page of this size
	blankWidth  = 800.0
	blankHeight = 600.0
)

// RGB is a color with 0-255 channels.
type RGB struct{ R, G, B int }

var (
	black = RGB{0, 0, 0}
	white = RGB{255, 255, 255}
	named = map[string]RGB{
		"black":  black,
		"white":  white,
		"red":    {255, 0, 0},
		"green":  {0, 255, 0},
		"blue":   {0, 0, 255},
		"yellow": {255, 255, 0},
	}
)

// PDF replays ops in log order onto a single page sized to fit them, one
// canvas unit per point. Strokes follow the midpoint curve rendering,
// single points become discs, and erase strokes paint white.
func PDF(w io.Writer, ops []state.Operation) error {
	bounds := state.LogBounds(ops)
	if bounds.Empty() {
		bounds = state.Bounds{Width: blankWidth, Height: blankHeight}
	}
	p := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: bounds.Width + 2*margin, Ht: bounds.Height + 2*margin},
	})
	p.SetAutoPageBreak(false, 0)
	p.AddPage()
	p.SetLineCapStyle("round")
	p.SetLineJoinStyle("round")

	dx := margin - bounds.X
	dy := margin - bounds.Y
	for _, op := range ops {
		c := ParseColor(op.Color)
		if op.Kind == state.OpErase {
			c = white
		}
		p.SetDrawColor(c.R, c.G, c.B)
		p.SetFillColor(c.R, c.G, c.B)
		p.SetLineWidth(op.Width)

		shape := stroke.Smooth(op.Points, op.Width)
		if shape.Disc {
			p.Circle(shape.Center.X+dx, shape.Center.Y+dy, shape.Radius, "F")
			continue
		}
		if len(shape.Segments) == 0 {
			continue
		}
		first := shape.Segments[0].From
		p.MoveTo(first.X+dx, first.Y+dy)
		for _, s := range shape.Segments {
			if s.Quadratic {
				p.CurveTo(s.Control.X+dx, s.Control.Y+dy, s.To.X+dx, s.To.Y+dy)
			} else {
				p.LineTo(s.To.X+dx, s.To.Y+dy)
			}
		}
		p.DrawPath("D")
	}
	return p.Output(w)
}

// ParseColor understands #rgb, #rrggbb and a few names. Anything else is
// drawn black.
func ParseColor(s string) RGB {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := named[s]; ok {
		return c
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 || !strings.HasPrefix(s, "#") {
		return black
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return black
	}
	return RGB{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}
