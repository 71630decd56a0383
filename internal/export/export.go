// Package export renders the visible part of a stroke log to PNG or PDF.
// Strokes are drawn in log order with midpoint quadratic smoothing; erasers
// paint the background color.
package export

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/fogleman/gg"
	"github.com/jung-kurt/gofpdf"

	"github.com/manpreetbhatti/inkboard/internal/board"
)

const (
	DefaultWidth  = 1280
	DefaultHeight = 720
	MaxDimension  = 8192
)

type rgb struct{ r, g, b int }

var background = rgb{255, 255, 255}

// Canvas size. Zero values grow from the defaults to fit every stroke.
type Options struct {
	Width  float64
	Height float64
}

// Size resolves the canvas size for the given strokes
func (o Options) Size(strokes []board.Stroke) (float64, float64) {
	w, h := o.Width, o.Height
	if w <= 0 || h <= 0 {
		fitW, fitH := float64(DefaultWidth), float64(DefaultHeight)
		for _, s := range strokes {
			for _, p := range s.Points {
				fitW = math.Max(fitW, p.X+s.Size)
				fitH = math.Max(fitH, p.Y+s.Size)
			}
		}
		if w <= 0 {
			w = fitW
		}
		if h <= 0 {
			h = fitH
		}
	}
	return math.Min(math.Ceil(w), MaxDimension), math.Min(math.Ceil(h), MaxDimension)
}

func visible(strokes []board.Stroke) []board.Stroke {
	out := make([]board.Stroke, 0, len(strokes))
	for _, s := range strokes {
		if !s.Hidden && len(s.Points) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func strokeColor(s board.Stroke) rgb {
	if s.Type == board.ToolEraser {
		return background
	}
	c, ok := parseHex(s.Color)
	if !ok {
		return rgb{}
	}
	return c
}

// parseHex accepts #rgb and #rrggbb
func parseHex(color string) (rgb, bool) {
	hex := strings.TrimPrefix(strings.TrimSpace(color), "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return rgb{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgb{}, false
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}, true
}

// path walks the smoothed outline of a stroke
type path interface {
	moveTo(x, y float64)
	quadTo(cx, cy, x, y float64)
	lineTo(x, y float64)
}

func trace(p path, points []board.Point) {
	p.moveTo(points[0].X, points[0].Y)
	for i := 1; i < len(points)-1; i++ {
		c, n := points[i], points[i+1]
		p.quadTo(c.X, c.Y, (c.X+n.X)/2, (c.Y+n.Y)/2)
	}
	last := points[len(points)-1]
	p.lineTo(last.X, last.Y)
}

type ggPath struct{ dc *gg.Context }

func (p ggPath) moveTo(x, y float64)         { p.dc.MoveTo(x, y) }
func (p ggPath) quadTo(cx, cy, x, y float64) { p.dc.QuadraticTo(cx, cy, x, y) }
func (p ggPath) lineTo(x, y float64)         { p.dc.LineTo(x, y) }

// PNG writes the visible strokes as a PNG image
func PNG(w io.Writer, strokes []board.Stroke, opts Options) error {
	strokes = visible(strokes)
	width, height := opts.Size(strokes)

	dc := gg.NewContext(int(width), int(height))
	dc.SetRGB255(background.r, background.g, background.b)
	dc.Clear()
	dc.SetLineCap(gg.LineCapRound)
	dc.SetLineJoin(gg.LineJoinRound)

	for _, s := range strokes {
		c := strokeColor(s)
		dc.SetRGB255(c.r, c.g, c.b)
		if len(s.Points) == 1 {
			dc.DrawCircle(s.Points[0].X, s.Points[0].Y, s.Size/2)
			dc.Fill()
			continue
		}
		dc.SetLineWidth(s.Size)
		dc.NewSubPath()
		trace(ggPath{dc}, s.Points)
		dc.Stroke()
	}

	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

type pdfPath struct{ pdf *gofpdf.Fpdf }

func (p pdfPath) moveTo(x, y float64)         { p.pdf.MoveTo(x, y) }
func (p pdfPath) quadTo(cx, cy, x, y float64) { p.pdf.CurveTo(cx, cy, x, y) }
func (p pdfPath) lineTo(x, y float64)         { p.pdf.LineTo(x, y) }

// PDF writes the visible strokes as a single page, one point per canvas pixel
func PDF(w io.Writer, strokes []board.Stroke, opts Options) error {
	strokes = visible(strokes)
	width, height := opts.Size(strokes)

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: width, Ht: height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()
	pdf.SetLineCapStyle("round")
	pdf.SetLineJoinStyle("round")

	for _, s := range strokes {
		c := strokeColor(s)
		if len(s.Points) == 1 {
			pdf.SetFillColor(c.r, c.g, c.b)
			pdf.Circle(s.Points[0].X, s.Points[0].Y, s.Size/2, "F")
			continue
		}
		pdf.SetDrawColor(c.r, c.g, c.b)
		pdf.SetLineWidth(s.Size)
		trace(pdfPath{pdf}, s.Points)
		pdf.DrawPath("D")
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("encode pdf: %w", err)
	}
	return nil
}
