package overlay

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/dj-oyu/moodcam/pkg/types"
)

// DefaultFontSize is the label font size in points at 72 DPI.
const DefaultFontSize = 18

// Renderer draws annotations in place on frames. Not safe for concurrent
// use on the same frame; a single Renderer may serve one producer.
type Renderer struct {
	face  font.Face // labels and FPS
	small font.Face // score strip
}

// NewRenderer loads the bundled Go Bold face at fontSize. A fontSize <= 0
// selects the fixed 7x13 bitmap face.
func NewRenderer(fontSize float64) (*Renderer, error) {
	if fontSize <= 0 {
		return &Renderer{face: basicfont.Face7x13, small: basicfont.Face7x13}, nil
	}

	f, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create face: %w", err)
	}
	small, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    max(fontSize*0.6, 9),
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("create small face: %w", err)
	}
	return &Renderer{face: face, small: small}, nil
}

// FormatLabel renders "<label>: <percent with one decimal>%"
func FormatLabel(label types.Label, confidence float64) string {
	return fmt.Sprintf("%s: %.1f%%", label, confidence*100)
}

// MeasureText returns the text extent (width, ascent) and the descent
func (r *Renderer) MeasureText(text string) (image.Point, int) {
	return measure(r.face, text)
}

func measure(face font.Face, text string) (image.Point, int) {
	m := face.Metrics()
	width := font.MeasureString(face, text).Ceil()
	return image.Pt(width, m.Ascent.Ceil()), m.Descent.Ceil()
}

// Draw annotates one region: a box, the label text and a confidence bar.
// Regions partially outside the frame are clipped.
func (r *Renderer) Draw(img *image.NRGBA, region types.Region, label types.Label, confidence float64, col color.Color) Placement {
	strokeRect(img, region.Rect(), BoxThickness, col)

	text := FormatLabel(label, confidence)
	size, baseline := r.MeasureText(text)
	frame := img.Bounds().Size()
	p := Layout(frame, region, size, baseline)

	drawString(img, r.face, text, p.TextX, p.TextY, col)

	strokeRect(img, p.Bar, 1, Gray)
	fill := FillWidth(p.BarWidth(), confidence)
	if fill > 0 {
		fillRect(img, image.Rect(p.Bar.Min.X, p.Bar.Min.Y, p.Bar.Min.X+fill, p.Bar.Max.Y), col)
	}
	return p
}

// DrawFPS writes the throughput HUD in the top-left corner
func (r *Renderer) DrawFPS(img *image.NRGBA, fps float64) {
	drawString(img, r.face, fmt.Sprintf("FPS: %.1f", fps), 10, 30, Green)
}

// ScoreLine formats every label's score as whole percentages in canonical order
func ScoreLine(p types.Prediction) string {
	parts := make([]string, 0, types.NumLabels)
	for _, l := range types.Labels() {
		if s, ok := p[l]; ok {
			parts = append(parts, fmt.Sprintf("%s: %.0f%%", l, s*100))
		}
	}
	return strings.Join(parts, " | ")
}

// DrawScores writes the per-label score strip along the bottom edge
func (r *Renderer) DrawScores(img *image.NRGBA, p types.Prediction) {
	line := ScoreLine(p)
	if line == "" {
		return
	}
	drawString(img, r.small, line, 10, img.Bounds().Dy()-20, White)
}

func drawString(img *image.NRGBA, face font.Face, text string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func fillRect(img *image.NRGBA, rect image.Rectangle, col color.Color) {
	draw.Draw(img, rect, image.NewUniform(col), image.Point{}, draw.Src)
}

// strokeRect draws a rectangle outline of thickness t inside rect.
func strokeRect(img *image.NRGBA, rect image.Rectangle, t int, col color.Color) {
	if rect.Empty() {
		return
	}
	t = min(t, rect.Dx(), rect.Dy())
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+t), col)
	fillRect(img, image.Rect(rect.Min.X, rect.Max.Y-t, rect.Max.X, rect.Max.Y), col)
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+t, rect.Max.Y), col)
	fillRect(img, image.Rect(rect.Max.X-t, rect.Min.Y, rect.Max.X, rect.Max.Y), col)
}
