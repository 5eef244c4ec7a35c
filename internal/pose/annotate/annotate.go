// Package annotate draws the evaluation overlay onto frames and encodes
// them as JPEG for the video feed.
package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/pose/pipeline"
)

const (
	DefaultQuality = 80
	DefaultWidth   = 640
	DefaultHeight  = 480
)

var (
	textColor  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	panelColor = color.RGBA{A: 160}
	jointColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// bones are drawn between landmarks when both ends are present.
var bones = [][2]pose.Joint{
	{pose.LeftShoulder, pose.RightShoulder},
	{pose.LeftShoulder, pose.LeftElbow}, {pose.LeftElbow, pose.LeftWrist},
	{pose.RightShoulder, pose.RightElbow}, {pose.RightElbow, pose.RightWrist},
	{pose.LeftShoulder, pose.LeftHip}, {pose.RightShoulder, pose.RightHip},
	{pose.LeftHip, pose.RightHip},
	{pose.LeftHip, pose.LeftKnee}, {pose.LeftKnee, pose.LeftAnkle},
	{pose.RightHip, pose.RightKnee}, {pose.RightKnee, pose.RightAnkle},
}

// Options tunes the rendered output.
type Options struct {
	Quality   int // JPEG quality, 1-100
	Thickness int // Box and bone stroke in pixels
}

// Annotator implements pipeline.Annotator.
type Annotator struct {
	opts Options
	face font.Face
}

// New returns an annotator. Zero options take defaults.
func New(opts Options) *Annotator {
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = DefaultQuality
	}
	if opts.Thickness <= 0 {
		opts.Thickness = 3
	}
	return &Annotator{opts: opts, face: basicfont.Face7x13}
}

// Annotate renders o onto f and returns the JPEG bytes. Frames without
// pixels are drawn on a black canvas of the frame's size.
func (a *Annotator) Annotate(f pipeline.Frame, o pipeline.Overlay) ([]byte, error) {
	img := a.Render(f, o)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: a.opts.Quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Render draws o onto a copy of the frame image.
func (a *Annotator) Render(f pipeline.Frame, o pipeline.Overlay) *image.RGBA {
	w, h := f.Size()
	if w <= 0 || h <= 0 {
		w, h = DefaultWidth, DefaultHeight
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if f.Image != nil {
		draw.Draw(dst, dst.Bounds(), f.Image, f.Image.Bounds().Min, draw.Src)
	} else {
		draw.Draw(dst, dst.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	}

	if o.Landmarks != nil {
		a.skeleton(dst, o.Landmarks, o.Color)
	}
	if o.Box != nil {
		a.rect(dst, image.Rect(o.Box.XMin, o.Box.YMin, o.Box.XMax, o.Box.YMax), o.Color)
	}
	a.panel(dst, o)
	return dst
}

func (a *Annotator) rect(dst *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Canon().Intersect(dst.Bounds())
	if r.Empty() {
		return
	}
	t := a.opts.Thickness
	src := &image.Uniform{C: c}
	for _, edge := range []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	} {
		draw.Draw(dst, edge.Intersect(r), src, image.Point{}, draw.Over)
	}
}

func (a *Annotator) skeleton(dst *image.RGBA, set *pose.LandmarkSet, c color.Color) {
	b := dst.Bounds()
	px := func(lm pose.Landmark) image.Point {
		return image.Pt(int(lm.X*float64(b.Dx())), int(lm.Y*float64(b.Dy())))
	}
	for _, bone := range bones {
		p, ok1 := set.Get(bone[0])
		q, ok2 := set.Get(bone[1])
		if !ok1 || !ok2 || !p.Finite() || !q.Finite() {
			continue
		}
		a.line(dst, px(p), px(q), c)
	}
	r := a.opts.Thickness
	for _, j := range set.Joints() {
		lm := set.At(j)
		if !lm.Finite() {
			continue
		}
		p := px(lm)
		dot := image.Rect(p.X-r, p.Y-r, p.X+r+1, p.Y+r+1).Intersect(b)
		draw.Draw(dst, dot, &image.Uniform{C: jointColor}, image.Point{}, draw.Over)
	}
}

// line draws a stroke by stepping along the longer axis.
func (a *Annotator) line(dst *image.RGBA, p, q image.Point, c color.Color) {
	dx, dy := q.X-p.X, q.Y-p.Y
	steps := max(abs(dx), abs(dy))
	half := a.opts.Thickness / 2
	src := &image.Uniform{C: c}
	for i := 0; i <= steps; i++ {
		x, y := p.X, p.Y
		if steps > 0 {
			x += dx * i / steps
			y += dy * i / steps
		}
		dot := image.Rect(x-half, y-half, x+half+1, y+half+1).Intersect(dst.Bounds())
		draw.Draw(dst, dot, src, image.Point{}, draw.Over)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Lines returns the text shown in the overlay panel.
func Lines(o pipeline.Overlay) []string {
	lines := []string{o.Verdict.Message}
	if o.Verdict.Detail != "" {
		lines = append(lines, o.Verdict.Detail)
	}
	lines = append(lines, fmt.Sprintf("Detection %.1f%%  Accuracy %.1f%%",
		o.Stats.DetectionRate*100, o.Stats.AccuracyRate*100))
	if o.Sample != nil {
		lines = append(lines, fmt.Sprintf("Frame accuracy %.1f%%", o.Sample.FrameAccuracy*100))
	}
	return lines
}

func (a *Annotator) panel(dst *image.RGBA, o pipeline.Overlay) {
	lines := Lines(o)
	metrics := a.face.Metrics()
	lineH := metrics.Height.Ceil() + 2
	width := 0
	for _, l := range lines {
		width = max(width, font.MeasureString(a.face, l).Ceil())
	}
	bg := image.Rect(0, 0, width+16, lineH*len(lines)+10).Intersect(dst.Bounds())
	draw.Draw(dst, bg, &image.Uniform{C: panelColor}, image.Point{}, draw.Over)

	d := &font.Drawer{Dst: dst, Face: a.face}
	for i, l := range lines {
		d.Src = image.NewUniform(textColor)
		if i == 0 {
			d.Src = image.NewUniform(o.Color)
		}
		d.Dot = fixed.P(8, 5+lineH*i+metrics.Ascent.Ceil())
		d.DrawString(l)
	}
}
