package document

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/draw"
	_ "image/jpeg"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Rasterizer turns a layout into a bitmap at the given scale factor.
type Rasterizer interface {
	Name() string
	Rasterize(ctx context.Context, l Layout, scale float64) (image.Image, error)
}

// CanvasRasterizer draws layouts in pure Go with a bitmap font.
type CanvasRasterizer struct{}

// Name implements Rasterizer.
func (CanvasRasterizer) Name() string { return "canvas" }

// Rasterize implements Rasterizer.
func (CanvasRasterizer) Rasterize(ctx context.Context, l Layout, scale float64) (image.Image, error) {
	if l.Width <= 0 || l.Height <= 0 {
		return nil, ErrEmptyCanvas
	}
	dst := imaging.New(l.Width, l.Height, color.White)
	for i, el := range l.Elements {
		if i%32 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		switch el.Kind {
		case KindRect:
			draw.Draw(dst, image.Rect(el.X, el.Y, el.X+el.W, el.Y+el.H), image.NewUniform(el.Color), image.Point{}, draw.Over)
		case KindImage:
			src, _, err := image.Decode(bytes.NewReader(el.Image))
			if err != nil {
				continue
			}
			fitted := imaging.Fit(src, el.W, el.H, imaging.Lanczos)
			at := image.Pt(el.X, el.Y+(el.H-fitted.Bounds().Dy())/2)
			draw.Draw(dst, fitted.Bounds().Add(at), fitted, image.Point{}, draw.Over)
		case KindText:
			drawText(dst, el)
		}
	}
	if scale <= 0 || scale == 1 {
		return dst, nil
	}
	w := int(math.Round(float64(l.Width) * scale))
	h := int(math.Round(float64(l.Height) * scale))
	return imaging.Resize(dst, w, h, imaging.Lanczos), nil
}

func drawText(dst draw.Image, el Element) {
	face := basicfont.Face7x13
	m := face.Metrics()
	glyphH := face.Height
	w := font.MeasureString(face, el.Text).Ceil() + 1
	if w <= 1 {
		return
	}
	glyphs := image.NewNRGBA(image.Rect(0, 0, w, glyphH))
	d := &font.Drawer{Dst: glyphs, Src: image.NewUniform(el.Color), Face: face, Dot: fixed.Point26_6{Y: m.Ascent}}
	d.DrawString(el.Text)
	if el.Bold {
		d.Dot = fixed.Point26_6{X: fixed.I(1), Y: m.Ascent}
		d.DrawString(el.Text)
	}

	var txt image.Image = glyphs
	if el.Size > 0 && el.Size != glyphH {
		tw := int(math.Round(float64(w) * float64(el.Size) / float64(glyphH)))
		txt = imaging.Resize(glyphs, tw, el.Size, imaging.Linear)
	}
	b := txt.Bounds()
	if b.Dx() > el.W && el.W > 0 {
		txt = imaging.Crop(txt, image.Rect(0, 0, el.W, b.Dy()))
		b = txt.Bounds()
	}

	x := el.X
	switch el.Align {
	case AlignRight:
		x = el.X + el.W - b.Dx()
	case AlignCenter:
		x = el.X + (el.W-b.Dx())/2
	}
	y := el.Y
	if el.H > b.Dy() {
		y = el.Y + (el.H-b.Dy())/2
	}
	draw.Draw(dst, b.Sub(b.Min).Add(image.Pt(x, y)), txt, b.Min, draw.Over)
}
