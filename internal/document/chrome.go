package document

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html/template"
	"image"
	"image/png"
	"net/http"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// ChromeRasterizer renders layouts as HTML in headless Chrome.
type ChromeRasterizer struct {
	ExecPath string
	Logger   zerolog.Logger
}

// Name implements Rasterizer.
func (ChromeRasterizer) Name() string { return "chrome" }

// Rasterize implements Rasterizer. A browser is started per call and torn
// down with it.
func (c ChromeRasterizer) Rasterize(ctx context.Context, l Layout, scale float64) (image.Image, error) {
	if l.Width <= 0 || l.Height <= 0 {
		return nil, ErrEmptyCanvas
	}
	if scale <= 0 {
		scale = 1
	}
	markup, err := HTML(l)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:], chromedp.NoSandbox)
	if c.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.ExecPath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	var buf []byte
	err = chromedp.Run(tabCtx,
		chromedp.EmulateViewport(int64(l.Width), int64(l.Height), chromedp.EmulateScale(scale)),
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString(markup)),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			buf, err = page.CaptureScreenshot().
				WithFormat(page.CaptureScreenshotFormatPng).
				WithFromSurface(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chrome capture: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode capture: %w", err)
	}
	c.Logger.Debug().Int("bytes", len(buf)).Int("height", img.Bounds().Dy()).Msg("chrome capture done")
	return img, nil
}

var htmlTemplate = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><style>
html,body{margin:0;padding:0;background:#ffffff}
.doc{position:relative;width:{{.Width}}px;height:{{.Height}}px;overflow:hidden;font-family:Helvetica,Arial,sans-serif}
.el{position:absolute;box-sizing:border-box;margin:0;white-space:nowrap;overflow:hidden}
</style></head><body><div class="doc">
{{range .Elements}}{{if eq .Kind "rect"}}<div class="el" style="left:{{.X}}px;top:{{.Y}}px;width:{{.W}}px;height:{{.H}}px;background:{{.Color}}"></div>
{{else if eq .Kind "image"}}<img class="el" style="left:{{.X}}px;top:{{.Y}}px;width:{{.W}}px;height:{{.H}}px;object-fit:contain" src="{{.Src}}" alt="">
{{else}}<div class="el" style="left:{{.X}}px;top:{{.Y}}px;width:{{.W}}px;height:{{.H}}px;line-height:{{.H}}px;font-size:{{.Size}}px;font-weight:{{.Weight}};text-align:{{.Align}};color:{{.Color}}">{{.Text}}</div>
{{end}}{{end}}</div></body></html>
`))

type htmlElement struct {
	Kind   string
	X, Y   int
	W, H   int
	Size   int
	Weight int
	Align  string
	Color  string
	Text   string
	Src    template.URL
}

// HTML renders l as a standalone page with absolutely positioned elements.
func HTML(l Layout) ([]byte, error) {
	els := make([]htmlElement, 0, len(l.Elements))
	for _, el := range l.Elements {
		he := htmlElement{
			Kind:   string(el.Kind),
			X:      el.X,
			Y:      el.Y,
			W:      el.W,
			H:      el.H,
			Size:   el.Size,
			Weight: 400,
			Align:  string(el.Align),
			Color:  fmt.Sprintf("#%02x%02x%02x", el.Color.R, el.Color.G, el.Color.B),
			Text:   el.Text,
		}
		if el.Bold {
			he.Weight = 700
		}
		if he.Align == "" {
			he.Align = string(AlignLeft)
		}
		if el.Kind == KindImage {
			if len(el.Image) == 0 {
				continue
			}
			he.Src = template.URL("data:" + http.DetectContentType(el.Image) + ";base64," + base64.StdEncoding.EncodeToString(el.Image))
		}
		els = append(els, he)
	}

	var buf bytes.Buffer
	err := htmlTemplate.Execute(&buf, struct {
		Width, Height int
		Elements      []htmlElement
	}{l.Width, l.Height, els})
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return buf.Bytes(), nil
}
