package document

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/disintegration/imaging"
	"github.com/johnfercher/maroto/v2"
	mimage "github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/page"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// pdfImageHeight is the row height in millimetres each page image gets on A4.
const pdfImageHeight = 270

// Paginate slices img into pages of pageHeight pixels. The last partial
// slice is padded with white so every page has the same size.
func Paginate(img image.Image, pageHeight int) []image.Image {
	b := img.Bounds()
	if pageHeight <= 0 {
		return []image.Image{img}
	}
	var pages []image.Image
	for top := b.Min.Y; top < b.Max.Y; top += pageHeight {
		bottom := top + pageHeight
		if bottom > b.Max.Y {
			bottom = b.Max.Y
		}
		slice := imaging.Crop(img, image.Rect(b.Min.X, top, b.Max.X, bottom))
		if slice.Bounds().Dy() < pageHeight {
			canvas := imaging.New(b.Dx(), pageHeight, color.White)
			slice = imaging.Paste(canvas, slice, image.Pt(0, 0))
		}
		pages = append(pages, slice)
	}
	return pages
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// encodePDF places one page image per A4 page.
func encodePDF(pages []image.Image, title string) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(5).
		WithTopMargin(5).
		WithRightMargin(5).
		WithTitle(title, true).
		Build()
	m := maroto.New(cfg)

	for i, p := range pages {
		data, err := encodePNG(p)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, err)
		}
		m.AddPages(page.New().Add(
			mimage.NewFromBytesRow(pdfImageHeight, data, extension.Png, props.Rect{Center: true, Percent: 100}),
		))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate pdf: %w", err)
	}
	return doc.GetBytes(), nil
}
