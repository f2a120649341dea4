package document

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/obs"
)

// Format is an output encoding.
type Format string

const (
	FormatPNG Format = "png"
	FormatPDF Format = "pdf"
)

// ErrEmptyCanvas is returned when a rasterizer produced nothing to encode.
var ErrEmptyCanvas = errors.New("document canvas is empty")

// ParseFormat reads a format query value. Empty means PNG.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatPNG:
		return FormatPNG, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", common.ValidationError("format must be png or pdf", map[string]string{"format": raw})
}

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "image/png"
}

// Artifact is an encoded document.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Pages       int
}

// SettingsSource provides company branding.
type SettingsSource interface {
	CachedSettings(ctx context.Context) (catalog.Settings, error)
}

// OverrideSource lists temp-override records.
type OverrideSource interface {
	ListOverrides(ctx context.Context) ([]catalog.TempOverride, error)
}

// Renderer merges overrides, lays out, rasterizes and encodes documents.
type Renderer struct {
	raster    Rasterizer
	settings  SettingsSource
	overrides OverrideSource
	assets    AssetLoader
	scale     float64
	pageItems int
	currency  string
	logger    zerolog.Logger
}

// Config groups Renderer dependencies.
type Config struct {
	Rasterizer Rasterizer
	Settings   SettingsSource
	Overrides  OverrideSource
	Assets     AssetLoader
	Scale      float64
	PageItems  int
	Currency   string
	Logger     zerolog.Logger
}

// NewRenderer constructs a Renderer. The canvas rasterizer is the default.
func NewRenderer(cfg Config) *Renderer {
	r := &Renderer{
		raster:    cfg.Rasterizer,
		settings:  cfg.Settings,
		overrides: cfg.Overrides,
		assets:    cfg.Assets,
		scale:     cfg.Scale,
		pageItems: cfg.PageItems,
		currency:  cfg.Currency,
		logger:    cfg.Logger.With().Str("component", "document").Logger(),
	}
	if r.raster == nil {
		r.raster = CanvasRasterizer{}
	}
	if r.scale <= 0 {
		r.scale = 2
	}
	if r.pageItems <= 0 {
		r.pageItems = DefaultPageItems
	}
	return r
}

// Render produces the artifact for doc. Override and settings lookups are
// best effort; rasterization and encoding failures are reported as a
// retryable render error.
func (r *Renderer) Render(ctx context.Context, doc Document, format Format) (Artifact, error) {
	start := time.Now()
	art, err := r.render(ctx, doc, format)
	result := "ok"
	if err != nil {
		result = "error"
	}
	obs.ObserveRender(r.raster.Name(), string(format), result, time.Since(start), art.Pages)
	if err != nil {
		r.logger.Error().Err(err).Str("quotation_id", doc.QuotationID.String()).Str("format", string(format)).Msg("render failed")
		return Artifact{}, renderError(err)
	}
	return art, nil
}

func (r *Renderer) render(ctx context.Context, doc Document, format Format) (Artifact, error) {
	if r.overrides != nil {
		overrides, err := r.overrides.ListOverrides(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("temp overrides unavailable, rendering stored values")
		} else {
			var merged bool
			if doc, merged = MergeOverrides(doc, overrides); merged {
				r.logger.Debug().Str("quotation_id", doc.QuotationID.String()).Msg("overrides merged")
			}
		}
	}

	brand := Branding{Currency: r.currency}
	if r.settings != nil {
		s, err := r.settings.CachedSettings(ctx)
		if err != nil {
			r.logger.Warn().Err(err).Msg("settings unavailable, rendering without branding")
		}
		brand.Settings = s
	}
	if brand.Settings.Logo != "" {
		logo, err := r.assets.Load(ctx, brand.Settings.Logo)
		if err != nil {
			r.logger.Warn().Err(err).Msg("logo skipped")
		} else {
			brand.Logo = logo
		}
	}

	layout := Compose(doc, brand)
	img, err := r.raster.Rasterize(ctx, layout, r.scale)
	if err != nil {
		return Artifact{}, fmt.Errorf("rasterize: %w", err)
	}
	if img == nil || img.Bounds().Empty() {
		return Artifact{}, ErrEmptyCanvas
	}

	pageHeight := int(math.Round(float64(PageHeight(r.pageItems)) * r.scale))
	pages := Paginate(img, pageHeight)

	art := Artifact{
		Filename:    Filename(doc, format),
		ContentType: format.ContentType(),
		Pages:       len(pages),
	}
	switch format {
	case FormatPDF:
		art.Data, err = encodePDF(pages, "Quotation "+quotationNumber(doc.QuotationID))
	default:
		art.Data, err = encodePNG(img)
	}
	if err != nil {
		return Artifact{}, err
	}
	return art, nil
}

func renderError(err error) error {
	appErr := common.NewAppError("RENDER_FAILED", "document rendering failed, please retry", http.StatusInternalServerError, err)
	appErr.Details = map[string]any{"retry": true}
	return appErr
}

// Filename builds "<customer>_<quotation id>.<ext>" from sanitized parts.
func Filename(doc Document, format Format) string {
	name := sanitize(doc.Customer.Name)
	if name == "" {
		name = "quotation"
	}
	id := sanitize(doc.QuotationID.String())
	if id == "" {
		id = "draft"
	}
	return name + "_" + id + "." + string(format)
}

func sanitize(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		case unicode.IsSpace(r) || r == '_':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimRight(b.String(), "_")
}
