// Package tax resolves GST percentages for catalog products.
package tax

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/obs"
)

// FallbackRate is used when neither a rule nor a settings default is available.
var FallbackRate = decimal.NewFromInt(18)

// Source is the subset of the store the resolver reads from.
type Source interface {
	ListGSTRules(ctx context.Context) ([]catalog.GSTRule, error)
	Settings(ctx context.Context) (catalog.Settings, error)
}

// Resolver answers GST percentages. It never fails; lookups that cannot reach
// the store answer FallbackRate.
type Resolver struct {
	source Source
	logger zerolog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(source Source, logger zerolog.Logger) *Resolver {
	return &Resolver{source: source, logger: logger.With().Str("component", "tax_resolver").Logger()}
}

// Resolve returns the GST percentage for a product name. Rules match on the
// trimmed name, case-insensitively; the last matching rule wins.
func (r *Resolver) Resolve(ctx context.Context, productName string) decimal.Decimal {
	name := strings.TrimSpace(productName)
	if r == nil || r.source == nil {
		obs.CountGSTFallback("unconfigured")
		return FallbackRate
	}

	rules, err := r.source.ListGSTRules(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("product", name).Msg("gst rules unavailable, using fallback rate")
		obs.CountGSTFallback("rules_unavailable")
		return FallbackRate
	}
	var (
		rate  decimal.Decimal
		found bool
	)
	for _, rule := range rules {
		if strings.EqualFold(strings.TrimSpace(rule.ProductName), name) {
			rate, found = rule.GSTPercent, true
		}
	}
	if found {
		return rate
	}

	settings, err := r.source.Settings(ctx)
	if err != nil {
		r.logger.Warn().Err(err).Str("product", name).Msg("settings unavailable, using fallback rate")
		obs.CountGSTFallback("settings_unavailable")
		return FallbackRate
	}
	if settings.DefaultGST != nil {
		obs.CountGSTFallback("settings_default")
		return *settings.DefaultGST
	}
	obs.CountGSTFallback("hardcoded_default")
	return FallbackRate
}

// ResolveItem prefers the item's own GST percentage and falls back to Resolve.
func (r *Resolver) ResolveItem(ctx context.Context, item catalog.Item) decimal.Decimal {
	if item.GSTPercent != nil {
		return *item.GSTPercent
	}
	return r.Resolve(ctx, item.Name)
}
