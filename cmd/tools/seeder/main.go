package main

import (
	"context"
	"flag"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/app"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/config"
	"github.com/noah-isme/quotedesk/internal/obs"
)

type seedItem struct {
	Name        string
	Price       string
	GST         string
	Description string
}

var items = []seedItem{
	{"Steel Almirah 4 Door", "18500", "18", "Powder coated, 78 inch"},
	{"Office Chair Ergonomic", "7499", "18", "Mesh back with lumbar support"},
	{"LED Panel 18W", "450", "12", "Cool white, recessed"},
	{"Copper Wire 1.5 sq mm", "1899", "", "90 m coil"},
	{"Ceiling Fan 1200 mm", "2650", "", "BEE 5 star"},
	{"A4 Copier Paper", "320", "12", "75 GSM, 500 sheets"},
	{"Printed Books", "600", "0", "Reference set"},
	{"Basmati Rice 25kg", "2400", "5", "Packaged and labelled"},
}

var rules = []struct {
	Product string
	GST     string
}{
	{"Copper Wire 1.5 sq mm", "18"},
	{"Ceiling Fan 1200 mm", "18"},
}

func main() {
	dryRun := flag.Bool("dry-run", false, "log what would be written without calling the store")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}
	gw, _, err := app.NewGateway(cfg, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog gateway")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	existing := map[string]bool{}
	if !*dryRun {
		current, err := gw.ListItems(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("list items")
		}
		for _, it := range current {
			existing[it.Name] = true
		}
	}

	seedItems(ctx, gw, logger, existing, *dryRun)
	seedRules(ctx, gw, logger, *dryRun)
	seedSettings(ctx, gw, logger, *dryRun)
	logger.Info().Msg("seeding completed")
}

func seedItems(ctx context.Context, gw *catalog.Gateway, logger zerolog.Logger, existing map[string]bool, dryRun bool) {
	for _, s := range items {
		if existing[s.Name] {
			logger.Info().Str("item", s.Name).Msg("item exists, skipping")
			continue
		}
		item := catalog.Item{
			Name:        s.Name,
			Price:       decimal.RequireFromString(s.Price),
			Description: s.Description,
		}
		if s.GST != "" {
			pct := decimal.RequireFromString(s.GST)
			item.GSTPercent = &pct
		}
		if dryRun {
			logger.Info().Str("item", s.Name).Str("price", s.Price).Msg("would create item")
			continue
		}
		if _, err := gw.CreateItem(ctx, item); err != nil {
			logger.Error().Err(err).Str("item", s.Name).Msg("create item")
		}
	}
}

func seedRules(ctx context.Context, gw *catalog.Gateway, logger zerolog.Logger, dryRun bool) {
	for _, r := range rules {
		if dryRun {
			logger.Info().Str("product", r.Product).Str("gst", r.GST).Msg("would create gst rule")
			continue
		}
		rule := catalog.GSTRule{ProductName: r.Product, GSTPercent: decimal.RequireFromString(r.GST)}
		if _, err := gw.CreateGSTRule(ctx, rule); err != nil {
			logger.Error().Err(err).Str("product", r.Product).Msg("create gst rule")
		}
	}
}

func seedSettings(ctx context.Context, gw *catalog.Gateway, logger zerolog.Logger, dryRun bool) {
	defaultGST := decimal.NewFromInt(18)
	settings := catalog.Settings{
		Brand:        "Quotedesk Traders",
		CompanyGSTID: "27ABCDE1234F1Z5",
		ValidityDays: 15,
		DefaultGST:   &defaultGST,
		Address:      "12 MG Road, Pune 411001",
		Phone:        "9876543210",
		Email:        "sales@quotedesk.example",
		Terms:        "Prices are ex-works. Delivery within 7 working days of confirmed order. Payment 50% advance.",
	}
	if dryRun {
		logger.Info().Str("brand", settings.Brand).Msg("would update settings")
		return
	}
	if _, err := gw.UpdateSettings(ctx, settings); err != nil {
		logger.Error().Err(err).Msg("update settings")
	}
}
