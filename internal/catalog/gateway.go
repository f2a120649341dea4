package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/quotedesk/internal/resilience"
)

const (
	maxResponseBytes = 8 << 20
	settingsCacheKey = "catalog:settings:v1"
)

// GatewayError reports a failed call to the store API. Status is zero when the
// request never produced an HTTP answer.
type GatewayError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Status != 0 && e.Message != "":
		return fmt.Sprintf("catalog %s: %d %s", e.Op, e.Status, e.Message)
	case e.Status != 0:
		return fmt.Sprintf("catalog %s: status %d", e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
	default:
		return "catalog " + e.Op + ": failed"
	}
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 answer from the store.
func IsNotFound(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr) && gwErr.Status == http.StatusNotFound
}

// Gateway is the REST client for the external store that owns items, GST
// rules, settings, quotations, temp-overrides and the audit log.
type Gateway struct {
	baseURL string
	token   string
	http    resilience.HTTPClient
	cache   *Cache
	logger  zerolog.Logger
}

// GatewayConfig groups Gateway dependencies.
type GatewayConfig struct {
	BaseURL string
	Token   string
	HTTP    resilience.HTTPClient
	Cache   *Cache
	Logger  zerolog.Logger
}

// NewGateway constructs a Gateway.
func NewGateway(cfg GatewayConfig) (*Gateway, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("catalog: base url is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("catalog: parse base url: %w", err)
	}
	httpClient := cfg.HTTP
	if httpClient.Client == nil {
		httpClient.Client = http.DefaultClient
	}
	return &Gateway{
		baseURL: base,
		token:   strings.TrimSpace(cfg.Token),
		http:    httpClient,
		cache:   cfg.Cache,
		logger:  cfg.Logger.With().Str("component", "catalog_gateway").Logger(),
	}, nil
}

// ListItems returns every catalog item.
func (g *Gateway) ListItems(ctx context.Context) ([]Item, error) {
	var items []Item
	if err := g.do(ctx, "list_items", http.MethodGet, "/items", nil, &items); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].normalize()
	}
	return items, nil
}

// GetItem looks up a single item. The boolean is false when the id is unknown.
func (g *Gateway) GetItem(ctx context.Context, id ID) (Item, bool, error) {
	items, err := g.ListItems(ctx)
	if err != nil {
		return Item{}, false, err
	}
	for _, it := range items {
		if it.ID == id {
			return it, true, nil
		}
	}
	return Item{}, false, nil
}

// CreateItem adds an item to the catalog.
func (g *Gateway) CreateItem(ctx context.Context, item Item) (Item, error) {
	var out Item
	if err := g.do(ctx, "create_item", http.MethodPost, "/items", item, &out); err != nil {
		return Item{}, err
	}
	out.normalize()
	return out, nil
}

// UpdateItem replaces an item.
func (g *Gateway) UpdateItem(ctx context.Context, id ID, item Item) (Item, error) {
	var out Item
	if err := g.do(ctx, "update_item", http.MethodPut, "/items/"+url.PathEscape(id.String()), item, &out); err != nil {
		return Item{}, err
	}
	out.normalize()
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// DeleteItem removes an item.
func (g *Gateway) DeleteItem(ctx context.Context, id ID) error {
	return g.do(ctx, "delete_item", http.MethodDelete, "/items/"+url.PathEscape(id.String()), nil, nil)
}

// ListGSTRules returns the GST rules in store order.
func (g *Gateway) ListGSTRules(ctx context.Context) ([]GSTRule, error) {
	var rules []GSTRule
	if err := g.do(ctx, "list_gst_rules", http.MethodGet, "/gst-rules", nil, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}

// CreateGSTRule appends a GST rule. A later rule for the same name supersedes earlier ones.
func (g *Gateway) CreateGSTRule(ctx context.Context, rule GSTRule) (GSTRule, error) {
	var out GSTRule
	if err := g.do(ctx, "create_gst_rule", http.MethodPost, "/gst-rules", rule, &out); err != nil {
		return GSTRule{}, err
	}
	return out, nil
}

// Settings fetches the settings document from the store.
func (g *Gateway) Settings(ctx context.Context) (Settings, error) {
	var s Settings
	if err := g.do(ctx, "get_settings", http.MethodGet, "/settings", nil, &s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// CachedSettings serves branding settings from Redis when a cache is
// configured, falling back to the store.
func (g *Gateway) CachedSettings(ctx context.Context) (Settings, error) {
	return readThrough(ctx, g.cache, settingsCacheKey, g.logger, g.Settings)
}

// UpdateSettings replaces the settings document and drops the cached copy.
func (g *Gateway) UpdateSettings(ctx context.Context, s Settings) (Settings, error) {
	var out Settings
	if err := g.do(ctx, "update_settings", http.MethodPut, "/settings", s, &out); err != nil {
		return Settings{}, err
	}
	if err := g.cache.Invalidate(ctx, settingsCacheKey); err != nil {
		g.logger.Warn().Err(err).Msg("settings cache invalidation failed")
	}
	return out, nil
}

// CreateQuotation persists a new quotation and returns it with its id.
func (g *Gateway) CreateQuotation(ctx context.Context, q Quotation) (Quotation, error) {
	var out Quotation
	if err := g.do(ctx, "create_quotation", http.MethodPost, "/quotations", q, &out); err != nil {
		return Quotation{}, err
	}
	out.normalize()
	return out, nil
}

// ListQuotations returns stored quotations.
func (g *Gateway) ListQuotations(ctx context.Context) ([]Quotation, error) {
	var out []Quotation
	if err := g.do(ctx, "list_quotations", http.MethodGet, "/quotations", nil, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].normalize()
	}
	return out, nil
}

// GetQuotation fetches one quotation.
func (g *Gateway) GetQuotation(ctx context.Context, id ID) (Quotation, error) {
	var out Quotation
	if err := g.do(ctx, "get_quotation", http.MethodGet, "/quotations/"+url.PathEscape(id.String()), nil, &out); err != nil {
		return Quotation{}, err
	}
	out.normalize()
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// UpdateQuotation replaces a stored quotation.
func (g *Gateway) UpdateQuotation(ctx context.Context, id ID, q Quotation) (Quotation, error) {
	var out Quotation
	if err := g.do(ctx, "update_quotation", http.MethodPut, "/quotations/"+url.PathEscape(id.String()), q, &out); err != nil {
		return Quotation{}, err
	}
	out.normalize()
	if out.ID == "" {
		out.ID = id
	}
	return out, nil
}

// DeleteQuotation removes a stored quotation.
func (g *Gateway) DeleteQuotation(ctx context.Context, id ID) error {
	return g.do(ctx, "delete_quotation", http.MethodDelete, "/quotations/"+url.PathEscape(id.String()), nil, nil)
}

// AppendOverride writes a temp-override record.
func (g *Gateway) AppendOverride(ctx context.Context, o TempOverride) error {
	return g.do(ctx, "append_override", http.MethodPost, "/temp-overrides", o, nil)
}

// ListOverrides returns every temp-override record.
func (g *Gateway) ListOverrides(ctx context.Context) ([]TempOverride, error) {
	var out []TempOverride
	if err := g.do(ctx, "list_overrides", http.MethodGet, "/temp-overrides", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendAudit appends an entry to the store's audit log.
func (g *Gateway) AppendAudit(ctx context.Context, e AuditEntry) error {
	return g.do(ctx, "append_audit", http.MethodPost, "/audit-logs", e, nil)
}

// Ping checks that the store answers.
func (g *Gateway) Ping(ctx context.Context) error {
	return g.do(ctx, "ping", http.MethodGet, "/settings", nil, nil)
}

func (g *Gateway) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := otel.Tracer("catalog.gateway").Start(ctx, "catalog."+op)
	defer span.End()
	span.SetAttributes(attribute.String("http.method", method), attribute.String("catalog.path", path))

	err := g.roundTrip(ctx, op, method, path, body, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (g *Gateway) roundTrip(ctx context.Context, op, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &GatewayError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.http.Do(ctx, req)
	if err != nil {
		return &GatewayError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	g.logger.Debug().Str("op", op).Str("method", method).Str("path", path).Int("status", resp.StatusCode).Int("bytes", len(data)).Msg("catalog_call")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &GatewayError{Op: op, Status: resp.StatusCode, Message: serverMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := decodeEnvelope(data, out); err != nil {
		return &GatewayError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// decodeEnvelope accepts either the bare payload or {"data": payload}.
func decodeEnvelope(data []byte, out any) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapper struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(trimmed, &wrapper); err == nil && len(wrapper.Data) > 0 && !bytes.Equal(wrapper.Data, []byte("null")) {
			return json.Unmarshal(wrapper.Data, out)
		}
	}
	return json.Unmarshal(trimmed, out)
}

func serverMessage(data []byte) string {
	var payload struct {
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(truncate(string(data), 200))
	}
	if payload.Message != "" {
		return payload.Message
	}
	if len(payload.Error) > 0 {
		var s string
		if json.Unmarshal(payload.Error, &s) == nil {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(payload.Error, &nested) == nil {
			return nested.Message
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
