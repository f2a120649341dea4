package cart

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/money"
	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

// ErrNotFound indicates the edited product is absent from the cart or the
// catalog. Edits that hit it are no-ops.
var ErrNotFound = errors.New("cart line not found")

// ErrInvalidInput is returned when the provided value cannot be applied.
var ErrInvalidInput = errors.New("invalid input")

var maxGSTRate = decimal.NewFromInt(100)

// Field names an editable numeric column of a line.
type Field string

const (
	FieldPrice Field = "price"
	FieldGST   Field = "gst"
)

// Edit is a requested in-place change to a line's price or GST rate.
type Edit struct {
	Field Field
	Value decimal.Decimal
}

// ItemSource fetches canonical catalog items.
type ItemSource interface {
	GetItem(ctx context.Context, id catalog.ID) (catalog.Item, bool, error)
}

// RateResolver answers the catalog GST rate of an item.
type RateResolver interface {
	ResolveItem(ctx context.Context, item catalog.Item) decimal.Decimal
}

// Reconciler applies price and GST edits against the catalog. It returns
// ErrNotFound when there is nothing to edit.
type Reconciler interface {
	Reconcile(ctx context.Context, p common.Principal, c *Cart, productID catalog.ID, edit Edit) error
}

// Service encapsulates cart domain operations. Every operation takes the
// session's principal and cart explicitly and returns the recomputed view,
// whether or not it succeeded.
type Service struct {
	items      ItemSource
	rates      RateResolver
	reconciler Reconciler
	logger     zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Items      ItemSource
	Rates      RateResolver
	Reconciler Reconciler
	Logger     zerolog.Logger
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		items:      cfg.Items,
		rates:      cfg.Rates,
		reconciler: cfg.Reconciler,
		logger:     cfg.Logger.With().Str("component", "cart").Logger(),
	}
}

// View returns the current cart view.
func (s *Service) View(_ common.Principal, c *Cart) View {
	return Snapshot(c)
}

// Add puts one unit of productID into the cart. Unknown products are ignored.
func (s *Service) Add(ctx context.Context, p common.Principal, c *Cart, productID catalog.ID) (View, error) {
	productID = catalog.ID(strings.TrimSpace(productID.String()))
	if productID == "" {
		obs.CountCartMutation("add", "invalid")
		return Snapshot(c), invalid("productId is required")
	}
	item, ok, err := s.items.GetItem(ctx, productID)
	if err != nil {
		obs.CountCartMutation("add", "error")
		return Snapshot(c), catalog.ToAppError(fmt.Errorf("fetch item %s: %w", productID, err))
	}
	if !ok {
		s.logger.Debug().Str("product_id", productID.String()).Str("user_id", p.UserID).Msg("add ignored for unknown product")
		obs.CountCartMutation("add", "noop")
		return Snapshot(c), nil
	}
	if c.increment(productID) {
		obs.CountCartMutation("add", "ok")
		return Snapshot(c), nil
	}
	c.append(Line{
		ProductID:   item.ID,
		ProductName: item.Name,
		Description: item.Description,
		URL:         item.URL,
		UnitPrice:   item.Price,
		Quantity:    1,
		GSTRate:     s.rates.ResolveItem(ctx, item),
	})
	obs.CountCartMutation("add", "ok")
	return Snapshot(c), nil
}

// Remove deletes the line for productID if present.
func (s *Service) Remove(_ context.Context, _ common.Principal, c *Cart, productID catalog.ID) View {
	if c.remove(productID) {
		obs.CountCartMutation("remove", "ok")
	} else {
		obs.CountCartMutation("remove", "noop")
	}
	return Snapshot(c)
}

// SetQuantity parses raw as an integer quantity. Unparsable input counts as 1
// and non-positive quantities remove the line.
func (s *Service) SetQuantity(_ context.Context, _ common.Principal, c *Cart, productID catalog.ID, raw string) View {
	qty, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		qty = 1
	}
	if c.setQuantity(productID, qty) {
		obs.CountCartMutation("quantity", "ok")
	} else {
		obs.CountCartMutation("quantity", "noop")
	}
	return Snapshot(c)
}

// SetPrice edits a line's unit price through reconciliation.
func (s *Service) SetPrice(ctx context.Context, p common.Principal, c *Cart, productID catalog.ID, raw string) (View, error) {
	value, err := money.Parse(raw)
	if err != nil || value.IsNegative() {
		obs.CountCartMutation("price", "invalid")
		return Snapshot(c), invalid("price must be a non-negative amount")
	}
	return s.reconcile(ctx, p, c, productID, Edit{Field: FieldPrice, Value: value})
}

// SetGSTRate edits a line's GST rate through reconciliation.
func (s *Service) SetGSTRate(ctx context.Context, p common.Principal, c *Cart, productID catalog.ID, raw string) (View, error) {
	value, err := money.Parse(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if err != nil || value.IsNegative() || value.GreaterThan(maxGSTRate) {
		obs.CountCartMutation("gst", "invalid")
		return Snapshot(c), invalid("gst rate must be between 0 and 100")
	}
	return s.reconcile(ctx, p, c, productID, Edit{Field: FieldGST, Value: value})
}

// SetDiscount sets the quotation discount percentage.
func (s *Service) SetDiscount(_ context.Context, _ common.Principal, c *Cart, raw string) (View, error) {
	value, err := money.Parse(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if err != nil || !pricing.ValidDiscount(value) {
		obs.CountCartMutation("discount", "invalid")
		return Snapshot(c), invalid("discount must be between 0 and 100")
	}
	c.discount = value
	obs.CountCartMutation("discount", "ok")
	return Snapshot(c), nil
}

// Clear empties the cart and resets it to creating mode.
func (s *Service) Clear(_ context.Context, _ common.Principal, c *Cart) View {
	c.Clear()
	obs.CountCartMutation("clear", "ok")
	return Snapshot(c)
}

func (s *Service) reconcile(ctx context.Context, p common.Principal, c *Cart, productID catalog.ID, edit Edit) (View, error) {
	op := string(edit.Field)
	if s.reconciler == nil {
		obs.CountCartMutation(op, "error")
		return Snapshot(c), errors.New("cart reconciler not configured")
	}
	if err := s.reconciler.Reconcile(ctx, p, c, productID, edit); err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.CountCartMutation(op, "noop")
			return Snapshot(c), nil
		}
		obs.CountCartMutation(op, "rejected")
		return Snapshot(c), err
	}
	obs.CountCartMutation(op, "ok")
	return Snapshot(c), nil
}

func invalid(msg string) error {
	appErr := common.ValidationError(msg, nil)
	appErr.Err = fmt.Errorf("%w: %s", ErrInvalidInput, msg)
	return appErr
}
