package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/obs"
)

// ErrForbidden is returned when the principal may not edit catalog values.
var ErrForbidden = errors.New("role may not edit catalog values")

// Authorizer decides which roles may edit catalog items.
type Authorizer interface {
	IsEditorRole(role string) bool
}

// Ledger persists temp-override records.
type Ledger interface {
	AppendOverride(ctx context.Context, o catalog.TempOverride) error
}

// Reconciler performs the explicit read-modify-write for a cart edit.
type Reconciler struct {
	items  cart.ItemSource
	rates  cart.RateResolver
	ledger Ledger
	auth   Authorizer
	now    func() time.Time
	logger zerolog.Logger
}

// Config groups Reconciler dependencies.
type Config struct {
	Items      cart.ItemSource
	Rates      cart.RateResolver
	Ledger     Ledger
	Authorizer Authorizer
	Now        func() time.Time
	Logger     zerolog.Logger
}

// New constructs a Reconciler.
func New(cfg Config) *Reconciler {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		items:  cfg.Items,
		rates:  cfg.Rates,
		ledger: cfg.Ledger,
		auth:   cfg.Authorizer,
		now:    now,
		logger: cfg.Logger.With().Str("component", "reconcile").Logger(),
	}
}

// Reconcile applies edit to the line for productID in c. The cart is left
// unchanged when the role is not allowed or the catalog cannot be read.
// A failed ledger write is logged and does not block the cart update.
func (r *Reconciler) Reconcile(ctx context.Context, p common.Principal, c *cart.Cart, productID catalog.ID, edit cart.Edit) error {
	if r.auth == nil || !r.auth.IsEditorRole(p.Role) {
		return common.Forbidden("your role cannot edit prices or GST", ErrForbidden)
	}
	line, ok := c.Line(productID)
	if !ok {
		return cart.ErrNotFound
	}
	item, ok, err := r.items.GetItem(ctx, productID)
	if err != nil {
		return catalog.ToAppError(fmt.Errorf("fetch item %s: %w", productID, err))
	}
	if !ok {
		return cart.ErrNotFound
	}

	rate := decimal.Zero
	if edit.Field == cart.FieldGST {
		rate = r.rates.ResolveItem(ctx, item)
	}
	out := Decide(c.Mode(), line, item, edit, rate, r.now(), p.DisplayName())

	field := string(edit.Field)
	if r.ledger != nil {
		if err := r.ledger.AppendOverride(ctx, out.Record); err != nil {
			r.logger.Warn().Err(err).
				Str("product_id", productID.String()).
				Str("session_id", common.SessionID(ctx)).
				Str("field", field).
				Msg("temp override write failed")
			obs.CountLedgerWrite(field, "error")
		} else {
			obs.CountLedgerWrite(field, "ok")
		}
	}
	if out.Reverted {
		obs.CountRevert(field)
	}
	c.ReplaceLine(out.Line)
	return nil
}
