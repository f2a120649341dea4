// Package quotation submits carts as quotations and manages stored ones.
package quotation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/audit"
	"github.com/noah-isme/quotedesk/internal/cart"
	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/lock"
	"github.com/noah-isme/quotedesk/internal/money"
	"github.com/noah-isme/quotedesk/internal/obs"
	"github.com/noah-isme/quotedesk/internal/pricing"
)

var (
	// ErrBusy is returned when a submission for the same session is in flight.
	ErrBusy = errors.New("quotation submission already in progress")
	// ErrEmptyCart is returned when submitting a cart without lines.
	ErrEmptyCart = errors.New("cart is empty")
)

// Store is the subset of the store API used for quotations.
type Store interface {
	CreateQuotation(ctx context.Context, q catalog.Quotation) (catalog.Quotation, error)
	UpdateQuotation(ctx context.Context, id catalog.ID, q catalog.Quotation) (catalog.Quotation, error)
	GetQuotation(ctx context.Context, id catalog.ID) (catalog.Quotation, error)
	ListQuotations(ctx context.Context) ([]catalog.Quotation, error)
	DeleteQuotation(ctx context.Context, id catalog.ID) error
}

// Auditor records quotation events.
type Auditor interface {
	Record(ctx context.Context, p common.Principal, action, details string) error
}

// Service coordinates quotation submission and maintenance.
type Service struct {
	store    Store
	guard    lock.Guard
	lockTTL  time.Duration
	validate *validator.Validate
	audit    Auditor
	now      func() time.Time
	logger   zerolog.Logger
}

// Config groups Service dependencies.
type Config struct {
	Store    Store
	Guard    lock.Guard
	LockTTL  time.Duration
	Validate *validator.Validate
	Audit    Auditor
	Now      func() time.Time
	Logger   zerolog.Logger
}

// NewService constructs a Service. Without a guard an in-process one is used.
func NewService(cfg Config) *Service {
	guard := cfg.Guard
	if guard == nil {
		guard = lock.NewLocal()
	}
	v := cfg.Validate
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		store:    cfg.Store,
		guard:    guard,
		lockTTL:  cfg.LockTTL,
		validate: v,
		audit:    cfg.Audit,
		now:      now,
		logger:   cfg.Logger.With().Str("component", "quotation").Logger(),
	}
}

// Exclusive runs fn while holding the submission guard of sessionID. Take it
// before the session lock so a second submit for the session answers a
// conflict rather than waiting.
func (s *Service) Exclusive(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	if sessionID == "" {
		return fn(ctx)
	}
	err := s.guard.TryWithLock(ctx, "quotation:submit:"+sessionID, s.lockTTL, fn)
	if errors.Is(err, lock.ErrLocked) {
		obs.CountSubmission("unknown", "busy")
		return common.NewAppError("CONFLICT", "a submission is already in progress", http.StatusConflict, ErrBusy)
	}
	return err
}

// Submit persists the cart as a quotation for customer. Drafts are created;
// carts in editing mode update the quotation they were loaded from. The cart
// is cleared on success. Validation failures leave it untouched; a store
// failure keeps the lines and the customer for a retry.
func (s *Service) Submit(ctx context.Context, p common.Principal, c *cart.Cart, customer catalog.Customer) (catalog.Quotation, error) {
	mode := string(c.Mode())
	saved, err := s.submit(ctx, p, c, customer)
	if err != nil {
		obs.CountSubmission(mode, "error")
		return catalog.Quotation{}, err
	}
	obs.CountSubmission(mode, "ok")
	return saved, nil
}

func (s *Service) submit(ctx context.Context, p common.Principal, c *cart.Cart, customer catalog.Customer) (catalog.Quotation, error) {
	customer = normalizeCustomer(customer)
	if err := s.validate.Struct(customer); err != nil {
		return catalog.Quotation{}, common.ValidationError("invalid customer", common.FieldErrors(err))
	}
	if c.Len() == 0 {
		appErr := common.ValidationError("add at least one item before submitting", nil)
		appErr.Err = ErrEmptyCart
		return catalog.Quotation{}, appErr
	}
	if !pricing.ValidDiscount(c.Discount()) {
		return catalog.Quotation{}, common.ValidationError("discount must be between 0 and 100", nil)
	}
	c.SetCustomer(customer)

	q := Build(c, customer, s.now(), p.DisplayName())
	var (
		saved  catalog.Quotation
		err    error
		action = audit.ActionQuotationCreated
	)
	if c.Mode() == cart.ModeEditing && c.EditingID() != "" {
		action = audit.ActionQuotationUpdated
		saved, err = s.store.UpdateQuotation(ctx, c.EditingID(), q)
	} else {
		saved, err = s.store.CreateQuotation(ctx, q)
	}
	if err != nil {
		return catalog.Quotation{}, catalog.ToAppError(fmt.Errorf("save quotation: %w", err))
	}
	if saved.ID == "" {
		saved.ID = c.EditingID()
	}

	s.record(ctx, p, action, fmt.Sprintf("quotation %s for %s, grand total %s", saved.ID, customerLabel(customer), q.GrandTotal))
	s.logger.Info().Str("quotation_id", saved.ID.String()).Str("session_id", common.SessionID(ctx)).Str("action", action).Msg("quotation saved")
	c.Clear()
	return saved, nil
}

// Build freezes the cart into a quotation. Amounts are serialized with two
// decimal places. A revised quotation keeps its original creation date.
func Build(c *cart.Cart, customer catalog.Customer, at time.Time, author string) catalog.Quotation {
	created := at.UTC()
	if c.Mode() == cart.ModeEditing && !c.CreatedAt().IsZero() {
		created = c.CreatedAt()
	}
	summary := c.Summary()
	lines := c.Lines()
	items := make([]catalog.QuotationItem, 0, len(lines))
	for _, l := range lines {
		pl := pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity, GSTRate: l.GSTRate}
		items = append(items, catalog.QuotationItem{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Description: l.Description,
			UnitPrice:   money.Wire(l.UnitPrice),
			Quantity:    l.Quantity,
			GSTRate:     money.Wire(l.GSTRate),
			LineTotal:   money.Wire(pl.Value()),
		})
	}
	return catalog.Quotation{
		ID:              c.EditingID(),
		Customer:        customer,
		Items:           items,
		DiscountPercent: money.Wire(summary.DiscountPercent),
		SubTotal:        money.Wire(summary.SubTotal),
		DiscountAmount:  money.Wire(summary.DiscountAmount),
		TotalGSTAmount:  money.Wire(summary.TotalGST),
		GrandTotal:      money.Wire(summary.GrandTotal),
		DateCreated:     created,
		CreatedBy:       author,
	}
}

// BeginEdit loads a stored quotation into the cart in editing mode.
func (s *Service) BeginEdit(ctx context.Context, _ common.Principal, c *cart.Cart, id catalog.ID) error {
	q, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return catalog.ToAppError(fmt.Errorf("load quotation %s: %w", id, err))
	}
	if err := c.LoadQuotation(q); err != nil {
		return common.NewAppError("INVALID_QUOTATION", "stored quotation has malformed amounts", http.StatusUnprocessableEntity, err)
	}
	return nil
}

// Get fetches one stored quotation.
func (s *Service) Get(ctx context.Context, id catalog.ID) (catalog.Quotation, error) {
	q, err := s.store.GetQuotation(ctx, id)
	if err != nil {
		return catalog.Quotation{}, catalog.ToAppError(err)
	}
	return q, nil
}

// List returns one page of stored quotations, newest first.
func (s *Service) List(ctx context.Context, page, perPage int) ([]catalog.Quotation, common.Pagination, error) {
	all, err := s.store.ListQuotations(ctx)
	if err != nil {
		return nil, common.Pagination{}, catalog.ToAppError(err)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].DateCreated.After(all[j].DateCreated) })
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	meta := common.Pagination{Page: page, PerPage: perPage, TotalItems: len(all)}
	start := (page - 1) * perPage
	if start >= len(all) {
		return []catalog.Quotation{}, meta, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], meta, nil
}

// Delete removes a stored quotation.
func (s *Service) Delete(ctx context.Context, p common.Principal, id catalog.ID) error {
	if err := s.store.DeleteQuotation(ctx, id); err != nil {
		return catalog.ToAppError(fmt.Errorf("delete quotation %s: %w", id, err))
	}
	s.record(ctx, p, audit.ActionQuotationDeleted, "quotation "+id.String())
	return nil
}

func (s *Service) record(ctx context.Context, p common.Principal, action, details string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, p, action, details); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("audit entry not recorded")
	}
}

func normalizeCustomer(c catalog.Customer) catalog.Customer {
	return catalog.Customer{
		Name:    strings.TrimSpace(c.Name),
		Phone:   strings.TrimSpace(c.Phone),
		Email:   strings.TrimSpace(c.Email),
		Address: strings.TrimSpace(c.Address),
	}
}

func customerLabel(c catalog.Customer) string {
	if c.Name != "" {
		return c.Name
	}
	return c.Phone
}
