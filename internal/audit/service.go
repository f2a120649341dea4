package audit

import (
	"context"
	"errors"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/obs"
)

// Action names recorded by the quotation flow.
const (
	ActionQuotationCreated = "quotation.created"
	ActionQuotationUpdated = "quotation.updated"
	ActionQuotationDeleted = "quotation.deleted"
)

// Sink delivers audit entries to their destination.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, entry catalog.AuditEntry) error
}

// Service records audit entries for quotation and catalog changes. Delivery
// failures are logged and counted; callers treat them as non-fatal.
type Service struct {
	Sink         Sink
	Enabled      bool
	SamplingRate float64
	Logger       zerolog.Logger
}

// Record appends an entry attributed to p.
func (s Service) Record(ctx context.Context, p common.Principal, action, details string) error {
	if !s.Enabled {
		return nil
	}
	if s.SamplingRate > 0 && s.SamplingRate < 1 {
		if rand.Float64() > s.SamplingRate {
			return nil
		}
	}
	if s.Sink == nil {
		return errors.New("audit: sink not configured")
	}
	entry := catalog.AuditEntry{
		Action:  strings.TrimSpace(action),
		Role:    strings.TrimSpace(p.Role),
		Details: details,
		User:    p.DisplayName(),
	}
	if entry.User == "" {
		entry.User = "anonymous"
	}
	if err := s.Sink.Deliver(ctx, entry); err != nil {
		obs.CountAuditWrite(s.Sink.Name(), "error")
		s.Logger.Warn().Err(err).Str("action", entry.Action).Str("sink", s.Sink.Name()).Msg("audit write failed")
		return err
	}
	obs.CountAuditWrite(s.Sink.Name(), "ok")
	return nil
}
