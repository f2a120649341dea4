package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/quotedesk/internal/catalog"
)

// TaskTypeAppend is the asynq task type carrying one audit entry.
const TaskTypeAppend = "audit:append"

// Appender writes entries to the store's audit log.
type Appender interface {
	AppendAudit(ctx context.Context, e catalog.AuditEntry) error
}

// GatewaySink writes entries synchronously to the store.
type GatewaySink struct {
	Appender Appender
}

func (GatewaySink) Name() string { return "gateway" }

// Deliver implements Sink.
func (s GatewaySink) Deliver(ctx context.Context, entry catalog.AuditEntry) error {
	if s.Appender == nil {
		return errors.New("audit: appender not configured")
	}
	return s.Appender.AppendAudit(ctx, entry)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSink hands entries to the worker through asynq.
type QueueSink struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
}

func (QueueSink) Name() string { return "queue" }

// Deliver implements Sink.
func (s QueueSink) Deliver(ctx context.Context, entry catalog.AuditEntry) error {
	if s.Client == nil {
		return errors.New("audit: queue client not configured")
	}
	task, err := NewAppendTask(entry)
	if err != nil {
		return err
	}
	maxRetry := s.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	opts := []asynq.Option{asynq.MaxRetry(maxRetry)}
	if s.Queue != "" {
		opts = append(opts, asynq.Queue(s.Queue))
	}
	_, err = s.Client.EnqueueContext(ctx, task, opts...)
	return err
}

// NewAppendTask encodes entry as an asynq task.
func NewAppendTask(entry catalog.AuditEntry) (*asynq.Task, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("audit: encode task: %w", err)
	}
	return asynq.NewTask(TaskTypeAppend, payload), nil
}

// AppendHandler processes queued audit entries by writing them to the store.
type AppendHandler struct {
	Appender Appender
}

// ProcessTask implements asynq.Handler. Undecodable payloads are skipped
// rather than retried.
func (h AppendHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var entry catalog.AuditEntry
	if err := json.Unmarshal(t.Payload(), &entry); err != nil {
		return fmt.Errorf("audit: decode task: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.Appender.AppendAudit(ctx, entry); err != nil {
		return fmt.Errorf("audit: append: %w", err)
	}
	return nil
}
