package audit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/quotedesk/internal/catalog"
	"github.com/noah-isme/quotedesk/internal/common"
	"github.com/noah-isme/quotedesk/internal/obs"
)

type stubAppender struct {
	entries []catalog.AuditEntry
	err     error
}

func (s *stubAppender) AppendAudit(_ context.Context, e catalog.AuditEntry) error {
	if s.err != nil {
		return s.err
	}
	s.entries = append(s.entries, e)
	return nil
}

type stubEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
}

func (s *stubEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	s.tasks = append(s.tasks, task)
	s.opts = append(s.opts, opts)
	return &asynq.TaskInfo{ID: "t-1", Type: task.Type()}, nil
}

var admin = common.Principal{UserID: "u-1", Name: "Asha", Role: "admin"}

func TestServiceRecord(t *testing.T) {
	appender := &stubAppender{}
	svc := Service{Sink: GatewaySink{Appender: appender}, Enabled: true, SamplingRate: 1, Logger: zerolog.Nop()}

	if err := svc.Record(context.Background(), admin, ActionQuotationCreated, "quotation q-1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(appender.entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(appender.entries))
	}
	got := appender.entries[0]
	if got.Action != ActionQuotationCreated || got.Role != "admin" || got.User != "Asha" || got.Details != "quotation q-1" {
		t.Fatalf("unexpected entry: %+v", got)
	}
}

func TestServiceRecordRequest(t *testing.T) {
	appender := &stubAppender{}
	svc := Service{Sink: GatewaySink{Appender: appender}, Enabled: true, Logger: zerolog.Nop()}

	req := httptest.NewRequest(http.MethodPost, "https://api.test/api/v1/gst-rules?source=admin", nil)
	req.Header.Set("X-Request-ID", "req-123")
	req.RemoteAddr = "10.0.0.2:54321"
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/gst-rules"))

	if err := svc.RecordRequest(req.Context(), admin, Route{}, req, http.StatusCreated, map[string]any{"extra": "x"}); err != nil {
		t.Fatalf("record: %v", err)
	}
	got := appender.entries[0]
	if got.Action != "POST /api/v1/gst-rules" {
		t.Fatalf("unexpected action: %s", got.Action)
	}
	var details map[string]any
	if err := json.Unmarshal([]byte(got.Details), &details); err != nil {
		t.Fatalf("details json: %v", err)
	}
	if details["resource"] != "gst-rules" {
		t.Fatalf("unexpected resource: %v", details["resource"])
	}
	if details["ip"] != "10.0.0.2" || details["requestId"] != "req-123" || details["query"] != "source=admin" || details["extra"] != "x" {
		t.Fatalf("unexpected details: %v", details)
	}
}

func TestServiceRecordDisabled(t *testing.T) {
	appender := &stubAppender{}
	svc := Service{Sink: GatewaySink{Appender: appender}, Enabled: false}
	if err := svc.Record(context.Background(), admin, "x", ""); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(appender.entries) != 0 {
		t.Fatal("expected no entry when disabled")
	}
}

func TestServiceRecordReportsSinkFailure(t *testing.T) {
	svc := Service{Sink: GatewaySink{Appender: &stubAppender{err: errors.New("down")}}, Enabled: true, Logger: zerolog.Nop()}
	if err := svc.Record(context.Background(), common.Principal{}, "x", ""); err == nil {
		t.Fatal("expected sink error")
	}
}

func TestQueueSinkRoundTrip(t *testing.T) {
	enq := &stubEnqueuer{}
	svc := Service{Sink: QueueSink{Client: enq, Queue: "audit"}, Enabled: true, Logger: zerolog.Nop()}
	if err := svc.Record(context.Background(), admin, ActionQuotationDeleted, "q-9"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TaskTypeAppend {
		t.Fatalf("unexpected tasks: %+v", enq.tasks)
	}

	appender := &stubAppender{}
	if err := (AppendHandler{Appender: appender}).ProcessTask(context.Background(), enq.tasks[0]); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(appender.entries) != 1 || appender.entries[0].Details != "q-9" {
		t.Fatalf("unexpected delivered entries: %+v", appender.entries)
	}
}

func TestAppendHandlerSkipsBadPayload(t *testing.T) {
	err := (AppendHandler{Appender: &stubAppender{}}).ProcessTask(context.Background(), asynq.NewTask(TaskTypeAppend, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestHTTPRecorderSkipsFailedRequests(t *testing.T) {
	appender := &stubAppender{}
	svc := &Service{Sink: GatewaySink{Appender: appender}, Enabled: true, Logger: zerolog.Nop()}
	rec := HTTPRecorder{Service: svc}

	status := http.StatusCreated
	h := rec.Middleware(Route{Resource: "items"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/items", nil)
	req = req.WithContext(common.WithPrincipal(req.Context(), admin))
	h.ServeHTTP(httptest.NewRecorder(), req)

	status = http.StatusUnprocessableEntity
	h.ServeHTTP(httptest.NewRecorder(), req)

	if len(appender.entries) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(appender.entries))
	}
	if appender.entries[0].User != "Asha" {
		t.Fatalf("unexpected user: %s", appender.entries[0].User)
	}
}
