package observe

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/vango-dev/localstate/pkg/persist"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

type recordingProvider struct {
	noop.TracerProvider
	name   string
	tracer *recordingTracer
}

func (p *recordingProvider) Tracer(name string, _ ...trace.TracerOption) trace.Tracer {
	p.name = name
	return p.tracer
}

type recordingTracer struct {
	noop.Tracer
	spans []*recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordingSpan{
		name:  name,
		kind:  cfg.SpanKind(),
		start: cfg.Timestamp(),
		attrs: cfg.Attributes(),
	}
	t.spans = append(t.spans, s)
	return ctx, s
}

type recordingSpan struct {
	noop.Span
	name   string
	kind   trace.SpanKind
	start  time.Time
	end    time.Time
	ended  bool
	attrs  []attribute.KeyValue
	status codes.Code
	errs   []error
}

func (s *recordingSpan) End(opts ...trace.SpanEndOption) {
	s.ended = true
	cfg := trace.NewSpanEndConfig(opts...)
	s.end = cfg.Timestamp()
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) { s.status = code }

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordingSpan) attr(key string) (string, bool) {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value.AsString(), true
		}
	}
	return "", false
}

func newRecording() *recordingProvider {
	return &recordingProvider{tracer: &recordingTracer{}}
}

func TestTracerObserve(t *testing.T) {
	tp := newRecording()
	tr := NewTracer(WithTracerProvider(tp), WithTracerName("my-app"))

	start := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	tr.Observe(persist.Observation{
		Op:       persist.OpWrite,
		Key:      "theme",
		Outcome:  persist.OutcomeOK,
		Start:    start,
		Duration: 3 * time.Millisecond,
	})

	if tp.name != "my-app" {
		t.Errorf("tracer name = %q, want my-app", tp.name)
	}
	if len(tp.tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tp.tracer.spans))
	}
	s := tp.tracer.spans[0]
	if s.name != "localstate.write" {
		t.Errorf("span name = %q, want localstate.write", s.name)
	}
	if s.kind != trace.SpanKindClient {
		t.Errorf("span kind = %v, want client", s.kind)
	}
	if !s.start.Equal(start) || !s.end.Equal(start.Add(3*time.Millisecond)) {
		t.Errorf("span time = %v..%v", s.start, s.end)
	}
	if !s.ended {
		t.Error("span should be ended")
	}
	if s.status != codes.Ok {
		t.Errorf("status = %v, want Ok", s.status)
	}
	if v, _ := s.attr("localstate.key"); v != "theme" {
		t.Errorf("key attribute = %q, want theme", v)
	}
	if v, _ := s.attr("localstate.outcome"); v != "ok" {
		t.Errorf("outcome attribute = %q, want ok", v)
	}
}

func TestTracerRecordsErrors(t *testing.T) {
	tp := newRecording()
	tr := NewTracer(WithTracerProvider(tp))

	cause := stderrors.New("quota")
	tr.Observe(persist.Observation{Op: persist.OpWrite, Outcome: persist.OutcomeFailure, Err: cause})
	tr.Observe(persist.Observation{Op: persist.OpWrite, Outcome: persist.OutcomeUnsupported})

	spans := tp.tracer.spans
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}
	if spans[0].status != codes.Error || len(spans[0].errs) != 1 || spans[0].errs[0] != cause {
		t.Errorf("failure span status = %v, errs = %v", spans[0].status, spans[0].errs)
	}
	if spans[1].status != codes.Error {
		t.Errorf("unsupported span status = %v, want Error", spans[1].status)
	}
}

func TestTracerOptions(t *testing.T) {
	tp := newRecording()
	tr := NewTracer(
		WithTracerProvider(tp),
		WithIncludeKey(false),
		WithFilter(func(o persist.Observation) bool { return o.Op != persist.OpRead }),
	)

	tr.Observe(persist.Observation{Op: persist.OpRead, Key: "a"})
	tr.Observe(persist.Observation{Op: persist.OpSync, Key: "a", Outcome: persist.OutcomeReverted})

	if len(tp.tracer.spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(tp.tracer.spans))
	}
	if _, ok := tp.tracer.spans[0].attr("localstate.key"); ok {
		t.Error("key attribute should be omitted")
	}
	if tp.tracer.spans[0].name != "localstate.sync" {
		t.Errorf("span name = %q", tp.tracer.spans[0].name)
	}
}

func TestTracerDefaultProvider(t *testing.T) {
	tr := NewTracer()
	// The global provider is a no-op until configured.
	tr.Observe(persist.Observation{Op: persist.OpRead, Start: time.Now()})
	if tr.config.TracerName != defaultTracerName {
		t.Errorf("TracerName = %q, want %q", tr.config.TracerName, defaultTracerName)
	}
}
