package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics("helpdesk_test")
	m.RecordRequest("/tickets/:id", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/tickets/:id", "GET", 200, 5*time.Millisecond)
	m.RecordTicketCreated("IT")
	m.RecordClassification("keyword", "HR")
	m.RecordChat("ok")

	if got := testutil.ToFloat64(m.requests.WithLabelValues("GET", "/tickets/:id", "200")); got != 2 {
		t.Fatalf("expected 2 requests, got %v", got)
	}
	if got := testutil.ToFloat64(m.ticketsCreated.WithLabelValues("IT")); got != 1 {
		t.Fatalf("expected 1 ticket, got %v", got)
	}
	if got := testutil.ToFloat64(m.classifications.WithLabelValues("keyword", "HR")); got != 1 {
		t.Fatalf("expected 1 classification, got %v", got)
	}

	expected := `
# HELP helpdesk_test_chat_requests_total Chat relay calls, by outcome.
# TYPE helpdesk_test_chat_requests_total counter
helpdesk_test_chat_requests_total{outcome="ok"} 1
`
	if err := testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "helpdesk_test_chat_requests_total"); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "INTERNAL_ERROR")
	m.RecordTicketCreated("IT")
	m.RecordClassification("llm", "IT")
	m.RecordChat("error")
}
