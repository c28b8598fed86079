package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/spec-kit/helpdesk/internal/ai"
	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestKeywordOnlyITMatches(t *testing.T) {
	got := NewKeyword().Classify(context.Background(), "Laptop crash", "My laptop shows an error")
	if got.Department != domain.DepartmentIT {
		t.Fatalf("expected IT, got %s (%s)", got.Department, got.Reason)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("expected confidence 1.0, got %v", got.Confidence)
	}
}

func TestKeywordNoMatchesDefaultsToAdmin(t *testing.T) {
	got := NewKeyword().Classify(context.Background(), "Lunch today", "Who is in?")
	if got.Department != domain.DepartmentAdmin || got.Confidence != 0 {
		t.Fatalf("expected Admin with zero confidence, got %+v", got)
	}
}

func TestKeywordHRWins(t *testing.T) {
	got := NewKeyword().Classify(context.Background(), "Vacation days", "How much annual vacation and sick time do I get?")
	if got.Department != domain.DepartmentHR {
		t.Fatalf("expected HR, got %+v", got)
	}
	if got.Confidence <= 0 || got.Confidence > 1 {
		t.Fatalf("confidence out of range: %v", got.Confidence)
	}
}

func TestKeywordTieDefaultsToAdmin(t *testing.T) {
	// "salary" is HR only, "laptop" is IT only.
	got := NewKeyword().Classify(context.Background(), "", "salary laptop")
	if got.Department != domain.DepartmentAdmin {
		t.Fatalf("expected Admin on tie, got %+v", got)
	}
	if got.Confidence != 0.5 {
		t.Fatalf("expected confidence 0.5, got %v", got.Confidence)
	}
}

type stubGenerator struct {
	reply string
	err   error
}

func (s stubGenerator) Generate(context.Context, ai.Prompt) (string, error) {
	return s.reply, s.err
}

func TestLLMParsesFencedReply(t *testing.T) {
	reply := "```json\n{\"department\":\"HR\",\"confidence\":0.8,\"reason\":\"payroll\"}\n```"
	got := NewLLM(stubGenerator{reply: reply}).Classify(context.Background(), "s", "d")
	if got.Department != domain.DepartmentHR || got.Confidence != 0.8 || got.Reason != "payroll" {
		t.Fatalf("unexpected result %+v", got)
	}
}

func TestLLMFallbacks(t *testing.T) {
	cases := map[string]stubGenerator{
		"transport error":     {err: errors.New("boom")},
		"not json":            {reply: "IT, probably"},
		"unknown department":  {reply: `{"department":"Sales","confidence":0.9}`},
		"confidence too high": {reply: `{"department":"IT","confidence":1.7}`},
		"missing confidence":  {reply: `{"department":"IT"}`},
	}
	for name, gen := range cases {
		got := NewLLM(gen).Classify(context.Background(), "s", "d")
		if got != llmFallback() {
			t.Fatalf("%s: expected fallback, got %+v", name, got)
		}
	}
}

func TestNewSelectsStrategy(t *testing.T) {
	c, err := New(StrategyKeyword, nil)
	if err != nil || c.Name() != StrategyKeyword {
		t.Fatalf("expected keyword classifier, got %v %v", c, err)
	}
	if _, err := New(StrategyLLM, nil); err == nil {
		t.Fatalf("expected error without generator")
	}
	if _, err := New("magic", nil); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
