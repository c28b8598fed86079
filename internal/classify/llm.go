package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk/internal/ai"
	"github.com/spec-kit/helpdesk/internal/domain"
)

const llmSystemPrompt = `You route helpdesk tickets to one department: IT, HR or Admin.
Reply with a single JSON object and nothing else:
{"department": "IT" | "HR" | "Admin", "confidence": <number between 0 and 1>, "reason": "<one sentence>"}`

// LLM delegates classification to a text-generation API.
type LLM struct {
	generator ai.Generator
}

// NewLLM returns a classifier backed by generator.
func NewLLM(generator ai.Generator) *LLM {
	return &LLM{generator: generator}
}

func (l *LLM) Name() string { return StrategyLLM }

// Classify asks the model for a department. Any transport, parse or
// validation failure yields the fixed fallback result.
func (l *LLM) Classify(ctx context.Context, subject, description string) Result {
	reply, err := l.generator.Generate(ctx, ai.Prompt{
		System: llmSystemPrompt,
		User:   fmt.Sprintf("Subject: %s\n\nDescription: %s", subject, description),
	})
	if err != nil {
		return llmFallback()
	}
	result, ok := parseLLMReply(reply)
	if !ok {
		return llmFallback()
	}
	return result
}

func llmFallback() Result {
	return Result{Department: domain.DepartmentIT, Confidence: 0.5, Reason: "fallback"}
}

func parseLLMReply(reply string) (Result, bool) {
	body := stripCodeFence(reply)

	var raw struct {
		Department string   `json:"department"`
		Confidence *float64 `json:"confidence"`
		Reason     string   `json:"reason"`
	}
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return Result{}, false
	}
	dept := domain.Department(raw.Department)
	if !dept.Valid() || raw.Confidence == nil {
		return Result{}, false
	}
	if *raw.Confidence < 0 || *raw.Confidence > 1 {
		return Result{}, false
	}
	return Result{Department: dept, Confidence: *raw.Confidence, Reason: strings.TrimSpace(raw.Reason)}, true
}

// stripCodeFence removes a surrounding ``` or ```json fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
