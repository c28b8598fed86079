// Package classify suggests a department for a ticket from its text.
// Suggestions are advisory and never replace the department the
// submitter chose.
package classify

import (
	"context"
	"fmt"

	"github.com/spec-kit/helpdesk/internal/ai"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// Strategy names accepted by AI_CLASSIFIER.
const (
	StrategyKeyword = "keyword"
	StrategyLLM     = "llm"
)

// Result is a department suggestion with a confidence in [0,1].
type Result struct {
	Department domain.Department `json:"department"`
	Confidence float64           `json:"confidence"`
	Reason     string            `json:"reason"`
}

// Classifier maps free text to a department. Implementations never fail;
// they fall back to a fixed low-confidence result instead.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, subject, description string) Result
}

// New returns the classifier for the given strategy.
func New(strategy string, generator ai.Generator) (Classifier, error) {
	switch strategy {
	case "", StrategyKeyword:
		return NewKeyword(), nil
	case StrategyLLM:
		if generator == nil {
			return nil, fmt.Errorf("llm classifier requires a text generator")
		}
		return NewLLM(generator), nil
	default:
		return nil, fmt.Errorf("unknown classifier strategy %q", strategy)
	}
}
