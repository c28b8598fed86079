package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
)

var itKeywords = []string{
	"computer", "laptop", "desktop", "hardware", "printer", "scanner", "device", "monitor", "keyboard", "mouse",
	"software", "application", "app", "program", "update", "install", "uninstall", "patch", "version",
	"network", "wifi", "internet", "connection", "server", "database", "cloud", "vpn", "firewall",
	"password", "login", "access", "security", "authentication", "authorization", "encryption",
	"error", "bug", "crash", "slow", "performance", "issue", "problem", "trouble", "not working",
	"technical", "system", "configuration", "settings", "backup", "restore", "maintenance",
}

var hrKeywords = []string{
	"employee", "staff", "personnel", "hiring", "recruitment", "interview", "resume", "candidate",
	"benefit", "insurance", "health", "dental", "vision", "coverage", "claim",
	"leave", "vacation", "sick", "time off", "absence", "attendance",
	"salary", "compensation", "pay", "bonus", "raise", "promotion", "increment",
	"training", "development", "course", "learning", "workshop", "seminar",
	"performance", "review", "appraisal", "evaluation", "feedback",
	"policy", "procedure", "guideline", "workplace", "environment",
}

var adminKeywords = []string{
	"office", "facility", "maintenance", "clean", "supply", "stationery", "equipment",
	"schedule", "meeting", "room", "booking", "reservation", "calendar",
	"travel", "expense", "reimbursement", "claim", "receipt", "invoice",
	"document", "form", "approval", "request", "permission", "authorization",
	"general", "inquiry", "information", "assistance", "help", "support",
	"compliance", "regulation", "policy", "procedure", "guideline",
}

// Keyword scores the text against fixed per-department keyword sets.
type Keyword struct {
	sets []keywordSet
}

type keywordSet struct {
	department domain.Department
	words      []string
}

// NewKeyword returns the keyword classifier.
func NewKeyword() *Keyword {
	return &Keyword{sets: []keywordSet{
		{department: domain.DepartmentIT, words: itKeywords},
		{department: domain.DepartmentHR, words: hrKeywords},
		{department: domain.DepartmentAdmin, words: adminKeywords},
	}}
}

func (k *Keyword) Name() string { return StrategyKeyword }

// Classify counts, per set, how many keywords occur in the text. The subject
// is counted twice to weight it over the description. The set with the most
// hits wins; no hits or a tie for first place yields Admin.
func (k *Keyword) Classify(_ context.Context, subject, description string) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				Department: domain.DepartmentAdmin,
				Confidence: 0.5,
				Reason:     "Error in categorization, defaulting to Admin",
			}
		}
	}()

	content := strings.ToLower(subject + " " + subject + " " + description)

	hits := make([]int, len(k.sets))
	total := 0
	for i, set := range k.sets {
		for _, word := range set.words {
			if strings.Contains(content, word) {
				hits[i]++
			}
		}
		total += hits[i]
	}

	if total == 0 {
		return Result{
			Department: domain.DepartmentAdmin,
			Confidence: 0,
			Reason:     "No specific department keywords found, defaulting to Admin",
		}
	}

	best, tied := 0, false
	for i := 1; i < len(hits); i++ {
		switch {
		case hits[i] > hits[best]:
			best, tied = i, false
		case hits[i] == hits[best]:
			tied = true
		}
	}

	confidence := float64(hits[best]) / float64(total)
	if tied {
		return Result{
			Department: domain.DepartmentAdmin,
			Confidence: confidence,
			Reason:     fmt.Sprintf("Keyword matches tied at %d, defaulting to Admin", hits[best]),
		}
	}
	winner := k.sets[best]
	return Result{
		Department: winner.department,
		Confidence: confidence,
		Reason:     fmt.Sprintf("Found %d %s-related keywords (%.1f%% confidence)", hits[best], winner.department, confidence*100),
	}
}
