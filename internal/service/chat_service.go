package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/ai"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const chatBasePrompt = `You are a helpful support assistant for a company help desk.
Provide clear, concise and accurate answers about IT, HR and administrative questions.
Give step-by-step solutions when possible and suggest submitting a support ticket when an issue needs a person.
Keep a professional and friendly tone and be clear about what you can and cannot help with.`

const (
	chatNotConfiguredMessage = "Chat service is not properly configured"
	chatUnavailableMessage   = "Chat service is temporarily unavailable"
)

// Policy is one knowledge base entry offered to the assistant as context.
type Policy struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
}

// LoadKnowledgeBase reads {"policies":[{"id":1,"content":"..."}]} from path.
// An empty path yields no policies.
func LoadKnowledgeBase(path string) ([]Policy, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	var kb struct {
		Policies []Policy `json:"policies"`
	}
	if err := json.Unmarshal(raw, &kb); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	return kb.Policies, nil
}

// ChatReply is the assistant's answer.
type ChatReply struct {
	Message   string
	Timestamp time.Time
}

// ChatService relays messages to the text-generation API. It keeps no
// conversation state between calls.
type ChatService struct {
	generator    ai.Generator
	tickets      repository.TicketRepository
	metrics      *observability.Metrics
	logger       *zap.Logger
	systemPrompt string
	now          func() time.Time
}

// ChatDependencies bundles collaborators for the chat service.
type ChatDependencies struct {
	Generator  ai.Generator
	TicketRepo repository.TicketRepository
	Policies   []Policy
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(deps ChatDependencies) *ChatService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatService{
		generator:    deps.Generator,
		tickets:      deps.TicketRepo,
		metrics:      deps.Metrics,
		logger:       logger,
		systemPrompt: buildSystemPrompt(deps.Policies),
		now:          time.Now,
	}
}

// Reply answers message. When ticketRef names a ticket the caller owns or
// is assigned to, its fields are included as context; any other reference
// is ignored without error.
func (s *ChatService) Reply(ctx context.Context, caller *domain.User, message, ticketRef string) (*ChatReply, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("Message is required", nil)
	}
	if s.generator == nil {
		s.metrics.RecordChat("not_configured")
		return nil, apperrors.NewInternalErrorMessage(chatNotConfiguredMessage, ai.ErrNotConfigured)
	}

	user := "User Query: " + message
	if ticket := s.contextTicket(ctx, caller, ticketRef); ticket != nil {
		user += "\n\nRelevant Ticket Data:\n" + describeTicket(ticket)
	}

	text, err := s.generator.Generate(ctx, ai.Prompt{System: s.systemPrompt, User: user})
	if err != nil {
		return nil, s.chatError(err)
	}
	s.metrics.RecordChat("ok")
	return &ChatReply{Message: text, Timestamp: s.now().UTC()}, nil
}

func (s *ChatService) contextTicket(ctx context.Context, caller *domain.User, ref string) *domain.Ticket {
	ref = strings.TrimSpace(ref)
	if ref == "" || s.tickets == nil {
		return nil
	}
	ticket, err := s.tickets.GetByNumber(ctx, ref)
	if errors.Is(err, repository.ErrNotFound) {
		ticket, err = s.tickets.GetByID(ctx, ref)
	}
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("chat ticket context lookup failed", zap.String("ticket", ref), zap.Error(err))
		}
		return nil
	}
	if !auth.Authorize(caller, auth.ActionChatContext, ticket) {
		return nil
	}
	return ticket
}

func (s *ChatService) chatError(err error) error {
	var upstream *ai.UpstreamError
	switch {
	case errors.Is(err, ai.ErrNotConfigured):
		s.metrics.RecordChat("not_configured")
		return apperrors.NewInternalErrorMessage(chatNotConfiguredMessage, err)
	case errors.As(err, &upstream), errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordChat("upstream_error")
		s.logger.Warn("chat upstream failed", zap.Error(err))
		return apperrors.NewUpstreamError(chatUnavailableMessage, err)
	}
	s.metrics.RecordChat("error")
	return apperrors.NewInternalError(err)
}

func buildSystemPrompt(policies []Policy) string {
	if len(policies) == 0 {
		return chatBasePrompt
	}
	var sb strings.Builder
	sb.WriteString(chatBasePrompt)
	sb.WriteString("\n\nCompany Policy Information:\n")
	for _, p := range policies {
		if content := strings.TrimSpace(p.Content); content != "" {
			sb.WriteString("- ")
			sb.WriteString(content)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\nAnswer policy questions only from the information above. ")
	sb.WriteString("If the answer is not there, suggest submitting a support ticket.")
	return sb.String()
}

func describeTicket(t *domain.Ticket) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Ticket: %s\n", t.TicketNumber)
	fmt.Fprintf(&sb, "Subject: %s\n", t.Subject)
	fmt.Fprintf(&sb, "Description: %s\n", t.Description)
	fmt.Fprintf(&sb, "Status: %s\n", t.Status)
	fmt.Fprintf(&sb, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&sb, "Department: %s\n", t.Department)
	fmt.Fprintf(&sb, "Created: %s\n", t.CreatedAt.UTC().Format(time.RFC3339))
	for _, c := range t.Comments {
		fmt.Fprintf(&sb, "Comment (%s): %s\n", c.CreatedAt.UTC().Format(time.RFC3339), c.Text)
	}
	return sb.String()
}
