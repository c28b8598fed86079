package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Subject     string   `json:"subject" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Department  string   `json:"department" validate:"required,department"`
	Priority    string   `json:"priority" validate:"omitempty,ticket_priority"`
	Attachments []string `json:"attachments"`
}

// UpdateTicketStatusRequest payload. The status value is checked after the
// ticket is loaded so lookup and access errors come first.
type UpdateTicketStatusRequest struct {
	Status string `json:"status"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Text string `json:"text" validate:"required"`
}

// AssignTicketRequest payload.
type AssignTicketRequest struct {
	AgentID string `json:"agentId" validate:"required"`
}

// CategorizeRequest asks for a department suggestion without storing anything.
type CategorizeRequest struct {
	Subject     string `json:"subject" validate:"required"`
	Description string `json:"description" validate:"required"`
}

// UserSummary is the populated view of a ticket's creator or assignee.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// CommentResponse represents one entry of the comment thread.
type CommentResponse struct {
	Text      string       `json:"text"`
	User      *UserSummary `json:"user"`
	CreatedAt time.Time    `json:"createdAt"`
}

// TicketResponse is the full ticket view.
type TicketResponse struct {
	ID               string                 `json:"id"`
	TicketNumber     string                 `json:"ticketNumber"`
	Subject          string                 `json:"subject"`
	Description      string                 `json:"description"`
	Status           domain.TicketStatus    `json:"status"`
	Priority         domain.TicketPriority  `json:"priority"`
	Department       domain.Department      `json:"department"`
	CreatedBy        *UserSummary           `json:"createdBy"`
	AssignedTo       *UserSummary           `json:"assignedTo"`
	Comments         []CommentResponse      `json:"comments"`
	Attachments      []string               `json:"attachments"`
	AICategorization *domain.Categorization `json:"aiCategorization,omitempty"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// TicketMessageResponse pairs a confirmation message with the ticket.
type TicketMessageResponse struct {
	Message string         `json:"message"`
	Ticket  TicketResponse `json:"ticket"`
}

// TicketStatsResponse holds dashboard counters.
type TicketStatsResponse struct {
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Urgent     int64 `json:"urgent"`
}

// CategorizationResponse is the classifier's suggestion.
type CategorizationResponse struct {
	Department domain.Department `json:"department"`
	Confidence float64           `json:"confidence"`
	Reason     string            `json:"reason"`
}

// NewTicketResponse renders t, populating people from users when known.
func NewTicketResponse(t *domain.Ticket, users map[string]domain.User) TicketResponse {
	comments := make([]CommentResponse, 0, len(t.Comments))
	for _, c := range t.Comments {
		comments = append(comments, CommentResponse{
			Text:      c.Text,
			User:      summarize(c.AuthorID, users),
			CreatedAt: c.CreatedAt,
		})
	}
	attachments := t.Attachments
	if attachments == nil {
		attachments = []string{}
	}
	resp := TicketResponse{
		ID:               t.ID,
		TicketNumber:     t.TicketNumber,
		Subject:          t.Subject,
		Description:      t.Description,
		Status:           t.Status,
		Priority:         t.Priority,
		Department:       t.Department,
		CreatedBy:        summarize(t.CreatedBy, users),
		Comments:         comments,
		Attachments:      attachments,
		AICategorization: t.AICategorization,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
	if t.AssignedTo != nil {
		resp.AssignedTo = summarize(*t.AssignedTo, users)
	}
	return resp
}

// NewTicketResponses renders a list in order.
func NewTicketResponses(tickets []domain.Ticket, users map[string]domain.User) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i], users))
	}
	return out
}

// NewTicketStatsResponse converts domain counters.
func NewTicketStatsResponse(s domain.TicketStats) TicketStatsResponse {
	return TicketStatsResponse{Open: s.Open, InProgress: s.InProgress, Resolved: s.Resolved, Urgent: s.Urgent}
}

func summarize(id string, users map[string]domain.User) *UserSummary {
	if id == "" {
		return nil
	}
	u, ok := users[id]
	if !ok {
		return &UserSummary{ID: id}
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email}
}
