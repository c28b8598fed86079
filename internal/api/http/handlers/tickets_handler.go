package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages ticket endpoints. Tickets are addressed by their
// ticket number in the :id parameter.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// Create handles POST /tickets.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), user, service.TicketCreateInput{
		Subject:     req.Subject,
		Description: req.Description,
		Department:  domain.Department(req.Department),
		Priority:    domain.TicketPriority(req.Priority),
		Attachments: req.Attachments,
	})
	if err != nil {
		return err
	}
	resp, err := h.render(c, ticket)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(dto.TicketMessageResponse{
		Message: "Ticket created successfully",
		Ticket:  resp,
	})
}

// ListMine handles GET /tickets/my-tickets.
func (h *TicketsHandler) ListMine(c *fiber.Ctx) error {
	return h.list(c, h.service.ListMine)
}

// ListAll handles GET /tickets/all.
func (h *TicketsHandler) ListAll(c *fiber.Ctx) error {
	return h.list(c, h.service.ListAll)
}

// ListDepartment handles GET /tickets/department.
func (h *TicketsHandler) ListDepartment(c *fiber.Ctx) error {
	return h.list(c, h.service.ListDepartment)
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Get(c.UserContext(), user, c.Params("id"))
	if err != nil {
		return err
	}
	return h.respond(c, ticket)
}

// Update handles PATCH /tickets/:id. Keys outside the allow-list reject the
// whole request.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &fields); err != nil {
		return apperrors.NewValidationError("Invalid request body", nil)
	}
	ticket, err := h.service.Update(c.UserContext(), user, c.Params("id"), fields)
	if err != nil {
		return err
	}
	return h.respond(c, ticket)
}

// UpdateStatus handles PATCH /tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketStatusRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.UpdateStatus(c.UserContext(), user, c.Params("id"), domain.TicketStatus(req.Status))
	if err != nil {
		return err
	}
	resp, err := h.render(c, ticket)
	if err != nil {
		return err
	}
	return c.JSON(dto.TicketMessageResponse{Message: "Ticket status updated successfully", Ticket: resp})
}

// AddComment handles POST /tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AddCommentRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.AddComment(c.UserContext(), user, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return h.respond(c, ticket)
}

// Assign handles POST /tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Assign(c.UserContext(), user, c.Params("id"), req.AgentID)
	if err != nil {
		return err
	}
	return h.respond(c, ticket)
}

// Stats handles GET /tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), user)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketStatsResponse(stats))
}

// Categorize handles POST /tickets/categorize.
func (h *TicketsHandler) Categorize(c *fiber.Ctx) error {
	var req dto.CategorizeRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	result, err := h.service.Categorize(c.UserContext(), req.Subject, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(dto.CategorizationResponse{
		Department: result.Department,
		Confidence: result.Confidence,
		Reason:     result.Reason,
	})
}

type listFunc func(ctx context.Context, caller *domain.User, opts service.TicketListOptions) ([]domain.Ticket, error)

func (h *TicketsHandler) list(c *fiber.Ctx, fetch listFunc) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	opts, err := parseTicketListQuery(c)
	if err != nil {
		return err
	}
	tickets, err := fetch(c.UserContext(), user, opts)
	if err != nil {
		return err
	}
	users, err := h.service.ResolveUsers(c.UserContext(), tickets...)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewTicketResponses(tickets, users))
}

func (h *TicketsHandler) respond(c *fiber.Ctx, ticket *domain.Ticket) error {
	resp, err := h.render(c, ticket)
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (h *TicketsHandler) render(c *fiber.Ctx, ticket *domain.Ticket) (dto.TicketResponse, error) {
	users, err := h.service.ResolveUsers(c.UserContext(), *ticket)
	if err != nil {
		return dto.TicketResponse{}, err
	}
	return dto.NewTicketResponse(ticket, users), nil
}
