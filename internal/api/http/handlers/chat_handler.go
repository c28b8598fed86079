package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/service"
)

// ChatHandler relays questions to the support assistant.
type ChatHandler struct {
	chat *service.ChatService
}

// NewChatHandler constructs handler.
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chatService}
}

// Reply handles POST /chat.
func (h *ChatHandler) Reply(c *fiber.Ctx) error {
	user, err := currentUser(c)
	if err != nil {
		return err
	}
	var req dto.ChatRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	reply, err := h.chat.Reply(c.UserContext(), user, req.Message, req.TicketID)
	if err != nil {
		return err
	}
	return c.JSON(dto.ChatResponse{Message: reply.Message, Timestamp: reply.Timestamp})
}
