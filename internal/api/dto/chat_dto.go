package dto

import "time"

// ChatRequest payload. TicketID may be a ticket number or storage id.
type ChatRequest struct {
	Message  string `json:"message" validate:"required"`
	TicketID string `json:"ticketId"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
