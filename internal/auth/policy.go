package auth

import "github.com/spec-kit/helpdesk/internal/domain"

// Action names an operation on a ticket that is subject to access control.
type Action string

const (
	ActionView         Action = "view"
	ActionUpdate       Action = "update"
	ActionUpdateStatus Action = "update_status"
	ActionComment      Action = "comment"
	ActionAssign       Action = "assign"
	ActionChatContext  Action = "chat_context"
)

// Authorize is the single access policy for tickets. Every ticket operation
// consults it with the caller and the target ticket.
func Authorize(caller *domain.User, action Action, ticket *domain.Ticket) bool {
	if caller == nil || ticket == nil {
		return false
	}
	switch action {
	case ActionView, ActionUpdateStatus, ActionComment:
		return caller.IsAdmin() || ticket.IsOwnedBy(caller.ID) || caller.IsAgentOf(ticket.Department)
	case ActionUpdate:
		return caller.IsAdmin() || ticket.IsOwnedBy(caller.ID)
	case ActionAssign:
		return caller.IsAdmin()
	case ActionChatContext:
		return ticket.IsOwnedBy(caller.ID) || ticket.IsAssignedTo(caller.ID)
	}
	return false
}
