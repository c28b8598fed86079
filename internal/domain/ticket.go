package domain

import (
	"fmt"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketNumberPrefix prefixes every human readable ticket number.
const TicketNumberPrefix = "TK-"

// FormatTicketNumber renders a counter value as TK-NNN.
func FormatTicketNumber(seq int64) string {
	return fmt.Sprintf("%s%03d", TicketNumberPrefix, seq)
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID               string
	TicketNumber     string
	Subject          string
	Description      string
	Status           TicketStatus
	Priority         TicketPriority
	Department       Department
	CreatedBy        string
	AssignedTo       *string
	Comments         []Comment
	Attachments      []string
	AICategorization *Categorization
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsOwnedBy reports whether userID created the ticket.
func (t *Ticket) IsOwnedBy(userID string) bool {
	return t != nil && t.CreatedBy == userID
}

// IsAssignedTo reports whether userID is the ticket's assignee.
func (t *Ticket) IsAssignedTo(userID string) bool {
	return t != nil && t.AssignedTo != nil && *t.AssignedTo == userID
}

// Comment is an append-only note on a ticket thread.
type Comment struct {
	Text      string
	AuthorID  string
	CreatedAt time.Time
}

// Categorization is the advisory department guess stored with a ticket.
type Categorization struct {
	Department    Department `json:"department" bson:"department"`
	Confidence    float64    `json:"confidence" bson:"confidence"`
	Reason        string     `json:"reason" bson:"reason"`
	CategorizedAt time.Time  `json:"categorizedAt" bson:"categorizedAt"`
}

// TicketStats holds dashboard counters.
type TicketStats struct {
	Open       int64
	InProgress int64
	Resolved   int64
	Urgent     int64
}
