package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// MemoryUserRepository keeps users in process memory. It backs the
// "memory" store driver and store-independent tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users map[string]*memoryUser
	seq   int64
	now   func() time.Time
}

type memoryUser struct {
	user domain.User
	seq  int64
}

// NewMemoryUserRepository creates an empty repository.
func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[string]*memoryUser), now: time.Now}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.emailTaken(user.Email, "") {
		return ErrDuplicate
	}
	now := r.now()
	user.ID = uuid.NewString()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.seq++
	r.users[user.ID] = &memoryUser{user: cloneUser(*user), seq: r.seq}
	return nil
}

func (r *MemoryUserRepository) Update(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return ErrDuplicate
	}
	user.CreatedAt = stored.user.CreatedAt
	user.UpdatedAt = r.now()
	stored.user = cloneUser(*user)
	return nil
}

func (r *MemoryUserRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	user := cloneUser(stored.user)
	return &user, nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, stored := range r.users {
		if stored.user.Email == email {
			user := cloneUser(stored.user)
			return &user, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryUserRepository) List(_ context.Context) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]*memoryUser, 0, len(r.users))
	for _, stored := range r.users {
		entries = append(entries, stored)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq > entries[j].seq })
	result := make([]domain.User, 0, len(entries))
	for _, e := range entries {
		result = append(result, cloneUser(e.user))
	}
	return result, nil
}

func (r *MemoryUserRepository) ListByIDs(_ context.Context, ids []string) ([]domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.User
	for _, id := range ids {
		if stored, ok := r.users[id]; ok {
			result = append(result, cloneUser(stored.user))
		}
	}
	return result, nil
}

func (r *MemoryUserRepository) Stats(_ context.Context) (domain.UserStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats domain.UserStats
	for _, stored := range r.users {
		stats.Total++
		switch stored.user.Role {
		case domain.RoleAgent:
			stats.Agents++
		case domain.RoleUser:
			stats.Employees++
		case domain.RoleAdmin:
			stats.Admins++
		}
	}
	return stats, nil
}

func (r *MemoryUserRepository) emailTaken(email, exceptID string) bool {
	for id, stored := range r.users {
		if id != exceptID && strings.EqualFold(stored.user.Email, email) {
			return true
		}
	}
	return false
}

func cloneUser(u domain.User) domain.User {
	if u.Department != nil {
		dept := *u.Department
		u.Department = &dept
	}
	return u
}

// MemoryTicketRepository keeps tickets in process memory.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]*memoryTicket
	seq     int64
	now     func() time.Time
}

type memoryTicket struct {
	ticket domain.Ticket
	seq    int64
}

// NewMemoryTicketRepository creates an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]*memoryTicket), now: time.Now}
}

func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, stored := range r.tickets {
		if stored.ticket.TicketNumber == ticket.TicketNumber {
			return ErrDuplicate
		}
	}
	now := r.now()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Comments == nil {
		ticket.Comments = []domain.Comment{}
	}
	if ticket.Attachments == nil {
		ticket.Attachments = []string{}
	}
	r.seq++
	r.tickets[ticket.ID] = &memoryTicket{ticket: cloneTicket(*ticket), seq: r.seq}
	return nil
}

func (r *MemoryTicketRepository) UpdateFields(_ context.Context, id string, changes TicketChanges) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	t := &stored.ticket
	if changes.Subject != nil {
		t.Subject = *changes.Subject
	}
	if changes.Description != nil {
		t.Description = *changes.Description
	}
	if changes.Status != nil {
		t.Status = *changes.Status
	}
	if changes.Priority != nil {
		t.Priority = *changes.Priority
	}
	if changes.Department != nil {
		t.Department = *changes.Department
	}
	if changes.AssignedTo != nil {
		assignee := *changes.AssignedTo
		t.AssignedTo = &assignee
	}
	t.UpdatedAt = r.now()
	out := cloneTicket(*t)
	return &out, nil
}

func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	stored, ok := r.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	ticket := cloneTicket(stored.ticket)
	return &ticket, nil
}

func (r *MemoryTicketRepository) GetByNumber(_ context.Context, number string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, stored := range r.tickets {
		if stored.ticket.TicketNumber == number {
			ticket := cloneTicket(stored.ticket)
			return &ticket, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryTicketRepository) List(_ context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matches := make([]*memoryTicket, 0, len(r.tickets))
	for _, stored := range r.tickets {
		if ticketMatches(&stored.ticket, filter) {
			matches = append(matches, stored)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].seq > matches[j].seq })

	start := 0
	end := len(matches)
	if filter.Limit > 0 {
		if filter.Offset > 0 {
			start = filter.Offset
		}
		if start > end {
			start = end
		}
		if start+filter.Limit < end {
			end = start + filter.Limit
		}
	}
	result := make([]domain.Ticket, 0, end-start)
	for _, m := range matches[start:end] {
		result = append(result, cloneTicket(m.ticket))
	}
	return result, nil
}

func (r *MemoryTicketRepository) AddComment(_ context.Context, ticketID string, comment domain.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tickets[ticketID]
	if !ok {
		return ErrNotFound
	}
	comments := make([]domain.Comment, len(stored.ticket.Comments), len(stored.ticket.Comments)+1)
	copy(comments, stored.ticket.Comments)
	stored.ticket.Comments = append(comments, comment)
	stored.ticket.UpdatedAt = comment.CreatedAt
	return nil
}

func (r *MemoryTicketRepository) Stats(_ context.Context, createdBy *string) (domain.TicketStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var stats domain.TicketStats
	for _, stored := range r.tickets {
		t := &stored.ticket
		if createdBy != nil && t.CreatedBy != *createdBy {
			continue
		}
		switch t.Status {
		case domain.TicketStatusOpen:
			stats.Open++
		case domain.TicketStatusInProgress:
			stats.InProgress++
		case domain.TicketStatusResolved:
			stats.Resolved++
		}
		if t.Priority == domain.TicketPriorityUrgent {
			stats.Urgent++
		}
	}
	return stats, nil
}

func ticketMatches(t *domain.Ticket, filter TicketFilter) bool {
	if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.Department != nil && t.Department != *filter.Department {
		return false
	}
	if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, t.Status) {
		return false
	}
	if len(filter.Priorities) > 0 && !containsPriority(filter.Priorities, t.Priority) {
		return false
	}
	return true
}

func containsStatus(list []domain.TicketStatus, s domain.TicketStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsPriority(list []domain.TicketPriority, p domain.TicketPriority) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func cloneTicket(t domain.Ticket) domain.Ticket {
	if t.AssignedTo != nil {
		assignee := *t.AssignedTo
		t.AssignedTo = &assignee
	}
	t.Comments = append([]domain.Comment{}, t.Comments...)
	t.Attachments = append([]string{}, t.Attachments...)
	if t.AICategorization != nil {
		cat := *t.AICategorization
		t.AICategorization = &cat
	}
	return t
}

// MemoryCounterRepository is a mutex guarded counter.
type MemoryCounterRepository struct {
	mu     sync.Mutex
	values map[string]int64
}

// NewMemoryCounterRepository creates counters starting at zero.
func NewMemoryCounterRepository() *MemoryCounterRepository {
	return &MemoryCounterRepository{values: make(map[string]int64)}
}

func (r *MemoryCounterRepository) Next(_ context.Context, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[name]++
	return r.values[name], nil
}
