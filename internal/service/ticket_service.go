package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/classify"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketService coordinates ticket workflows. Every operation on an
// existing ticket goes through auth.Authorize.
type TicketService struct {
	tickets            repository.TicketRepository
	users              repository.UserRepository
	counter            repository.CounterRepository
	classifier         classify.Classifier
	dispatcher         events.Dispatcher
	metrics            *observability.Metrics
	logger             *zap.Logger
	enforceTransitions bool
	now                func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo         repository.TicketRepository
	UserRepo           repository.UserRepository
	CounterRepo        repository.CounterRepository
	Classifier         classify.Classifier
	Dispatcher         events.Dispatcher
	Metrics            *observability.Metrics
	Logger             *zap.Logger
	EnforceTransitions bool
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Subject     string
	Description string
	Department  domain.Department
	Priority    domain.TicketPriority
	Attachments []string
}

// TicketListOptions narrows and pages list results.
type TicketListOptions struct {
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	Limit      int
	Offset     int
}

// UpdatableTicketFields is the allow-list for field patches.
var UpdatableTicketFields = []string{"subject", "description", "status", "priority", "department"}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	classifier := deps.Classifier
	if classifier == nil {
		classifier = classify.NewKeyword()
	}
	return &TicketService{
		tickets:            deps.TicketRepo,
		users:              deps.UserRepo,
		counter:            deps.CounterRepo,
		classifier:         classifier,
		dispatcher:         deps.Dispatcher,
		metrics:            deps.Metrics,
		logger:             logger,
		enforceTransitions: deps.EnforceTransitions,
		now:                time.Now,
	}
}

// Create numbers and stores a new open ticket owned by caller. The
// classifier's suggestion is stored alongside and never overrides the
// department the caller chose.
func (s *TicketService) Create(ctx context.Context, caller *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	subject := strings.TrimSpace(input.Subject)
	description := strings.TrimSpace(input.Description)
	if subject == "" || description == "" || input.Department == "" {
		return nil, apperrors.NewValidationError("Subject, description, and department are required", nil)
	}
	if !input.Department.Valid() {
		return nil, apperrors.NewValidationError("Invalid department. Must be one of: IT, HR, Admin", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("Invalid priority. Must be one of: low, medium, high, urgent", nil)
	}

	suggestion := s.classify(ctx, subject, description)

	seq, err := s.counter.Next(ctx, repository.TicketCounter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	ticket := &domain.Ticket{
		TicketNumber:     domain.FormatTicketNumber(seq),
		Subject:          subject,
		Description:      description,
		Status:           domain.TicketStatusOpen,
		Priority:         priority,
		Department:       input.Department,
		CreatedBy:        caller.ID,
		Comments:         []domain.Comment{},
		Attachments:      input.Attachments,
		AICategorization: suggestion,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, mapRepoError(err, "Ticket")
	}

	s.metrics.RecordTicketCreated(string(ticket.Department))
	s.publish(ctx, caller, ticket, events.EventTicketCreated, events.TicketCreatedPayload{
		Department:          ticket.Department,
		Priority:            ticket.Priority,
		Subject:             ticket.Subject,
		SuggestedDepartment: suggestion.Department,
	})
	return ticket, nil
}

// ListMine returns the caller's own tickets, newest first.
func (s *TicketService) ListMine(ctx context.Context, caller *domain.User, opts TicketListOptions) ([]domain.Ticket, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	owner := caller.ID
	return s.list(ctx, repository.TicketFilter{CreatedBy: &owner}, opts)
}

// ListAll returns every ticket. Admin only.
func (s *TicketService) ListAll(ctx context.Context, caller *domain.User, opts TicketListOptions) ([]domain.Ticket, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		return nil, apperrors.NewForbidden("Access denied")
	}
	return s.list(ctx, repository.TicketFilter{}, opts)
}

// ListDepartment returns the tickets of the calling agent's department.
func (s *TicketService) ListDepartment(ctx context.Context, caller *domain.User, opts TicketListOptions) ([]domain.Ticket, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if caller.Role != domain.RoleAgent || caller.Department == nil {
		return nil, apperrors.NewForbidden("Access denied")
	}
	dept := *caller.Department
	return s.list(ctx, repository.TicketFilter{Department: &dept}, opts)
}

// Get returns one ticket by number if the caller may view it.
func (s *TicketService) Get(ctx context.Context, caller *domain.User, number string) (*domain.Ticket, error) {
	return s.load(ctx, caller, number, auth.ActionView)
}

// Update applies a field patch. Keys outside UpdatableTicketFields reject
// the whole request and leave the ticket unchanged.
func (s *TicketService) Update(ctx context.Context, caller *domain.User, number string, fields map[string]json.RawMessage) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, caller, number, auth.ActionUpdate)
	if err != nil {
		return nil, err
	}

	var rejected []string
	for key := range fields {
		if !allowedField(key) {
			rejected = append(rejected, key)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		return nil, apperrors.NewValidationError("Invalid updates", map[string]any{"fields": rejected})
	}
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("No updates provided", nil)
	}

	next := *ticket
	for key, raw := range fields {
		if err := applyField(&next, key, raw); err != nil {
			return nil, err
		}
	}
	if next.Status != ticket.Status {
		if err := s.checkTransition(ticket.Status, next.Status); err != nil {
			return nil, err
		}
	}

	changed := make([]string, 0, len(fields))
	for key := range fields {
		changed = append(changed, key)
	}
	sort.Strings(changed)

	updated, err := s.tickets.UpdateFields(ctx, ticket.ID, patchChanges(&next, changed))
	if err != nil {
		return nil, mapRepoError(err, "Ticket")
	}

	s.publish(ctx, caller, updated, events.EventTicketUpdated, events.TicketUpdatedPayload{Fields: changed})
	if next.Status != ticket.Status {
		s.publish(ctx, caller, updated, events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
			OldStatus: ticket.Status,
			NewStatus: next.Status,
		})
	}
	return updated, nil
}

// UpdateStatus sets the ticket status. Department agents may triage.
func (s *TicketService) UpdateStatus(ctx context.Context, caller *domain.User, number string, status domain.TicketStatus) (*domain.Ticket, error) {
	ticket, err := s.load(ctx, caller, number, auth.ActionUpdateStatus)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperrors.NewValidationError("Invalid status. Must be one of: open, in_progress, resolved, closed", nil)
	}
	old := ticket.Status
	if err := s.checkTransition(old, status); err != nil {
		return nil, err
	}
	updated, err := s.tickets.UpdateFields(ctx, ticket.ID, repository.TicketChanges{Status: &status})
	if err != nil {
		return nil, mapRepoError(err, "Ticket")
	}
	if old != status {
		s.publish(ctx, caller, updated, events.EventTicketStatusChanged, events.TicketStatusChangedPayload{
			OldStatus: old,
			NewStatus: status,
		})
	}
	return updated, nil
}

// AddComment appends one comment authored by caller.
func (s *TicketService) AddComment(ctx context.Context, caller *domain.User, number, text string) (*domain.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, apperrors.NewValidationError("Comment text is required", nil)
	}
	ticket, err := s.load(ctx, caller, number, auth.ActionComment)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if at.Before(ticket.UpdatedAt) {
		at = ticket.UpdatedAt
	}
	comment := domain.Comment{Text: text, AuthorID: caller.ID, CreatedAt: at}
	if err := s.tickets.AddComment(ctx, ticket.ID, comment); err != nil {
		return nil, mapRepoError(err, "Ticket")
	}

	s.publish(ctx, caller, ticket, events.EventTicketCommentAdded, events.TicketCommentAddedPayload{
		AuthorID:    caller.ID,
		BodyPreview: stringPreview(text, 120),
	})

	updated, err := s.tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, mapRepoError(err, "Ticket")
	}
	return updated, nil
}

// Assign sets the ticket's assignee. The target must be an agent.
func (s *TicketService) Assign(ctx context.Context, caller *domain.User, number, agentID string) (*domain.Ticket, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, apperrors.NewValidationError("Agent id is required", nil)
	}
	ticket, err := s.load(ctx, caller, number, auth.ActionAssign)
	if err != nil {
		return nil, err
	}
	agent, err := s.users.GetByID(ctx, agentID)
	if err != nil {
		return nil, mapRepoError(err, "Agent")
	}
	if agent.Role != domain.RoleAgent {
		return nil, apperrors.NewValidationError("Tickets can only be assigned to agents", nil)
	}

	previous := ticket.AssignedTo
	assignee := agent.ID
	updated, err := s.tickets.UpdateFields(ctx, ticket.ID, repository.TicketChanges{AssignedTo: &assignee})
	if err != nil {
		return nil, mapRepoError(err, "Ticket")
	}
	s.publish(ctx, caller, updated, events.EventTicketAssigned, events.TicketAssignedPayload{
		PreviousAssignee: previous,
		AssigneeID:       agent.ID,
	})
	return updated, nil
}

// Stats counts tickets by state. Admins see every ticket, everyone else
// only their own.
func (s *TicketService) Stats(ctx context.Context, caller *domain.User) (domain.TicketStats, error) {
	if err := requireCaller(caller); err != nil {
		return domain.TicketStats{}, err
	}
	var owner *string
	if !caller.IsAdmin() {
		id := caller.ID
		owner = &id
	}
	stats, err := s.tickets.Stats(ctx, owner)
	if err != nil {
		return stats, apperrors.NewInternalError(err)
	}
	return stats, nil
}

// Categorize runs the classifier without storing anything.
func (s *TicketService) Categorize(ctx context.Context, subject, description string) (*domain.Categorization, error) {
	subject = strings.TrimSpace(subject)
	description = strings.TrimSpace(description)
	if subject == "" || description == "" {
		return nil, apperrors.NewValidationError("Subject and description are required", nil)
	}
	return s.classify(ctx, subject, description), nil
}

// ResolveUsers loads the users referenced by tickets (owners, assignees and
// comment authors), keyed by id. Missing users are omitted.
func (s *TicketService) ResolveUsers(ctx context.Context, tickets ...domain.Ticket) (map[string]domain.User, error) {
	seen := map[string]struct{}{}
	var ids []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, t := range tickets {
		add(t.CreatedBy)
		if t.AssignedTo != nil {
			add(*t.AssignedTo)
		}
		for _, c := range t.Comments {
			add(c.AuthorID)
		}
	}
	result := make(map[string]domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	users, err := s.users.ListByIDs(ctx, ids)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (s *TicketService) load(ctx context.Context, caller *domain.User, number string, action auth.Action) (*domain.Ticket, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, apperrors.NewValidationError("Ticket number is required", nil)
	}
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, mapRepoError(err, "Ticket")
	}
	if !auth.Authorize(caller, action, ticket) {
		return nil, apperrors.NewForbidden("Access denied")
	}
	return ticket, nil
}

func (s *TicketService) list(ctx context.Context, filter repository.TicketFilter, opts TicketListOptions) ([]domain.Ticket, error) {
	filter.Statuses = opts.Statuses
	filter.Priorities = opts.Priorities
	filter.Limit = opts.Limit
	filter.Offset = opts.Offset
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if tickets == nil {
		tickets = []domain.Ticket{}
	}
	return tickets, nil
}

func (s *TicketService) classify(ctx context.Context, subject, description string) *domain.Categorization {
	result := s.classifier.Classify(ctx, subject, description)
	s.metrics.RecordClassification(s.classifier.Name(), string(result.Department))
	return &domain.Categorization{
		Department:    result.Department,
		Confidence:    result.Confidence,
		Reason:        result.Reason,
		CategorizedAt: s.now().UTC(),
	}
}

func (s *TicketService) checkTransition(current, next domain.TicketStatus) error {
	if !s.enforceTransitions || current == next {
		return nil
	}
	if !isValidTransition(current, next) {
		return apperrors.NewValidationError("Invalid status transition", map[string]any{
			"from": current,
			"to":   next,
		})
	}
	return nil
}

func (s *TicketService) publish(ctx context.Context, caller *domain.User, ticket *domain.Ticket, eventType events.EventType, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:           uuid.NewString(),
		Type:         eventType,
		TicketID:     ticket.ID,
		TicketNumber: ticket.TicketNumber,
		Actor:        events.Actor{UserID: caller.ID, Role: caller.Role},
		Timestamp:    s.now().UTC(),
		Payload:      payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed",
			zap.String("event_type", string(eventType)),
			zap.String("ticket_number", ticket.TicketNumber),
			zap.Error(err))
	}
}

func allowedField(key string) bool {
	for _, f := range UpdatableTicketFields {
		if f == key {
			return true
		}
	}
	return false
}

func applyField(t *domain.Ticket, key string, raw json.RawMessage) error {
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return apperrors.NewValidationError(key+" must be a string", nil)
	}
	switch key {
	case "subject", "description":
		value = strings.TrimSpace(value)
		if value == "" {
			return apperrors.NewValidationError(key+" cannot be empty", nil)
		}
		if key == "subject" {
			t.Subject = value
		} else {
			t.Description = value
		}
	case "status":
		status := domain.TicketStatus(value)
		if !status.Valid() {
			return apperrors.NewValidationError("Invalid status. Must be one of: open, in_progress, resolved, closed", nil)
		}
		t.Status = status
	case "priority":
		priority := domain.TicketPriority(value)
		if !priority.Valid() {
			return apperrors.NewValidationError("Invalid priority. Must be one of: low, medium, high, urgent", nil)
		}
		t.Priority = priority
	case "department":
		dept := domain.Department(value)
		if !dept.Valid() {
			return apperrors.NewValidationError("Invalid department. Must be one of: IT, HR, Admin", nil)
		}
		t.Department = dept
	default:
		return errors.New("unhandled ticket field " + key)
	}
	return nil
}

// patchChanges copies the patched keys of t into a narrow update.
func patchChanges(t *domain.Ticket, keys []string) repository.TicketChanges {
	var changes repository.TicketChanges
	for _, key := range keys {
		switch key {
		case "subject":
			changes.Subject = &t.Subject
		case "description":
			changes.Description = &t.Description
		case "status":
			changes.Status = &t.Status
		case "priority":
			changes.Priority = &t.Priority
		case "department":
			changes.Department = &t.Department
		}
	}
	return changes
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {domain.TicketStatusOpen},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func stringPreview(body string, max int) string {
	body = strings.TrimSpace(body)
	if len(body) <= max {
		return body
	}
	if max <= 3 {
		return body[:max]
	}
	return body[:max-3] + "..."
}
