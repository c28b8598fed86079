package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func TestMemoryCounterIsSequentialUnderConcurrency(t *testing.T) {
	counter := NewMemoryCounterRepository()
	ctx := context.Background()

	const workers = 50
	seen := make(chan int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := counter.Next(ctx, TicketCounter)
			if err != nil {
				t.Errorf("Next: %v", err)
				return
			}
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		if unique[v] {
			t.Fatalf("value %d issued twice", v)
		}
		unique[v] = true
	}
	for i := int64(1); i <= workers; i++ {
		if !unique[i] {
			t.Fatalf("value %d missing", i)
		}
	}
}

func TestMemoryUserRepositoryRejectsDuplicateEmail(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	if err := repo.Create(ctx, &domain.User{Name: "A", Email: "a@example.com", Role: domain.RoleUser}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err := repo.Create(ctx, &domain.User{Name: "B", Email: "a@example.com", Role: domain.RoleUser})
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestMemoryUserRepositoryStats(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()
	hr := domain.DepartmentHR
	for _, u := range []domain.User{
		{Name: "u", Email: "u@example.com", Role: domain.RoleUser},
		{Name: "g", Email: "g@example.com", Role: domain.RoleAgent, Department: &hr},
		{Name: "a", Email: "a@example.com", Role: domain.RoleAdmin},
	} {
		u := u
		if err := repo.Create(ctx, &u); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 || stats.Agents != 1 || stats.Employees != 1 || stats.Admins != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestMemoryTicketRepositoryListFiltersAndOrders(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()

	create := func(number, owner string, dept domain.Department) {
		t.Helper()
		err := repo.Create(ctx, &domain.Ticket{
			TicketNumber: number, Subject: "s", Description: "d",
			Status: domain.TicketStatusOpen, Priority: domain.TicketPriorityMedium,
			Department: dept, CreatedBy: owner,
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	create("TK-001", "alice", domain.DepartmentIT)
	create("TK-002", "bob", domain.DepartmentHR)
	create("TK-003", "alice", domain.DepartmentHR)

	owner := "alice"
	mine, err := repo.List(ctx, TicketFilter{CreatedBy: &owner})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(mine) != 2 || mine[0].TicketNumber != "TK-003" || mine[1].TicketNumber != "TK-001" {
		t.Fatalf("unexpected owner listing %+v", mine)
	}

	hr := domain.DepartmentHR
	dept, err := repo.List(ctx, TicketFilter{Department: &hr, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dept) != 1 || dept[0].TicketNumber != "TK-002" {
		t.Fatalf("unexpected paged department listing %+v", dept)
	}
}

func TestMemoryTicketRepositoryAddCommentAppends(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	ticket := &domain.Ticket{TicketNumber: "TK-001", Department: domain.DepartmentIT, CreatedBy: "alice"}
	if err := repo.Create(ctx, ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}

	at := ticket.UpdatedAt.Add(time.Second)
	if err := repo.AddComment(ctx, ticket.ID, domain.Comment{Text: "first", AuthorID: "alice", CreatedAt: at}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}
	if err := repo.AddComment(ctx, ticket.ID, domain.Comment{Text: "second", AuthorID: "bob", CreatedAt: at}); err != nil {
		t.Fatalf("AddComment: %v", err)
	}

	got, err := repo.GetByID(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.Comments) != 2 || got.Comments[0].Text != "first" || got.Comments[1].AuthorID != "bob" {
		t.Fatalf("unexpected comments %+v", got.Comments)
	}
	if !got.UpdatedAt.Equal(at) {
		t.Fatalf("expected updatedAt %v, got %v", at, got.UpdatedAt)
	}

	if err := repo.AddComment(ctx, "missing", domain.Comment{Text: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTicketRepositoryUpdateFieldsWritesOnlyNamedFields(t *testing.T) {
	repo := NewMemoryTicketRepository()
	ctx := context.Background()
	ticket := &domain.Ticket{
		TicketNumber: "TK-001",
		Subject:      "old subject",
		Status:       domain.TicketStatusOpen,
		Priority:     domain.TicketPriorityMedium,
		Department:   domain.DepartmentIT,
		CreatedBy:    "alice",
	}
	if err := repo.Create(ctx, ticket); err != nil {
		t.Fatalf("Create: %v", err)
	}

	agent := "agent-1"
	if _, err := repo.UpdateFields(ctx, ticket.ID, TicketChanges{AssignedTo: &agent}); err != nil {
		t.Fatalf("UpdateFields assignee: %v", err)
	}
	priority := domain.TicketPriorityHigh
	got, err := repo.UpdateFields(ctx, ticket.ID, TicketChanges{Priority: &priority})
	if err != nil {
		t.Fatalf("UpdateFields priority: %v", err)
	}
	if got.AssignedTo == nil || *got.AssignedTo != agent {
		t.Fatalf("assignee lost by a later priority update: %+v", got.AssignedTo)
	}
	if got.Priority != domain.TicketPriorityHigh || got.Subject != "old subject" || got.TicketNumber != "TK-001" || got.CreatedBy != "alice" {
		t.Fatalf("unexpected ticket after update %+v", got)
	}

	if _, err := repo.UpdateFields(ctx, "missing", TicketChanges{Priority: &priority}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
