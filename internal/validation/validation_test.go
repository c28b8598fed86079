package validation

import (
	"errors"
	"net/http"
	"testing"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

type createTicket struct {
	Subject    string `json:"subject" validate:"required"`
	Department string `json:"department" validate:"required,department"`
	Priority   string `json:"priority" validate:"omitempty,ticket_priority"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(createTicket{Department: "Sales"})
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if de.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", de.HTTPStatus)
	}
	if de.Details["subject"] != "required" || de.Details["department"] != "department" {
		t.Fatalf("unexpected details %v", de.Details)
	}
}

func TestStructAcceptsValid(t *testing.T) {
	if err := Struct(createTicket{Subject: "VPN", Department: "IT", Priority: "urgent"}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEmail(t *testing.T) {
	if !Email("agent@example.com") {
		t.Fatalf("expected valid email")
	}
	if Email("not-an-email") {
		t.Fatalf("expected invalid email")
	}
}

func TestStructMessageNamesFirstField(t *testing.T) {
	type register struct {
		Password string `json:"password" validate:"required,min=6"`
	}
	err := Struct(register{Password: "abc"})
	var de *apperrors.DomainError
	if !errors.As(err, &de) {
		t.Fatalf("expected DomainError, got %v", err)
	}
	if de.Message != "Password must be at least 6 characters long" {
		t.Fatalf("unexpected message %q", de.Message)
	}
}
