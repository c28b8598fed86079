package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/ratelimit"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

type testServer struct {
	app    *fiber.App
	users  *repository.MemoryUserRepository
	tokens *auth.TokenManager
}

func newTestServer(t *testing.T, limits RateLimiters) *testServer {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics("helpdesk")
	users := repository.NewMemoryUserRepository()
	tickets := repository.NewMemoryTicketRepository()
	tokens := auth.NewTokenManager("test-secret", time.Hour)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  tickets,
		UserRepo:    users,
		CounterRepo: repository.NewMemoryCounterRepository(),
		Dispatcher:  events.NewInMemoryDispatcher(),
		Metrics:     metrics,
		Logger:      logger,
	})
	authService := service.NewAuthService(config.AuthConfig{BcryptCost: bcrypt.MinCost}, users, tokens, logger)
	userService := service.NewUserService(users, bcrypt.MinCost, logger)
	chatService := service.NewChatService(service.ChatDependencies{TicketRepo: tickets, Metrics: metrics, Logger: logger})

	app := NewApp("helpdesk-test", logger, metrics, MiddlewareConfig{Timeout: 5 * time.Second}, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", nil),
		Auth:           handlers.NewAuthHandler(authService, handlers.CookieConfig{Name: "token"}),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(userService),
		Chat:           handlers.NewChatHandler(chatService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, users, "token"),
		Metrics:        metrics,
		RateLimits:     limits,
	})
	return &testServer{app: app, users: users, tokens: tokens}
}

// seed stores a user directly and returns a bearer token for it.
func (s *testServer) seed(t *testing.T, email string, role domain.Role, dept *domain.Department) (*domain.User, string) {
	t.Helper()
	u := &domain.User{Name: email, Email: email, Role: role, Department: dept}
	if err := s.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, _, err := s.tokens.GenerateToken(u.ID)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return u, token
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (*nethttp.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	_ = resp.Body.Close()
	decoded := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &decoded); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp, decoded
}

func (s *testServer) list(t *testing.T, path, token string) []map[string]any {
	t.Helper()
	req := httptest.NewRequest(fiber.MethodGet, path, nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	var out []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	return out
}

func createTicket(t *testing.T, s *testServer, token, dept string) string {
	t.Helper()
	resp, body := s.do(t, fiber.MethodPost, "/tickets", token, map[string]any{
		"subject":     "Cannot log in",
		"description": "My laptop rejects my password",
		"department":  dept,
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create ticket: status %d body %v", resp.StatusCode, body)
	}
	ticket, _ := body["ticket"].(map[string]any)
	number, _ := ticket["ticketNumber"].(string)
	return number
}

func deptPtr(d domain.Department) *domain.Department { return &d }

func TestCreateTicketNumbersAreSequential(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, token := s.seed(t, "emp@example.com", domain.RoleUser, nil)

	resp, body := s.do(t, fiber.MethodPost, "/tickets", token, map[string]any{
		"subject":     "VPN down",
		"description": "The vpn client cannot connect",
		"department":  "IT",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d %v", resp.StatusCode, body)
	}
	if body["message"] != "Ticket created successfully" {
		t.Fatalf("unexpected message %v", body["message"])
	}
	ticket := body["ticket"].(map[string]any)
	if ticket["ticketNumber"] != "TK-001" || ticket["status"] != "open" || ticket["priority"] != "medium" {
		t.Fatalf("unexpected ticket %v", ticket)
	}
	createdBy := ticket["createdBy"].(map[string]any)
	if createdBy["email"] != "emp@example.com" {
		t.Fatalf("expected populated creator, got %v", createdBy)
	}

	if got := createTicket(t, s, token, "HR"); got != "TK-002" {
		t.Fatalf("expected TK-002, got %s", got)
	}
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	resp, body := s.do(t, fiber.MethodGet, "/tickets/TK-001", "", nil)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	if body["error"] != "Authentication required" || body["code"] != "UNAUTHORIZED" {
		t.Fatalf("unexpected body %v", body)
	}
	if resp.Header.Get(HeaderRequestID) == "" {
		t.Fatalf("expected request id header")
	}
}

func TestCreateTicketValidation(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, token := s.seed(t, "emp@example.com", domain.RoleUser, nil)

	resp, body := s.do(t, fiber.MethodPost, "/tickets", token, map[string]any{
		"subject":     "Desk",
		"description": "Broken chair",
		"department":  "Facilities",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if body["error"] != "Invalid department. Must be one of: IT, HR, Admin" {
		t.Fatalf("unexpected error %v", body["error"])
	}
}

func TestAdminCreatedAgentSeesOnlyDepartmentTickets(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, adminToken := s.seed(t, "admin@example.com", domain.RoleAdmin, nil)
	_, userToken := s.seed(t, "emp@example.com", domain.RoleUser, nil)

	resp, body := s.do(t, fiber.MethodPost, "/users", adminToken, map[string]any{
		"name":       "HR Agent",
		"email":      "hr@example.com",
		"password":   "secret123",
		"role":       "agent",
		"department": "HR",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("create agent: %d %v", resp.StatusCode, body)
	}
	if _, ok := body["password"]; ok {
		t.Fatalf("password leaked in response")
	}

	resp, body = s.do(t, fiber.MethodPost, "/auth/login", "", map[string]any{
		"email":    "hr@example.com",
		"password": "secret123",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("login: %d %v", resp.StatusCode, body)
	}
	agentToken, _ := body["token"].(string)

	itNumber := createTicket(t, s, userToken, "IT")
	hrNumber := createTicket(t, s, userToken, "HR")

	listed := s.list(t, "/tickets/department", agentToken)
	if len(listed) != 1 || listed[0]["ticketNumber"] != hrNumber {
		t.Fatalf("expected only %s, got %v", hrNumber, listed)
	}

	resp, _ = s.do(t, fiber.MethodGet, "/tickets/"+hrNumber, agentToken, nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected agent to read HR ticket, got %d", resp.StatusCode)
	}
	resp, body = s.do(t, fiber.MethodGet, "/tickets/"+itNumber, agentToken, nil)
	if resp.StatusCode != fiber.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("expected 403 for IT ticket, got %d %v", resp.StatusCode, body)
	}
	resp, _ = s.do(t, fiber.MethodGet, "/tickets/TK-999", agentToken, nil)
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for unknown ticket, got %d", resp.StatusCode)
	}

	resp, _ = s.do(t, fiber.MethodGet, "/tickets/department", userToken, nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-agent, got %d", resp.StatusCode)
	}
}

func TestUserListsOnlyOwnTickets(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, aliceToken := s.seed(t, "alice@example.com", domain.RoleUser, nil)
	_, bobToken := s.seed(t, "bob@example.com", domain.RoleUser, nil)

	mine := createTicket(t, s, aliceToken, "IT")
	createTicket(t, s, bobToken, "IT")

	listed := s.list(t, "/tickets/my-tickets", aliceToken)
	if len(listed) != 1 || listed[0]["ticketNumber"] != mine {
		t.Fatalf("expected only own ticket, got %v", listed)
	}
	resp, _ := s.do(t, fiber.MethodGet, "/tickets/all", aliceToken, nil)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 on /tickets/all, got %d", resp.StatusCode)
	}
}

func TestPatchRejectsDisallowedField(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, token := s.seed(t, "emp@example.com", domain.RoleUser, nil)
	number := createTicket(t, s, token, "IT")

	resp, body := s.do(t, fiber.MethodPatch, "/tickets/"+number, token, map[string]any{
		"subject":   "Changed",
		"createdBy": "someone-else",
	})
	if resp.StatusCode != fiber.StatusBadRequest || body["error"] != "Invalid updates" {
		t.Fatalf("expected 400 Invalid updates, got %d %v", resp.StatusCode, body)
	}

	_, body = s.do(t, fiber.MethodGet, "/tickets/"+number, token, nil)
	if body["subject"] != "Cannot log in" {
		t.Fatalf("ticket changed after rejected patch: %v", body["subject"])
	}

	resp, body = s.do(t, fiber.MethodPatch, "/tickets/"+number, token, map[string]any{"priority": "high"})
	if resp.StatusCode != fiber.StatusOK || body["priority"] != "high" {
		t.Fatalf("expected allowed patch, got %d %v", resp.StatusCode, body)
	}
}

func TestCommentAndStatusFlow(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, userToken := s.seed(t, "emp@example.com", domain.RoleUser, nil)
	_, agentToken := s.seed(t, "it@example.com", domain.RoleAgent, deptPtr(domain.DepartmentIT))
	number := createTicket(t, s, userToken, "IT")

	resp, body := s.do(t, fiber.MethodPost, "/tickets/"+number+"/comments", agentToken, map[string]any{"text": "Looking into it"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("comment: %d %v", resp.StatusCode, body)
	}
	comments := body["comments"].([]any)
	if len(comments) != 1 {
		t.Fatalf("expected one comment, got %v", comments)
	}
	author := comments[0].(map[string]any)["user"].(map[string]any)
	if author["email"] != "it@example.com" {
		t.Fatalf("unexpected author %v", author)
	}

	resp, body = s.do(t, fiber.MethodPatch, "/tickets/"+number+"/status", agentToken, map[string]any{"status": "resolved"})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status: %d %v", resp.StatusCode, body)
	}
	if body["ticket"].(map[string]any)["status"] != "resolved" {
		t.Fatalf("unexpected ticket %v", body["ticket"])
	}

	_, body = s.do(t, fiber.MethodGet, "/tickets/stats", userToken, nil)
	if body["resolved"] != float64(1) || body["open"] != float64(0) {
		t.Fatalf("unexpected stats %v", body)
	}
}

func TestAssignRequiresAdminAndAgent(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, adminToken := s.seed(t, "admin@example.com", domain.RoleAdmin, nil)
	emp, userToken := s.seed(t, "emp@example.com", domain.RoleUser, nil)
	agent, _ := s.seed(t, "it@example.com", domain.RoleAgent, deptPtr(domain.DepartmentIT))
	number := createTicket(t, s, userToken, "IT")

	resp, _ := s.do(t, fiber.MethodPost, "/tickets/"+number+"/assign", userToken, map[string]any{"agentId": agent.ID})
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", resp.StatusCode)
	}
	resp, _ = s.do(t, fiber.MethodPost, "/tickets/"+number+"/assign", adminToken, map[string]any{"agentId": emp.ID})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400 for non-agent assignee, got %d", resp.StatusCode)
	}
	resp, body := s.do(t, fiber.MethodPost, "/tickets/"+number+"/assign", adminToken, map[string]any{"agentId": agent.ID})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("assign: %d %v", resp.StatusCode, body)
	}
	if body["assignedTo"].(map[string]any)["id"] != agent.ID {
		t.Fatalf("unexpected assignee %v", body["assignedTo"])
	}
}

func TestRegisterSetsCookieAndMe(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	resp, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name":     "New Hire",
		"email":    "New.Hire@Example.com",
		"password": "secret123",
	})
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("register: %d %v", resp.StatusCode, body)
	}
	user := body["user"].(map[string]any)
	if user["role"] != "user" || user["email"] != "new.hire@example.com" {
		t.Fatalf("unexpected user %v", user)
	}
	cookie := resp.Header.Get(fiber.HeaderSetCookie)
	if !strings.Contains(cookie, "token=") || !strings.Contains(strings.ToLower(cookie), "httponly") {
		t.Fatalf("expected http-only token cookie, got %q", cookie)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/auth/me", nil)
	req.Header.Set(fiber.HeaderCookie, "token="+body["token"].(string))
	meResp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if meResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected cookie auth to work, got %d", meResp.StatusCode)
	}

	resp, body = s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Dup",
		"email":    "new.hire@example.com",
		"password": "secret123",
	})
	if resp.StatusCode != fiber.StatusConflict || body["error"] != "Email already registered" {
		t.Fatalf("expected 409, got %d %v", resp.StatusCode, body)
	}
}

func TestLoginRateLimited(t *testing.T) {
	s := newTestServer(t, RateLimiters{Login: ratelimit.NewLocal(1, time.Minute)})
	payload := map[string]any{"email": "nobody@example.com", "password": "wrong-pass"}

	resp, _ := s.do(t, fiber.MethodPost, "/auth/login", "", payload)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	resp, body := s.do(t, fiber.MethodPost, "/auth/login", "", payload)
	if resp.StatusCode != fiber.StatusTooManyRequests || body["code"] != "RATE_LIMITED" {
		t.Fatalf("expected 429, got %d %v", resp.StatusCode, body)
	}
}

func TestLoginValidatesBody(t *testing.T) {
	s := newTestServer(t, RateLimiters{})

	resp, body := s.do(t, fiber.MethodPost, "/auth/login", "", map[string]any{})
	if resp.StatusCode != fiber.StatusBadRequest || body["code"] != "VALIDATION_FAILED" {
		t.Fatalf("expected 400 VALIDATION_FAILED, got %d %v", resp.StatusCode, body)
	}
	details, _ := body["details"].(map[string]any)
	if _, ok := details["email"]; !ok {
		t.Fatalf("expected email in details, got %v", body)
	}
}

func TestRegisterRejectsOverlongPassword(t *testing.T) {
	s := newTestServer(t, RateLimiters{})

	resp, body := s.do(t, fiber.MethodPost, "/auth/register", "", map[string]any{
		"name":     "Long Pass",
		"email":    "long@example.com",
		"password": strings.Repeat("x", 73),
	})
	if resp.StatusCode != fiber.StatusBadRequest || body["code"] != "VALIDATION_FAILED" {
		t.Fatalf("expected 400 VALIDATION_FAILED, got %d %v", resp.StatusCode, body)
	}
}

func TestStatusUpdateReportsMissingTicketFirst(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, token := s.seed(t, "emp@example.com", domain.RoleUser, nil)

	resp, body := s.do(t, fiber.MethodPatch, "/tickets/TK-999/status", token, map[string]any{"status": "bogus"})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d %v", resp.StatusCode, body)
	}
	number := createTicket(t, s, token, "IT")
	resp, body = s.do(t, fiber.MethodPatch, "/tickets/"+number+"/status", token, map[string]any{"status": "bogus"})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d %v", resp.StatusCode, body)
	}
}

func TestHugePageReturnsEmptyList(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, token := s.seed(t, "emp@example.com", domain.RoleUser, nil)
	createTicket(t, s, token, "IT")

	if listed := s.list(t, "/tickets/my-tickets?page=4611686018427387904&page_size=100", token); len(listed) != 0 {
		t.Fatalf("expected empty page, got %d tickets", len(listed))
	}
	if listed := s.list(t, "/tickets/my-tickets?page=1&page_size=100", token); len(listed) != 1 {
		t.Fatalf("expected first page to hold the ticket, got %d", len(listed))
	}
}

func TestChatWithoutGeneratorReportsMisconfiguration(t *testing.T) {
	s := newTestServer(t, RateLimiters{})
	_, token := s.seed(t, "emp@example.com", domain.RoleUser, nil)

	resp, body := s.do(t, fiber.MethodPost, "/chat", token, map[string]any{})
	if resp.StatusCode != fiber.StatusBadRequest || body["error"] != "Message is required" {
		t.Fatalf("expected 400, got %d %v", resp.StatusCode, body)
	}
	resp, body = s.do(t, fiber.MethodPost, "/chat", token, map[string]any{"message": "How do I reset my password?"})
	if resp.StatusCode != fiber.StatusInternalServerError || body["error"] != "Chat service is not properly configured" {
		t.Fatalf("expected 500, got %d %v", resp.StatusCode, body)
	}
}

func TestHealthMetricsAndUnknownRoute(t *testing.T) {
	s := newTestServer(t, RateLimiters{})

	resp, body := s.do(t, fiber.MethodGet, "/health/live", "", nil)
	if resp.StatusCode != fiber.StatusOK || body["status"] != "alive" {
		t.Fatalf("unexpected live response %d %v", resp.StatusCode, body)
	}
	resp, body = s.do(t, fiber.MethodGet, "/nope", "", nil)
	if resp.StatusCode != fiber.StatusNotFound || body["code"] != "NOT_FOUND" {
		t.Fatalf("unexpected 404 response %d %v", resp.StatusCode, body)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/metrics", nil)
	metricsResp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	raw, _ := io.ReadAll(metricsResp.Body)
	if !strings.Contains(string(raw), "helpdesk_http_requests_total") {
		t.Fatalf("expected request counter in metrics output")
	}
}
