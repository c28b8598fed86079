package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

func TestLocalLimiterPerKey(t *testing.T) {
	l := NewLocal(2, time.Minute)
	now := time.Now()
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if ok, _ := l.Allow(ctx, "a"); !ok {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if ok, _ := l.Allow(ctx, "a"); ok {
		t.Fatalf("third request should be limited")
	}
	if ok, _ := l.Allow(ctx, "b"); !ok {
		t.Fatalf("other keys have their own bucket")
	}

	now = now.Add(time.Minute)
	if ok, _ := l.Allow(ctx, "a"); !ok {
		t.Fatalf("bucket should refill after the window")
	}
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestFallbackUsesSecondaryOnError(t *testing.T) {
	f := NewFallback(failingLimiter{}, NewLocal(1, time.Minute), zap.NewNop())
	ok, err := f.Allow(context.Background(), "k")
	if err != nil || !ok {
		t.Fatalf("expected fallback to allow, got %v %v", ok, err)
	}
	if ok, _ := f.Allow(context.Background(), "k"); ok {
		t.Fatalf("expected fallback bucket to limit")
	}
}

func TestMiddlewareReturns429(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": de.Message, "code": de.Code})
		},
	})
	app.Post("/login", Middleware(NewLocal(1, time.Minute)), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("first request: %v %v", resp.StatusCode, err)
	}
	resp, _ = app.Test(httptest.NewRequest(http.MethodPost, "/login", nil))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}
