package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Prapti-XR/Prapti-sub000/internal/policy"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgconn"
)

var pgconnErrUnique = pgconn.PgError{Code: "23505"}

func TestJWTMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/private", JWTMiddleware("secret"), func(c *fiber.Ctx) error {
		p, ok := policy.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized)
		}
		return c.SendString(string(p.Role))
	})

	svc := NewService("secret", nil)

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized")
	}

	token, _ := svc.signToken("user-1", policy.RoleModerator, accessTokenTTL)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected ok")
	}

	expired, _ := svc.signToken("user-1", policy.RoleModerator, -accessTokenTTL)
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	resp, _ = app.Test(req)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestJWTMiddlewareUnknownRoleFallsBackToUser(t *testing.T) {
	app := fiber.New()
	app.Get("/private", JWTMiddleware("secret"), func(c *fiber.Ctx) error {
		p, _ := policy.PrincipalFrom(c)
		if p.Role != policy.RoleUser {
			return c.SendStatus(http.StatusTeapot)
		}
		return c.SendStatus(http.StatusOK)
	})

	token, _ := NewService("secret", nil).signToken("user-1", policy.Role("ROOT"), accessTokenTTL)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, _ := app.Test(req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected fallback to USER role, got %d", resp.StatusCode)
	}
}
