package policy

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestAllowsMatrix(t *testing.T) {
	cases := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleUser, ContributionCreate, false},
		{RoleContributor, ContributionCreate, true},
		{RoleContributor, ReviewSubmit, false},
		{RoleModerator, ReviewSubmit, true},
		{RoleModerator, SiteDelete, false},
		{RoleAdmin, SiteDelete, true},
		{RoleModerator, CacheManage, false},
		{RoleAdmin, CacheManage, true},
		{RoleModerator, AdminContentView, true},
		{RoleAdmin, Action("unknown"), false},
	}
	for _, tc := range cases {
		if got := Allows(tc.role, tc.action); got != tc.want {
			t.Fatalf("Allows(%s, %s) = %v, want %v", tc.role, tc.action, got, tc.want)
		}
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleModerator.Valid() || Role("ROOT").Valid() {
		t.Fatalf("unexpected role validity")
	}
}

func TestRequire(t *testing.T) {
	app := fiber.New()
	withRole := func(role Role) fiber.Handler {
		return func(c *fiber.Ctx) error {
			SetPrincipal(c, Principal{UserID: "user-1", Role: role})
			return c.Next()
		}
	}
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }

	app.Get("/anon", Require(SiteCreate), ok)
	app.Get("/user", withRole(RoleUser), Require(SiteCreate), ok)
	app.Get("/mod", withRole(RoleModerator), Require(SiteCreate), func(c *fiber.Ctx) error {
		p, found := PrincipalFrom(c)
		if !found || p.UserID != "user-1" || c.Locals("user_id") != "user-1" {
			return c.SendStatus(fiber.StatusTeapot)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	for path, want := range map[string]int{
		"/anon": http.StatusUnauthorized,
		"/user": http.StatusForbidden,
		"/mod":  http.StatusOK,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil || resp.StatusCode != want {
			t.Fatalf("%s: expected %d, got %v %v", path, want, resp.StatusCode, err)
		}
	}
}
