package admin

import (
	"errors"

	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/contribution"
	"github.com/Prapti-XR/Prapti-sub000/internal/policy"
	"github.com/Prapti-XR/Prapti-sub000/internal/site"

	"github.com/gofiber/fiber/v2"
)

const sitesPattern = "sites:*"

// Deps are the services the admin console reads through.
type Deps struct {
	Admin         *Service
	Sites         *site.Service
	Contributions *contribution.Service
}

func RegisterRoutes(r fiber.Router, d Deps, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Get("/analytics", policy.Require(policy.AnalyticsView), func(c *fiber.Ctx) error {
		a, err := d.Admin.Analytics(c.Context())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": a})
	})

	r.Get("/users", policy.Require(policy.UserManage), func(c *fiber.Ctx) error {
		users, total, err := d.Admin.ListUsers(c.Context(), UserFilter{
			Role:   policy.Role(c.Query("role")),
			Limit:  c.QueryInt("limit", defaultLimit),
			Offset: c.QueryInt("offset", 0),
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": users, "count": len(users), "total": total})
	})

	r.Patch("/users/:id", policy.Require(policy.UserManage), func(c *fiber.Ctx) error {
		var req struct {
			Role policy.Role `json:"role"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		u, err := d.Admin.SetRole(c.Context(), c.Params("id"), req.Role)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": u})
	})

	r.Get("/sites", policy.Require(policy.AdminContentView), func(c *fiber.Ctx) error {
		f := site.AdminFilter{Limit: c.QueryInt("limit", defaultLimit), Offset: c.QueryInt("offset", 0)}
		if raw := c.Query("published"); raw != "" {
			published := raw == "true"
			f.Published = &published
		}
		sites, total, err := d.Sites.ListAll(c.Context(), f)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": sites, "count": len(sites), "total": total})
	})

	r.Get("/contributions", policy.Require(policy.AdminContentView), func(c *fiber.Ctx) error {
		p, _ := policy.PrincipalFrom(c)
		items, err := d.Contributions.List(c.Context(), p, contribution.ListFilter{
			Status: contribution.Status(c.Query("status")),
			Type:   contribution.Type(c.Query("type")),
			Limit:  c.QueryInt("limit", defaultLimit),
			Offset: c.QueryInt("offset", 0),
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": items, "count": len(items)})
	})

	r.Patch("/contributions/:id", policy.Require(policy.ContributionModerate), func(c *fiber.Ctx) error {
		var req struct {
			Status          contribution.Status `json:"status"`
			RejectionReason *string             `json:"rejectionReason"`
		}
		if err := c.BodyParser(&req); err != nil || !req.Status.Moderatable() {
			return fiber.NewError(fiber.StatusBadRequest, "status must be PENDING, UNDER_REVIEW, APPROVED, REJECTED, MERGED or CLOSED")
		}
		p, _ := policy.PrincipalFrom(c)
		updated, err := d.Contributions.Update(c.Context(), p, c.Params("id"), contribution.UpdateInput{
			Status:          &req.Status,
			RejectionReason: req.RejectionReason,
		})
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": updated})
	})
}

// RegisterCacheRoutes exposes inspection and invalidation of the site cache.
func RegisterCacheRoutes(r fiber.Router, c cache.Cache, authMiddleware fiber.Handler) {
	r.Use(authMiddleware, policy.Require(policy.CacheManage))

	r.Get("/sites", func(ctx *fiber.Ctx) error {
		available := c.IsAvailable(ctx.Context())
		keys := []string{}
		if available {
			found, err := c.Keys(ctx.Context(), sitesPattern)
			if err != nil {
				return err
			}
			keys = append(keys, found...)
		}
		return ctx.JSON(fiber.Map{"success": true, "available": available, "keys": keys, "count": len(keys)})
	})

	r.Delete("/sites", func(ctx *fiber.Ctx) error {
		deleted, err := c.DelPattern(ctx.Context(), sitesPattern)
		if err != nil {
			return err
		}
		return ctx.JSON(fiber.Map{"success": true, "deleted": deleted})
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUserNotFound), errors.Is(err, contribution.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalidRole), errors.Is(err, contribution.ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, contribution.ErrForbidden):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, contribution.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}
