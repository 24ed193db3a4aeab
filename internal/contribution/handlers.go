package contribution

import (
	"errors"

	"github.com/Prapti-XR/Prapti-sub000/internal/policy"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Use(authMiddleware)

	r.Post("/", policy.Require(policy.ContributionCreate), func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		p, _ := policy.PrincipalFrom(c)
		created, err := svc.Create(c.Context(), p, req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": created})
	})

	r.Get("/", func(c *fiber.Ctx) error {
		p, ok := policy.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		f := ListFilter{
			Status: Status(c.Query("status")),
			Type:   Type(c.Query("type")),
			SiteID: c.Query("siteId"),
			Limit:  c.QueryInt("limit", defaultLimit),
			Offset: c.QueryInt("offset", 0),
		}
		if c.QueryBool("mine") {
			f.AuthorID = p.UserID
		}
		items, err := svc.List(c.Context(), p, f)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": items, "count": len(items)})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		p, ok := policy.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		item, err := svc.GetFor(c.Context(), p, c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": item})
	})

	r.Patch("/:id", func(c *fiber.Ctx) error {
		p, ok := policy.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		var req UpdateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		updated, err := svc.Update(c.Context(), p, c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": updated})
	})

	r.Delete("/:id", func(c *fiber.Ctx) error {
		p, ok := policy.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if err := svc.Delete(c.Context(), p, c.Params("id")); err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})

	r.Post("/:id/review", func(c *fiber.Ctx) error {
		p, ok := policy.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		var req ReviewInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		review, item, err := svc.Review(c.Context(), p, c.Params("id"), req)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": review, "contribution": item})
	})

	r.Get("/:id/review", func(c *fiber.Ctx) error {
		p, ok := policy.PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if _, err := svc.GetFor(c.Context(), p, c.Params("id")); err != nil {
			return httpError(err)
		}
		reviews, err := svc.Reviews(c.Context(), c.Params("id"))
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": reviews, "count": len(reviews)})
	})
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, ErrSelfReview):
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return err
}
