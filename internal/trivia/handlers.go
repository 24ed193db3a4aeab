package trivia

import (
	"errors"
	"strings"

	"github.com/Prapti-XR/Prapti-sub000/internal/policy"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", func(c *fiber.Ctx) error {
		f := Filter{
			SiteID:     c.Query("siteId"),
			Difficulty: Difficulty(strings.ToUpper(c.Query("difficulty"))),
		}
		questions, source, err := svc.List(c.Context(), f)
		if errors.Is(err, ErrInvalid) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load trivia")
		}
		return c.JSON(fiber.Map{"success": true, "data": questions, "count": len(questions), "source": source})
	})

	r.Post("/", authMiddleware, policy.Require(policy.TriviaManage), func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		q, err := svc.Create(c.Context(), req)
		if errors.Is(err, ErrInvalid) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": q})
	})

	r.Delete("/:id", authMiddleware, policy.Require(policy.TriviaManage), func(c *fiber.Ctx) error {
		err := svc.Delete(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true})
	})
}
