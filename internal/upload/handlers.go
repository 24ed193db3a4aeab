package upload

import (
	"errors"
	"strconv"

	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
	"github.com/Prapti-XR/Prapti-sub000/internal/policy"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	guard := []fiber.Handler{authMiddleware, policy.Require(policy.AssetUpload), func(c *fiber.Ctx) error {
		if !svc.Enabled() {
			return fiber.NewError(fiber.StatusServiceUnavailable, ErrUnavailable.Error())
		}
		return c.Next()
	}}

	r.Post("/", append(guard, func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "file required")
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable file")
		}
		defer f.Close()

		p, _ := policy.PrincipalFrom(c)
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = defaultContentType
		}
		created, err := svc.Upload(c.Context(), FileInput{
			SiteID:      c.FormValue("siteId"),
			Type:        asset.Type(c.FormValue("type")),
			Title:       c.FormValue("title"),
			Description: c.FormValue("description"),
			FileName:    fh.Filename,
			ContentType: contentType,
			Size:        fh.Size,
			Body:        f,
			Width:       atoi(c.FormValue("width")),
			Height:      atoi(c.FormValue("height")),
			IsPublic:    c.FormValue("isPublic") != "false",
			UploadedBy:  p.UserID,
		})
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": created})
	})...)

	r.Get("/", append(guard, func(c *fiber.Ctx) error {
		fileName := c.Query("fileName")
		if fileName == "" {
			return fiber.NewError(fiber.StatusBadRequest, "fileName required")
		}
		presigned, err := svc.Presign(c.Context(), c.Query("siteId"), asset.Type(c.Query("type")), fileName)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": presigned})
	})...)

	r.Post("/confirm", append(guard, func(c *fiber.Ctx) error {
		req := ConfirmInput{IsPublic: true}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		p, _ := policy.PrincipalFrom(c)
		created, err := svc.Confirm(c.Context(), req, p.UserID)
		if err != nil {
			return httpError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": created})
	})...)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ErrUnknownSite):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
