package site

import (
	"errors"
	"strconv"

	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/policy"
	"github.com/Prapti-XR/Prapti-sub000/internal/shared/geo"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/nearby", func(c *fiber.Ctx) error {
		result, err := svc.Nearby(c.Context(), parseNearby(c))
		if err != nil {
			svc.log.Error("nearby query failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"sites":  []NearbySite{},
				"count":  0,
				"source": cache.SourceDatabase,
				"error":  "failed to load nearby sites",
			})
		}
		return c.JSON(result)
	})

	r.Get("/", func(c *fiber.Ctx) error {
		f := ListFilter{
			Country:  c.Query("country"),
			City:     c.Query("city"),
			Era:      c.Query("era"),
			Featured: queryBool(c, "featured"),
			Limit:    c.QueryInt("limit", defaultLimit),
			Offset:   c.QueryInt("offset", 0),
		}
		sites, source, err := svc.List(c.Context(), f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load sites")
		}
		return c.JSON(fiber.Map{"success": true, "data": sites, "count": len(sites), "source": source})
	})

	r.Get("/:id", func(c *fiber.Ctx) error {
		detail, source, err := svc.Get(c.Context(), c.Params("id"))
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load site")
		}
		return c.JSON(fiber.Map{"success": true, "data": detail, "source": source})
	})

	r.Post("/", authMiddleware, policy.Require(policy.SiteCreate), func(c *fiber.Ctx) error {
		var req CreateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		p, _ := policy.PrincipalFrom(c)
		site, err := svc.Create(c.Context(), req, p.UserID)
		if err != nil {
			return mutationError(err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": site})
	})

	r.Patch("/:id", authMiddleware, policy.Require(policy.SiteUpdate), func(c *fiber.Ctx) error {
		var req UpdateInput
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
		}
		site, err := svc.Update(c.Context(), c.Params("id"), req)
		if err != nil {
			return mutationError(err)
		}
		return c.JSON(fiber.Map{"success": true, "data": site})
	})

	r.Delete("/:id", authMiddleware, policy.Require(policy.SiteDelete), func(c *fiber.Ctx) error {
		if err := svc.Delete(c.Context(), c.Params("id")); err != nil {
			return mutationError(err)
		}
		return c.JSON(fiber.Map{"success": true})
	})
}

func mutationError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrInvalid):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return err
}

// parseNearby reads the viewport, filters and caller position. Missing,
// unparseable or out-of-range values fall back to the whole world and the
// default radius.
func parseNearby(c *fiber.Ctx) NearbyQuery {
	q := NearbyQuery{
		Box: geo.BoundingBox{
			North: queryFloat(c, "north", geo.World.North, geo.ValidLat),
			South: queryFloat(c, "south", geo.World.South, geo.ValidLat),
			East:  queryFloat(c, "east", geo.World.East, geo.ValidLng),
			West:  queryFloat(c, "west", geo.World.West, geo.ValidLng),
		},
		Era:         c.Query("era"),
		Country:     c.Query("country"),
		HasAR:       c.Query("hasAR") == "true",
		Has3D:       c.Query("has3D") == "true",
		HasPanorama: c.Query("hasPanorama") == "true",
		RadiusKm:    queryFloat(c, "radius", DefaultRadiusKm, validRadius),
	}
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr == nil && lonErr == nil && geo.ValidLatLng(lat, lon) {
		q.Lat, q.Lon = &lat, &lon
	}
	return q
}

func queryFloat(c *fiber.Ctx, key string, fallback float64, valid func(float64) bool) float64 {
	v, err := strconv.ParseFloat(c.Query(key), 64)
	if err != nil || !valid(v) {
		return fallback
	}
	return v
}

func queryBool(c *fiber.Ctx, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v := raw == "true"
	return &v
}
