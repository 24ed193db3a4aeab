package asset

import (
	"context"
	"strconv"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/cache"

	"github.com/gofiber/fiber/v2"
)

const listTTL = 300 * time.Second

// RegisterRoutes mounts /models and /images on r.
func RegisterRoutes(r fiber.Router, svc *Service, rt *cache.ReadThrough) {
	r.Get("/models", listHandler(svc, rt, "models", ModelTypes))
	r.Get("/images", listHandler(svc, rt, "images", ImageTypes))
}

func listHandler(svc *Service, rt *cache.ReadThrough, namespace string, types []Type) fiber.Handler {
	return func(c *fiber.Ctx) error {
		f := ListFilter{
			Country: c.Query("country"),
			Era:     c.Query("era"),
			SiteID:  c.Query("siteId"),
			Limit:   ParseLimit(c.Query("limit")),
		}
		key := cache.Key(namespace, "list", f.Country, f.Era, f.SiteID, strconv.Itoa(f.Limit))
		sites, source, err := cache.Fetch(c.Context(), rt, key, listTTL, func(ctx context.Context) ([]SiteAssets, error) {
			return svc.SitesWithAssets(ctx, types, f)
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to load "+namespace)
		}
		return c.JSON(fiber.Map{"success": true, "data": sites, "count": len(sites), "source": source})
	}
}
