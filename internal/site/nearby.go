package site

import (
	"context"
	"math"
	"sort"
	"strconv"

	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/db"
	"github.com/Prapti-XR/Prapti-sub000/internal/shared/geo"
)

const (
	nearbyCandidateLimit = 200
	nearbyResultLimit    = 100
	DefaultRadiusKm      = 50.0
)

// NearbyQuery is a map viewport plus optional filters. Lat and Lon are the
// caller's position; when both are set, results are filtered to RadiusKm and
// ordered by distance.
type NearbyQuery struct {
	Box         geo.BoundingBox
	Era         string
	Country     string
	HasAR       bool
	Has3D       bool
	HasPanorama bool
	Lat         *float64
	Lon         *float64
	RadiusKm    float64
}

type NearbyResult struct {
	Sites  []NearbySite `json:"sites"`
	Count  int          `json:"count"`
	Source string       `json:"source"`
}

// CacheKey identifies the viewport and filters. The caller position and
// radius are deliberately absent so every caller shares the entry.
func (q NearbyQuery) CacheKey() string {
	return cache.Key("sites", "nearby",
		formatCoord(q.Box.North), formatCoord(q.Box.South), formatCoord(q.Box.East), formatCoord(q.Box.West),
		q.Era, q.Country,
		strconv.FormatBool(q.HasAR), strconv.FormatBool(q.Has3D), strconv.FormatBool(q.HasPanorama))
}

func (q NearbyQuery) hasOrigin() bool {
	return q.Lat != nil && q.Lon != nil
}

func validRadius(km float64) bool {
	return km > 0 && !math.IsInf(km, 1)
}

// sanitized drops an invalid origin and replaces an invalid radius or box
// side with its default, so NaN and infinities never reach SQL or the
// distance filter.
func (q NearbyQuery) sanitized() NearbyQuery {
	if !validRadius(q.RadiusKm) {
		q.RadiusKm = DefaultRadiusKm
	}
	if q.hasOrigin() && !geo.ValidLatLng(*q.Lat, *q.Lon) {
		q.Lat, q.Lon = nil, nil
	}
	q.Box = q.Box.Sanitize(geo.World)
	return q
}

// Nearby returns up to 100 published sites inside the viewport. The cache
// holds the location-independent candidate list; distance filtering runs
// on every request.
func (s *Service) Nearby(ctx context.Context, q NearbyQuery) (NearbyResult, error) {
	q = q.sanitized()
	candidates, source, err := cache.Fetch(ctx, s.rt, q.CacheKey(), s.nearbyTTL, func(ctx context.Context) ([]NearbySite, error) {
		return s.nearbyCandidates(ctx, q)
	})
	if err != nil {
		return NearbyResult{Sites: []NearbySite{}, Source: cache.SourceDatabase}, err
	}

	sites := candidates
	if q.hasOrigin() {
		sites = withinRadius(candidates, *q.Lat, *q.Lon, q.RadiusKm)
	}
	if len(sites) > nearbyResultLimit {
		sites = sites[:nearbyResultLimit]
	}
	return NearbyResult{Sites: sites, Count: len(sites), Source: source}, nil
}

func (s *Service) nearbyCandidates(ctx context.Context, q NearbyQuery) ([]NearbySite, error) {
	var w db.Where
	w.Add("s.is_published = true")
	w.Add("s.latitude BETWEEN " + w.Arg(q.Box.South) + " AND " + w.Arg(q.Box.North))
	if q.Box.West <= q.Box.East {
		w.Add("s.longitude BETWEEN " + w.Arg(q.Box.West) + " AND " + w.Arg(q.Box.East))
	} else {
		w.Add("(s.longitude >= " + w.Arg(q.Box.West) + " OR s.longitude <= " + w.Arg(q.Box.East) + ")")
	}
	w.Eq("s.era", q.Era)
	w.Eq("s.country", q.Country)
	if q.Has3D {
		w.Add("EXISTS (SELECT 1 FROM assets m WHERE m.site_id = s.id AND m.type = 'MODEL_3D')")
	}
	if q.HasAR {
		w.Add("EXISTS (SELECT 1 FROM assets m WHERE m.site_id = s.id AND m.type = 'MODEL_3D' AND m.is_processed AND m.format IN ('glb', 'usdz'))")
	}
	if q.HasPanorama {
		w.Add("EXISTS (SELECT 1 FROM assets p WHERE p.site_id = s.id AND p.type IN ('PANORAMA_360', 'PANORAMA_180'))")
	}
	limit := w.Arg(nearbyCandidateLimit)

	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.name, s.description, s.latitude, s.longitude, s.country, s.city, s.era, s.is_featured, s.popularity_score,
		       t.id, t.type, t.title, t.storage_url
		FROM heritage_sites s
		LEFT JOIN LATERAL (
			SELECT a.id, a.type, a.title, a.storage_url
			FROM assets a
			WHERE a.site_id = s.id AND a.is_public AND a.type IN ('THUMBNAIL', 'IMAGE')
			ORDER BY (a.type = 'THUMBNAIL') DESC, a.created_at
			LIMIT 1
		) t ON true
		`+w.SQL()+`
		ORDER BY s.popularity_score DESC
		LIMIT `+limit, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := []NearbySite{}
	for rows.Next() {
		var (
			site                     NearbySite
			thumbID, thumbType       *string
			thumbTitle, thumbStorage *string
		)
		if err := rows.Scan(&site.ID, &site.Name, &site.Description, &site.Latitude, &site.Longitude, &site.Country,
			&site.City, &site.Era, &site.IsFeatured, &site.PopularityScore,
			&thumbID, &thumbType, &thumbTitle, &thumbStorage); err != nil {
			return nil, err
		}
		site.Assets = []asset.Summary{}
		if thumbID != nil {
			site.Assets = append(site.Assets, asset.Summary{
				ID:         *thumbID,
				Type:       asset.Type(deref(thumbType)),
				Title:      deref(thumbTitle),
				StorageURL: deref(thumbStorage),
			})
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

// withinRadius returns copies of the candidates within radiusKm of the
// origin, nearest first, each annotated with its distance.
func withinRadius(candidates []NearbySite, lat, lon, radiusKm float64) []NearbySite {
	out := make([]NearbySite, 0, len(candidates))
	for _, c := range candidates {
		d := geo.HaversineKm(lat, lon, c.Latitude, c.Longitude)
		if d > radiusKm {
			continue
		}
		c.Distance = &d
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return *out[i].Distance < *out[j].Distance })
	return out
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
