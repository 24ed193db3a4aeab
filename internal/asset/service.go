package asset

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Prapti-XR/Prapti-sub000/internal/db"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// ModelTypes and ImageTypes select the asset families behind /api/models and /api/images.
var (
	ModelTypes = []Type{Model3D}
	ImageTypes = []Type{Image, Panorama360, Panorama180}
)

const assetColumns = `id, type, title, description, storage_key, storage_url, file_size, mime_type, format,
		       is_panorama, panorama_type, width, height, is_processed, is_public, status, site_id,
		       COALESCE(uploaded_by_id, ''), created_at`

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// Create registers an uploaded object. Panorama flags are derived from the type.
func (s *Service) Create(ctx context.Context, input Asset) (Asset, error) {
	if !input.Type.Valid() {
		return Asset{}, fmt.Errorf("invalid asset type %q", input.Type)
	}
	if input.SiteID == "" || input.StorageKey == "" || input.StorageURL == "" {
		return Asset{}, errors.New("siteId, storageKey and storageUrl required")
	}
	input.ID = uuid.NewString()
	input.IsPanorama = input.Type.IsPanorama()
	input.PanoramaType = input.Type.PanoramaType()
	if input.Format == "" {
		input.Format = FormatFromKey(input.StorageKey)
	}
	if input.Status == "" {
		input.Status = "READY"
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO assets (id, type, title, description, storage_key, storage_url, file_size, mime_type, format,
		                    is_panorama, panorama_type, width, height, is_processed, is_public, status, site_id, uploaded_by_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17, NULLIF($18, ''))
		RETURNING created_at
	`, input.ID, string(input.Type), input.Title, input.Description, input.StorageKey, input.StorageURL, input.FileSize,
		input.MimeType, input.Format, input.IsPanorama, input.PanoramaType, input.Width, input.Height, input.IsProcessed,
		input.IsPublic, input.Status, input.SiteID, input.UploadedByID)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Asset{}, fmt.Errorf("insert asset: %w", err)
	}
	return input, nil
}

// ListForSite returns a site's assets, newest last.
func (s *Service) ListForSite(ctx context.Context, siteID string, publicOnly bool) ([]Asset, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE site_id = $1 AND (is_public OR NOT $2)
		ORDER BY created_at
	`, siteID, publicOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	assets := []Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// SitesWithAssets lists published sites carrying at least one public asset
// of the given types, each with those assets attached.
func (s *Service) SitesWithAssets(ctx context.Context, types []Type, f ListFilter) ([]SiteAssets, error) {
	typeNames := typeStrings(types)

	var w db.Where
	w.Add("s.is_published = true")
	w.Add("EXISTS (SELECT 1 FROM assets a WHERE a.site_id = s.id AND a.is_public AND a.type = ANY(" + w.Arg(typeNames) + "))")
	w.Eq("s.country", f.Country)
	w.Eq("s.era", f.Era)
	w.Eq("s.id", f.SiteID)
	limit := w.Arg(clampLimit(f.Limit))

	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.name, s.description, s.latitude, s.longitude, s.country, s.city, s.era, s.popularity_score
		FROM heritage_sites s
		`+w.SQL()+`
		ORDER BY s.popularity_score DESC, s.name
		LIMIT `+limit, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := []SiteAssets{}
	var ids []string
	for rows.Next() {
		var site SiteAssets
		if err := rows.Scan(&site.ID, &site.Name, &site.Description, &site.Latitude, &site.Longitude, &site.Country, &site.City, &site.Era, &site.PopularityScore); err != nil {
			return nil, err
		}
		site.Assets = []Asset{}
		ids = append(ids, site.ID)
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byID, err := s.loadAssets(ctx, ids, typeNames)
	if err != nil {
		return nil, err
	}
	for i := range sites {
		if assets, ok := byID[sites[i].ID]; ok {
			sites[i].Assets = assets
		}
	}
	return sites, nil
}

func (s *Service) loadAssets(ctx context.Context, siteIDs, typeNames []string) (map[string][]Asset, error) {
	if len(siteIDs) == 0 {
		return map[string][]Asset{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+assetColumns+`
		FROM assets
		WHERE site_id = ANY($1) AND type = ANY($2) AND is_public
		ORDER BY created_at
	`, siteIDs, typeNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out[a.SiteID] = append(out[a.SiteID], a)
	}
	return out, rows.Err()
}

func scanAsset(row interface{ Scan(...any) error }) (Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.Type, &a.Title, &a.Description, &a.StorageKey, &a.StorageURL, &a.FileSize, &a.MimeType, &a.Format,
		&a.IsPanorama, &a.PanoramaType, &a.Width, &a.Height, &a.IsProcessed, &a.IsPublic, &a.Status, &a.SiteID,
		&a.UploadedByID, &a.CreatedAt)
	return a, err
}

func typeStrings(types []Type) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}

// TypeKey renders a type list for cache keys.
func TypeKey(types []Type) string {
	return strings.Join(typeStrings(types), ",")
}

// FormatFromKey returns the lower-case file extension of key without the dot.
func FormatFromKey(key string) string {
	i := strings.LastIndexByte(key, '.')
	if i < 0 || i == len(key)-1 {
		return ""
	}
	return strings.ToLower(key[i+1:])
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// ParseLimit parses a limit query value, falling back to the default.
func ParseLimit(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultListLimit
	}
	return clampLimit(n)
}
