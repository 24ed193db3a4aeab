package site

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
	"github.com/Prapti-XR/Prapti-sub000/internal/background"
	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/db"
	"github.com/Prapti-XR/Prapti-sub000/internal/shared/geo"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotFound = errors.New("site not found")
	ErrInvalid  = errors.New("invalid site")
)

const (
	listTTL   = 300 * time.Second
	detailTTL = 600 * time.Second

	defaultLimit = 50
	maxLimit     = 100
)

const siteColumns = `id, name, description, location, latitude, longitude, country, city, era, year_built,
		       cultural_significance, historical_context, is_published, is_featured, popularity_score, view_count,
		       COALESCE(created_by, ''), created_at, updated_at`

type Service struct {
	db        db.Querier
	assets    *asset.Service
	rt        *cache.ReadThrough
	runner    *background.Runner
	nearbyTTL time.Duration
	log       *zap.Logger
}

type Options struct {
	Assets    *asset.Service
	Cache     *cache.ReadThrough
	Runner    *background.Runner
	NearbyTTL time.Duration
	Logger    *zap.Logger
}

func NewService(q db.Querier, opts Options) *Service {
	if opts.Assets == nil {
		opts.Assets = asset.NewService(q)
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewReadThrough(nil, opts.Runner, opts.Logger)
	}
	if opts.NearbyTTL <= 0 {
		opts.NearbyTTL = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Service{
		db:        q,
		assets:    opts.Assets,
		rt:        opts.Cache,
		runner:    opts.Runner,
		nearbyTTL: opts.NearbyTTL,
		log:       opts.Logger,
	}
}

// List returns published sites matching f, featured first.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Site, string, error) {
	f.Limit = clampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	key := cache.Key("sites", "list", f.Country, f.City, f.Era, boolKey(f.Featured), strconv.Itoa(f.Limit), strconv.Itoa(f.Offset))
	return cache.Fetch(ctx, s.rt, key, listTTL, func(ctx context.Context) ([]Site, error) {
		var w db.Where
		w.Add("is_published = true")
		w.Eq("country", f.Country)
		w.Eq("city", f.City)
		w.Eq("era", f.Era)
		if f.Featured != nil {
			w.Add("is_featured = " + w.Arg(*f.Featured))
		}
		limit, offset := w.Arg(f.Limit), w.Arg(f.Offset)
		return s.query(ctx, `
			SELECT `+siteColumns+`
			FROM heritage_sites
			`+w.SQL()+`
			ORDER BY is_featured DESC, popularity_score DESC, name
			LIMIT `+limit+` OFFSET `+offset, w.Args()...)
	})
}

// ListAll is the moderation view: unpublished sites included, plus the total
// row count for paging.
func (s *Service) ListAll(ctx context.Context, f AdminFilter) ([]Site, int, error) {
	var w db.Where
	if f.Published != nil {
		w.Add("is_published = " + w.Arg(*f.Published))
	}
	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM heritage_sites `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := w.Arg(clampLimit(f.Limit)), w.Arg(max(f.Offset, 0))
	sites, err := s.query(ctx, `
		SELECT `+siteColumns+`
		FROM heritage_sites
		`+w.SQL()+`
		ORDER BY created_at DESC
		LIMIT `+limit+` OFFSET `+offset, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return sites, total, nil
}

// Get returns a published site with its public assets, tags and trivia
// count, and schedules a view-count increment. The increment is not part of
// the returned or cached payload.
func (s *Service) Get(ctx context.Context, id string) (Detail, string, error) {
	detail, source, err := cache.Fetch(ctx, s.rt, cache.Key("sites", "detail", id), detailTTL, func(ctx context.Context) (Detail, error) {
		return s.loadDetail(ctx, id)
	})
	if err != nil {
		return Detail{}, source, err
	}
	s.RecordView(id)
	return detail, source, nil
}

func (s *Service) loadDetail(ctx context.Context, id string) (Detail, error) {
	site, err := scanSite(s.db.QueryRow(ctx, `
		SELECT `+siteColumns+`
		FROM heritage_sites
		WHERE id = $1 AND is_published = true
	`, id))
	if db.IsNotFound(err) {
		return Detail{}, ErrNotFound
	}
	if err != nil {
		return Detail{}, err
	}

	detail := Detail{Site: site}
	if detail.Assets, err = s.assets.ListForSite(ctx, id, true); err != nil {
		return Detail{}, fmt.Errorf("load assets: %w", err)
	}
	if detail.Tags, err = s.tags(ctx, id); err != nil {
		return Detail{}, fmt.Errorf("load tags: %w", err)
	}
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM trivia_questions WHERE site_id = $1`, id).Scan(&detail.TriviaCount); err != nil {
		return Detail{}, fmt.Errorf("count trivia: %w", err)
	}
	return detail, nil
}

// RecordView increments the view counter in the background. id may alias
// a request buffer, so it is copied before the task is scheduled.
func (s *Service) RecordView(id string) {
	if s.runner == nil {
		return
	}
	id = strings.Clone(id)
	q := s.db
	s.runner.Go("site-view", func(ctx context.Context) error {
		_, err := q.Exec(ctx, `UPDATE heritage_sites SET view_count = view_count + 1 WHERE id = $1`, id)
		return err
	})
}

func (s *Service) Create(ctx context.Context, in CreateInput, createdBy string) (Site, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return Site{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if in.Latitude == nil || in.Longitude == nil {
		return Site{}, fmt.Errorf("%w: latitude and longitude required", ErrInvalid)
	}
	if !geo.ValidLatLng(*in.Latitude, *in.Longitude) {
		return Site{}, fmt.Errorf("%w: coordinates out of range", ErrInvalid)
	}

	site := Site{
		ID:                   uuid.NewString(),
		Name:                 in.Name,
		Description:          in.Description,
		Location:             in.Location,
		Latitude:             *in.Latitude,
		Longitude:            *in.Longitude,
		Country:              in.Country,
		City:                 in.City,
		Era:                  in.Era,
		YearBuilt:            in.YearBuilt,
		CulturalSignificance: in.CulturalSignificance,
		HistoricalContext:    in.HistoricalContext,
		IsPublished:          in.IsPublished,
		IsFeatured:           in.IsFeatured,
		CreatedBy:            createdBy,
	}
	err := db.InTx(ctx, s.db, func(tx db.Querier) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO heritage_sites (id, name, description, location, latitude, longitude, country, city, era, year_built,
			                            cultural_significance, historical_context, is_published, is_featured, created_by)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14, NULLIF($15, ''))
			RETURNING created_at, updated_at
		`, site.ID, site.Name, site.Description, site.Location, site.Latitude, site.Longitude, site.Country, site.City, site.Era,
			site.YearBuilt, site.CulturalSignificance, site.HistoricalContext, site.IsPublished, site.IsFeatured, createdBy).
			Scan(&site.CreatedAt, &site.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert site: %w", err)
		}
		if len(in.Tags) == 0 {
			return nil
		}
		return setTags(ctx, tx, site.ID, in.Tags)
	})
	if err != nil {
		return Site{}, err
	}
	s.invalidate()
	return site, nil
}

func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Site, error) {
	site, err := scanSite(s.db.QueryRow(ctx, `SELECT `+siteColumns+` FROM heritage_sites WHERE id = $1`, id))
	if db.IsNotFound(err) {
		return Site{}, ErrNotFound
	}
	if err != nil {
		return Site{}, err
	}

	setString(&site.Name, in.Name)
	setString(&site.Description, in.Description)
	setString(&site.Location, in.Location)
	setString(&site.Country, in.Country)
	setString(&site.City, in.City)
	setString(&site.Era, in.Era)
	setString(&site.CulturalSignificance, in.CulturalSignificance)
	setString(&site.HistoricalContext, in.HistoricalContext)
	if in.Latitude != nil {
		site.Latitude = *in.Latitude
	}
	if in.Longitude != nil {
		site.Longitude = *in.Longitude
	}
	if in.YearBuilt != nil {
		site.YearBuilt = in.YearBuilt
	}
	if in.IsPublished != nil {
		site.IsPublished = *in.IsPublished
	}
	if in.IsFeatured != nil {
		site.IsFeatured = *in.IsFeatured
	}
	if in.PopularityScore != nil {
		site.PopularityScore = *in.PopularityScore
	}
	if strings.TrimSpace(site.Name) == "" {
		return Site{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if !geo.ValidLatLng(site.Latitude, site.Longitude) {
		return Site{}, fmt.Errorf("%w: coordinates out of range", ErrInvalid)
	}

	err = db.InTx(ctx, s.db, func(tx db.Querier) error {
		err := tx.QueryRow(ctx, `
			UPDATE heritage_sites
			SET name = $2, description = $3, location = $4, latitude = $5, longitude = $6, country = $7, city = $8,
			    era = $9, year_built = $10, cultural_significance = $11, historical_context = $12,
			    is_published = $13, is_featured = $14, popularity_score = $15, updated_at = now()
			WHERE id = $1
			RETURNING updated_at
		`, site.ID, site.Name, site.Description, site.Location, site.Latitude, site.Longitude, site.Country, site.City,
			site.Era, site.YearBuilt, site.CulturalSignificance, site.HistoricalContext, site.IsPublished, site.IsFeatured,
			site.PopularityScore).Scan(&site.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update site: %w", err)
		}
		if in.Tags == nil {
			return nil
		}
		return setTags(ctx, tx, id, *in.Tags)
	})
	if err != nil {
		return Site{}, err
	}
	s.invalidate()
	return site, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM heritage_sites WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.invalidate("trivia:*")
	return nil
}

// Exists reports whether a site with id exists, published or not.
func (s *Service) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM heritage_sites WHERE id = $1)`, id).Scan(&ok)
	return ok, err
}

func (s *Service) invalidate(extra ...string) {
	s.rt.Invalidate(append([]string{"sites:*", "models:*", "images:*"}, extra...)...)
}

func (s *Service) tags(ctx context.Context, siteID string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT t.name
		FROM tags t
		JOIN site_tags st ON st.tag_id = t.id
		WHERE st.site_id = $1
		ORDER BY t.name
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

// setTags replaces the site's tags. It runs inside the caller's transaction.
func setTags(ctx context.Context, q db.Querier, siteID string, names []string) error {
	if _, err := q.Exec(ctx, `DELETE FROM site_tags WHERE site_id = $1`, siteID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, name := range normalizeTags(names) {
		var tagID string
		err := q.QueryRow(ctx, `
			INSERT INTO tags (id, name) VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, uuid.NewString(), name).Scan(&tagID)
		if err != nil {
			return fmt.Errorf("upsert tag %s: %w", name, err)
		}
		if _, err := q.Exec(ctx, `INSERT INTO site_tags (site_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, siteID, tagID); err != nil {
			return fmt.Errorf("link tag %s: %w", name, err)
		}
	}
	return nil
}

func (s *Service) query(ctx context.Context, sql string, args ...any) ([]Site, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sites := []Site{}
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func scanSite(row interface{ Scan(...any) error }) (Site, error) {
	var s Site
	err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Location, &s.Latitude, &s.Longitude, &s.Country, &s.City, &s.Era,
		&s.YearBuilt, &s.CulturalSignificance, &s.HistoricalContext, &s.IsPublished, &s.IsFeatured, &s.PopularityScore,
		&s.ViewCount, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func normalizeTags(names []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func boolKey(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
