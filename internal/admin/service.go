package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/Prapti-XR/Prapti-sub000/internal/auth"
	"github.com/Prapti-XR/Prapti-sub000/internal/db"
	"github.com/Prapti-XR/Prapti-sub000/internal/policy"

	"golang.org/x/sync/errgroup"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrInvalidRole  = errors.New("invalid role")
)

const (
	defaultLimit = 50
	maxLimit     = 100
	topSites     = 5
)

type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

// Analytics runs the independent aggregate queries concurrently. Any failure
// fails the whole snapshot.
func (s *Service) Analytics(ctx context.Context) (Analytics, error) {
	var a Analytics
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.db.QueryRow(ctx, `
			SELECT count(*), count(*) FILTER (WHERE is_published), COALESCE(sum(view_count), 0)::bigint
			FROM heritage_sites
		`).Scan(&a.TotalSites, &a.PublishedSites, &a.TotalViews)
	})
	g.Go(func() (err error) {
		a.UsersByRole, err = s.grouped(ctx, "users", "role")
		return err
	})
	g.Go(func() (err error) {
		a.AssetsByType, err = s.grouped(ctx, "assets", "type")
		return err
	})
	g.Go(func() (err error) {
		a.ContributionsByStatus, err = s.grouped(ctx, "contributions", "status")
		return err
	})
	g.Go(func() error {
		return s.db.QueryRow(ctx, `SELECT count(*) FROM trivia_questions`).Scan(&a.TriviaQuestions)
	})
	g.Go(func() (err error) {
		a.TopSites, err = s.topSites(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return Analytics{}, fmt.Errorf("analytics: %w", err)
	}
	return a, nil
}

// grouped counts rows of table per column value. Both names are constants
// supplied by this package.
func (s *Service) grouped(ctx context.Context, table, column string) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `SELECT `+column+`, count(*) FROM `+table+` GROUP BY `+column)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return nil, err
		}
		out[key] = n
	}
	return out, rows.Err()
}

func (s *Service) topSites(ctx context.Context) ([]TopSite, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, view_count
		FROM heritage_sites
		WHERE is_published = true
		ORDER BY view_count DESC, name
		LIMIT $1
	`, topSites)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []TopSite{}
	for rows.Next() {
		var t TopSite
		if err := rows.Scan(&t.ID, &t.Name, &t.ViewCount); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListUsers pages through users, newest first, with the total for the filter.
func (s *Service) ListUsers(ctx context.Context, f UserFilter) ([]auth.User, int, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, 0, ErrInvalidRole
	}
	var w db.Where
	w.Eq("role", string(f.Role))

	var total int
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM users `+w.SQL(), w.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := w.Arg(clampLimit(f.Limit)), w.Arg(max(f.Offset, 0))
	rows, err := s.db.Query(ctx, `
		SELECT id, email, name, role, image, created_at, updated_at
		FROM users
		`+w.SQL()+`
		ORDER BY created_at DESC
		LIMIT `+limit+` OFFSET `+offset, w.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := []auth.User{}
	for rows.Next() {
		var u auth.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Image, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// SetRole changes a user's role. Tokens already issued keep the old role
// until they expire.
func (s *Service) SetRole(ctx context.Context, id string, role policy.Role) (auth.User, error) {
	if !role.Valid() {
		return auth.User{}, ErrInvalidRole
	}
	var u auth.User
	err := s.db.QueryRow(ctx, `
		UPDATE users SET role = $2, updated_at = now()
		WHERE id = $1
		RETURNING id, email, name, role, image, created_at, updated_at
	`, id, string(role)).Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Image, &u.CreatedAt, &u.UpdatedAt)
	if db.IsNotFound(err) {
		return auth.User{}, ErrUserNotFound
	}
	if err != nil {
		return auth.User{}, err
	}
	return u, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
