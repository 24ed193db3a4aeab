package contribution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/background"
	"github.com/Prapti-XR/Prapti-sub000/internal/db"
	"github.com/Prapti-XR/Prapti-sub000/internal/feed"
	"github.com/Prapti-XR/Prapti-sub000/internal/policy"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

var (
	ErrNotFound   = errors.New("contribution not found")
	ErrForbidden  = errors.New("not allowed to modify this contribution")
	ErrInvalid    = errors.New("invalid contribution")
	ErrSelfReview = errors.New("authors cannot review their own contributions")
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

const selectContributions = `SELECT c.id, c.title, c.description, c.type, c.status, c.contribution_data, c.new_site_data,
		       COALESCE(c.site_id, ''), c.author_id, COALESCE(u.name, ''), c.approved_by, c.approved_at,
		       c.rejected_by, c.rejected_at, c.rejection_reason, c.merged_at, c.created_at, c.updated_at
		FROM contributions c
		LEFT JOIN users u ON u.id = c.author_id`

// Broadcaster delivers serialized events to feed subscribers.
type Broadcaster interface {
	Broadcast(topic string, payload []byte)
}

type Service struct {
	db     db.Querier
	feed   Broadcaster
	runner *background.Runner
	log    *zap.Logger
	now    func() time.Time
}

func NewService(q db.Querier, feed Broadcaster, runner *background.Runner, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: q, feed: feed, runner: runner, log: log, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Create(ctx context.Context, p policy.Principal, in CreateInput) (Contribution, error) {
	in.Title = strings.TrimSpace(in.Title)
	switch {
	case in.Title == "":
		return Contribution{}, fmt.Errorf("%w: title is required", ErrInvalid)
	case !in.Type.Valid():
		return Contribution{}, fmt.Errorf("%w: type must be one of NEW_SITE, EDIT_SITE, ADD_ASSET, ADD_TRIVIA, EDIT_TRIVIA, FIX_INFO", ErrInvalid)
	case isEmptyJSON(in.ContributionData):
		return Contribution{}, fmt.Errorf("%w: contributionData is required", ErrInvalid)
	case !json.Valid(in.ContributionData):
		return Contribution{}, fmt.Errorf("%w: contributionData must be valid JSON", ErrInvalid)
	case in.Type != TypeNewSite && in.SiteID == "":
		return Contribution{}, fmt.Errorf("%w: siteId is required for %s", ErrInvalid, in.Type)
	}

	c := Contribution{
		ID:               uuid.NewString(),
		Title:            in.Title,
		Description:      in.Description,
		Type:             in.Type,
		Status:           StatusPending,
		ContributionData: in.ContributionData,
		SiteID:           in.SiteID,
		AuthorID:         p.UserID,
	}
	if !isEmptyJSON(in.NewSiteData) {
		c.NewSiteData = in.NewSiteData
	}
	if in.Draft {
		c.Status = StatusDraft
	}

	err := s.db.QueryRow(ctx, `
		INSERT INTO contributions (id, title, description, type, status, contribution_data, new_site_data, site_id, author_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING created_at, updated_at
	`, c.ID, c.Title, c.Description, string(c.Type), string(c.Status), c.ContributionData, nullableJSON(c.NewSiteData),
		c.SiteID, c.AuthorID).Scan(&c.CreatedAt, &c.UpdatedAt)
	if isForeignKeyViolation(err) {
		return Contribution{}, fmt.Errorf("%w: site %s does not exist", ErrInvalid, c.SiteID)
	}
	if err != nil {
		return Contribution{}, fmt.Errorf("insert contribution: %w", err)
	}
	s.publish("created", c, "", p.UserID)
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (Contribution, error) {
	c, err := scanContribution(s.db.QueryRow(ctx, selectContributions+` WHERE c.id = $1`, id))
	if db.IsNotFound(err) {
		return Contribution{}, ErrNotFound
	}
	return c, err
}

// GetFor returns the contribution if p is its author or a moderator.
func (s *Service) GetFor(ctx context.Context, p policy.Principal, id string) (Contribution, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Contribution{}, err
	}
	if c.AuthorID != p.UserID && !p.Can(policy.ContributionModerate) {
		return Contribution{}, ErrForbidden
	}
	return c, nil
}

// List returns contributions newest first. Callers without moderation rights
// only ever see their own.
func (s *Service) List(ctx context.Context, p policy.Principal, f ListFilter) ([]Contribution, error) {
	if !p.Can(policy.ContributionModerate) {
		f.AuthorID = p.UserID
	}
	var w db.Where
	w.Eq("c.status", string(f.Status))
	w.Eq("c.type", string(f.Type))
	w.Eq("c.site_id", f.SiteID)
	w.Eq("c.author_id", f.AuthorID)
	limit, offset := w.Arg(clampLimit(f.Limit)), w.Arg(max(f.Offset, 0))

	rows, err := s.db.Query(ctx, selectContributions+`
		`+w.SQL()+`
		ORDER BY c.created_at DESC
		LIMIT `+limit+` OFFSET `+offset, w.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Contribution{}
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update edits fields and optionally moves the status. Authors may edit only
// while DRAFT or PENDING and may only toggle between those two; moderators
// may edit at any status and move it along the transition table.
func (s *Service) Update(ctx context.Context, p policy.Principal, id string, in UpdateInput) (Contribution, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Contribution{}, err
	}
	moderator := p.Can(policy.ContributionModerate)
	if !moderator && (c.AuthorID != p.UserID || !c.Status.AuthorEditable()) {
		return Contribution{}, ErrForbidden
	}

	previous := c.Status
	if in.Status != nil && *in.Status != c.Status {
		if !in.Status.Valid() {
			return Contribution{}, fmt.Errorf("%w: unknown status %s", ErrInvalid, *in.Status)
		}
		ev, ok := authorEvent(c, p, *in.Status)
		if !ok {
			if !moderator {
				return Contribution{}, ErrForbidden
			}
			ev = Moderate(*in.Status)
		}
		next, err := Transition(c.Status, ev)
		if err != nil {
			return Contribution{}, err
		}
		s.applyStatus(&c, next, p.UserID, in.RejectionReason)
	}

	if in.Title != nil {
		if strings.TrimSpace(*in.Title) == "" {
			return Contribution{}, fmt.Errorf("%w: title is required", ErrInvalid)
		}
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		c.Description = *in.Description
	}
	if in.ContributionData != nil {
		if isEmptyJSON(in.ContributionData) || !json.Valid(in.ContributionData) {
			return Contribution{}, fmt.Errorf("%w: contributionData must be non-empty JSON", ErrInvalid)
		}
		c.ContributionData = in.ContributionData
	}
	if in.NewSiteData != nil {
		c.NewSiteData = nil
		if !isEmptyJSON(in.NewSiteData) {
			c.NewSiteData = in.NewSiteData
		}
	}
	if in.SiteID != nil {
		c.SiteID = *in.SiteID
	}

	if err := s.save(ctx, s.db, &c); err != nil {
		return Contribution{}, err
	}
	if c.Status != previous {
		s.publish("status", c, previous, p.UserID)
	}
	return c, nil
}

// authorEvent maps the author's own DRAFT/PENDING toggle to its event,
// whatever the author's role.
func authorEvent(c Contribution, p policy.Principal, to Status) (Event, bool) {
	if c.AuthorID != p.UserID || !c.Status.AuthorEditable() {
		return "", false
	}
	switch to {
	case StatusDraft:
		return AuthorDraft, true
	case StatusPending:
		return AuthorSubmit, true
	}
	return "", false
}

// Delete removes a contribution. Authors may delete their own drafts; admins
// may delete anything.
func (s *Service) Delete(ctx context.Context, p policy.Principal, id string) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.Can(policy.ContributionDeleteAny) && (c.AuthorID != p.UserID || c.Status != StatusDraft) {
		return ErrForbidden
	}
	if _, err := s.db.Exec(ctx, `DELETE FROM contributions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete contribution: %w", err)
	}
	s.publish("deleted", c, "", p.UserID)
	return nil
}

// Review records the reviewer's verdict, replacing any earlier one, and
// applies its status effect.
func (s *Service) Review(ctx context.Context, p policy.Principal, id string, in ReviewInput) (Review, Contribution, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Review{}, Contribution{}, err
	}
	if c.AuthorID == p.UserID {
		return Review{}, Contribution{}, ErrSelfReview
	}
	if !p.Can(policy.ReviewSubmit) {
		return Review{}, Contribution{}, ErrForbidden
	}
	if !in.Status.Valid() {
		return Review{}, Contribution{}, fmt.Errorf("%w: review status must be APPROVED, CHANGES_REQUESTED, REJECTED or COMMENTED", ErrInvalid)
	}
	next, err := Transition(c.Status, ReviewEvent(in.Status))
	if err != nil {
		return Review{}, Contribution{}, err
	}

	r := Review{ContributionID: c.ID, ReviewerID: p.UserID, Status: in.Status, Comment: in.Comment}
	previous := c.Status
	if next != c.Status {
		reason := in.Comment
		s.applyStatus(&c, next, p.UserID, &reason)
	}
	err = db.InTx(ctx, s.db, func(tx db.Querier) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO reviews (id, contribution_id, reviewer_id, status, comment)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (contribution_id, reviewer_id)
			DO UPDATE SET status = EXCLUDED.status, comment = EXCLUDED.comment, updated_at = now()
			RETURNING id, created_at, updated_at
		`, uuid.NewString(), r.ContributionID, r.ReviewerID, string(r.Status), r.Comment).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert review: %w", err)
		}
		if c.Status == previous {
			return nil
		}
		return s.save(ctx, tx, &c)
	})
	if err != nil {
		return Review{}, Contribution{}, err
	}

	if c.Status != previous {
		s.publish("status", c, previous, p.UserID)
	} else {
		s.publish("review", c, "", p.UserID)
	}
	return r, c, nil
}

func (s *Service) Reviews(ctx context.Context, contributionID string) ([]Review, error) {
	rows, err := s.db.Query(ctx, `
		SELECT r.id, r.contribution_id, r.reviewer_id, COALESCE(u.name, ''), r.status, r.comment, r.created_at, r.updated_at
		FROM reviews r
		LEFT JOIN users u ON u.id = r.reviewer_id
		WHERE r.contribution_id = $1
		ORDER BY r.updated_at DESC
	`, contributionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Review{}
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.ContributionID, &r.ReviewerID, &r.ReviewerName, &r.Status, &r.Comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// applyStatus moves c to next and stamps the audit fields for that status.
func (s *Service) applyStatus(c *Contribution, next Status, actorID string, reason *string) {
	now := s.now()
	switch next {
	case StatusApproved:
		c.ApprovedBy, c.ApprovedAt = &actorID, &now
	case StatusRejected:
		c.RejectedBy, c.RejectedAt = &actorID, &now
		if reason != nil && *reason != "" {
			c.RejectionReason = reason
		}
	case StatusMerged:
		c.MergedAt = &now
	}
	c.Status = next
}

func (s *Service) save(ctx context.Context, q db.Querier, c *Contribution) error {
	err := q.QueryRow(ctx, `
		UPDATE contributions
		SET title = $2, description = $3, contribution_data = $4, new_site_data = $5, site_id = NULLIF($6, ''),
		    status = $7, approved_by = $8, approved_at = $9, rejected_by = $10, rejected_at = $11,
		    rejection_reason = $12, merged_at = $13, updated_at = now()
		WHERE id = $1
		RETURNING updated_at
	`, c.ID, c.Title, c.Description, c.ContributionData, nullableJSON(c.NewSiteData), c.SiteID, string(c.Status),
		c.ApprovedBy, c.ApprovedAt, c.RejectedBy, c.RejectedAt, c.RejectionReason, c.MergedAt).Scan(&c.UpdatedAt)
	if db.IsNotFound(err) {
		return ErrNotFound
	}
	if isForeignKeyViolation(err) {
		return fmt.Errorf("%w: site %s does not exist", ErrInvalid, c.SiteID)
	}
	if err != nil {
		return fmt.Errorf("update contribution: %w", err)
	}
	return nil
}

func (s *Service) publish(kind string, c Contribution, previous Status, actorID string) {
	if s.feed == nil || s.runner == nil {
		return
	}
	payload, err := json.Marshal(FeedEvent{
		Kind:           kind,
		ContributionID: c.ID,
		Title:          c.Title,
		Status:         c.Status,
		PreviousStatus: previous,
		ActorID:        actorID,
		At:             s.now(),
	})
	if err != nil {
		s.log.Warn("encode feed event", zap.Error(err))
		return
	}
	hub := s.feed
	s.runner.Go("feed-publish", func(context.Context) error {
		hub.Broadcast(feed.ModerationTopic, payload)
		hub.Broadcast(c.ID, payload)
		return nil
	})
}

func scanContribution(row interface{ Scan(...any) error }) (Contribution, error) {
	var c Contribution
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.Type, &c.Status, &c.ContributionData, &c.NewSiteData,
		&c.SiteID, &c.AuthorID, &c.AuthorName, &c.ApprovedBy, &c.ApprovedAt, &c.RejectedBy, &c.RejectedAt,
		&c.RejectionReason, &c.MergedAt, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(bytes.TrimSpace(raw)) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return min(limit, maxLimit)
}
