package contribution

import (
	"encoding/json"
	"time"
)

type Type string

const (
	TypeNewSite    Type = "NEW_SITE"
	TypeEditSite   Type = "EDIT_SITE"
	TypeAddAsset   Type = "ADD_ASSET"
	TypeAddTrivia  Type = "ADD_TRIVIA"
	TypeEditTrivia Type = "EDIT_TRIVIA"
	TypeFixInfo    Type = "FIX_INFO"
)

func (t Type) Valid() bool {
	switch t {
	case TypeNewSite, TypeEditSite, TypeAddAsset, TypeAddTrivia, TypeEditTrivia, TypeFixInfo:
		return true
	}
	return false
}

type Status string

const (
	StatusDraft       Status = "DRAFT"
	StatusPending     Status = "PENDING"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusMerged      Status = "MERGED"
	StatusClosed      Status = "CLOSED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusUnderReview, StatusApproved, StatusRejected, StatusMerged, StatusClosed:
		return true
	}
	return false
}

// Moderatable reports whether moderators may set s directly. DRAFT is
// reachable only through the author.
func (s Status) Moderatable() bool {
	return s.Valid() && s != StatusDraft
}

// AuthorEditable reports whether the author may still change the contribution.
func (s Status) AuthorEditable() bool {
	return s == StatusDraft || s == StatusPending
}

type Verdict string

const (
	VerdictApproved         Verdict = "APPROVED"
	VerdictChangesRequested Verdict = "CHANGES_REQUESTED"
	VerdictRejected         Verdict = "REJECTED"
	VerdictCommented        Verdict = "COMMENTED"
)

func (v Verdict) Valid() bool {
	switch v {
	case VerdictApproved, VerdictChangesRequested, VerdictRejected, VerdictCommented:
		return true
	}
	return false
}

type Contribution struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Type             Type            `json:"type"`
	Status           Status          `json:"status"`
	ContributionData json.RawMessage `json:"contributionData"`
	NewSiteData      json.RawMessage `json:"newSiteData,omitempty"`
	SiteID           string          `json:"siteId,omitempty"`
	AuthorID         string          `json:"authorId"`
	AuthorName       string          `json:"authorName,omitempty"`
	ApprovedBy       *string         `json:"approvedBy"`
	ApprovedAt       *time.Time      `json:"approvedAt"`
	RejectedBy       *string         `json:"rejectedBy"`
	RejectedAt       *time.Time      `json:"rejectedAt"`
	RejectionReason  *string         `json:"rejectionReason"`
	MergedAt         *time.Time      `json:"mergedAt"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type Review struct {
	ID             string    `json:"id"`
	ContributionID string    `json:"contributionId"`
	ReviewerID     string    `json:"reviewerId"`
	ReviewerName   string    `json:"reviewerName,omitempty"`
	Status         Verdict   `json:"status"`
	Comment        string    `json:"comment"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type CreateInput struct {
	Title            string          `json:"title"`
	Description      string          `json:"description"`
	Type             Type            `json:"type"`
	ContributionData json.RawMessage `json:"contributionData"`
	NewSiteData      json.RawMessage `json:"newSiteData"`
	SiteID           string          `json:"siteId"`
	Draft            bool            `json:"draft"`
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	Title            *string         `json:"title"`
	Description      *string         `json:"description"`
	ContributionData json.RawMessage `json:"contributionData"`
	NewSiteData      json.RawMessage `json:"newSiteData"`
	SiteID           *string         `json:"siteId"`
	Status           *Status         `json:"status"`
	RejectionReason  *string         `json:"rejectionReason"`
}

type ReviewInput struct {
	Status  Verdict `json:"status"`
	Comment string  `json:"comment"`
}

type ListFilter struct {
	Status   Status
	Type     Type
	SiteID   string
	AuthorID string
	Limit    int
	Offset   int
}

// FeedEvent is the payload broadcast when a contribution changes.
type FeedEvent struct {
	Kind           string    `json:"kind"`
	ContributionID string    `json:"contributionId"`
	Title          string    `json:"title"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previousStatus,omitempty"`
	ActorID        string    `json:"actorId"`
	At             time.Time `json:"at"`
}
