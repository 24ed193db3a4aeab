package policy

import (
	"github.com/gofiber/fiber/v2"
)

type Role string

const (
	RoleUser        Role = "USER"
	RoleContributor Role = "CONTRIBUTOR"
	RoleModerator   Role = "MODERATOR"
	RoleAdmin       Role = "ADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleContributor, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Action names a capability checked at the API boundary.
type Action string

const (
	ContributionCreate    Action = "contribution:create"
	ContributionModerate  Action = "contribution:moderate"
	ContributionDeleteAny Action = "contribution:delete-any"
	ReviewSubmit          Action = "review:submit"
	SiteCreate            Action = "site:create"
	SiteUpdate            Action = "site:update"
	SiteDelete            Action = "site:delete"
	TriviaManage          Action = "trivia:manage"
	AssetUpload           Action = "asset:upload"
	CacheManage           Action = "cache:manage"
	AnalyticsView         Action = "analytics:view"
	UserManage            Action = "user:manage"
	AdminContentView      Action = "admin:content"
)

var (
	contributors = []Role{RoleContributor, RoleModerator, RoleAdmin}
	moderators   = []Role{RoleModerator, RoleAdmin}
	admins       = []Role{RoleAdmin}
)

var capabilities = map[Action][]Role{
	ContributionCreate:    contributors,
	ContributionModerate:  moderators,
	ContributionDeleteAny: admins,
	ReviewSubmit:          moderators,
	SiteCreate:            moderators,
	SiteUpdate:            moderators,
	SiteDelete:            admins,
	TriviaManage:          moderators,
	AssetUpload:           moderators,
	CacheManage:           admins,
	AnalyticsView:         admins,
	UserManage:            admins,
	AdminContentView:      moderators,
}

// Allows reports whether role may perform action. Unknown actions are denied.
func Allows(role Role, action Action) bool {
	for _, r := range capabilities[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) Can(action Action) bool {
	return Allows(p.Role, action)
}

const principalKey = "principal"

func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
	c.Locals("user_id", p.UserID)
}

func PrincipalFrom(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	if !ok || p.UserID == "" {
		return Principal{}, false
	}
	return p, true
}

// Require rejects requests without a principal (401) or whose role lacks
// action (403). It must run after the auth middleware.
func Require(action Action) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, ok := PrincipalFrom(c)
		if !ok {
			return fiber.NewError(fiber.StatusUnauthorized, "authentication required")
		}
		if !p.Can(action) {
			return fiber.NewError(fiber.StatusForbidden, "insufficient permissions")
		}
		return c.Next()
	}
}
