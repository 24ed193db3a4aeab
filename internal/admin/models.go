package admin

import (
	"github.com/Prapti-XR/Prapti-sub000/internal/policy"
)

type TopSite struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ViewCount int64  `json:"viewCount"`
}

// Analytics is the dashboard snapshot. Grouped counts are keyed by the enum
// value stored in the database.
type Analytics struct {
	TotalSites            int            `json:"totalSites"`
	PublishedSites        int            `json:"publishedSites"`
	TotalViews            int64          `json:"totalViews"`
	UsersByRole           map[string]int `json:"usersByRole"`
	AssetsByType          map[string]int `json:"assetsByType"`
	ContributionsByStatus map[string]int `json:"contributionsByStatus"`
	TriviaQuestions       int            `json:"triviaQuestions"`
	TopSites              []TopSite      `json:"topSites"`
}

type UserFilter struct {
	Role   policy.Role
	Limit  int
	Offset int
}
