package site

import (
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
)

type Site struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	Location             string    `json:"location"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	Country              string    `json:"country"`
	City                 string    `json:"city"`
	Era                  string    `json:"era"`
	YearBuilt            *int      `json:"yearBuilt"`
	CulturalSignificance string    `json:"culturalSignificance"`
	HistoricalContext    string    `json:"historicalContext"`
	IsPublished          bool      `json:"isPublished"`
	IsFeatured           bool      `json:"isFeatured"`
	PopularityScore      float64   `json:"popularityScore"`
	ViewCount            int64     `json:"viewCount"`
	CreatedBy            string    `json:"createdBy,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// Detail is the single-site payload: public assets, tag names and the
// number of trivia questions.
type Detail struct {
	Site
	Assets      []asset.Asset `json:"assets"`
	Tags        []string      `json:"tags"`
	TriviaCount int           `json:"triviaCount"`
}

// NearbySite is the map-marker shape. Assets holds at most one thumbnail.
type NearbySite struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Latitude        float64         `json:"latitude"`
	Longitude       float64         `json:"longitude"`
	Country         string          `json:"country"`
	City            string          `json:"city"`
	Era             string          `json:"era"`
	IsFeatured      bool            `json:"isFeatured"`
	PopularityScore float64         `json:"popularityScore"`
	Assets          []asset.Summary `json:"assets"`
	Distance        *float64        `json:"distance,omitempty"`
}

type ListFilter struct {
	Country  string
	City     string
	Era      string
	Featured *bool
	Limit    int
	Offset   int
}

type AdminFilter struct {
	Published *bool
	Limit     int
	Offset    int
}

type CreateInput struct {
	Name                 string   `json:"name"`
	Description          string   `json:"description"`
	Location             string   `json:"location"`
	Latitude             *float64 `json:"latitude"`
	Longitude            *float64 `json:"longitude"`
	Country              string   `json:"country"`
	City                 string   `json:"city"`
	Era                  string   `json:"era"`
	YearBuilt            *int     `json:"yearBuilt"`
	CulturalSignificance string   `json:"culturalSignificance"`
	HistoricalContext    string   `json:"historicalContext"`
	IsPublished          bool     `json:"isPublished"`
	IsFeatured           bool     `json:"isFeatured"`
	Tags                 []string `json:"tags"`
}

// UpdateInput is a partial update; nil fields are left untouched. A non-nil
// Tags replaces the site's tag set.
type UpdateInput struct {
	Name                 *string   `json:"name"`
	Description          *string   `json:"description"`
	Location             *string   `json:"location"`
	Latitude             *float64  `json:"latitude"`
	Longitude            *float64  `json:"longitude"`
	Country              *string   `json:"country"`
	City                 *string   `json:"city"`
	Era                  *string   `json:"era"`
	YearBuilt            *int      `json:"yearBuilt"`
	CulturalSignificance *string   `json:"culturalSignificance"`
	HistoricalContext    *string   `json:"historicalContext"`
	IsPublished          *bool     `json:"isPublished"`
	IsFeatured           *bool     `json:"isFeatured"`
	PopularityScore      *float64  `json:"popularityScore"`
	Tags                 *[]string `json:"tags"`
}
