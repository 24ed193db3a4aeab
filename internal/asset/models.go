package asset

import "time"

type Type string

const (
	Model3D     Type = "MODEL_3D"
	Panorama360 Type = "PANORAMA_360"
	Panorama180 Type = "PANORAMA_180"
	Image       Type = "IMAGE"
	Thumbnail   Type = "THUMBNAIL"
	Video       Type = "VIDEO"
)

func (t Type) Valid() bool {
	switch t {
	case Model3D, Panorama360, Panorama180, Image, Thumbnail, Video:
		return true
	}
	return false
}

func (t Type) IsPanorama() bool {
	return t == Panorama360 || t == Panorama180
}

// PanoramaType is the viewer projection hint stored with panorama assets.
func (t Type) PanoramaType() string {
	switch t {
	case Panorama360:
		return "360"
	case Panorama180:
		return "180"
	}
	return ""
}

// Asset is a stored file attached to a heritage site. FileSize is emitted as
// a plain JSON number.
type Asset struct {
	ID           string    `json:"id"`
	Type         Type      `json:"type"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StorageKey   string    `json:"storageKey"`
	StorageURL   string    `json:"storageUrl"`
	FileSize     int64     `json:"fileSize"`
	MimeType     string    `json:"mimeType"`
	Format       string    `json:"format"`
	IsPanorama   bool      `json:"isPanorama"`
	PanoramaType string    `json:"panoramaType,omitempty"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	IsProcessed  bool      `json:"isProcessed"`
	IsPublic     bool      `json:"isPublic"`
	Status       string    `json:"status"`
	SiteID       string    `json:"siteId"`
	UploadedByID string    `json:"uploadedById,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Summary is the slim shape attached to map markers and list cards.
type Summary struct {
	ID         string `json:"id"`
	Type       Type   `json:"type"`
	Title      string `json:"title"`
	StorageURL string `json:"storageUrl"`
}

// SiteAssets is a published site together with the assets of the requested types.
type SiteAssets struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Description     string  `json:"description"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	Country         string  `json:"country"`
	City            string  `json:"city"`
	Era             string  `json:"era"`
	PopularityScore float64 `json:"popularityScore"`
	Assets          []Asset `json:"assets"`
}

type ListFilter struct {
	Country string
	Era     string
	SiteID  string
	Limit   int
}
