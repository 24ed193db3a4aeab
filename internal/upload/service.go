package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
	"github.com/Prapti-XR/Prapti-sub000/internal/cache"

	"github.com/google/uuid"
)

const (
	presignExpiry      = 15 * time.Minute
	defaultContentType = "application/octet-stream"
)

var (
	ErrUnavailable = errors.New("object storage is not configured")
	ErrInvalid     = errors.New("invalid upload")
	ErrUnknownSite = errors.New("site not found")
)

// SiteChecker reports whether a site exists.
type SiteChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

type Service struct {
	store  ObjectStore
	assets *asset.Service
	sites  SiteChecker
	rt     *cache.ReadThrough
}

// NewService wires uploads. A nil store leaves the service constructed but
// every operation returns ErrUnavailable.
func NewService(store ObjectStore, assets *asset.Service, sites SiteChecker, rt *cache.ReadThrough) *Service {
	if rt == nil {
		rt = cache.NewReadThrough(nil, nil, nil)
	}
	return &Service{store: store, assets: assets, sites: sites, rt: rt}
}

func (s *Service) Enabled() bool { return s.store != nil }

type FileInput struct {
	SiteID      string
	Type        asset.Type
	Title       string
	Description string
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
	Width       int
	Height      int
	IsPublic    bool
	UploadedBy  string
}

// Upload streams the file to storage and registers it as an asset. The
// object is removed again if registration fails.
func (s *Service) Upload(ctx context.Context, in FileInput) (asset.Asset, error) {
	if !s.Enabled() {
		return asset.Asset{}, ErrUnavailable
	}
	if in.Body == nil || in.Size <= 0 {
		return asset.Asset{}, fmt.Errorf("%w: file required", ErrInvalid)
	}
	if err := s.checkTarget(ctx, in.SiteID, in.Type); err != nil {
		return asset.Asset{}, err
	}

	key := StorageKey(in.SiteID, in.Type, in.FileName)
	if err := s.store.Put(ctx, key, in.Body, in.Size, in.ContentType); err != nil {
		return asset.Asset{}, err
	}
	created, err := s.register(ctx, ConfirmInput{
		SiteID:      in.SiteID,
		Type:        in.Type,
		StorageKey:  key,
		Title:       titleOr(in.Title, in.FileName),
		Description: in.Description,
		FileSize:    in.Size,
		MimeType:    in.ContentType,
		Width:       in.Width,
		Height:      in.Height,
		IsPublic:    in.IsPublic,
	}, in.UploadedBy)
	if err != nil {
		_ = s.store.Delete(ctx, key)
		return asset.Asset{}, err
	}
	return created, nil
}

type Presigned struct {
	UploadURL  string    `json:"uploadUrl"`
	StorageKey string    `json:"storageKey"`
	PublicURL  string    `json:"publicUrl"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

// Presign issues a PUT URL the client uploads to directly; the asset is
// registered afterwards through Confirm.
func (s *Service) Presign(ctx context.Context, siteID string, typ asset.Type, fileName string) (Presigned, error) {
	if !s.Enabled() {
		return Presigned{}, ErrUnavailable
	}
	if err := s.checkTarget(ctx, siteID, typ); err != nil {
		return Presigned{}, err
	}
	key := StorageKey(siteID, typ, fileName)
	u, err := s.store.PresignPut(ctx, key, presignExpiry)
	if err != nil {
		return Presigned{}, err
	}
	return Presigned{
		UploadURL:  u,
		StorageKey: key,
		PublicURL:  s.store.PublicURL(key),
		ExpiresAt:  time.Now().Add(presignExpiry).UTC(),
	}, nil
}

type ConfirmInput struct {
	SiteID      string     `json:"siteId"`
	Type        asset.Type `json:"type"`
	StorageKey  string     `json:"storageKey"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	// FileSize and MimeType are read back from object storage.
	FileSize    int64      `json:"-"`
	MimeType    string     `json:"-"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	IsPublic    bool       `json:"isPublic"`
}

// Confirm registers an object uploaded through a presigned URL. The key must
// lie under the site and type it is registered for.
func (s *Service) Confirm(ctx context.Context, in ConfirmInput, uploadedBy string) (asset.Asset, error) {
	if !s.Enabled() {
		return asset.Asset{}, ErrUnavailable
	}
	if err := s.checkTarget(ctx, in.SiteID, in.Type); err != nil {
		return asset.Asset{}, err
	}
	if !strings.HasPrefix(in.StorageKey, keyPrefix(in.SiteID, in.Type)) || strings.Contains(in.StorageKey, "..") {
		return asset.Asset{}, fmt.Errorf("%w: storageKey does not belong to site %s", ErrInvalid, in.SiteID)
	}
	info, err := s.store.Stat(ctx, in.StorageKey)
	if errors.Is(err, ErrObjectMissing) {
		return asset.Asset{}, fmt.Errorf("%w: nothing uploaded at %s", ErrInvalid, in.StorageKey)
	}
	if err != nil {
		return asset.Asset{}, err
	}
	in.FileSize, in.MimeType = info.Size, info.ContentType
	if in.MimeType == "" {
		in.MimeType = defaultContentType
	}
	return s.register(ctx, in, uploadedBy)
}

func (s *Service) register(ctx context.Context, in ConfirmInput, uploadedBy string) (asset.Asset, error) {
	created, err := s.assets.Create(ctx, asset.Asset{
		Type:         in.Type,
		Title:        titleOr(in.Title, path.Base(in.StorageKey)),
		Description:  in.Description,
		StorageKey:   in.StorageKey,
		StorageURL:   s.store.PublicURL(in.StorageKey),
		FileSize:     in.FileSize,
		MimeType:     in.MimeType,
		Width:        in.Width,
		Height:       in.Height,
		IsProcessed:  in.Type != asset.Model3D,
		IsPublic:     in.IsPublic,
		SiteID:       in.SiteID,
		UploadedByID: uploadedBy,
	})
	if err != nil {
		return asset.Asset{}, err
	}
	s.rt.Invalidate("sites:*", "models:*", "images:*")
	return created, nil
}

func (s *Service) checkTarget(ctx context.Context, siteID string, typ asset.Type) error {
	if siteID == "" {
		return fmt.Errorf("%w: siteId required", ErrInvalid)
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: unknown asset type %q", ErrInvalid, typ)
	}
	if s.sites == nil {
		return nil
	}
	ok, err := s.sites.Exists(ctx, siteID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnknownSite
	}
	return nil
}

// StorageKey returns sites/{siteId}/{type}/{uuid}{ext}.
func StorageKey(siteID string, typ asset.Type, fileName string) string {
	return keyPrefix(siteID, typ) + uuid.NewString() + strings.ToLower(path.Ext(fileName))
}

func keyPrefix(siteID string, typ asset.Type) string {
	return "sites/" + siteID + "/" + string(typ) + "/"
}

func titleOr(title, fallback string) string {
	if t := strings.TrimSpace(title); t != "" {
		return t
	}
	return fallback
}
