// Command upload-asset stores a local file in object storage and registers it
// as an asset of a heritage site. Connection settings come from the same
// environment as the API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/Prapti-XR/Prapti-sub000/internal/asset"
	"github.com/Prapti-XR/Prapti-sub000/internal/background"
	"github.com/Prapti-XR/Prapti-sub000/internal/cache"
	"github.com/Prapti-XR/Prapti-sub000/internal/config"
	"github.com/Prapti-XR/Prapti-sub000/internal/db"
	"github.com/Prapti-XR/Prapti-sub000/internal/logging"
	"github.com/Prapti-XR/Prapti-sub000/internal/site"
	"github.com/Prapti-XR/Prapti-sub000/internal/upload"
)

type Config struct {
	SiteID      string
	Type        asset.Type
	Title       string
	Description string
	Path        string
	Private     bool
	UploadedBy  string
}

// ParseConfig reads flags from args; the single positional argument is the file.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	var typ string
	fs.StringVar(&cfg.SiteID, "site", "", "heritage site id (required)")
	fs.StringVar(&typ, "type", string(asset.Model3D), "asset type")
	fs.StringVar(&cfg.Title, "title", "", "asset title, defaults to the file name")
	fs.StringVar(&cfg.Description, "description", "", "asset description")
	fs.BoolVar(&cfg.Private, "private", false, "hide the asset from public listings")
	fs.StringVar(&cfg.UploadedBy, "user", "", "uploader user id")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	cfg.Type = asset.Type(typ)
	if cfg.SiteID == "" {
		return Config{}, errors.New("-site is required")
	}
	if !cfg.Type.Valid() {
		return Config{}, fmt.Errorf("unknown asset type %q", typ)
	}
	if fs.NArg() != 1 {
		return Config{}, errors.New("expected exactly one file argument")
	}
	cfg.Path = fs.Arg(0)
	return cfg, nil
}

// Run uploads cfg.Path through svc and prints the registered asset.
func Run(ctx context.Context, cfg Config, svc *upload.Service, out io.Writer) error {
	f, err := os.Open(cfg.Path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(cfg.Path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	created, err := svc.Upload(ctx, upload.FileInput{
		SiteID:      cfg.SiteID,
		Type:        cfg.Type,
		Title:       cfg.Title,
		Description: cfg.Description,
		FileName:    filepath.Base(cfg.Path),
		ContentType: contentType,
		Size:        info.Size(),
		Body:        f,
		IsPublic:    !cfg.Private,
		UploadedBy:  cfg.UploadedBy,
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\t%s\t%s\n", created.ID, created.Type, created.StorageURL)
	return err
}

func main() {
	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		exitf("Error: %v", err)
	}
	env := config.Load()
	if !env.ObjectStorageEnabled() {
		exitf("Error: S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY must be set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(env)
	if err != nil {
		exitf("Error: postgres: %v", err)
	}
	defer pool.Close()

	store, err := upload.NewMinioStore(ctx, upload.MinioConfig{
		Endpoint:  env.S3Endpoint,
		AccessKey: env.S3AccessKey,
		SecretKey: env.S3SecretKey,
		Bucket:    env.S3Bucket,
		UseSSL:    env.S3UseSSL,
		PublicURL: env.S3PublicURL,
	})
	if err != nil {
		exitf("Error: object storage: %v", err)
	}

	rdb := db.ConnectRedis(env)
	if rdb != nil {
		defer rdb.Close()
	}
	log := logging.New(env.AppEnv, env.LogLevel)
	runner := background.NewRunner(log, 1)
	rt := cache.NewReadThrough(cache.New(rdb), runner, log)
	assets := asset.NewService(pool)
	sites := site.NewService(pool, site.Options{Assets: assets, Cache: rt})

	if err := Run(ctx, cfg, upload.NewService(store, assets, sites, rt), os.Stdout); err != nil {
		exitf("Error: %v", err)
	}
	// let the listing cache invalidation finish before exiting
	_ = runner.Wait(ctx)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
