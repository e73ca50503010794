// Package storage saves uploaded media on local disk or in Cloudinary.
package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/example/partsmarket/internal/config"
)

// Provider stores an uploaded file and returns its public URL.
type Provider interface {
	Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}

// NewProvider picks a Provider from STORAGE_PROVIDER.
func NewProvider(cfg *config.Config) (Provider, error) {
	switch cfg.StorageProvider {
	case "", "local":
		return NewLocalProvider(cfg.UploadDir, cfg.PublicBaseURL, "/uploads")
	case "cloudinary":
		return NewCloudinaryProvider(cfg.CloudinaryURL)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.StorageProvider)
	}
}

// objectName returns a collision-free name that keeps the original extension.
func objectName(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return uuid.NewString() + ext
}
