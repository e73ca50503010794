package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalProvider writes files under UploadDir and serves them from PublicRoute.
type LocalProvider struct {
	UploadDir   string
	PublicBase  string
	PublicRoute string
}

// NewLocalProvider creates the upload directory if needed.
func NewLocalProvider(uploadDir, publicBase, publicRoute string) (*LocalProvider, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if publicRoute == "" {
		publicRoute = "/uploads"
	}
	return &LocalProvider{
		UploadDir:   uploadDir,
		PublicBase:  strings.TrimRight(publicBase, "/"),
		PublicRoute: "/" + strings.Trim(publicRoute, "/"),
	}, nil
}

// Upload copies file to UploadDir/folder/<uuid><ext>.
func (p *LocalProvider) Upload(_ context.Context, file *multipart.FileHeader, folder string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dir := filepath.Join(p.UploadDir, filepath.Clean("/"+folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := objectName(file.Filename)
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", err
	}

	return p.PublicBase + path.Join(p.PublicRoute, folder, name), nil
}

// Delete removes a file previously returned by Upload. URLs that do not
// belong to this provider are ignored.
func (p *LocalProvider) Delete(_ context.Context, url string) error {
	prefix := p.PublicBase + p.PublicRoute + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}
	rel := filepath.Clean("/" + strings.TrimPrefix(url, prefix))
	err := os.Remove(filepath.Join(p.UploadDir, rel))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
