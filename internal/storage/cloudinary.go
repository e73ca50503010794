package storage

import (
	"context"
	"fmt"
	"mime/multipart"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryProvider uploads media to Cloudinary.
type CloudinaryProvider struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryProvider builds a provider from a cloudinary:// URL.
func NewCloudinaryProvider(cloudinaryURL string) (*CloudinaryProvider, error) {
	if cloudinaryURL == "" {
		return nil, fmt.Errorf("CLOUDINARY_URL required")
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, err
	}
	return &CloudinaryProvider{cld: cld}, nil
}

// Upload sends file to Cloudinary under folder. Images and videos are
// detected by Cloudinary itself.
func (p *CloudinaryProvider) Upload(ctx context.Context, file *multipart.FileHeader, folder string) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	name := objectName(file.Filename)
	overwrite := false
	resp, err := p.cld.Upload.Upload(ctx, src, uploader.UploadParams{
		PublicID:     strings.TrimSuffix(name, path.Ext(name)),
		Folder:       folder,
		ResourceType: "auto",
		Overwrite:    &overwrite,
	})
	if err != nil {
		return "", err
	}
	if resp.SecureURL != "" {
		return resp.SecureURL, nil
	}
	if resp.URL != "" {
		return resp.URL, nil
	}
	return "", fmt.Errorf("cloudinary upload returned empty url")
}

// Delete destroys the asset behind url.
func (p *CloudinaryProvider) Delete(ctx context.Context, url string) error {
	publicID, resourceType, ok := publicIDFromURL(url)
	if !ok {
		return nil
	}
	_, err := p.cld.Upload.Destroy(ctx, uploader.DestroyParams{
		PublicID:     publicID,
		ResourceType: resourceType,
	})
	return err
}

// publicIDFromURL extracts "<folder>/<name>" from a delivery URL such as
// https://res.cloudinary.com/demo/image/upload/v1712/parts/abc.jpg.
func publicIDFromURL(url string) (publicID, resourceType string, ok bool) {
	const marker = "/upload/"
	idx := strings.Index(url, marker)
	if idx < 0 {
		return "", "", false
	}

	head := strings.TrimSuffix(url[:idx], "/")
	resourceType = head[strings.LastIndex(head, "/")+1:]

	rest := url[idx+len(marker):]
	if slash := strings.Index(rest, "/"); slash > 0 && rest[0] == 'v' {
		rest = rest[slash+1:]
	}
	rest = strings.TrimSuffix(rest, path.Ext(rest))
	if rest == "" {
		return "", "", false
	}
	return rest, resourceType, true
}
