package storage

import (
	"errors"
	"fmt"
	"mime/multipart"
	"strings"
)

const (
	MaxImageSize = 5 << 20
	MaxVideoSize = 50 << 20
)

var ErrInvalidMedia = errors.New("invalid media file")

var (
	imageTypes = map[string]bool{"image/jpeg": true, "image/jpg": true, "image/png": true, "image/webp": true}
	videoTypes = map[string]bool{
		"video/mp4":       true,
		"video/avi":       true,
		"video/x-msvideo": true,
		"video/mov":       true,
		"video/quicktime": true,
	}
)

// ValidateImage accepts JPEG, PNG and WebP files up to 5MB.
func ValidateImage(file *multipart.FileHeader) error {
	return validate(file, imageTypes, MaxImageSize, "image")
}

// ValidateVideo accepts MP4, AVI and MOV files up to 50MB.
func ValidateVideo(file *multipart.FileHeader) error {
	return validate(file, videoTypes, MaxVideoSize, "video")
}

func validate(file *multipart.FileHeader, allowed map[string]bool, limit int64, kind string) error {
	contentType := strings.ToLower(strings.TrimSpace(strings.Split(file.Header.Get("Content-Type"), ";")[0]))
	if !allowed[contentType] {
		return fmt.Errorf("%w: unsupported %s type %q", ErrInvalidMedia, kind, contentType)
	}
	if file.Size > limit {
		return fmt.Errorf("%w: %s exceeds %dMB", ErrInvalidMedia, kind, limit>>20)
	}
	return nil
}
