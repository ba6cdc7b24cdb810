package validation

import (
	"fmt"

	"github.com/feavel/feeds/backend/internal/errors"
)

const (
	// MaxUploadBytes is the ceiling for feed media uploads
	MaxUploadBytes = 10 * 1024 * 1024
	// MaxAvatarBytes is the smaller ceiling for profile avatars
	MaxAvatarBytes = 2 * 1024 * 1024
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

var allowedAudioTypes = map[string]bool{
	"audio/mpeg": true,
	"audio/mp3":  true,
	"audio/wav":  true,
	"audio/ogg":  true,
	"audio/aac":  true,
}

// ValidateUpload checks a feed media upload against the MIME
// allow-list (images and audio) and the size ceiling
func ValidateUpload(contentType string, size int64) error {
	if !allowedImageTypes[contentType] && !allowedAudioTypes[contentType] {
		return errors.UnsupportedMediaType(contentType)
	}
	return validateSize(size, MaxUploadBytes)
}

// ValidateAvatar checks an avatar upload: images only, smaller
// ceiling
func ValidateAvatar(contentType string, size int64) error {
	if !allowedImageTypes[contentType] {
		return errors.UnsupportedMediaType(contentType)
	}
	return validateSize(size, MaxAvatarBytes)
}

func validateSize(size, max int64) error {
	if size <= 0 {
		return errors.ValidationError("size", "file size must be positive")
	}
	if size > max {
		return errors.PayloadTooLarge(fmt.Sprintf("file size %d exceeds the %d byte limit", size, max))
	}
	return nil
}
