package feeds

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/feavel/feeds/backend/internal/models"
	"gorm.io/gorm"
)

var (
	nonWordChars    = regexp.MustCompile(`[^\w\s-]`)
	whitespaceRuns  = regexp.MustCompile(`\s+`)
	hyphenRuns      = regexp.MustCompile(`-+`)
	boundaryHyphens = regexp.MustCompile(`^-+|-+$`)
)

// Slugify turns a title into a URL-safe slug: lowercase, strip
// punctuation, collapse whitespace and hyphen runs into single
// hyphens.
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonWordChars.ReplaceAllString(s, "")
	s = whitespaceRuns.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	s = boundaryHyphens.ReplaceAllString(s, "")
	if s == "" {
		s = "feed"
	}
	return s
}

// uniqueSlug appends -1, -2, ... until the slug is unused. excludeID
// lets updates keep their own slug without colliding with themselves.
func uniqueSlug(ctx context.Context, db *gorm.DB, base string, excludeID string) (string, error) {
	slug := base
	for i := 0; ; i++ {
		if i > 0 {
			slug = fmt.Sprintf("%s-%d", base, i)
		}

		q := db.WithContext(ctx).Model(&models.Feed{}).Where("slug = ?", slug)
		if excludeID != "" {
			q = q.Where("id <> ?", excludeID)
		}

		var count int64
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
	}
}
