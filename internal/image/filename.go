package image

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/manash/pollgen/internal/security"
	"github.com/manash/pollgen/pkg/models"
)

const (
	maxSlugLength   = 50
	timestampLayout = "20060102_150405"
)

var slugDisallowed = regexp.MustCompile(`[^\p{L}\p{N}_\s-]`)

// Slug turns a prompt into a filesystem-safe filename root: everything but
// word characters, whitespace and hyphens is dropped, whitespace runs become
// underscores, and the result is cut to 50 characters.
func Slug(prompt string) string {
	s := slugDisallowed.ReplaceAllString(strings.ToLower(prompt), "")
	s = strings.Join(strings.Fields(s), "_")

	if r := []rune(s); len(r) > maxSlugLength {
		s = string(r[:maxSlugLength])
	}
	s = strings.Trim(s, "_")
	if s == "" {
		return "image"
	}
	return security.SanitizeFilename(s)
}

// Filename builds "<slug>_<YYYYmmdd_HHMMSS>.<ext>".
func Filename(label string, t time.Time, format models.OutputFormat) string {
	return fmt.Sprintf("%s_%s.%s", Slug(label), t.Format(timestampLayout), format)
}

// EditLabel is the filename label used for edit results so the file records
// which model produced it.
func EditLabel(model, prompt string) string {
	return "edit_" + model + "_" + prompt
}
