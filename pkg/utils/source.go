package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// TitlePlaceholder marks where the slugged title goes in a source URL template.
const TitlePlaceholder = "{title}"

// DefaultSourceTemplate is the source page used when no template is configured.
const DefaultSourceTemplate = "https://www.whosampled.com/{title}/"

// Slug turns a song title into the path segment used by the source site:
// surrounding whitespace trimmed, inner runs of whitespace joined with "-",
// and the result path-escaped.
func Slug(title string) string {
	return url.PathEscape(strings.Join(strings.Fields(title), "-"))
}

// SourceURL substitutes the slugged title into template.
func SourceURL(template, title string) (string, error) {
	if !strings.Contains(template, TitlePlaceholder) {
		return "", fmt.Errorf("source template %q has no %s placeholder", template, TitlePlaceholder)
	}
	slug := Slug(title)
	if slug == "" {
		return "", fmt.Errorf("empty title")
	}

	raw := strings.ReplaceAll(template, TitlePlaceholder, slug)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported source URL scheme %q", u.Scheme)
	}
	return raw, nil
}
