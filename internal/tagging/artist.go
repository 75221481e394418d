package tagging

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	featuredPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+feat\.?\s+`),
		regexp.MustCompile(`(?i)\s+ft\.?\s+`),
		regexp.MustCompile(`(?i)\s+featuring\s+`),
		regexp.MustCompile(`(?i)\s+with\s+`),
		regexp.MustCompile(`(?i)\s+vs\.?\s+`),
		regexp.MustCompile(`(?i)\s+x\s+`),
	}
	collabSeparators = []*regexp.Regexp{
		regexp.MustCompile(`\s*&\s+`),
		regexp.MustCompile(`\s*,\s+`),
	}
	existingFeat = regexp.MustCompile(`(?i)\((?:feat\.?|ft\.?|featuring)\s+[^)]+\)`)
)

// NormalizeArtist splits collaboration credits into a primary artist and
// appends the rest to the title as "(feat. ...)", merging with an existing
// feat. parenthetical.
func NormalizeArtist(artist, title string) (string, string) {
	artist = strings.TrimSpace(artist)
	title = strings.TrimSpace(title)
	if artist == "" {
		return artist, title
	}
	for _, pattern := range featuredPatterns {
		parts := pattern.Split(artist, 2)
		if len(parts) != 2 {
			continue
		}
		primary, featured := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if primary != "" && featured != "" {
			return primary, appendFeatured(title, featured)
		}
	}
	for _, separator := range collabSeparators {
		parts := separator.Split(artist, -1)
		if len(parts) < 2 {
			continue
		}
		primary := strings.TrimSpace(parts[0])
		rest := make([]string, 0, len(parts)-1)
		for _, part := range parts[1:] {
			if part = strings.TrimSpace(part); part != "" {
				rest = append(rest, part)
			}
		}
		if primary != "" && len(rest) > 0 {
			return primary, appendFeatured(title, strings.Join(rest, ", "))
		}
	}
	return artist, title
}

func appendFeatured(title, featured string) string {
	if loc := existingFeat.FindStringIndex(title); loc != nil {
		old := title[loc[0]:loc[1]]
		merged := old[:len(old)-1] + ", " + featured + ")"
		return title[:loc[0]] + merged + title[loc[1]:]
	}
	if title == "" {
		return "(feat. " + featured + ")"
	}
	return title + " (feat. " + featured + ")"
}

// NormalizeCase title-cases names delivered entirely in lower or upper case.
// Mixed-case names are kept as the catalogue spells them.
func NormalizeCase(name string) string {
	hasLower, hasUpper := false, false
	for _, r := range name {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
	}
	if hasLower && hasUpper {
		return name
	}
	if !hasLower && !hasUpper {
		return name
	}
	return cases.Title(language.Und).String(name)
}
