package organizer

import (
	"fmt"
	"path/filepath"
	"strings"

	"mixsplit/internal/textutil"
)

const unknownArtist = "Unknown Artist"

// IdentifiedPath returns the library-relative path for an identified track.
func IdentifiedPath(artist, title, ext string) string {
	artist = textutil.SanitizeOr(artist, unknownArtist)
	title = textutil.SanitizeOr(title, "Untitled")
	return filepath.Join(artist, fmt.Sprintf("%s - %s%s", artist, title, normalizeExt(ext)))
}

// UnidentifiedPath returns the library-relative path for a track with no match.
func UnidentifiedPath(stem string, ordinal int, ext string) string {
	stem = textutil.SanitizeOr(stem, "track")
	return fmt.Sprintf("%s_Track_%d_Unidentified%s", stem, ordinal, normalizeExt(ext))
}

// candidate returns the nth collision variant of name; n < 2 is name itself.
func candidate(name string, n int) string {
	if n < 2 {
		return name
	}
	ext := filepath.Ext(name)
	return fmt.Sprintf("%s (%d)%s", strings.TrimSuffix(name, ext), n, ext)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
