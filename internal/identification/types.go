package identification

import (
	"context"
	"strings"
	"time"
)

// Sample is the identification input for one exported track.
type Sample struct {
	// Parent is the original recording the track was cut from.
	Parent  string
	Ordinal int
	// TrackPath is the exported intermediate of the whole track.
	TrackPath string
	// Path is the excerpt written as WAV; WAV holds the same bytes.
	Path string
	WAV  []byte
	// Offset is the excerpt start within the track.
	Offset   time.Duration
	Duration time.Duration
	// SingleTrack is set when the track is an entire non-mix input, which
	// makes the parent's own tags a usable source.
	SingleTrack bool
}

// Metadata describes a matched recording.
type Metadata struct {
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	Year       string `json:"year,omitempty"`
	Genre      string `json:"genre,omitempty"`
	Label      string `json:"label,omitempty"`
	ISRC       string `json:"isrc,omitempty"`
	ArtworkURL string `json:"artwork_url,omitempty"`
}

// Complete reports whether the metadata is enough to name a library file.
func (m Metadata) Complete() bool {
	return strings.TrimSpace(m.Title) != "" && strings.TrimSpace(m.Artist) != ""
}

// Merge fills empty fields from other.
func (m Metadata) Merge(other Metadata) Metadata {
	fill := func(dst *string, src string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = src
		}
	}
	fill(&m.Title, other.Title)
	fill(&m.Artist, other.Artist)
	fill(&m.Album, other.Album)
	fill(&m.Year, other.Year)
	fill(&m.Genre, other.Genre)
	fill(&m.Label, other.Label)
	fill(&m.ISRC, other.ISRC)
	fill(&m.ArtworkURL, other.ArtworkURL)
	return m
}

// Match is a provider answer. A zero Match means "no match".
type Match struct {
	Metadata
	Found    bool   `json:"found"`
	Provider string `json:"provider,omitempty"`
	// Confidence is normalised to [0, 1].
	Confidence float64 `json:"confidence,omitempty"`
}

// Provider identifies samples against an external catalogue.
type Provider interface {
	Name() string
	// Identify returns a zero Match with a nil error when the catalogue has
	// no answer. Errors are reserved for network, auth, and quota failures.
	Identify(ctx context.Context, sample Sample) (Match, error)
}

// None never identifies anything.
type None struct{}

// Name implements Provider.
func (None) Name() string { return "none" }

// Identify implements Provider.
func (None) Identify(context.Context, Sample) (Match, error) { return Match{}, nil }
