package identification

import (
	"context"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"

	"mixsplit/internal/services"
)

// TagProvider reads title and artist already embedded in a single-track
// input. Mix segments never match.
type TagProvider struct{}

// Name implements Provider.
func (TagProvider) Name() string { return "tags" }

// Identify implements Provider.
func (p TagProvider) Identify(_ context.Context, sample Sample) (Match, error) {
	if !sample.SingleTrack || sample.Parent == "" {
		return Match{}, nil
	}
	file, err := os.Open(sample.Parent)
	if err != nil {
		return Match{}, services.Wrap(services.ErrIdentificationFailure, "identify", p.Name(), sample.Parent, err)
	}
	defer file.Close()

	meta, err := tag.ReadFrom(file)
	if err != nil {
		// Untagged inputs are a plain miss.
		return Match{}, nil
	}
	md := Metadata{
		Title:  strings.TrimSpace(meta.Title()),
		Artist: strings.TrimSpace(meta.Artist()),
		Album:  strings.TrimSpace(meta.Album()),
		Genre:  strings.TrimSpace(meta.Genre()),
	}
	if year := meta.Year(); year > 0 {
		md.Year = strconv.Itoa(year)
	}
	if md.Artist == "" {
		md.Artist = strings.TrimSpace(meta.AlbumArtist())
	}
	if !md.Complete() {
		return Match{}, nil
	}
	return Match{Metadata: md, Found: true, Provider: p.Name(), Confidence: 1}, nil
}
