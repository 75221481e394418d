package identification

import (
	"context"
	"errors"

	"mixsplit/internal/services"
	"mixsplit/internal/services/acoustid"
	"mixsplit/internal/services/acrcloud"
)

// ACRCloudIdentifier is the subset of the ACRCloud client used here.
type ACRCloudIdentifier interface {
	Identify(ctx context.Context, sample []byte) (*acrcloud.Result, error)
}

// AcoustIDIdentifier is the subset of the AcoustID client used here.
type AcoustIDIdentifier interface {
	Identify(ctx context.Context, path string) (*acoustid.Result, error)
}

// ACRCloudProvider identifies WAV samples with ACRCloud.
type ACRCloudProvider struct {
	Client ACRCloudIdentifier
}

// Name implements Provider.
func (p *ACRCloudProvider) Name() string { return "acrcloud" }

// Identify implements Provider.
func (p *ACRCloudProvider) Identify(ctx context.Context, sample Sample) (Match, error) {
	if len(sample.WAV) == 0 {
		return Match{}, services.Wrap(services.ErrIdentificationFailure, "identify", p.Name(), "empty sample", nil)
	}
	result, err := p.Client.Identify(ctx, sample.WAV)
	if err != nil {
		return Match{}, services.Wrap(services.ErrIdentificationFailure, "identify", p.Name(), "", err)
	}
	if result == nil {
		return Match{}, nil
	}
	return Match{
		Metadata: Metadata{
			Title:  result.Title,
			Artist: result.Artist,
			Album:  result.Album,
			Year:   yearOf(result.ReleaseDate),
			Genre:  result.Genre,
			Label:  result.Label,
			ISRC:   result.ISRC,
		},
		Found:      true,
		Provider:   p.Name(),
		Confidence: clamp01(result.Score / 100),
	}, nil
}

// AcoustIDProvider fingerprints the WAV sample on disk and looks it up.
type AcoustIDProvider struct {
	Client      AcoustIDIdentifier
	ArtworkSize int
}

// Name implements Provider.
func (p *AcoustIDProvider) Name() string { return "acoustid" }

// Identify implements Provider.
func (p *AcoustIDProvider) Identify(ctx context.Context, sample Sample) (Match, error) {
	if sample.Path == "" {
		return Match{}, services.Wrap(services.ErrIdentificationFailure, "identify", p.Name(), "sample not written to disk", nil)
	}
	result, err := p.Client.Identify(ctx, sample.Path)
	if err != nil {
		return Match{}, services.Wrap(services.ErrIdentificationFailure, "identify", p.Name(), "", err)
	}
	if result == nil {
		return Match{}, nil
	}
	return Match{
		Metadata: Metadata{
			Title:      result.Title,
			Artist:     result.Artist,
			Album:      result.Album,
			ArtworkURL: result.ArtworkURL(p.ArtworkSize),
		},
		Found:      true,
		Provider:   p.Name(),
		Confidence: clamp01(result.Score),
	}, nil
}

// Chain tries providers in order and returns the first match. Provider
// errors are returned only when no provider matched.
type Chain struct {
	Providers []Provider
}

// Name implements Provider.
func (c *Chain) Name() string { return "auto" }

// Identify implements Provider.
func (c *Chain) Identify(ctx context.Context, sample Sample) (Match, error) {
	var errs []error
	for _, provider := range c.Providers {
		match, err := provider.Identify(ctx, sample)
		if err != nil {
			if ctx.Err() != nil {
				return Match{}, err
			}
			errs = append(errs, err)
			continue
		}
		if match.Found {
			return match, nil
		}
	}
	return Match{}, errors.Join(errs...)
}

func yearOf(date string) string {
	if len(date) >= 4 {
		return date[:4]
	}
	return ""
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
