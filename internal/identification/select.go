package identification

import (
	"fmt"
	"log/slog"
	"net/http"

	"mixsplit/internal/config"
	"mixsplit/internal/logging"
	"mixsplit/internal/services"
	"mixsplit/internal/services/acoustid"
	"mixsplit/internal/services/acrcloud"
)

// Select builds the provider for cfg.Identification.Mode. Availability is
// decided here once; callers never inspect provider types at runtime.
func Select(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	if cfg == nil {
		return None{}, nil
	}
	logger = logging.NewComponentLogger(logger, "identification")
	httpClient := &http.Client{Timeout: cfg.IdentificationTimeout()}

	newACR := func() (Provider, error) {
		client, err := acrcloud.New(cfg.ACRCloud.Host, cfg.ACRCloud.AccessKey, cfg.ACRCloud.AccessSecret, acrcloud.WithHTTPClient(httpClient))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "identify", "acrcloud", "", err)
		}
		return &ACRCloudProvider{Client: client}, nil
	}
	newAcoustID := func() (Provider, error) {
		client, err := acoustid.New(cfg.AcoustID.APIKey, cfg.AcoustID.BaseURL, cfg.AcoustID.FpcalcBinary, acoustid.WithHTTPClient(httpClient))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "identify", "acoustid", "", err)
		}
		return &AcoustIDProvider{Client: client, ArtworkSize: cfg.Artwork.Size}, nil
	}

	switch cfg.Identification.Mode {
	case "none":
		return None{}, nil
	case "tags":
		return TagProvider{}, nil
	case "acrcloud":
		return newACR()
	case "acoustid":
		return newAcoustID()
	case "dual":
		primary, err := newACR()
		if err != nil {
			return nil, err
		}
		secondary, err := newAcoustID()
		if err != nil {
			return nil, err
		}
		return &Dual{Primary: primary, Secondary: secondary, MinAgreement: cfg.Identification.MinAgreement, Logger: logger}, nil
	case "auto", "":
		chain := &Chain{}
		if cfg.HasACRCloud() {
			provider, err := newACR()
			if err != nil {
				return nil, err
			}
			chain.Providers = append(chain.Providers, provider)
		}
		if cfg.HasAcoustID() {
			provider, err := newAcoustID()
			if err != nil {
				return nil, err
			}
			chain.Providers = append(chain.Providers, provider)
		}
		chain.Providers = append(chain.Providers, TagProvider{})
		if len(chain.Providers) == 1 {
			logging.WarnWithContext(logger, "no fingerprint credentials configured", "identify_degraded",
				logging.String(logging.FieldErrorHint, "set ACRCLOUD_ACCESS_KEY/ACRCLOUD_ACCESS_SECRET or ACOUSTID_API_KEY"),
				logging.String(logging.FieldImpact, "only embedded tags of single-track inputs will be used"),
			)
		}
		return chain, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "identify", "select", fmt.Sprintf("unknown mode %q", cfg.Identification.Mode), nil)
	}
}
