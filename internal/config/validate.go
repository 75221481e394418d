package config

import (
	"errors"
	"fmt"

	"mixsplit/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateMemory(); err != nil {
		return err
	}
	if err := c.validateSplit(); err != nil {
		return err
	}
	if err := c.validateIdentification(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateMemory() error {
	if c.Memory.BudgetMB < 0 {
		return services.Wrap(services.ErrValidation, "config", "validate",
			fmt.Sprintf("memory.budget_mb must not be negative (got %d)", c.Memory.BudgetMB), nil)
	}
	if c.Memory.BudgetFraction <= 0 || c.Memory.BudgetFraction > 1 {
		return errors.New("memory.budget_fraction must be within (0, 1]")
	}
	for format, factor := range c.Memory.ExpansionFactors {
		if factor < 1 {
			return fmt.Errorf("memory.expansion_factors.%s must be at least 1", format)
		}
	}
	return nil
}

func (c *Config) validateSplit() error {
	if c.Split.MixThresholdSeconds < 0 {
		return errors.New("split.mix_threshold_seconds must be positive")
	}
	if c.Split.MinSilenceMS < 0 {
		return errors.New("split.min_silence_ms must be positive")
	}
	if c.Split.WindowMS < 0 {
		return errors.New("split.window_ms must be positive")
	}
	if c.Split.MinSilenceMS < c.Split.WindowMS {
		return errors.New("split.min_silence_ms must be at least split.window_ms")
	}
	if c.Split.SilenceThresholdDB >= 0 {
		return errors.New("split.silence_threshold_db must be negative")
	}
	return nil
}

func (c *Config) validateIdentification() error {
	switch c.Identification.Mode {
	case "auto", "tags", "none":
	case "acrcloud":
		if !c.HasACRCloud() {
			return errors.New("identification.mode acrcloud requires acrcloud.access_key and acrcloud.access_secret (or ACRCLOUD_ACCESS_KEY / ACRCLOUD_ACCESS_SECRET)")
		}
	case "acoustid":
		if !c.HasAcoustID() {
			return errors.New("identification.mode acoustid requires acoustid.api_key (or ACOUSTID_API_KEY)")
		}
	case "dual":
		if !c.HasACRCloud() || !c.HasAcoustID() {
			return errors.New("identification.mode dual requires both ACRCloud and AcoustID credentials")
		}
	default:
		return fmt.Errorf("identification.mode %q is not one of auto, acrcloud, acoustid, dual, tags, none", c.Identification.Mode)
	}
	if c.Identification.MinAgreement < 0 || c.Identification.MinAgreement > 1 {
		return errors.New("identification.min_agreement must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateLibrary() error {
	switch c.Library.OutputFormat {
	case "flac", "mp3":
	default:
		return fmt.Errorf("library.output_format %q is not supported (flac, mp3)", c.Library.OutputFormat)
	}
	if c.Paths.LibraryDir == "" {
		return errors.New("paths.library_dir must be set")
	}
	return nil
}
