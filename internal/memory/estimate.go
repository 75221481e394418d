package memory

import (
	"fmt"
	"math"
	"sort"

	"mixsplit/internal/inputs"
	"mixsplit/internal/services"
)

// defaultFactors maps container formats to the ratio between decoded working
// set and on-disk size. Lossy formats expand to full PCM; lossless ones stay
// close to their stored size.
var defaultFactors = map[string]float64{
	"mp3":  12,
	"aac":  12,
	"m4a":  12,
	"ogg":  12,
	"wma":  12,
	"opus": 14,
	"flac": 2,
	"alac": 2,
	"ape":  2,
	"wv":   2,
	"wav":  1.1,
	"aiff": 1.1,
	"aif":  1.1,
}

// Estimator converts file sizes into decoded working-set estimates.
type Estimator struct {
	factors map[string]float64
}

// NewEstimator builds an estimator from the default factor table with the
// given per-format overrides applied. Overrides may add formats.
func NewEstimator(overrides map[string]float64) *Estimator {
	factors := make(map[string]float64, len(defaultFactors)+len(overrides))
	for format, factor := range defaultFactors {
		factors[format] = factor
	}
	for format, factor := range overrides {
		if factor >= 1 {
			factors[format] = factor
		}
	}
	return &Estimator{factors: factors}
}

// Supported reports whether format has an expansion factor.
func (e *Estimator) Supported(format string) bool {
	_, ok := e.factors[format]
	return ok
}

// Formats returns the supported formats in sorted order.
func (e *Estimator) Formats() []string {
	formats := make([]string, 0, len(e.factors))
	for format := range e.factors {
		formats = append(formats, format)
	}
	sort.Strings(formats)
	return formats
}

// Estimate returns the peak decoded working-set bytes for a file of the given
// format and size. The result is always positive.
func (e *Estimator) Estimate(format string, size int64) (int64, error) {
	if size < 0 {
		return 0, services.Wrap(services.ErrValidation, "estimate", format, fmt.Sprintf("negative size %d", size), nil)
	}
	factor, ok := e.factors[format]
	if !ok {
		if format == "" {
			format = "(none)"
		}
		return 0, services.Wrap(services.ErrUnsupportedFormat, "estimate", format, "no expansion factor for format", nil)
	}
	estimate := int64(math.Ceil(float64(size) * factor))
	if estimate < 1 {
		estimate = 1
	}
	return estimate, nil
}

// EstimateFile fills file.Estimate.
func (e *Estimator) EstimateFile(file *inputs.InputFile) error {
	estimate, err := e.Estimate(file.Format, file.Size)
	if err != nil {
		return err
	}
	file.Estimate = estimate
	return nil
}
