package segment

import (
	"time"

	"mixsplit/internal/inputs"
)

// DefaultMixThreshold is the duration at which a recording counts as a mix.
const DefaultMixThreshold = 8 * time.Minute

// Classifier decides single-track versus mix from duration alone.
type Classifier struct {
	Threshold time.Duration
}

// NewClassifier returns a classifier with the given threshold, or the default
// when threshold is not positive.
func NewClassifier(threshold time.Duration) Classifier {
	if threshold <= 0 {
		threshold = DefaultMixThreshold
	}
	return Classifier{Threshold: threshold}
}

// Classify returns Mix when d is at or above the threshold.
func (c Classifier) Classify(d time.Duration) inputs.Classification {
	threshold := c.Threshold
	if threshold <= 0 {
		threshold = DefaultMixThreshold
	}
	if d >= threshold {
		return inputs.Mix
	}
	return inputs.SingleTrack
}
