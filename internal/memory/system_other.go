//go:build !linux

package memory

import "mixsplit/internal/services"

type unavailableSource struct{}

// NewSystemSource returns the platform memory source. Only Linux is
// supported; elsewhere the pipeline runs in serial mode.
func NewSystemSource() Source {
	return unavailableSource{}
}

func (unavailableSource) Available() (int64, error) {
	return 0, services.Wrap(services.ErrMemoryQueryUnavailable, "plan", "memory", "system memory query not supported on this platform", nil)
}
