package memory

import (
	"errors"
	"fmt"

	"mixsplit/internal/config"
	"mixsplit/internal/services"
)

const (
	mib = int64(1024 * 1024)
	// minBudget keeps tiny or heavily loaded hosts from planning one byte batches.
	minBudget = 512 * mib
)

// Source reports currently available system memory.
type Source interface {
	Available() (int64, error)
}

// Budget is the memory ceiling for one batch.
type Budget struct {
	Bytes int64
	// Available is what the source reported, zero when the budget is fixed or unknown.
	Available int64
	// Fixed is set when the budget came from configuration.
	Fixed bool
	// Disabled means no budget could be derived; planning falls back to one
	// file per batch.
	Disabled bool
}

func (b Budget) String() string {
	switch {
	case b.Disabled:
		return "disabled (serial)"
	case b.Fixed:
		return fmt.Sprintf("%d MiB (configured)", b.Bytes/mib)
	default:
		return fmt.Sprintf("%d MiB of %d MiB available", b.Bytes/mib, b.Available/mib)
	}
}

// ResolveBudget reads the source once and derives the batch budget. A
// configured budget_mb wins over the source. A source failure yields a
// disabled budget and the underlying error for logging; it is not fatal.
func ResolveBudget(cfg config.Memory, source Source) (Budget, error) {
	if cfg.BudgetMB > 0 {
		return Budget{Bytes: int64(cfg.BudgetMB) * mib, Fixed: true}, nil
	}
	if source == nil {
		return Budget{Disabled: true}, services.Wrap(services.ErrMemoryQueryUnavailable, "plan", "memory", "no system memory source", nil)
	}
	available, err := source.Available()
	if err != nil {
		if !errors.Is(err, services.ErrMemoryQueryUnavailable) {
			err = services.Wrap(services.ErrMemoryQueryUnavailable, "plan", "memory", "query failed", err)
		}
		return Budget{Disabled: true}, err
	}
	if available <= 0 {
		return Budget{Disabled: true}, services.Wrap(services.ErrMemoryQueryUnavailable, "plan", "memory", "source reported no available memory", nil)
	}
	fraction := cfg.BudgetFraction
	if fraction <= 0 || fraction > 1 {
		fraction = 0.6
	}
	bytes := int64(float64(available) * fraction)
	if bytes < minBudget {
		bytes = minBudget
	}
	return Budget{Bytes: bytes, Available: available}, nil
}
