package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"mixsplit/internal/config"
)

// Requirement is an external binary a run may call.
type Requirement struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	// Impact describes what a run loses when an optional binary is absent.
	Impact string `json:"impact,omitempty"`
}

// Status is a requirement after PATH lookup.
type Status struct {
	Requirement
	Available bool   `json:"available"`
	Path      string `json:"path,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Requirements lists the binaries a run needs for the given configuration.
// fpcalc is only required when AcoustID is the sole or paired fingerprint
// provider; in auto mode the chain skips AcoustID without it.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.FFmpegBinary(), Description: "Decodes input audio and encodes track files"},
		{Name: "FFprobe", Command: cfg.FFprobeBinary(), Description: "Inspects input duration and stream layout"},
	}
	fpcalc := Requirement{
		Name:        "fpcalc",
		Command:     cfg.AcoustID.FpcalcBinary,
		Description: "Chromaprint fingerprints for AcoustID lookups",
		Optional:    true,
		Impact:      "AcoustID identification unavailable",
	}
	switch cfg.Identification.Mode {
	case "acoustid", "dual":
		fpcalc.Optional = false
	case "acrcloud", "none":
		fpcalc.Impact = "not used in " + cfg.Identification.Mode + " mode"
	}
	return append(reqs, fpcalc)
}

// Check resolves every requirement of cfg on PATH.
func Check(cfg *config.Config) []Status {
	return lookup(Requirements(cfg), exec.LookPath)
}

func lookup(reqs []Requirement, find func(string) (string, error)) []Status {
	results := make([]Status, 0, len(reqs))
	for _, req := range reqs {
		req.Command = strings.TrimSpace(req.Command)
		status := Status{Requirement: req}
		if req.Command == "" {
			status.Detail = "command not configured"
		} else if path, err := find(req.Command); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		} else {
			status.Available = true
			status.Path = path
		}
		if !status.Available && req.Optional && req.Impact != "" {
			status.Detail += "; " + req.Impact
		}
		results = append(results, status)
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, status := range statuses {
		if !status.Available && !status.Optional {
			missing = append(missing, status)
		}
	}
	return missing
}
