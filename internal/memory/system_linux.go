//go:build linux

package memory

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"mixsplit/internal/services"
)

// SystemSource queries the kernel for available memory.
type SystemSource struct {
	// MeminfoPath defaults to /proc/meminfo.
	MeminfoPath string
}

// NewSystemSource returns the platform memory source.
func NewSystemSource() Source {
	return SystemSource{MeminfoPath: "/proc/meminfo"}
}

// Available prefers MemAvailable from meminfo, which accounts for reclaimable
// page cache, and falls back to sysinfo free plus buffer RAM.
func (s SystemSource) Available() (int64, error) {
	if value, ok := readMemAvailable(s.MeminfoPath); ok {
		return value, nil
	}
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0, services.Wrap(services.ErrMemoryQueryUnavailable, "plan", "sysinfo", "", err)
	}
	unit := int64(info.Unit)
	if unit == 0 {
		unit = 1
	}
	return (int64(info.Freeram) + int64(info.Bufferram)) * unit, nil
}

func readMemAvailable(path string) (int64, bool) {
	if path == "" {
		return 0, false
	}
	file, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 || fields[0] != "MemAvailable:" {
			continue
		}
		kib, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil || kib <= 0 {
			return 0, false
		}
		return kib * 1024, true
	}
	return 0, false
}
