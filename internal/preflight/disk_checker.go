package preflight

import (
	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskChecker verifies free disk space before a batch of downloads begins.
type DiskChecker struct {
	minFreeMB int64
	logger    zerolog.Logger
}

// NewDiskChecker creates a disk checker requiring minFreeMB of headroom
func NewDiskChecker(minFreeMB int64, logger zerolog.Logger) *DiskChecker {
	return &DiskChecker{
		minFreeMB: minFreeMB,
		logger:    logger.With().Str("component", "DiskChecker").Logger(),
	}
}

// CheckFreeSpace verifies the filesystem holding path can absorb
// requiredBytes plus the configured headroom. A failed probe is logged
// and ignored: a broken stat source must not block updates.
func (dc *DiskChecker) CheckFreeSpace(path string, requiredBytes int64) error {
	usage, err := disk.Usage(path)
	if err != nil {
		dc.logger.Warn().Err(err).Str("path", path).Msg("Could not determine free disk space, skipping preflight check")
		return nil
	}

	needed := uint64(requiredBytes) + uint64(dc.minFreeMB)*1024*1024 // #nosec G115 -- sizes are non-negative
	if usage.Free < needed {
		return errorwrapper.NewError(
			"insufficient disk space on %s: %d MB free, %d MB needed",
			path, usage.Free/1024/1024, needed/1024/1024,
		)
	}

	dc.logger.Debug().
		Str("path", path).
		Uint64("free_mb", usage.Free/1024/1024).
		Uint64("needed_mb", needed/1024/1024).
		Msg("Disk preflight check passed")
	return nil
}
