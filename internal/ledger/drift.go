package ledger

import (
	"sort"

	"github.com/aleister1102/hotpatch/internal/hasher"
	"github.com/rs/zerolog"
)

// DriftReport describes how the live tree differs from the ledger baseline.
type DriftReport struct {
	BaselineVersion string
	BaselineTime    string
	Changed         []string
	Added           []string
	Removed         []string
	Unchanged       int
}

// Clean reports whether the tree matches the baseline exactly
func (r *DriftReport) Clean() bool {
	return len(r.Changed) == 0 && len(r.Added) == 0 && len(r.Removed) == 0
}

// Detector compares the persisted ledger against a fresh scan of the
// application tree. It answers "has anything been modified since the last
// successful update" without talking to the update server.
type Detector struct {
	store   *Store
	scanner *hasher.FileScanner
	logger  zerolog.Logger
}

// NewDetector creates a drift detector
func NewDetector(store *Store, scanner *hasher.FileScanner, logger zerolog.Logger) *Detector {
	return &Detector{
		store:   store,
		scanner: scanner,
		logger:  logger.With().Str("component", "DriftDetector").Logger(),
	}
}

// Detect scans root and classifies every tracked path. It passes through
// ErrNoBaseline when no ledger has been persisted yet.
func (d *Detector) Detect(root string) (*DriftReport, error) {
	baseline, err := d.store.Load()
	if err != nil {
		return nil, err
	}

	current, err := d.scanner.Scan(root)
	if err != nil {
		return nil, err
	}

	report := &DriftReport{
		BaselineVersion: baseline.Version,
		BaselineTime:    baseline.UpdatedAt,
	}
	for path, digest := range current {
		baseDigest, tracked := baseline.Files[path]
		switch {
		case !tracked:
			report.Added = append(report.Added, path)
		case baseDigest != digest:
			report.Changed = append(report.Changed, path)
		default:
			report.Unchanged++
		}
	}
	for path := range baseline.Files {
		if _, exists := current[path]; !exists {
			report.Removed = append(report.Removed, path)
		}
	}

	sort.Strings(report.Changed)
	sort.Strings(report.Added)
	sort.Strings(report.Removed)

	d.logger.Info().
		Int("changed", len(report.Changed)).
		Int("added", len(report.Added)).
		Int("removed", len(report.Removed)).
		Int("unchanged", report.Unchanged).
		Str("baseline_version", report.BaselineVersion).
		Msg("Completed drift detection")
	return report, nil
}
