package demos

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Candidate is a demo on disk that parsed cleanly. It is rebuilt on every
// poll because the recording process keeps changing the directory.
type Candidate struct {
	Path        string    `json:"path"`
	ModTime     time.Time `json:"mod_time"`
	SizeBytes   int64     `json:"size_bytes"`
	Meta        Metadata  `json:"meta"`
	SidecarPath string    `json:"sidecar_path,omitempty"`
}

// Matcher selects the demo that belongs to a report.
type Matcher struct {
	logger   *zap.Logger
	lookback time.Duration
	loc      *time.Location
}

// NewMatcher builds a Matcher that accepts demos that started at most
// lookback before the report. Filename timestamps are read in loc.
func NewMatcher(logger *zap.Logger, lookback time.Duration, loc *time.Location) *Matcher {
	if loc == nil {
		loc = time.UTC
	}
	return &Matcher{
		logger:   logger.Named("matcher"),
		lookback: lookback,
		loc:      loc,
	}
}

// Match lists dir and returns the best candidate for rc. ok is false when
// nothing survives filtering, which is a normal outcome. err is only set when
// the directory itself could not be read.
func (m *Matcher) Match(dir string, rc ReportContext, kind Kind) (Candidate, bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Candidate{}, false, fmt.Errorf("list demo directory %s: %w", dir, err)
	}

	wantMap := strings.ToLower(strings.TrimSpace(rc.Map))
	wantMode := strings.TrimSpace(rc.Mode)

	var survivors []Candidate
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), kind.Extension) {
			continue
		}
		meta, err := ParseFilename(e.Name(), m.loc)
		if err != nil {
			m.logger.Debug("Skipping unparsable demo", zap.String("file", e.Name()))
			continue
		}
		// Map is a substring test since recordings may carry qualifiers;
		// mode is an exact token.
		if !strings.Contains(strings.ToLower(meta.Map), wantMap) {
			continue
		}
		if wantMode != "" && !strings.EqualFold(meta.Mode, wantMode) {
			continue
		}
		if !m.inWindow(meta.Start, rc.ReportedAt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between listing and stat.
			continue
		}
		survivors = append(survivors, Candidate{
			Path:      filepath.Join(dir, e.Name()),
			ModTime:   info.ModTime(),
			SizeBytes: info.Size(),
			Meta:      meta,
		})
	}

	if len(survivors) == 0 {
		return Candidate{}, false, nil
	}

	// Newest write wins; the name breaks exact ties so repeated runs agree.
	sort.Slice(survivors, func(i, j int) bool {
		a, b := survivors[i], survivors[j]
		if !a.ModTime.Equal(b.ModTime) {
			return a.ModTime.After(b.ModTime)
		}
		return a.Path > b.Path
	})
	best := survivors[0]

	if kind.SidecarExtension != "" {
		sidecar := strings.TrimSuffix(best.Path, filepath.Ext(best.Path)) + kind.SidecarExtension
		if info, err := os.Stat(sidecar); err == nil && info.Mode().IsRegular() {
			best.SidecarPath = sidecar
		}
	}

	m.logger.Info("Demo selected",
		zap.String("run_id", rc.RunID),
		zap.String("file", best.Path),
		zap.Time("start", best.Meta.Start),
		zap.Int("candidates", len(survivors)),
	)
	return best, true, nil
}

// inWindow reports whether a demo that started at start can belong to a
// report made at reported: not after it, and not older than the lookback.
func (m *Matcher) inWindow(start, reported time.Time) bool {
	delta := reported.Sub(start)
	return delta >= 0 && delta <= m.lookback
}
