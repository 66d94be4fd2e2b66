package evidence

import (
	"os"
	"time"

	"go.uber.org/zap"
)

type Stability string

const (
	StabilityReady    Stability = "ready"
	StabilityTimedOut Stability = "timed_out"
)

// Detector decides when a file the game server is recording has been
// finalized. Nothing signals completion, so it watches the size settle and
// then checks that an exclusive open succeeds.
type Detector struct {
	logger       *zap.Logger
	stat         func(string) (os.FileInfo, error)
	tryExclusive func(string) error
	sleep        func(time.Duration)
}

func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{
		logger:       logger.Named("stability"),
		stat:         os.Stat,
		tryExclusive: tryExclusiveOpen,
		sleep:        time.Sleep,
	}
}

// AwaitStable polls path up to attempts times, sleeping interval before each
// check. The file is ready once two consecutive checks see the same non-zero
// size and the exclusive open succeeds. The lock is only held inside a
// single check.
//
// There is no context: once a demo has been found the wait runs to
// completion.
func (d *Detector) AwaitStable(path string, attempts int, interval time.Duration) Stability {
	lastSize := int64(-1)
	for i := 0; i < attempts; i++ {
		d.sleep(interval)

		info, err := d.stat(path)
		if err != nil || info.Size() == 0 {
			continue
		}
		if info.Size() != lastSize {
			lastSize = info.Size()
			continue
		}
		if err := d.tryExclusive(path); err != nil {
			d.logger.Debug("File still locked", zap.String("path", path), zap.Error(err))
			continue
		}
		d.logger.Debug("File stable",
			zap.String("path", path),
			zap.Int64("size_bytes", lastSize),
			zap.Int("attempt", i+1),
		)
		return StabilityReady
	}

	d.logger.Warn("File did not stabilize, continuing with best-effort read",
		zap.String("path", path),
		zap.Int("attempts", attempts),
	)
	return StabilityTimedOut
}
