package workflow

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"demos-to-discord/core/internal/evidence"
)

// Entry is one line of the transition journal.
type Entry struct {
	Time   string `json:"time"`
	RunID  string `json:"run_id"`
	From   State  `json:"from"`
	To     State  `json:"to"`
	Detail string `json:"detail,omitempty"`
}

// Journal appends workflow transitions to a JSONL file. Concurrent workflows
// share one Journal. A nil *Journal discards everything.
type Journal struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	enc *json.Encoder
	now func() time.Time
}

// OpenJournal opens path for appending, creating parent directories.
func OpenJournal(path string) (*Journal, error) {
	if err := evidence.EnsureParent(path); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	w := bufio.NewWriter(f)
	return &Journal{f: f, w: w, enc: json.NewEncoder(w), now: time.Now}, nil
}

// Record writes e, stamping Time when it is empty. Each entry is flushed
// so a crash loses at most the line being written.
func (j *Journal) Record(e Entry) error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if e.Time == "" {
		e.Time = j.now().UTC().Format(time.RFC3339Nano)
	}
	if err := j.enc.Encode(e); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return err
	}
	return j.f.Close()
}
