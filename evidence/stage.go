package evidence

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Staged is a private copy of a demo (and its sidecar) taken before upload,
// so the upload never holds a handle on the recording's original file.
type Staged struct {
	Dir      string
	Artifact string
	Sidecar  string
	SHA256   string
	Size     int64
}

// Stage copies artifact and the optional sidecar into a fresh temporary
// directory. On error nothing is left behind.
func Stage(artifact, sidecar string) (Staged, error) {
	dir, err := os.MkdirTemp("", "demos-to-discord-*")
	if err != nil {
		return Staged{}, fmt.Errorf("create staging dir: %w", err)
	}

	s := Staged{Dir: dir}
	s.Artifact = filepath.Join(dir, filepath.Base(artifact))
	if err := copyFile(artifact, s.Artifact); err != nil {
		_ = os.RemoveAll(dir)
		return Staged{}, fmt.Errorf("stage %s: %w", artifact, err)
	}

	if sidecar != "" {
		dst := filepath.Join(dir, filepath.Base(sidecar))
		// The sidecar is optional; losing it does not fail staging.
		if err := copyFile(sidecar, dst); err == nil {
			s.Sidecar = dst
		}
	}

	s.SHA256, s.Size, err = SHA256File(s.Artifact)
	if err != nil {
		_ = os.RemoveAll(dir)
		return Staged{}, fmt.Errorf("hash staged copy: %w", err)
	}
	return s, nil
}

// Remove deletes the staging directory.
func (s Staged) Remove() error {
	if s.Dir == "" {
		return nil
	}
	return os.RemoveAll(s.Dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
