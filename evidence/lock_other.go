//go:build !unix && !windows

package evidence

import "os"

func tryExclusiveOpen(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	return f.Close()
}
