//go:build windows

package evidence

import (
	"fmt"

	"golang.org/x/sys/windows"
)

// tryExclusiveOpen opens path for reading with no sharing allowed. The open
// fails while the game server still holds the demo.
func tryExclusiveOpen(path string) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return err
	}
	h, err := windows.CreateFile(p, windows.GENERIC_READ, 0, nil, windows.OPEN_EXISTING, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return fmt.Errorf("open %s exclusively: %w", path, err)
	}
	return windows.CloseHandle(h)
}
