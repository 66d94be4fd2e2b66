package demos

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ErrUnparsable is returned for filenames that do not follow the
// <mode>_<map...>_<month>_<day>_<year>_<hour>_<minute> shape.
var ErrUnparsable = errors.New("unparsable demo filename")

// A filename needs the mode, at least one map segment and five date tokens.
const minFilenameTokens = 7

// Metadata is what a demo filename tells us about the recording.
type Metadata struct {
	Mode  string    `json:"mode"`
	Map   string    `json:"map"`
	Start time.Time `json:"start"`
}

// ParseFilename extracts the mode, map and recording start from a demo
// filename such as tdm_mp_nuketown_2020_12_10_2025_4_4.demo. Directories and
// the extension are ignored. The timestamp has minute resolution and is
// interpreted in loc (UTC when nil).
//
// Any failure yields ErrUnparsable; a partial result is never returned.
func ParseFilename(name string, loc *time.Location) (Metadata, error) {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.Split(base, "_")
	if len(parts) < minFilenameTokens {
		return Metadata{}, fmt.Errorf("%w: %q has %d tokens", ErrUnparsable, base, len(parts))
	}

	n := len(parts)
	var nums [5]int
	for i, tok := range parts[n-5:] {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: %q: token %q is not numeric", ErrUnparsable, base, tok)
		}
		nums[i] = v
	}
	month, day, year, hour, minute := nums[0], nums[1], nums[2], nums[3], nums[4]

	if !validStamp(year, month, day, hour, minute) {
		return Metadata{}, fmt.Errorf("%w: %q: invalid date %04d-%02d-%02d %02d:%02d", ErrUnparsable, base, year, month, day, hour, minute)
	}

	if loc == nil {
		loc = time.UTC
	}
	return Metadata{
		Mode:  parts[0],
		Map:   strings.Join(parts[1:n-5], "_"),
		Start: time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc),
	}, nil
}

func validStamp(year, month, day, hour, minute int) bool {
	if year < 1 || year > 9999 || month < 1 || month > 12 {
		return false
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || day < 1 {
		return false
	}
	// time.Date normalizes Feb 30 into March; a changed month means the day
	// does not exist.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day && int(t.Month()) == month
}
