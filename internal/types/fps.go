package types

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var (
	fpsTokenPattern = regexp.MustCompile(`(\d+)\s*fps`)
	digitsPattern   = regexp.MustCompile(`\d+`)
)

// ParseFPS extracts the nominal frame rate from a clip name.
// "clip_25fps.mp4" gives 25 and "baseline_30.mp4" gives 30. Only the stem
// is searched, and the last token wins so "walk_30fps_25fps.mp4" gives 25.
func ParseFPS(name string) (int, error) {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if m := fpsTokenPattern.FindAllStringSubmatch(strings.ToLower(stem), -1); m != nil {
		return strconv.Atoi(m[len(m)-1][1])
	}
	if m := digitsPattern.FindAllString(stem, -1); m != nil {
		return strconv.Atoi(m[len(m)-1])
	}
	return 0, fmt.Errorf("%w: %q", ErrFPSTokenMissing, name)
}

// ParseFPSOr returns the parsed frame rate of name or fallback if none is found
func ParseFPSOr(name string, fallback int) int {
	fps, err := ParseFPS(name)
	if err != nil {
		return fallback
	}
	return fps
}
