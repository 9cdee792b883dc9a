package validate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ErrNoBaseline is returned by [FindBaseline] when no recording matches.
var ErrNoBaseline = errors.New("validate: no baseline recording found")

// FindBaseline locates the baseline recording for s under dir. The direct
// match <dir>/<category>/<name>.wav wins; otherwise the lexically first
// .wav file anywhere under dir whose name contains the emotion label is
// used.
func FindBaseline(dir string, s Sample) (string, error) {
	direct := filepath.Join(dir, s.Category, s.FileName())
	if fi, err := os.Stat(direct); err == nil && fi.Mode().IsRegular() {
		return direct, nil
	}

	if s.Emotion == "" {
		return "", ErrNoBaseline
	}
	label := string(s.Emotion)

	var matches []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, ".wav") && strings.Contains(name, label) {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoBaseline
		}
		return "", fmt.Errorf("validate: search baselines in %s: %w", dir, err)
	}
	if len(matches) == 0 {
		return "", ErrNoBaseline
	}
	slices.Sort(matches)
	return matches[0], nil
}
