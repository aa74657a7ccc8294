// Package dataset holds helpers for dataset files stored under the media root:
// location normalisation, compression detection and streaming, and the
// per-model data directory layout.
package dataset

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrMediaRootNotFound is returned when a path does not contain the media root.
var ErrMediaRootNotFound = errors.New("media root not found in path")

// CleanFilesystemLocation returns the part of p that follows mediaRoot,
// without a leading separator. mediaRoot is matched on whole path segments
// anywhere in p, so "/root/of/all/evil/temp_data/projects/blah" with media
// root "temp_data" yields "projects/blah".
func CleanFilesystemLocation(p, mediaRoot string) (string, error) {
	rootSegs := segments(mediaRoot)
	if len(rootSegs) == 0 {
		return "", fmt.Errorf("empty media root: %w", ErrMediaRootNotFound)
	}
	pathSegs := segments(p)
	for i := 0; i+len(rootSegs) <= len(pathSegs); i++ {
		if equalSegments(pathSegs[i:i+len(rootSegs)], rootSegs) {
			return strings.Join(pathSegs[i+len(rootSegs):], "/"), nil
		}
	}
	return "", fmt.Errorf("%q under %q: %w", p, mediaRoot, ErrMediaRootNotFound)
}

func segments(p string) []string {
	p = path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	if p == "/" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(p, "/"), "/")
}

func equalSegments(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
