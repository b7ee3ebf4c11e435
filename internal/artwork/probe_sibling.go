package artwork

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// defaultFileMasks and defaultSiblingFolders mirror internal/config's
// artwork defaults; kept local so the scanner has no
// compile-time dependency on internal/config.
var defaultFileMasks = []string{
	"front.*", "folder.*", "cover.*", "f.*",
	"*front*.*", "*cover*.*", "*folder*.*",
	"*.png", "*.jpg", "*.jpeg",
}

var defaultSiblingFolders = []string{"art", "scans", "covers", "artwork", "artworks"}

// vfsPlugin is the boundary interface to a virtual filesystem: a plugin
// that knows how to list entries of a container URI.
type vfsPlugin interface {
	IsContainer(uri string) bool
	ScanDir(containerURI string) ([]string, error)
}

// siblingScanner looks for a cover image next to a track, in the
// track's own directory and a configurable list of subfolders, trying
// a list of glob masks in order.
type siblingScanner struct {
	masks   []string
	folders []string
	vfs     []vfsPlugin
}

func newSiblingScanner(fileMask, folders string, vfs []vfsPlugin) *siblingScanner {
	s := &siblingScanner{vfs: vfs}
	if fileMask == "" {
		s.masks = defaultFileMasks
	} else {
		s.masks = strings.Split(fileMask, ";")
	}
	if folders == "" {
		s.folders = defaultSiblingFolders
	} else {
		s.folders = strings.Split(folders, ";")
	}
	return s
}

// uriScheme returns the scheme prefix of a URI (e.g. "file", "smb"), or
// "" if uri has no scheme (a plain filesystem path).
func uriScheme(uri string) string {
	i := strings.Index(uri, "://")
	if i < 0 {
		return ""
	}
	return uri[:i]
}

// findForVFSContainer handles containers backed by a vfsPlugin: a
// plugin reporting IsContainer(true) supplies ScanDir instead of the
// native directory listing, and a hit is encoded as
// "container_uri:entry".
func (s *siblingScanner) findForVFSContainer(containerURI string) (string, bool) {
	for _, p := range s.vfs {
		if !p.IsContainer(containerURI) {
			continue
		}
		entries, err := p.ScanDir(containerURI)
		if err != nil {
			continue
		}
		if name, ok := matchMasks(entries, s.masks); ok {
			return containerURI + ":" + name, true
		}
	}
	return "", false
}

// probe walks the candidate folders (track dir, then each named
// subfolder found case-insensitively) and returns the first regular,
// non-empty file matching one of the configured masks.
func (s *siblingScanner) probe(ctx context.Context, trackURI string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, errCancelled{err}
	}

	if uriScheme(trackURI) != "" && uriScheme(trackURI) != "file" {
		if path, ok := s.findForVFSContainer(trackURI); ok {
			return path, true, nil
		}
		return "", false, nil
	}

	dir := filepath.Dir(trackURI)
	if path, ok := s.probeDir(dir); ok {
		return path, true, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false, errors.Wrapf(err, "sibling scan: cannot list '%s'", dir)
	}
	lowerWanted := make(map[string]string, len(s.folders))
	for _, f := range s.folders {
		lowerWanted[strings.ToLower(f)] = f
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, want := lowerWanted[strings.ToLower(e.Name())]; !want {
			continue
		}
		if path, ok := s.probeDir(filepath.Join(dir, e.Name())); ok {
			return path, true, nil
		}
	}

	return "", false, nil
}

// probeDir tries every mask, in order, against one directory's entries.
func (s *siblingScanner) probeDir(dir string) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		names = append(names, e.Name())
	}
	if name, ok := matchMasks(names, s.masks); ok {
		return filepath.Join(dir, name), true
	}
	return "", false
}

// matchMasks returns the first name (in directory order) matching any
// mask (tried in mask order), case-insensitively.
func matchMasks(names []string, masks []string) (string, bool) {
	for _, mask := range masks {
		lowerMask := strings.ToLower(mask)
		for _, name := range names {
			ok, err := filepath.Match(lowerMask, strings.ToLower(name))
			if err == nil && ok {
				return name, true
			}
		}
	}
	return "", false
}

// escapedSiblingCacheKey applies the same separator-escaping rule as
// the disk cache when a sibling path itself is used to
// form a cache key, e.g. for VFS container entries.
func escapedSiblingCacheKey(path string) string {
	return escapeSeparator(path)
}
