package artwork

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
)

// nameMax bounds a single path segment to the usual filesystem limit.
const nameMax = 255

// partSuffix is appended while a cache file is being written, atomically
// renamed into place afterwards.
const partSuffix = ".part"

// diskCache is the on-disk cover cache keyed by (artist, album) under
// root/covers2/.
type diskCache struct {
	root string
}

func newDiskCache(cacheRoot string) *diskCache {
	return &diskCache{root: filepath.Join(cacheRoot, "covers2")}
}

// ErrPathTooLong is returned by Path when no safe cache key can be
// built within nameMax. Callers should fail the query without writing
// a placeholder in that case.
var ErrPathTooLong = errors.New("cache key exceeds path length budget")

// escapeSeparator replaces the platform path separator with a safe
// substitute so that a malicious artist/album name cannot traverse out
// of the cache root.
func escapeSeparator(s string) string {
	sep := string(filepath.Separator)
	var repl string
	if runtime.GOOS == "windows" {
		repl = "_"
	} else {
		repl = "\\"
	}
	s = strings.ReplaceAll(s, sep, repl)
	// Also replace "/" (a no-op on POSIX, where it is the native
	// separator) and, on POSIX, "\" (which is itself the substitute
	// there, so it is kept); forbid "." / ".." path components outright.
	s = strings.ReplaceAll(s, "/", repl)
	if runtime.GOOS != "windows" {
		s = strings.ReplaceAll(s, "\\", repl)
	}
	for s == "." || s == ".." {
		s = "_" + s
	}
	return s
}

// Path computes the cache path for (artist, album, trackURI), falling
// back through trackURI and then artist when album is empty, and
// truncating to stay within the path length budget.
func (d *diskCache) Path(artist, album, trackURI string) (string, error) {
	a := strings.TrimSpace(artist)
	if a == "" {
		a = "Unknown artist"
	}
	a = escapeSeparator(a)

	alb := strings.TrimSpace(album)
	if alb == "" {
		alb = strings.TrimSpace(trackURI)
	}
	if alb == "" {
		alb = a
	}
	if alb == "" {
		return "", ErrPathTooLong
	}
	alb = escapeSeparator(alb)

	if len(a) > nameMax {
		a = a[:nameMax]
	}

	const suffix = ".jpg"
	budget := nameMax - len(suffix) - len(partSuffix)
	if budget <= 0 {
		return "", ErrPathTooLong
	}
	if len(alb) > budget {
		alb = alb[:budget]
	}
	if len(alb) == 0 {
		return "", ErrPathTooLong
	}

	return filepath.Join(d.root, a, alb+suffix), nil
}

// Lookup reports whether path exists, and if so, whether it is a
// negative placeholder (a zero-byte file).
func (d *diskCache) Lookup(path string) (exists bool, placeholder bool, err error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, false, nil
		}
		return false, false, errors.Wrapf(err, "cannot stat cache file '%s'", path)
	}
	return true, info.Size() == 0, nil
}

// WritePlaceholder touches path as a zero-byte negative-result marker.
func (d *diskCache) WritePlaceholder(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "cannot create cache directory for '%s'", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "cannot write placeholder '%s'", path)
	}
	return f.Close()
}

// WriteImage writes data to path atomically via a .part temp file plus
// rename.
func (d *diskCache) WriteImage(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, "cannot create cache directory for '%s'", path)
	}
	tmp := path + partSuffix
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrapf(err, "cannot write temp cache file '%s'", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "cannot finalize cache file '%s'", path)
	}
	return nil
}
