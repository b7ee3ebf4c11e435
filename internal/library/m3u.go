package library

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/ushis/m3u"

	"github.com/oakmoth/medialib/internal/playlistitem"
)

// ImportM3U reads an m3u playlist file and appends its entries to dst.
// Relative paths are resolved against the m3u file's directory.
func ImportM3U(path string, dst *playlistitem.Playlist) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "cannot open m3u playlist '%s'", path)
	}
	defer f.Close()

	entries, err := m3u.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "cannot parse m3u playlist '%s'", path)
	}

	dir := filepath.Dir(path)
	for _, e := range entries {
		uri := normalizeM3UPath(strings.TrimSpace(e.Path), dir)
		if uri == "" {
			continue
		}
		meta := map[string]string{}
		if e.Title != "" {
			meta["title"] = e.Title
		}
		dst.Append(playlistitem.New(uri, meta))
	}
	return nil
}

// normalizeM3UPath resolves a playlist entry's path against the m3u
// file's directory when it is a relative local path, and leaves http(s)
// URIs untouched.
func normalizeM3UPath(p, dir string) string {
	if p == "" {
		return ""
	}
	if u, err := url.ParseRequestURI(p); err == nil && u.Scheme != "" {
		if u.Scheme != "http" && u.Scheme != "https" {
			return ""
		}
		return p
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(dir, p)
	}
	return filepath.Clean(p)
}
