package library

import "github.com/oakmoth/medialib/internal/playlistitem"

// ScanDecision is the outcome of the incremental scan filter for one
// encountered file.
type ScanDecision int

const (
	// ScanInclude means the file is new or stale and must be reparsed.
	ScanInclude ScanDecision = iota
	// ScanSkip means the file is already up to date; its entries were
	// moved from the old playlist into the new one being built.
	ScanSkip
)

// scanFilter decides, for each file a scan encounters, whether it can
// be carried forward unchanged from the "old" canonical playlist's
// index or must be reparsed, while a new playlist is being assembled.
type scanFilter struct {
	old     *Index
	oldPl   *playlistitem.Playlist
	newPl   *playlistitem.Playlist
	removed map[string]bool // URIs already moved out of oldPl
}

func newScanFilter(old *Index, oldPl, newPl *playlistitem.Playlist) *scanFilter {
	return &scanFilter{old: old, oldPl: oldPl, newPl: newPl, removed: make(map[string]bool)}
}

// Decide reports whether the file at uri, last modified at mtime
// (unix seconds), can be reused unchanged from the old index.
//
// A filename can carry more than one entry when it holds a cue sheet
// or other multi-subtrack container, since every subtrack references
// the same URI. The file is only up to date if every entry sharing
// uri was scanned at or after mtime; a stale or missing entry for any
// one of them forces the whole file to be reparsed.
func (f *scanFilter) Decide(uri string, mtime int64) ScanDecision {
	entries := f.old.EntriesByURI(uri)
	if len(entries) == 0 {
		return ScanInclude // not present in the index
	}

	for _, entry := range entries {
		if entry.ScanTime == 0 || entry.ScanTime < mtime {
			return ScanInclude // missing or stale timestamp
		}
	}

	// already up to date -> move from old playlist to new one,
	// destructively, so anything left behind in oldPl after a full scan
	// represents a deletion.
	f.moveEntry(uri)
	return ScanSkip
}

// moveEntry transplants every old-playlist item for uri into the new
// playlist, preserving its metadata, and marks it removed from the old
// one.
func (f *scanFilter) moveEntry(uri string) {
	if f.removed[uri] {
		return
	}
	f.removed[uri] = true

	kept := playlistitem.NewPlaylist()
	for i := 0; i < f.oldPl.Len(); i++ {
		item := f.oldPl.At(i)
		if item.URI == uri {
			f.newPl.Append(item)
			continue
		}
		kept.Append(item)
	}
	*f.oldPl = *kept
}

// Deletions returns the URIs left in the old playlist after a full
// scan: entries that were never moved, hence no longer present on
// disk or no longer under a monitored root.
func (f *scanFilter) Deletions() []string {
	seen := make(map[string]bool)
	var out []string
	for i := 0; i < f.oldPl.Len(); i++ {
		uri := f.oldPl.At(i).URI
		if !seen[uri] {
			seen[uri] = true
			out = append(out, uri)
		}
	}
	return out
}
