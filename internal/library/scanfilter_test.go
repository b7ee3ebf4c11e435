package library

import (
	"testing"

	"github.com/oakmoth/medialib/internal/intern"
	"github.com/oakmoth/medialib/internal/playlistitem"
)

func buildOldIndex(t *testing.T, entries map[string]int64) (*Index, *playlistitem.Playlist) {
	t.Helper()
	oldPl := playlistitem.NewPlaylist()
	for uri, scanTime := range entries {
		meta := map[string]string{}
		if scanTime != 0 {
			meta["scan_time"] = unixString(scanTime)
		}
		oldPl.Append(trackItem(uri, meta))
	}
	ix := NewIndex(intern.New())
	ix.Build(oldPl, []string{"/music"})
	return ix, oldPl
}

func TestScanFilterIncludesUnknownFile(t *testing.T) {
	old, oldPl := buildOldIndex(t, map[string]int64{"/music/a.flac": 100})
	newPl := playlistitem.NewPlaylist()
	f := newScanFilter(old, oldPl, newPl)

	if got := f.Decide("/music/b.flac", 50); got != ScanInclude {
		t.Fatalf("Decide() for unknown file = %v, want ScanInclude", got)
	}
}

func TestScanFilterIncludesStaleFile(t *testing.T) {
	old, oldPl := buildOldIndex(t, map[string]int64{"/music/a.flac": 100})
	newPl := playlistitem.NewPlaylist()
	f := newScanFilter(old, oldPl, newPl)

	if got := f.Decide("/music/a.flac", 200); got != ScanInclude {
		t.Fatalf("Decide() for a stale scan time = %v, want ScanInclude", got)
	}
}

func TestScanFilterIncludesZeroScanTime(t *testing.T) {
	old, oldPl := buildOldIndex(t, map[string]int64{"/music/a.flac": 0})
	newPl := playlistitem.NewPlaylist()
	f := newScanFilter(old, oldPl, newPl)

	if got := f.Decide("/music/a.flac", 1); got != ScanInclude {
		t.Fatalf("Decide() for a never-scanned entry = %v, want ScanInclude", got)
	}
}

func TestScanFilterSkipsAndMovesUpToDateFile(t *testing.T) {
	old, oldPl := buildOldIndex(t, map[string]int64{"/music/a.flac": 200})
	newPl := playlistitem.NewPlaylist()
	f := newScanFilter(old, oldPl, newPl)

	if got := f.Decide("/music/a.flac", 100); got != ScanSkip {
		t.Fatalf("Decide() for an up-to-date file = %v, want ScanSkip", got)
	}
	if newPl.Len() != 1 || newPl.At(0).URI != "/music/a.flac" {
		t.Fatalf("moveEntry did not transplant the entry into the new playlist")
	}
	if oldPl.Len() != 0 {
		t.Fatalf("oldPl.Len() = %d after move, want 0", oldPl.Len())
	}
}

func TestScanFilterIncludesFileWhenAnySubtrackIsStale(t *testing.T) {
	oldPl := playlistitem.NewPlaylist()
	oldPl.Append(trackItem("/music/album.flac", map[string]string{"subtrack": "0", "scan_time": unixString(200)}))
	oldPl.Append(trackItem("/music/album.flac", map[string]string{"subtrack": "1", "scan_time": unixString(50)}))
	ix := NewIndex(intern.New())
	ix.Build(oldPl, []string{"/music"})

	newPl := playlistitem.NewPlaylist()
	f := newScanFilter(ix, oldPl, newPl)

	// The second subtrack's scan time (50) is older than mtime (100),
	// so the whole cue sheet must be reparsed even though the first
	// subtrack (200) is fresh and EntryByURI would only ever see one
	// of the two.
	if got := f.Decide("/music/album.flac", 100); got != ScanInclude {
		t.Fatalf("Decide() with one stale subtrack = %v, want ScanInclude", got)
	}
}

func TestScanFilterDeletionsReportsUntouchedEntries(t *testing.T) {
	old, oldPl := buildOldIndex(t, map[string]int64{
		"/music/kept.flac":    200,
		"/music/deleted.flac": 200,
	})
	newPl := playlistitem.NewPlaylist()
	f := newScanFilter(old, oldPl, newPl)

	f.Decide("/music/kept.flac", 100) // ScanSkip, moves kept.flac out of oldPl

	dels := f.Deletions()
	if len(dels) != 1 || dels[0] != "/music/deleted.flac" {
		t.Fatalf("Deletions() = %v, want [/music/deleted.flac]", dels)
	}
}
