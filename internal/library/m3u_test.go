package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/oakmoth/medialib/internal/playlistitem"
)

func TestNormalizeM3UPathRelativeLocal(t *testing.T) {
	got := normalizeM3UPath("tracks/a.flac", "/music/list")
	want := filepath.Clean("/music/list/tracks/a.flac")
	if got != want {
		t.Fatalf("normalizeM3UPath() = %q, want %q", got, want)
	}
}

func TestNormalizeM3UPathAbsoluteLocal(t *testing.T) {
	got := normalizeM3UPath("/other/a.flac", "/music/list")
	if got != "/other/a.flac" {
		t.Fatalf("normalizeM3UPath() = %q, want unchanged absolute path", got)
	}
}

func TestNormalizeM3UPathHTTPUntouched(t *testing.T) {
	got := normalizeM3UPath("http://example.com/a.mp3", "/music/list")
	if got != "http://example.com/a.mp3" {
		t.Fatalf("normalizeM3UPath() = %q, want unchanged http URI", got)
	}
}

func TestNormalizeM3UPathRejectsOtherSchemes(t *testing.T) {
	got := normalizeM3UPath("ftp://example.com/a.mp3", "/music/list")
	if got != "" {
		t.Fatalf("normalizeM3UPath() = %q, want empty for a non-http(s) scheme", got)
	}
}

func TestNormalizeM3UPathEmpty(t *testing.T) {
	if got := normalizeM3UPath("", "/music/list"); got != "" {
		t.Fatalf("normalizeM3UPath(\"\") = %q, want empty", got)
	}
}

func TestImportM3UAppendsEntries(t *testing.T) {
	dir := t.TempDir()
	m3uPath := filepath.Join(dir, "favorites.m3u")
	content := "#EXTM3U\n#EXTINF:180,Air - La Femme d'Argent\ntracks/a.flac\n#EXTINF:90,Stereolab - Percolator\nhttp://example.com/b.mp3\n"
	if err := os.WriteFile(m3uPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	dst := playlistitem.NewPlaylist()
	if err := ImportM3U(m3uPath, dst); err != nil {
		t.Fatalf("ImportM3U() error: %v", err)
	}
	if dst.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", dst.Len())
	}
	if dst.At(0).URI != filepath.Join(dir, "tracks/a.flac") {
		t.Fatalf("URI = %q, want a dir-relative path resolved against the m3u file", dst.At(0).URI)
	}
	if dst.At(1).URI != "http://example.com/b.mp3" {
		t.Fatalf("URI = %q, want the http entry preserved", dst.At(1).URI)
	}
	if v, _ := dst.At(0).Field("title"); v != "Air - La Femme d'Argent" {
		t.Fatalf("title = %q, want the EXTINF title", v)
	}
}
