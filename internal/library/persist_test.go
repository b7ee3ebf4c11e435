package library

import (
	"testing"

	"github.com/oakmoth/medialib/internal/playlistitem"
)

func TestSaveLoadPlaylistRoundTrip(t *testing.T) {
	dir := t.TempDir()

	pl := playlistitem.NewPlaylist()
	pl.Append(trackItem("/music/a.flac", map[string]string{"artist": "Air"}))
	pl.Append(trackItem("/music/b.flac", map[string]string{"artist": "Stereolab"}))
	pl.SetMeta("cli_add_playlist_name", "favorites")

	if err := SavePlaylist(dir, pl, false); err != nil {
		t.Fatalf("SavePlaylist() error: %v", err)
	}

	got, err := LoadPlaylist(dir)
	if err != nil {
		t.Fatalf("LoadPlaylist() error: %v", err)
	}
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", got.Len())
	}
	if got.At(0).URI != "/music/a.flac" || got.At(1).URI != "/music/b.flac" {
		t.Fatalf("playlist order/content mismatch after round trip: %+v", got)
	}
	if v, _ := got.At(0).Field("artist"); v != "Air" {
		t.Fatalf("Field(artist) = %q, want Air", v)
	}
	if v, _ := got.Meta("cli_add_playlist_name"); v != "favorites" {
		t.Fatalf("Meta(cli_add_playlist_name) = %q, want favorites", v)
	}
}

func TestSavePlaylistSkippedWhenFileOpsDisabled(t *testing.T) {
	dir := t.TempDir()
	pl := playlistitem.NewPlaylist()
	pl.Append(trackItem("/music/a.flac", nil))

	if err := SavePlaylist(dir, pl, true); err != nil {
		t.Fatalf("SavePlaylist() with fileOpsDisabled error: %v", err)
	}

	got, err := LoadPlaylist(dir)
	if err != nil {
		t.Fatalf("LoadPlaylist() error: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 (no file should have been written)", got.Len())
	}
}

func TestLoadPlaylistMissingFileIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	got, err := LoadPlaylist(dir)
	if err != nil {
		t.Fatalf("LoadPlaylist() on a missing file returned an error: %v", err)
	}
	if got.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", got.Len())
	}
}
