package artwork

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

func TestSiblingScannerFindsCoverInTrackDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "folder.jpg"), "jpeg-bytes")
	trackPath := filepath.Join(dir, "01.flac")
	writeFile(t, trackPath, "audio-bytes")

	s := newSiblingScanner("", "", nil)
	path, ok, err := s.probe(context.Background(), trackPath)
	if err != nil {
		t.Fatalf("probe() error: %v", err)
	}
	if !ok || path != filepath.Join(dir, "folder.jpg") {
		t.Fatalf("probe() = (%q, %v), want the sibling cover file", path, ok)
	}
}

func TestSiblingScannerIgnoresEmptyFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cover.jpg"), "")
	trackPath := filepath.Join(dir, "01.flac")
	writeFile(t, trackPath, "audio-bytes")

	s := newSiblingScanner("", "", nil)
	_, ok, err := s.probe(context.Background(), trackPath)
	if err != nil {
		t.Fatalf("probe() error: %v", err)
	}
	if ok {
		t.Fatalf("probe() matched a zero-byte file, want no match")
	}
}

func TestSiblingScannerFallsBackToSubfolder(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "Scans"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	writeFile(t, filepath.Join(dir, "Scans", "front.png"), "png-bytes")
	trackPath := filepath.Join(dir, "01.flac")
	writeFile(t, trackPath, "audio-bytes")

	s := newSiblingScanner("", "", nil)
	path, ok, err := s.probe(context.Background(), trackPath)
	if err != nil {
		t.Fatalf("probe() error: %v", err)
	}
	if !ok || path != filepath.Join(dir, "Scans", "front.png") {
		t.Fatalf("probe() = (%q, %v), want the subfolder's cover picked up case-insensitively", path, ok)
	}
}

func TestSiblingScannerNoMatch(t *testing.T) {
	dir := t.TempDir()
	trackPath := filepath.Join(dir, "01.flac")
	writeFile(t, trackPath, "audio-bytes")

	s := newSiblingScanner("", "", nil)
	_, ok, err := s.probe(context.Background(), trackPath)
	if err != nil {
		t.Fatalf("probe() error: %v", err)
	}
	if ok {
		t.Fatalf("probe() matched something in an empty directory")
	}
}

func TestSiblingScannerRespectsCustomMasks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "art.bmp"), "bmp-bytes")
	trackPath := filepath.Join(dir, "01.flac")
	writeFile(t, trackPath, "audio-bytes")

	s := newSiblingScanner("*.bmp", "", nil)
	path, ok, err := s.probe(context.Background(), trackPath)
	if err != nil {
		t.Fatalf("probe() error: %v", err)
	}
	if !ok || path != filepath.Join(dir, "art.bmp") {
		t.Fatalf("probe() = (%q, %v), want the custom-masked file", path, ok)
	}
}

func TestSiblingScannerCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newSiblingScanner("", "", nil)
	_, _, err := s.probe(ctx, "/music/a.flac")
	if !isCancelled(err) {
		t.Fatalf("probe() with a cancelled context should return a cancellation error, got %v", err)
	}
}

func TestMatchMasksTriesMasksInOrder(t *testing.T) {
	names := []string{"cover.png", "folder.jpg"}
	name, ok := matchMasks(names, []string{"folder.*", "cover.*"})
	if !ok || name != "folder.jpg" {
		t.Fatalf("matchMasks() = (%q, %v), want folder.jpg to win by mask order", name, ok)
	}
}
