package library

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func waitForEvent(t *testing.T, ch <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-ch:
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %v", kind)
		}
	}
}

func TestSourceRefreshScansAndIndexesTracks(t *testing.T) {
	musicDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(musicDir, "air"), 0o755); err != nil {
		t.Fatalf("MkdirAll() error: %v", err)
	}
	trackPath := filepath.Join(musicDir, "air", "01.flac")
	if err := os.WriteFile(trackPath, []byte("fake-flac-bytes"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	configDir := t.TempDir()
	src := NewSource("test.", configDir, []string{musicDir}, true, "scan", time.Hour)

	events := make(chan Event, 16)
	if _, ok := src.AddListener(func(ev Event, _ interface{}) { events <- ev }, nil); !ok {
		t.Fatalf("AddListener() returned ok=false")
	}

	src.Refresh()
	waitForEvent(t, events, ContentDidChange, 5*time.Second)
	src.Close()

	if got := src.ScannerState(); got != StateIdle {
		t.Fatalf("ScannerState() = %v, want Idle", got)
	}

	pl := src.CanonicalPlaylist()
	if pl.Len() != 1 {
		t.Fatalf("CanonicalPlaylist().Len() = %d, want 1", pl.Len())
	}
	if pl.At(0).URI != trackPath {
		t.Fatalf("URI = %q, want %q", pl.At(0).URI, trackPath)
	}

	tree := src.CreateItemTree(SelectorFolders, nil)
	if tree.NumChildren == 0 {
		t.Fatalf("CreateItemTree(Folders) produced an empty tree after a scan")
	}
}

func TestSourceRefreshPersistsAndReloads(t *testing.T) {
	musicDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(musicDir, "a.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	configDir := t.TempDir()
	src := NewSource("test.", configDir, []string{musicDir}, true, "scan", time.Hour)
	events := make(chan Event, 16)
	src.AddListener(func(ev Event, _ interface{}) { events <- ev }, nil)

	src.Refresh()
	waitForEvent(t, events, ContentDidChange, 5*time.Second)
	src.Close()

	pl, err := LoadPlaylist(configDir)
	if err != nil {
		t.Fatalf("LoadPlaylist() error: %v", err)
	}
	if pl.Len() != 1 {
		t.Fatalf("persisted playlist Len() = %d, want 1", pl.Len())
	}
}

func TestSourceFolderMutationFiresEvent(t *testing.T) {
	src := NewSource("test.", t.TempDir(), nil, false, "scan", time.Hour)
	events := make(chan Event, 16)
	src.AddListener(func(ev Event, _ interface{}) { events <- ev }, nil)

	src.AppendFolder("/music/a")
	waitForEvent(t, events, FoldersDidChange, time.Second)
	if src.FolderCount() != 1 {
		t.Fatalf("FolderCount() = %d, want 1", src.FolderCount())
	}

	if err := src.InsertFolderAt(0, "/music/b"); err != nil {
		t.Fatalf("InsertFolderAt() error: %v", err)
	}
	waitForEvent(t, events, FoldersDidChange, time.Second)
	if p, _ := src.FolderAtIndex(0); p != "/music/b" {
		t.Fatalf("FolderAtIndex(0) = %q, want /music/b", p)
	}

	if err := src.RemoveFolderAt(5); err == nil {
		t.Fatalf("RemoveFolderAt() with an out-of-range index should error")
	}

	if err := src.RemoveFolderAt(0); err != nil {
		t.Fatalf("RemoveFolderAt() error: %v", err)
	}
	waitForEvent(t, events, FoldersDidChange, time.Second)
	if src.FolderCount() != 1 {
		t.Fatalf("FolderCount() = %d, want 1 after remove", src.FolderCount())
	}
}

func TestSourceListenerMaxBound(t *testing.T) {
	src := NewSource("test.", t.TempDir(), nil, false, "scan", time.Hour)
	for i := 0; i < listenerMax; i++ {
		if _, ok := src.AddListener(func(Event, interface{}) {}, nil); !ok {
			t.Fatalf("AddListener() #%d failed before hitting listenerMax", i)
		}
	}
	if _, ok := src.AddListener(func(Event, interface{}) {}, nil); ok {
		t.Fatalf("AddListener() beyond listenerMax should fail")
	}
}

func TestSourceRemoveListenerStopsDelivery(t *testing.T) {
	src := NewSource("test.", t.TempDir(), nil, false, "scan", time.Hour)
	called := false
	id, _ := src.AddListener(func(Event, interface{}) { called = true }, nil)
	src.RemoveListener(id)

	src.AppendFolder("/music/a")
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Fatalf("listener fired after RemoveListener()")
	}
}

func TestSourceSetEnabledForcesRefresh(t *testing.T) {
	src := NewSource("test.", t.TempDir(), nil, false, "scan", time.Hour)
	events := make(chan Event, 16)
	src.AddListener(func(ev Event, _ interface{}) { events <- ev }, nil)

	src.SetEnabled(true)
	waitForEvent(t, events, EnabledDidChange, time.Second)
	waitForEvent(t, events, ContentDidChange, 5*time.Second)
	waitForEvent(t, events, StateDidChange, 5*time.Second) // only a refresh cycle fires state changes
	src.Close()

	if !src.GetEnabled() {
		t.Fatalf("GetEnabled() = false, want true")
	}
}
