package library

import (
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rjeczalik/notify"

	"github.com/oakmoth/medialib/internal/intern"
	"github.com/oakmoth/medialib/internal/playlistitem"
)

func unixString(t int64) string { return strconv.FormatInt(t, 10) }

// audioExtensions lists the file extensions a scan treats as tracks.
// Extensions are also registered with mime.AddExtensionType below so
// callers resolving content types through mime.TypeByExtension see a
// sensible audio/* answer even on systems whose mime.types is sparse.
var audioExtensions = map[string]bool{
	".mp3": true, ".flac": true, ".ogg": true, ".oga": true, ".m4a": true,
	".aac": true, ".wav": true, ".wma": true, ".ape": true, ".ay": true,
}

func init() {
	for ext := range audioExtensions {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, "audio/x-"+strings.TrimPrefix(ext, "."))
		}
	}
}

func isAudioFile(p string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(p))]
}

func isM3UFile(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	return ext == ".m3u" || ext == ".m3u8"
}

// State is one phase of a source's lifecycle state machine:
// Idle -> Loading -> Indexing -> Scanning -> Indexing -> Saving -> Idle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateIndexing
	StateScanning
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "Loading"
	case StateIndexing:
		return "Indexing"
	case StateScanning:
		return "Scanning"
	case StateSaving:
		return "Saving"
	default:
		return "Idle"
	}
}

// EventKind enumerates the notifications a source can deliver to its
// listeners.
type EventKind int

const (
	StateDidChange EventKind = iota
	ContentDidChange
	EnabledDidChange
	FoldersDidChange
)

// Event is delivered to listeners registered via AddListener.
type Event struct {
	Kind  EventKind
	State State
}

// Listener receives Events along with the userdata supplied at
// registration time.
type Listener func(ev Event, userdata interface{})

type registeredListener struct {
	id       int64
	fn       Listener
	userdata interface{}
}

// listenerMax bounds how many listeners a single source will register.
const listenerMax = 10

// updateMode selects how a Source learns about filesystem changes
// between scans: filesystem notifications, or a plain periodic scan.
type updateMode int

const (
	modeNotify updateMode = iota
	modeScan
)

// Source is one configured library root set plus its canonical
// playlist, index and background update loop.
type Source struct {
	confPrefix string // e.g. "medialib.music." for persisted config keys
	configDir  string

	mu              sync.Mutex
	paths           []string
	enabled         bool
	mode            updateMode
	updateInterval  time.Duration
	fileOpsDisabled bool

	state    State
	canonical *playlistitem.Playlist
	index    *Index
	interner *intern.Table

	generation int64 // atomic
	cancelAt   int64 // atomic
	terminate  int32 // atomic bool, set by Close/disable mid-scan

	listenersMu  sync.Mutex
	listeners    []registeredListener
	nextListener int64

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewSource creates a Source over the given monitored paths, persisting
// its canonical playlist under configDir (persist.go currently uses a
// single fixed file name per configDir; multiple sources should be
// given distinct configDir subdirectories).
func NewSource(confPrefix, configDir string, paths []string, enabled bool, updateModeName string, updateInterval time.Duration) *Source {
	m := modeNotify
	if updateModeName == "scan" {
		m = modeScan
	}
	return &Source{
		confPrefix:     confPrefix,
		configDir:      configDir,
		paths:          append([]string(nil), paths...),
		enabled:        enabled,
		mode:           m,
		updateInterval: updateInterval,
		canonical:      playlistitem.NewPlaylist(),
		interner:       intern.New(),
		quit:           make(chan struct{}),
	}
}

// Start launches the background update loop (notify or scan mode) and
// performs an initial refresh.
func (s *Source) Start() {
	s.wg.Add(1)
	go s.run()
	s.Refresh()
}

// Close stops the background loop. A scan in progress is asked to
// terminate cooperatively at its next per-file checkpoint.
func (s *Source) Close() {
	atomic.StoreInt32(&s.terminate, 1)
	close(s.quit)
	s.wg.Wait()
}

// ScannerState returns the current lifecycle phase.
func (s *Source) ScannerState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// EnableFileOperations toggles whether Loading/Saving touch disk, for
// exercising the lifecycle machine without a filesystem.
func (s *Source) EnableFileOperations(enabled bool) {
	s.mu.Lock()
	s.fileOpsDisabled = !enabled
	s.mu.Unlock()
}

// GetEnabled / SetEnabled report and change whether the source is
// active. Disabling a source forces any in-progress scan to terminate
// at its next checkpoint, and fires EnabledDidChange then
// ContentDidChange.
func (s *Source) GetEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Source) SetEnabled(enabled bool) {
	s.mu.Lock()
	changed := s.enabled != enabled
	s.enabled = enabled
	if !enabled {
		atomic.StoreInt32(&s.terminate, 1)
	}
	s.mu.Unlock()

	if !changed {
		return
	}
	s.notify(Event{Kind: EnabledDidChange})
	s.notify(Event{Kind: ContentDidChange})
	if enabled {
		s.Refresh()
	}
}

// GetFolders / SetFolders / AppendFolder / InsertFolderAt /
// RemoveFolderAt / FolderCount / FolderAtIndex are the folder-management
// API. Every mutator fires FoldersDidChange; persisting the updated
// path list to the configuration file is the caller's responsibility.
func (s *Source) GetFolders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.paths...)
}

func (s *Source) SetFolders(paths []string) {
	s.mu.Lock()
	s.paths = append([]string(nil), paths...)
	s.mu.Unlock()
	s.notify(Event{Kind: FoldersDidChange})
}

func (s *Source) AppendFolder(path string) {
	s.mu.Lock()
	s.paths = append(s.paths, path)
	s.mu.Unlock()
	s.notify(Event{Kind: FoldersDidChange})
}

func (s *Source) InsertFolderAt(index int, path string) error {
	s.mu.Lock()
	if index < 0 || index > len(s.paths) {
		s.mu.Unlock()
		return errors.Errorf("folder index %d out of range", index)
	}
	s.paths = append(s.paths, "")
	copy(s.paths[index+1:], s.paths[index:])
	s.paths[index] = path
	s.mu.Unlock()
	s.notify(Event{Kind: FoldersDidChange})
	return nil
}

func (s *Source) RemoveFolderAt(index int) error {
	s.mu.Lock()
	if index < 0 || index >= len(s.paths) {
		s.mu.Unlock()
		return errors.Errorf("folder index %d out of range", index)
	}
	s.paths = append(s.paths[:index], s.paths[index+1:]...)
	s.mu.Unlock()
	s.notify(Event{Kind: FoldersDidChange})
	return nil
}

func (s *Source) FolderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paths)
}

func (s *Source) FolderAtIndex(index int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.paths) {
		return "", false
	}
	return s.paths[index], true
}

// AddListener registers fn for source events, up to listenerMax
// registrations.
func (s *Source) AddListener(fn Listener, userdata interface{}) (id int64, ok bool) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	if len(s.listeners) >= listenerMax {
		return 0, false
	}
	s.nextListener++
	id = s.nextListener
	s.listeners = append(s.listeners, registeredListener{id: id, fn: fn, userdata: userdata})
	return id, true
}

// RemoveListener unregisters the listener previously returned by AddListener.
func (s *Source) RemoveListener(id int64) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	for i, l := range s.listeners {
		if l.id == id {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

func (s *Source) notify(ev Event) {
	s.listenersMu.Lock()
	ls := make([]registeredListener, len(s.listeners))
	copy(ls, s.listeners)
	s.listenersMu.Unlock()
	for _, l := range ls {
		l.fn(ev, l.userdata)
	}
}

// CanonicalPlaylist returns the source's current canonical playlist.
// Callers must not mutate it directly; use the folder
// API plus Refresh() to drive changes.
func (s *Source) CanonicalPlaylist() *playlistitem.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canonical
}

// CreateItemTree builds a display tree over this source's current
// index. The caller owns the returned
// tree; there is nothing to free explicitly since medialib uses GC.
func (s *Source) CreateItemTree(sel Selector, filter Filter) *Item {
	s.mu.Lock()
	ix := s.index
	s.mu.Unlock()
	if ix == nil {
		return &Item{Text: "/"}
	}
	return CreateItemTree(ix, sel, filter)
}

// Refresh bumps cancelAt to the current generation (aborting any
// in-flight cycle at its next checkpoint), starts a new generation,
// and launches a fresh cycle.
func (s *Source) Refresh() {
	gen := atomic.AddInt64(&s.generation, 1)
	atomic.StoreInt64(&s.cancelAt, gen-1)
	atomic.StoreInt32(&s.terminate, 0)
	s.wg.Add(1)
	go s.runCycle(gen)
}

func (s *Source) cancelled(gen int64) bool {
	return gen <= atomic.LoadInt64(&s.cancelAt) || atomic.LoadInt32(&s.terminate) != 0
}

func (s *Source) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.notify(Event{Kind: StateDidChange, State: st})
}

// runCycle drives one full Loading->Indexing->Scanning->Indexing->Saving
// pass, checking the cancellation barrier at three checkpoints: before
// Scanning starts, once per file during Scanning, and before Saving.
func (s *Source) runCycle(gen int64) {
	defer s.wg.Done()

	s.setState(StateLoading)
	enabled := s.GetEnabled()
	fileOpsDisabled := s.fileOpsDisabledSnapshot()

	var pl *playlistitem.Playlist
	var err error
	if enabled && !fileOpsDisabled {
		pl, err = LoadPlaylist(s.configDir)
		if err != nil {
			log.WithError(err).Error("cannot load canonical playlist")
			pl = playlistitem.NewPlaylist()
		}
	} else {
		pl = playlistitem.NewPlaylist()
	}

	s.setState(StateIndexing)
	oldIndex := NewIndex(s.interner)
	oldIndex.Build(pl, s.GetFolders())
	if s.cancelled(gen) {
		return
	}

	s.setState(StateScanning)
	newPl := playlistitem.NewPlaylist()
	filter := newScanFilter(oldIndex, pl, newPl)
	for _, root := range s.GetFolders() {
		if s.cancelled(gen) {
			return
		}
		s.scanRoot(root, filter, gen)
	}
	if s.cancelled(gen) {
		return
	}

	s.setState(StateIndexing)
	newIndex := NewIndex(s.interner)
	newIndex.Build(newPl, s.GetFolders())

	s.mu.Lock()
	s.canonical = newPl
	s.index = newIndex
	s.mu.Unlock()

	if s.cancelled(gen) {
		return
	}

	s.setState(StateSaving)
	if enabled && !fileOpsDisabled {
		if err := SavePlaylist(s.configDir, newPl, false); err != nil {
			log.WithError(err).Error("cannot save canonical playlist")
		}
	}

	s.setState(StateIdle)
	s.notify(Event{Kind: ContentDidChange})
}

func (s *Source) fileOpsDisabledSnapshot() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fileOpsDisabled
}

// scanRoot walks one monitored root, feeding every audio file it finds
// through filter (m3u playlists are imported straight into the filter's
// new playlist) and cooperatively checking the termination barrier
// once per file.
func (s *Source) scanRoot(root string, filter *scanFilter, gen int64) {
	_ = filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if s.cancelled(gen) {
			return filepath.SkipDir
		}
		if err != nil {
			log.WithError(err).Warnf("cannot walk '%s'", p)
			return nil
		}
		if info.IsDir() {
			return nil
		}
		switch {
		case isM3UFile(p):
			if err := ImportM3U(p, filter.newPl); err != nil {
				log.WithError(err).Warnf("cannot import m3u playlist '%s'", p)
			}
		case isAudioFile(p):
			if filter.Decide(p, info.ModTime().Unix()) == ScanInclude {
				filter.newPl.Append(playlistitem.New(p, map[string]string{"scan_time": unixString(info.ModTime().Unix())}))
			}
		}
		return nil
	})
}

// watchRoots registers rjeczalik/notify watchers for every monitored
// root. Changes collapse into a single Refresh() call the next time
// the debounce ticker fires.
func (s *Source) watchRoots(changes chan notify.EventInfo) {
	for _, root := range s.GetFolders() {
		if err := notify.Watch(filepath.Join(root, "..."), changes, notify.All); err != nil {
			log.WithError(errors.Wrapf(err, "cannot watch '%s'", root)).Error("notify setup failed")
		}
	}
}

// run is the background update loop: dispatches to the configured
// update mode in a single goroutine per Source.
func (s *Source) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.updateInterval)
	defer ticker.Stop()

	var changes chan notify.EventInfo
	if s.mode == modeNotify {
		changes = make(chan notify.EventInfo, 16)
		s.watchRoots(changes)
		defer notify.Stop(changes)
	}

	pending := false
	for {
		select {
		case <-changes:
			pending = true
		case <-ticker.C:
			if s.mode == modeScan || pending {
				pending = false
				if s.GetEnabled() {
					s.Refresh()
				}
			}
		case <-s.quit:
			return
		}
	}
}
