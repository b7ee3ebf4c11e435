// Package artwork implements the artwork-resolver subsystem of
// medialib: embedded-tag probes, a sibling-file scanner, remote cover
// lookups, a disk cover cache, an in-memory LRU, query squashing and
// the orchestrator that drives them all together.
package artwork

import (
	"sync/atomic"

	l "github.com/sirupsen/logrus"

	"github.com/oakmoth/medialib/internal/format"
	"github.com/oakmoth/medialib/internal/playlistitem"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "artwork"})

// SizeClass is the requested cover size class.
type SizeClass int

const (
	SizeThumbnail SizeClass = iota
	SizeFull
)

// Flags are per-query probe-selection bits.
type Flags uint32

const (
	// FlagNoRemote disables the remote-probe stage for this query even
	// if remote probes are enabled globally.
	FlagNoRemote Flags = 1 << iota
	// FlagNoEmbedded disables the embedded-tag probe stage.
	FlagNoEmbedded
)

// Query is a pending cover request.
type Query struct {
	Track *playlistitem.Item
	Type  SizeClass
	Flags Flags
}

// fingerprintFmt renders the squash fingerprint used when track handle
// and URI both differ but the track is plausibly the same.
var fingerprintFmt = format.MustCompile("%tracknumber% - %title% - %artist% - %album%")

// fingerprint returns the squash fingerprint for q, and whether it is
// defined (all four fields must be non-empty).
func (q *Query) fingerprint() (string, bool) {
	if q.Track == nil {
		return "", false
	}
	for _, f := range []string{"tracknumber", "title", "artist", "album"} {
		if v, ok := q.Track.Field(f); !ok || v == "" {
			return "", false
		}
	}
	return fingerprintFmt.Eval(q.Track), true
}

// equivalent implements the squashing equivalence relation: same type
// and flags, and either identical track handle, identical track URI,
// or identical non-empty fingerprint.
func (q *Query) equivalent(o *Query) bool {
	if q.Type != o.Type || q.Flags != o.Flags {
		return false
	}
	if q.Track == o.Track {
		return true
	}
	if q.Track != nil && o.Track != nil && q.Track.URI != "" && q.Track.URI == o.Track.URI {
		return true
	}
	fp1, ok1 := q.fingerprint()
	fp2, ok2 := o.fingerprint()
	return ok1 && ok2 && fp1 == fp2
}

// CoverInfo is the unit of artwork identity and result.
// Exactly one of ImageFilename/Blob is set when CoverFound is true.
// CoverInfo is reference counted: the orchestrator creates it with one
// reference, the LRU and every broadcast callback each hold one, and it
// is only eligible for reuse/discard once refs drops to zero.
type CoverInfo struct {
	FilePath string // track URI, primary cache key
	Album    string
	Artist   string
	Title    string

	ImageFilename string // absolute path, set when cached on disk
	Blob          []byte // in-memory image bytes, set when disableCache
	BlobOffset    int64
	BlobSize      int64

	CoverFound bool
	Timestamp  int64 // LRU recency counter, see lru.go

	refs int32
}

// NewCoverInfo creates a CoverInfo with one reference already held.
func NewCoverInfo(filePath, artist, album, title string) *CoverInfo {
	return &CoverInfo{
		FilePath: filePath,
		Artist:   artist,
		Album:    album,
		Title:    title,
		refs:     1,
	}
}

// Retain increments the reference count and returns ci for chaining.
func (ci *CoverInfo) Retain() *CoverInfo {
	atomic.AddInt32(&ci.refs, 1)
	return ci
}

// Release decrements the reference count. CoverInfo holds no unmanaged
// resources itself (the disk file and blob are owned by the OS/GC
// respectively), so reaching zero is purely informational/testable.
func (ci *CoverInfo) Release() {
	atomic.AddInt32(&ci.refs, -1)
}

// RefCount returns the current reference count, for tests.
func (ci *CoverInfo) RefCount() int32 {
	return atomic.LoadInt32(&ci.refs)
}

// notFound is the shared "no cover" sentinel passed to callbacks on
// cancellation. A query whose probes all fail is answered with a
// CoverInfo whose CoverFound is false.
var notFound *CoverInfo = nil

// EventKind enumerates the notifications a Resolver can deliver to
// its listeners.
type EventKind int

const (
	// SettingsDidChange is fired after Reset().
	SettingsDidChange EventKind = iota
)

// Event is delivered to listeners registered via AddListener.
type Event struct {
	Kind  EventKind
	Track *playlistitem.Item
}

// Listener receives Events along with the userdata supplied at
// registration time.
type Listener func(ev Event, userdata interface{})
