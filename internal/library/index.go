// Package library implements the media library indexer subsystem of
// medialib: the library index, incremental scan filter, tree builder,
// source lifecycle and persistence.
package library

import (
	"path"
	"strconv"
	"strings"

	l "github.com/sirupsen/logrus"

	"github.com/oakmoth/medialib/internal/format"
	"github.com/oakmoth/medialib/internal/hashkey"
	"github.com/oakmoth/medialib/internal/intern"
	"github.com/oakmoth/medialib/internal/playlistitem"
)

var log *l.Entry = l.WithFields(l.Fields{"srv": "library"})

// unknownSentinel is the "<?>" bucket every collection must contain
// even when no track needed it.
const unknownSentinel = "<?>"

// Entry is one track in the index.
type Entry struct {
	File     *intern.Handle // track URI
	Title    *intern.Handle
	Subtrack int // track-within-container number, -1 if whole-file

	Artist *intern.Handle // interned artist string
	Album  *intern.Handle // interned composite "artist=...;album=..." key
	Genre  *intern.Handle // interned genre string
	Folder *intern.Handle // interned folder-tree path

	ScanTime int64 // file mtime recorded by the scan that last saw the track

	next *Entry // singly-linked list, iteration order = insertion order
}

// albumKeyFmt computes the composite album key used to bucket tracks
// that belong to the same album.
var albumKeyFmt = format.MustCompile("artist=$if2(%album artist%,Unknown Artist);album=$if2(%album%,Unknown Album)")

// entryPair is one (entry, track-within-entry) member of a collection
// bucket.
type entryPair struct {
	entry *Entry
	track *playlistitem.Item
}

// collectionBucket holds the ordered members for one distinct string
// value within a collection.
type collectionBucket struct {
	value   string
	members []entryPair
}

// collection is a deduplicated string set (hash[4096] + insertion-order
// list) where each distinct string holds an ordered list of (entry,
// track) pairs.
const collectionBuckets = 4096

type collection struct {
	table [collectionBuckets][]*collectionBucket
	order []*collectionBucket
}

func newCollection() *collection {
	return &collection{}
}

// bucket returns the bucket for value, creating it (and interning an
// order position) if it does not exist yet.
func (c *collection) bucket(interner *intern.Table, value string) *collectionBucket {
	idx := int(hashkey.Of(value) % collectionBuckets)
	for _, b := range c.table[idx] {
		if b.value == value {
			return b
		}
	}
	b := &collectionBucket{value: value}
	c.table[idx] = append(c.table[idx], b)
	c.order = append(c.order, b)
	return b
}

func (c *collection) add(interner *intern.Table, value string, entry *Entry, track *playlistitem.Item) {
	b := c.bucket(interner, value)
	b.members = append(b.members, entryPair{entry: entry, track: track})
}

// lookup returns the bucket for value without creating one.
func (c *collection) lookup(value string) (*collectionBucket, bool) {
	idx := int(hashkey.Of(value) % collectionBuckets)
	for _, b := range c.table[idx] {
		if b.value == value {
			return b, true
		}
	}
	return nil, false
}

// ensureSentinel guarantees the "<?>" bucket exists even if empty.
func (c *collection) ensureSentinel(interner *intern.Table) {
	c.bucket(interner, unknownSentinel)
}

func (c *collection) len() int { return len(c.order) }

// folderNode is one node of the folder tree.
type folderNode struct {
	segment  *intern.Handle
	path     string // full relative path, for lookup
	children []*folderNode
	tracks   []*Entry
	parent   *folderNode
}

// folderTree is a rooted multi-way tree over relative folder paths.
type folderTree struct {
	root  *folderNode
	byKey map[string]*folderNode
}

func newFolderTree() *folderTree {
	root := &folderNode{path: ""}
	return &folderTree{root: root, byKey: map[string]*folderNode{"": root}}
}

// nodeFor walks/creates the chain of folderNodes for relDir (a
// slash-separated relative directory, "" for the monitored root).
func (ft *folderTree) nodeFor(interner *intern.Table, relDir string) *folderNode {
	relDir = strings.Trim(relDir, "/")
	if relDir == "" {
		return ft.root
	}
	if n, ok := ft.byKey[relDir]; ok {
		return n
	}

	parentPath := ""
	if i := strings.LastIndex(relDir, "/"); i >= 0 {
		parentPath = relDir[:i]
	}
	parent := ft.nodeFor(interner, parentPath)

	segment := path.Base(relDir)
	n := &folderNode{
		segment: interner.Intern(segment),
		path:    relDir,
		parent:  parent,
	}
	parent.children = append(parent.children, n)
	ft.byKey[relDir] = n
	return n
}

// Index is the in-memory structure built by a library scan: four
// collections plus the folder tree plus the filename hash.
type Index struct {
	interner *intern.Table

	artists *collection
	albums  *collection
	genres  *collection
	uris    *collection

	folders *folderTree

	byFile map[string]*Entry // filename hash keyed by URI string
	head   *Entry            // singly-linked entry list head (insertion order)
	tail   *Entry
}

// NewIndex creates an empty Index bound to interner.
func NewIndex(interner *intern.Table) *Index {
	return &Index{
		interner: interner,
		artists:  newCollection(),
		albums:   newCollection(),
		genres:   newCollection(),
		uris:     newCollection(),
		folders:  newFolderTree(),
		byFile:   make(map[string]*Entry),
	}
}

// Len returns the number of entries in the filename hash.
func (ix *Index) Len() int { return len(ix.byFile) }

// Build walks pl once, computing the relative URI against
// monitoredRoots, interning and registering every track into the four
// collections and the folder tree. Tracks matching no monitored root
// are removed from pl.
func (ix *Index) Build(pl *playlistitem.Playlist, monitoredRoots []string) {
	kept := playlistitem.NewPlaylist()

	for i := 0; i < pl.Len(); i++ {
		track := pl.At(i)
		rel, ok := relativeURI(track.URI, monitoredRoots)
		if !ok {
			continue // matches no monitored root: dropped from the playlist
		}
		kept.Append(track)
		ix.index(track, rel)
	}

	*pl = *kept

	ix.artists.ensureSentinel(ix.interner)
	ix.albums.ensureSentinel(ix.interner)
	ix.genres.ensureSentinel(ix.interner)
}

// index registers one track (already known to fall under a monitored
// root, at relative path rel) into the index.
func (ix *Index) index(track *playlistitem.Item, rel string) {
	artist, _ := track.Field("artist")
	genre, _ := track.Field("genre")
	if artist == "" {
		artist = unknownSentinel
	}
	if genre == "" {
		genre = unknownSentinel
	}
	albumKey := albumKeyFmt.Eval(track)

	e := &Entry{
		File:     ix.interner.Intern(track.URI),
		Title:    ix.interner.Intern(firstNonEmpty(fieldOrEmpty(track, "title"), track.URI)),
		Subtrack: subtrackOf(track),
		Artist:   ix.interner.Intern(artist),
		Album:    ix.interner.Intern(albumKey),
		Genre:    ix.interner.Intern(genre),
		Folder:   ix.interner.Intern(relDirOf(rel)),
		ScanTime: scanTimeOf(track),
	}

	if ix.tail == nil {
		ix.head, ix.tail = e, e
	} else {
		ix.tail.next = e
		ix.tail = e
	}
	ix.byFile[track.URI] = e

	ix.artists.add(ix.interner, artist, e, track)
	ix.albums.add(ix.interner, albumKey, e, track)
	ix.genres.add(ix.interner, genre, e, track)
	ix.uris.add(ix.interner, track.URI, e, track)

	node := ix.folders.nodeFor(ix.interner, relDirOf(rel))
	node.tracks = append(node.tracks, e)
}

// EntryByURI looks an entry up by its track URI. When uri has more
// than one entry (cue-sheet subtracks sharing a filename), this
// returns the last one indexed; use EntriesByURI to see all of them.
func (ix *Index) EntryByURI(uri string) (*Entry, bool) {
	e, ok := ix.byFile[uri]
	return e, ok
}

// EntriesByURI returns every entry registered under uri, in insertion
// order. A filename can carry more than one entry when it holds a
// cue sheet or other multi-subtrack container: every subtrack shares
// the container's URI, so callers that need to reason about "is this
// file still valid" must consider all of them, not just one.
func (ix *Index) EntriesByURI(uri string) []*Entry {
	b, ok := ix.uris.lookup(uri)
	if !ok {
		return nil
	}
	out := make([]*Entry, len(b.members))
	for i, m := range b.members {
		out[i] = m.entry
	}
	return out
}

func fieldOrEmpty(track *playlistitem.Item, name string) string {
	v, _ := track.Field(name)
	return v
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func subtrackOf(track *playlistitem.Item) int {
	if v, ok := track.Get("subtrack"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return -1
}

// scanTimeOf reads the "scan_time" meta key (the file mtime a scan
// stamps onto every track it discovers, see source.go's scanRoot),
// defaulting to 0 ("never scanned") so J's incremental filter always
// re-includes entries restored without one.
func scanTimeOf(track *playlistitem.Item) int64 {
	if v, ok := track.Get("scan_time"); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// relDirOf returns the directory portion of rel, "/" when rel has no
// directory component.
func relDirOf(rel string) string {
	dir := path.Dir(rel)
	if dir == "." {
		return "/"
	}
	return dir
}

// relativeURI strips the longest-matching monitored-path prefix from
// uri, reporting ok=false if no root matches.
func relativeURI(uri string, monitoredRoots []string) (string, bool) {
	best := ""
	bestLen := -1
	for _, root := range monitoredRoots {
		root = strings.TrimRight(root, "/")
		if uri == root || strings.HasPrefix(uri, root+"/") {
			if len(root) > bestLen {
				bestLen = len(root)
				best = root
			}
		}
	}
	if bestLen < 0 {
		return "", false
	}
	return strings.TrimPrefix(strings.TrimPrefix(uri, best), "/"), true
}
