// Package playlistitem implements a minimal playlist container: ordered
// items plus metadata key/value lookups. It is the track-handle type
// that artwork.Query.Track points at; library.Entry.File interns its URI.
package playlistitem

import "github.com/oakmoth/medialib/internal/format"

// Item is one playlist entry: a track's URI plus the metadata the
// formatter and the library indexer need.
type Item struct {
	URI  string
	Meta map[string]string
}

// New creates an Item from a URI and a metadata map. A nil map is
// replaced with an empty one.
func New(uri string, meta map[string]string) *Item {
	if meta == nil {
		meta = map[string]string{}
	}
	return &Item{URI: uri, Meta: meta}
}

// Field implements format.FieldSource. Field names are matched
// case-sensitively against keys stored in Meta, with "uri"/"filepath"
// as synonyms for the item's URI. Callers should store and look up
// metadata keys in lower case.
func (it *Item) Field(name string) (string, bool) {
	switch name {
	case "uri", "filepath":
		return it.URI, it.URI != ""
	}
	v, ok := it.Meta[name]
	return v, ok
}

var _ format.FieldSource = (*Item)(nil)

// Get returns a metadata value by key.
func (it *Item) Get(key string) (string, bool) {
	v, ok := it.Meta[key]
	return v, ok
}

// Set stores a metadata value.
func (it *Item) Set(key, value string) {
	it.Meta[key] = value
}

// Playlist is an ordered, appendable sequence of Items.
type Playlist struct {
	items []*Item
	meta  map[string]string
}

// NewPlaylist creates an empty playlist.
func NewPlaylist() *Playlist {
	return &Playlist{meta: map[string]string{}}
}

// Append adds it to the end of the playlist.
func (p *Playlist) Append(it *Item) { p.items = append(p.items, it) }

// Len returns the number of items.
func (p *Playlist) Len() int { return len(p.items) }

// At returns the item at index i.
func (p *Playlist) At(i int) *Item { return p.items[i] }

// Items returns the underlying slice; callers must not retain it past a
// mutation of the playlist.
func (p *Playlist) Items() []*Item { return p.items }

// Meta returns a playlist-level metadata value (e.g.
// cli_add_playlist_name).
func (p *Playlist) Meta(key string) (string, bool) {
	v, ok := p.meta[key]
	return v, ok
}

// SetMeta stores a playlist-level metadata value.
func (p *Playlist) SetMeta(key, value string) { p.meta[key] = value }
