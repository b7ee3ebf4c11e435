package library

import (
	"sort"
	"strconv"

	"golang.org/x/text/cases"

	"github.com/oakmoth/medialib/internal/format"
	"github.com/oakmoth/medialib/internal/playlistitem"
)

// titleFold provides the case-insensitive tie-break used when sorting
// track leaves, using Unicode case folding rather than strings.ToLower,
// which mishandles non-ASCII titles.
var titleFold = cases.Fold()

// Selector is one of the fixed set of display axes: Albums, Artists,
// Genres, Folders.
type Selector int

const (
	SelectorAlbums Selector = iota
	SelectorArtists
	SelectorGenres
	SelectorFolders
)

// SelectorName returns the display name of sel.
func SelectorName(sel Selector) string {
	switch sel {
	case SelectorAlbums:
		return "Albums"
	case SelectorArtists:
		return "Artists"
	case SelectorGenres:
		return "Genres"
	case SelectorFolders:
		return "Folders"
	default:
		return ""
	}
}

// Selectors lists every display axis, in their canonical order.
var Selectors = []Selector{SelectorAlbums, SelectorArtists, SelectorGenres, SelectorFolders}

// Item is an on-demand view node for UI consumption.
type Item struct {
	Text        string
	Track       *playlistitem.Item
	Children    []*Item
	NumChildren int
	Next        *Item // sibling link, for iterating Children without an index
}

// Filter narrows which tracks a tree build considers, e.g. a search
// string typed into the UI. A nil Filter accepts everything.
type Filter func(track *playlistitem.Item) bool

// albumSubnodeFmt and trackLeafFmt are the label formulas for album
// subnodes and track leaves on the Artists/Genres axes.
var (
	albumSubnodeFmt = format.MustCompile("[%album artist% - ]%album%")
	trackLeafFmt    = format.MustCompile("[%tracknumber%. ]%title%")
)

// CreateItemTree materializes a filtered, sorted display tree for sel
// from ix, reading it under the caller's sync context (ix must not be
// mutated concurrently). The Folders axis is the exception: it mirrors
// the folder tree without applying filter, and its leaves carry no
// Track and keep index order.
func CreateItemTree(ix *Index, sel Selector, filter Filter) *Item {
	switch sel {
	case SelectorFolders:
		return buildFolderTree(ix.folders.root)
	case SelectorArtists:
		return buildBucketTree(ix.artists, filter)
	case SelectorGenres:
		return buildBucketTree(ix.genres, filter)
	default:
		return buildAlbumsTree(ix.albums, filter)
	}
}

// buildAlbumsTree implements the Albums axis: one node per album
// collection entry, children are tracks sorted by disc/track number.
func buildAlbumsTree(albums *collection, filter Filter) *Item {
	root := &Item{Text: "/"}
	for _, b := range albums.order {
		pairs := applyFilter(b.members, filter)
		if len(pairs) == 0 {
			continue
		}
		node := &Item{Text: b.value, Children: trackLeaves(pairs)}
		node.NumChildren = len(node.Children)
		root.Children = append(root.Children, node)
	}
	linkSiblings(root.Children)
	root.NumChildren = len(root.Children)
	return root
}

// buildBucketTree implements the Artists/Genres axes: one node per
// bucket, with one album subnode per distinct album within it.
func buildBucketTree(c *collection, filter Filter) *Item {
	root := &Item{Text: "/"}
	for _, b := range c.order {
		pairs := applyFilter(b.members, filter)
		if len(pairs) == 0 {
			continue
		}
		node := &Item{Text: b.value, Children: albumSubnodes(pairs)}
		node.NumChildren = len(node.Children)
		root.Children = append(root.Children, node)
	}
	linkSiblings(root.Children)
	root.NumChildren = len(root.Children)
	return root
}

// albumSubnodes groups pairs by their album entry and emits one
// labeled subnode per album, each holding its sorted track leaves.
func albumSubnodes(pairs []entryPair) []*Item {
	type group struct {
		label string
		pairs []entryPair
	}
	order := []string{}
	groups := map[string]*group{}

	for _, p := range pairs {
		key := p.entry.Album.String()
		g, ok := groups[key]
		if !ok {
			g = &group{label: albumSubnodeFmt.Eval(p.track)}
			groups[key] = g
			order = append(order, key)
		}
		g.pairs = append(g.pairs, p)
	}

	items := make([]*Item, 0, len(order))
	for _, key := range order {
		g := groups[key]
		node := &Item{Text: g.label, Children: trackLeaves(g.pairs)}
		node.NumChildren = len(node.Children)
		items = append(items, node)
	}
	linkSiblings(items)
	return items
}

func buildFolderTree(n *folderNode) *Item {
	text := "/"
	if n.segment != nil {
		text = n.segment.String()
	}
	item := &Item{Text: text}

	// Subfolders sort before tracks; folder nodes with no
	// descendants are dropped.
	for _, child := range n.children {
		childItem := buildFolderTree(child)
		if childItem.NumChildren > 0 {
			item.Children = append(item.Children, childItem)
		}
	}
	for _, e := range n.tracks {
		item.Children = append(item.Children, &Item{Text: e.Title.String()})
	}

	linkSiblings(item.Children)
	item.NumChildren = len(item.Children)
	return item
}

func applyFilter(pairs []entryPair, filter Filter) []entryPair {
	if filter == nil {
		return pairs
	}
	out := make([]entryPair, 0, len(pairs))
	for _, p := range pairs {
		if filter(p.track) {
			out = append(out, p)
		}
	}
	return out
}

// trackLeaves builds and sorts the leaf Items for one album/artist/genre
// bucket: (disc+1)*10000 + track_number ascending, ties broken by
// case-insensitive title.
func trackLeaves(pairs []entryPair) []*Item {
	idx := make([]int, len(pairs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		ka, kb := sortKey(pairs[ia].track), sortKey(pairs[ib].track)
		if ka != kb {
			return ka < kb
		}
		return titleFold.String(titleOf(pairs[ia].track)) < titleFold.String(titleOf(pairs[ib].track))
	})

	items := make([]*Item, len(pairs))
	for i, j := range idx {
		items[i] = &Item{Text: trackLeafFmt.Eval(pairs[j].track), Track: pairs[j].track}
	}
	linkSiblings(items)
	return items
}

func sortKey(track *playlistitem.Item) int {
	disc := 0
	if v, ok := track.Get("discnumber"); ok {
		disc, _ = strconv.Atoi(v)
	}
	trackNo := 0
	if v, ok := track.Get("tracknumber"); ok {
		trackNo, _ = strconv.Atoi(v)
	}
	return (disc+1)*10000 + trackNo
}

func titleOf(track *playlistitem.Item) string {
	if v, ok := track.Field("title"); ok && v != "" {
		return v
	}
	return track.URI
}

func linkSiblings(items []*Item) {
	for i := 0; i+1 < len(items); i++ {
		items[i].Next = items[i+1]
	}
}
