package library

import (
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/oakmoth/medialib/internal/playlistitem"
)

// playlistFileName is the canonical playlist's on-disk name under the
// player's config directory.
const playlistFileName = "medialib.dbpl"

// persistedItem is the gob-serializable shape of one playlistitem.Item.
// gob is the idiomatic stdlib choice for a private binary format with
// no external readers (see DESIGN.md: no example repo ships a binary
// playlist codec to ground this on instead).
type persistedItem struct {
	URI  string
	Meta map[string]string
}

type persistedPlaylist struct {
	Items []persistedItem
	Meta  map[string]string
}

// SavePlaylist writes pl to <configDir>/medialib.dbpl. Writes are
// skipped when fileOpsDisabled is true (the source's "file operations
// disabled" flag, for testing/headless use).
func SavePlaylist(configDir string, pl *playlistitem.Playlist, fileOpsDisabled bool) error {
	if fileOpsDisabled {
		return nil
	}

	p := persistedPlaylist{Meta: map[string]string{}}
	for i := 0; i < pl.Len(); i++ {
		it := pl.At(i)
		p.Items = append(p.Items, persistedItem{URI: it.URI, Meta: it.Meta})
	}

	path := filepath.Join(configDir, playlistFileName)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "cannot create playlist temp file '%s'", tmp)
	}
	if err := gob.NewEncoder(f).Encode(&p); err != nil {
		f.Close()
		return errors.Wrapf(err, "cannot encode playlist to '%s'", tmp)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "cannot close playlist temp file '%s'", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrapf(err, "cannot finalize playlist file '%s'", path)
	}
	return nil
}

// LoadPlaylist reads the canonical playlist from <configDir>/medialib.dbpl.
// A missing file is not an error: it yields an empty playlist, matching
// first-run behavior.
func LoadPlaylist(configDir string) (*playlistitem.Playlist, error) {
	path := filepath.Join(configDir, playlistFileName)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return playlistitem.NewPlaylist(), nil
		}
		return nil, errors.Wrapf(err, "cannot open playlist file '%s'", path)
	}
	defer f.Close()

	var p persistedPlaylist
	if err := gob.NewDecoder(f).Decode(&p); err != nil {
		return nil, errors.Wrapf(err, "cannot decode playlist file '%s'", path)
	}

	pl := playlistitem.NewPlaylist()
	for _, it := range p.Items {
		pl.Append(playlistitem.New(it.URI, it.Meta))
	}
	for k, v := range p.Meta {
		pl.SetMeta(k, v)
	}
	return pl, nil
}
