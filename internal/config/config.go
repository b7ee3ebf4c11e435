// Package config loads and validates the medialib configuration: a
// JSON file read into a typed struct, plus a Validate pass that checks
// directories exist and settings are internally consistent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// ValueKey represents value keys used to thread configuration through a
// context.Context.
type ValueKey string

// KeyCfg is the context key under which the active Cfg is stored.
const KeyCfg ValueKey = "cfg"

// DefaultFetchConcurrency is applied when fetch_concurrency is omitted;
// the other constants record the fixed LRU (20), squash group (50) and
// listener (100) sizes.
const (
	DefaultFetchConcurrency = 4
	DefaultLRUCapacity      = 20
	DefaultSquashLimit      = 50
	DefaultMaxListeners     = 100
)

// Cfg stores the data from the medialib configuration file.
type Cfg struct {
	Artwork  ArtworkCfg `json:"artwork"`
	Library  LibraryCfg `json:"library"`
	CacheDir string     `json:"cache_dir"`
	ConfigDir string    `json:"config_dir"`
	LogDir   string     `json:"log_dir"`
	LogLevel string     `json:"log_level"`
}

// ArtworkCfg holds the "artwork.*" configuration keys.
type ArtworkCfg struct {
	DisableCache       bool          `json:"disable_cache"`
	SaveToMusicFolders  bool          `json:"save_to_music_folders"`
	EnableEmbedded      bool          `json:"enable_embedded"`
	EnableLocalFolder   bool          `json:"enable_localfolder"`
	EnableLastFM        bool          `json:"enable_lastfm"`
	EnableMusicBrainz   bool          `json:"enable_musicbrainz"`
	EnableAlbumArt      bool          `json:"enable_albumart"`
	EnableWoS           bool          `json:"enable_wos"`
	FileMask            string        `json:"filemask"`
	Folders             string        `json:"folders"`
	MissingArtwork      int           `json:"missing_artwork"` // 0,1,2
	NoCoverPath         string        `json:"nocover_path"`
	CacheResetTime      int64         `json:"cache_reset_time"`
	FetchConcurrency    int           `json:"fetch_concurrency"`
	RecheckAfter        time.Duration `json:"recheck_after"` // 0 = disabled
	LastFMAPIKey        string        `json:"lastfm_api_key"`
	MusicBrainzUA       string        `json:"musicbrainz_user_agent"`
}

// LibraryCfg holds the "medialib.<source>.*" configuration keys plus
// the CLI keys.
type LibraryCfg struct {
	Paths                    []string `json:"paths"`
	Enabled                  bool     `json:"enabled"`
	UpdateMode               string   `json:"update_mode"` // "notify" or "scan"
	UpdateInterval           time.Duration `json:"update_interval"`
	Separator                string   `json:"separator"`
	CliAddToSpecificPlaylist bool     `json:"cli_add_to_specific_playlist"`
	CliAddPlaylistName       string   `json:"cli_add_playlist_name"`
}

// defaultFileMask and defaultFolders are the built-in sibling-scan
// defaults applied when the config omits them.
const (
	defaultFileMask = "front.*;folder.*;cover.*;f.*;*front*.*;*cover*.*;*folder*.*;*.png;*.jpg;*.jpeg"
	defaultFolders  = "art;scans;covers;artwork;artworks"
)

// WithDefaults returns a copy of cfg with zero-valued fields replaced by
// their documented defaults.
func (cfg Cfg) WithDefaults() Cfg {
	if cfg.Artwork.FileMask == "" {
		cfg.Artwork.FileMask = defaultFileMask
	}
	if cfg.Artwork.Folders == "" {
		cfg.Artwork.Folders = defaultFolders
	}
	if cfg.Artwork.FetchConcurrency <= 0 {
		cfg.Artwork.FetchConcurrency = DefaultFetchConcurrency
	}
	if cfg.Library.UpdateMode == "" {
		cfg.Library.UpdateMode = "notify"
	}
	if cfg.Library.UpdateInterval <= 0 {
		cfg.Library.UpdateInterval = 300 * time.Second
	}
	if cfg.Library.Separator == "" {
		cfg.Library.Separator = ";"
	}
	return cfg
}

// Load reads the configuration file at path and overlays any matching
// environment variables found in an adjacent .env file, keeping API
// keys out of committed config.
func Load(path string) (cfg Cfg, err error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, statErr := os.Stat(envPath); statErr == nil {
		if loadErr := godotenv.Load(envPath); loadErr != nil {
			return Cfg{}, errors.Wrapf(loadErr, "cannot load .env overlay at '%s'", envPath)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Cfg{}, errors.Wrapf(err, "config file '%s' couldn't be read", path)
	}
	if err = json.Unmarshal(raw, &cfg); err != nil {
		return Cfg{}, errors.Wrapf(err, "config file '%s' couldn't be parsed", path)
	}
	cfg = cfg.WithDefaults()

	if key := os.Getenv("MEDIALIB_LASTFM_API_KEY"); key != "" {
		cfg.Artwork.LastFMAPIKey = key
	}
	if ua := os.Getenv("MEDIALIB_MUSICBRAINZ_UA"); ua != "" {
		cfg.Artwork.MusicBrainzUA = ua
	}

	return
}

// Validate checks that the configuration is complete and internally
// consistent.
func (cfg *Cfg) Validate() (err error) {
	if err = validateDir(cfg.CacheDir, "cache_dir"); err != nil {
		return
	}
	if err = validateDir(cfg.LogDir, "log_dir"); err != nil {
		return
	}
	if len(cfg.Library.Paths) == 0 {
		return fmt.Errorf("library.paths must contain at least one monitored directory")
	}
	for _, p := range cfg.Library.Paths {
		if err = validateDir(p, "library.paths entry"); err != nil {
			return
		}
	}
	if cfg.Library.UpdateMode != "notify" && cfg.Library.UpdateMode != "scan" {
		return fmt.Errorf("unknown library.update_mode '%s'", cfg.Library.UpdateMode)
	}
	if cfg.Library.UpdateInterval <= 0 {
		return fmt.Errorf("library.update_interval must be > 0")
	}
	if cfg.Artwork.MissingArtwork < 0 || cfg.Artwork.MissingArtwork > 2 {
		return fmt.Errorf("artwork.missing_artwork must be 0, 1 or 2")
	}
	return nil
}

func validateDir(dir, name string) error {
	if dir == "" {
		return fmt.Errorf("no %s configured", name)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "cannot stat %s '%s'", name, dir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s '%s' is not a directory", name, dir)
	}
	return nil
}

// Test reads the configuration file at path and validates it, for use
// by the `test` CLI subcommand.
func Test(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return errors.Wrapf(err, "the medialib configuration file '%s' couldn't be read", path)
	}
	if err = cfg.Validate(); err != nil {
		return err
	}
	fmt.Println("medialib configuration is complete and consistent")
	return nil
}
