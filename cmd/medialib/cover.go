package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oakmoth/medialib/internal/artwork"
	"github.com/oakmoth/medialib/internal/config"
	"github.com/oakmoth/medialib/internal/playlistitem"
)

var (
	coverArtist string
	coverAlbum  string
	coverTitle  string
)

// coverCmd resolves a single cover for ad-hoc inspection/debugging,
// exercising the same artwork.Resolver CLI users would embed in a
// player.
var coverCmd = &cobra.Command{
	Use:   "cover <track-uri>",
	Short: "Resolve cover artwork for one track",
	Long:  "Run the artwork resolution pipeline for a single track and print the result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := cover(args[0]); err != nil {
			fmt.Printf("medialib cover failed: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	coverCmd.Flags().StringVar(&coverArtist, "artist", "", "track artist")
	coverCmd.Flags().StringVar(&coverAlbum, "album", "", "track album")
	coverCmd.Flags().StringVar(&coverTitle, "title", "", "track title")
	rootCmd.AddCommand(coverCmd)
}

func cover(uri string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	resolver := artwork.NewResolver(cfg.CacheDir, cfg.Artwork, nil)
	defer resolver.Close()

	track := playlistitem.New(uri, map[string]string{
		"artist": coverArtist,
		"album":  coverAlbum,
		"title":  coverTitle,
	})

	result := make(chan *artwork.CoverInfo, 1)
	resolver.CoverGet(&artwork.Query{Track: track, Type: artwork.SizeFull}, func(ci *artwork.CoverInfo) {
		result <- ci
	})

	select {
	case ci := <-result:
		if ci == nil || !ci.CoverFound {
			fmt.Println("no cover found")
			return nil
		}
		if ci.ImageFilename != "" {
			fmt.Printf("cover cached at %s\n", ci.ImageFilename)
		} else {
			fmt.Printf("cover resolved in memory (%d bytes)\n", len(ci.Blob))
		}
		ci.Release()
	case <-time.After(30 * time.Second):
		return fmt.Errorf("cover resolution timed out")
	}
	return nil
}
