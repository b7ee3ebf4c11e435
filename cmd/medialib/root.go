package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via -ldflags at build time.
var Version = "dev"

var preamble = `medialib ` + Version + `

medialib resolves cover artwork for tracks (embedded tags, sibling
image files, and remote catalogs) and indexes monitored music folders
into browsable artist/album/genre/folder trees.

medialib comes with ABSOLUTELY NO WARRANTY.`

var rootCmd = &cobra.Command{
	Use:     "medialib",
	Short:   "medialib artwork resolver and library indexer",
	Long:    preamble,
	Version: Version,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "medialib.json", "path to the medialib configuration file")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
