package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oakmoth/medialib/internal/applog"
	"github.com/oakmoth/medialib/internal/artwork"
	"github.com/oakmoth/medialib/internal/config"
	"github.com/oakmoth/medialib/internal/library"
)

// runCmd starts the resolver and every configured library source and
// blocks until interrupted.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the medialib service",
	Long:  "Run the artwork resolver and library indexer as a long-lived service",
	Run: func(cmd *cobra.Command, args []string) {
		if err := run(); err != nil {
			fmt.Printf("medialib cannot be run: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.LogDir != "" {
		err = applog.Setup(cfg.LogDir, cfg.LogLevel)
	} else {
		err = applog.SetupStderr(cfg.LogLevel)
	}
	if err != nil {
		return err
	}

	resolver := artwork.NewResolver(cfg.CacheDir, cfg.Artwork, nil)
	defer resolver.Close()

	src := library.NewSource("medialib.music.", cfg.ConfigDir, cfg.Library.Paths, cfg.Library.Enabled, cfg.Library.UpdateMode, cfg.Library.UpdateInterval)
	src.Start()
	defer src.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
