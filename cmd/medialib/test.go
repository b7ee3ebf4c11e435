package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oakmoth/medialib/internal/config"
)

// testCmd represents the test command, mirroring cmd/muserv/test.go.
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Verify medialib configuration",
	Long:  "Check the medialib configuration file for completeness and consistency",
	Run: func(cmd *cobra.Command, args []string) {
		if err := config.Test(configPath); err != nil {
			fmt.Printf("%v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(testCmd)
}
