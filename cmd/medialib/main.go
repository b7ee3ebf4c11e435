// Command medialib runs the artwork resolver and media library indexer
// as a standalone service, with run, test, scan and cover subcommands built on
// spf13/cobra.
package main

func main() {
	execute()
}
