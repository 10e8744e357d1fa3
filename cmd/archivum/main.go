package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	os.Exit(run())
}

func run() int {
	root := &cobra.Command{
		Use:     "archivum",
		Short:   "Catalog files across disks, partitions, and archives",
		Version: version + " (" + commit + ")",
	}

	root.AddCommand(newScanCmd())
	root.AddCommand(newUploadCmd())
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
