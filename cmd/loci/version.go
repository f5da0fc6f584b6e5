package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/loci"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of loci",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("loci version %s\n", strings.TrimSpace(loci.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
