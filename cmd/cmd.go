package cmd

import (
	"github.com/spf13/cobra"
	"github.com/toyofumi/opendata/cmd/crawl"
	"github.com/toyofumi/opendata/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "print version.",
	Long:  "print version.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		version.Printer()
	},
}

func Execute() {
	var rootCmd = &cobra.Command{Use: "opendata"}
	rootCmd.AddCommand(crawl.CrawlCmd, crawl.ConfigsCmd, versionCmd)
	rootCmd.Execute()
}
