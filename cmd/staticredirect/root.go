package main

import (
	"io/ioutil"
	"os"

	"github.com/getlantern/golog"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "staticredirect",
		Short: "Redirect table for statically hosted sites",
		Long: `staticredirect answers page navigations with redirects described in a
redirects.json manifest next to each site, keeping query strings and fragments.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(verbose)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println("staticredirect", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output")
	rootCmd.AddCommand(versionCmd, serveCmd, checkCmd, resolveCmd)
}

// setupLogging sends errors to stderr and, only when verbose, debug output to
// stdout.
func setupLogging(verbose bool) {
	debugOut := ioutil.Discard
	if verbose {
		debugOut = os.Stdout
	}
	golog.SetOutputs(os.Stderr, debugOut)
}
