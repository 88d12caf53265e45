package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"igmedia/pkg/logger"
	"igmedia/pkg/ui"
)

var (
	// Version information
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	cookiesFile string
	logLevel    string
	noColor     bool
	quiet       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igmedia",
	Short: "Download images and videos from an Instagram profile",
	Long: `igmedia walks a profile's timeline through Instagram's GraphQL API and
downloads every image and video it finds.

Features:
  - Carousel posts are expanded into their images and videos
  - Preferred video rendition (highest, medium or lowest)
  - Duplicate media across posts is downloaded once
  - Randomized delays and a request rate limit between pages
  - Cookies from cookies.conf, the environment or the system keychain`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Version = version
		if quiet {
			ui.SetQuietMode(true)
		}

		switch cmd.Name() {
		case "version", "help", "list", "show":
		default:
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command with ctx, cancelled on interrupt
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is .igmedia.yaml or ~/.config/igmedia/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&cookiesFile, "cookies", "", "cookies file in key=value format (default is ./cookies.conf when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored log output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.SetVersionTemplate(`igmedia {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the persistent flag overrides for config.Load
func globalFlags() map[string]interface{} {
	flags := make(map[string]interface{})
	if logLevel != "" {
		flags["log-level"] = logLevel
	} else if quiet {
		flags["log-level"] = "error"
	}
	return flags
}
