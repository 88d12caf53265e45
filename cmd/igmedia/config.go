package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igmedia/pkg/auth"
	"igmedia/pkg/config"
	"igmedia/pkg/ui"
)

const defaultConfigPath = ".igmedia.yaml"

var (
	forceInit    bool
	writeCookies bool
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igmedia configuration.

Configuration is layered, highest priority first:
  - Command line flags
  - Environment variables (IGMEDIA_*, also read from .env)
  - cookies.conf
  - Configuration file
  - Default values`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to .igmedia.yaml, or to the path given
with --config. With --with-cookies a cookies.conf template is written as well.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after all sources are merged.

Cookie values are masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite existing files")
	initCmd.Flags().BoolVar(&writeCookies, "with-cookies", false, "also write a cookies.conf template")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = defaultConfigPath
	}

	if err := refuseOverwrite(path); err != nil {
		return err
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	ui.PrintSuccess("Configuration file created: " + path)

	if writeCookies {
		cookiesPath := cookiesFile
		if cookiesPath == "" {
			cookiesPath = config.DefaultCookiesFile
		}
		if err := refuseOverwrite(cookiesPath); err != nil {
			return err
		}
		if err := os.WriteFile(cookiesPath, []byte(config.CookiesTemplate), 0600); err != nil {
			return fmt.Errorf("failed to write cookies file: %w", err)
		}
		ui.PrintSuccess("Cookies template created: " + cookiesPath)
	}

	ui.PrintInfo("Next", "add your cookies, then run 'igmedia config validate'")
	return nil
}

func refuseOverwrite(path string) error {
	if forceInit {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}
	return nil
}

// maskedConfig returns a copy of cfg with cookie values masked
func maskedConfig(cfg *config.Config) config.Config {
	display := *cfg
	masked := auth.SanitizeAccount(auth.AccountFromCookies("", cfg.Cookies()))
	display.Instagram.SessionID = masked.SessionID
	display.Instagram.CSRFToken = masked.CSRFToken
	display.Instagram.MID = masked.MID
	display.Instagram.IGDID = masked.IGDID
	display.Instagram.RUR = masked.RUR
	return display
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cookiesFile, globalFlags())
	if err != nil {
		return err
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	fmt.Fprint(ui.Output(), string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, cookiesFile, globalFlags())
	if err != nil {
		ui.PrintError("Configuration is invalid")
		return err
	}

	var problems []error
	if err := cfg.ValidateCredentials(); err != nil {
		ui.PrintWarning("Cookies", err)
	}
	if err := os.MkdirAll(cfg.Output.BaseDirectory, 0755); err != nil {
		problems = append(problems, fmt.Errorf("cannot create output directory: %w", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if len(problems) > 0 {
		return errors.Join(problems...)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Output directory", cfg.Output.BaseDirectory)
	ui.PrintInfo("Pages", fmt.Sprintf("up to %d of %d posts", cfg.Pagination.MaxPages, cfg.Pagination.PageSize))
	ui.PrintInfo("Media", fmt.Sprintf("images=%t videos=%t quality=%s max=%dMB",
		cfg.Media.DownloadImages, cfg.Media.DownloadVideos, cfg.Media.VideoQuality, cfg.Media.MaxVideoSizeMB))
	ui.PrintInfo("Concurrent downloads", fmt.Sprintf("%d", cfg.Download.ConcurrentDownloads))
	ui.PrintInfo("Rate limit", fmt.Sprintf("%d requests/minute", cfg.RateLimit.RequestsPerMinute))
	return nil
}
