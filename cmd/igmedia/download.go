package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"igmedia/pkg/auth"
	"igmedia/pkg/config"
	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/instagram"
	"igmedia/pkg/logger"
	"igmedia/pkg/media"
	"igmedia/pkg/metrics"
	"igmedia/pkg/scraper"
	"igmedia/pkg/storage"
	"igmedia/pkg/ui"
)

var (
	// Download command flags
	maxPages       int
	maxVideoSize   int
	concurrent     int
	downloadVideos bool
	downloadImages bool
	quality        string
	outputDir      string
	accountName    string
	metricsAddr    string
	keepCache      bool
	dryRun         bool
	notify         bool
)

// newCredentialManager is replaced in tests
var newCredentialManager = func() (*auth.Manager, error) {
	return auth.NewManager()
}

// downloadCmd represents the download command
var downloadCmd = &cobra.Command{
	Use:     "download <username>",
	Aliases: []string{"dl"},
	Short:   "Download images and videos from a profile",
	Long: `Download the images and videos of an Instagram profile's recent posts.

Session cookies are read, in increasing priority, from the config file,
cookies.conf, the environment (IGMEDIA_SESSION_ID, IGMEDIA_CSRF_TOKEN,
IGMEDIA_DS_USER_ID, ...) and finally a stored account (--account). When none
of these supply the required cookies the most recently stored account is used.

Files are written to <output>/<username>/ as post_001_img.jpg,
post_002_video.mp4, post_003_img_02.jpg and so on.`,
	Example: `  # Download with the defaults from the config file
  igmedia download natgeo

  # Only images, first two pages
  igmedia download natgeo --videos=false --max-pages 2

  # Lowest video rendition, videos up to 20 MB
  igmedia download natgeo --quality lowest --max-video-size 20

  # List what would be downloaded
  igmedia download natgeo --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	rootCmd.AddCommand(downloadCmd)

	f := downloadCmd.Flags()
	f.IntVar(&maxPages, "max-pages", 0, "maximum timeline pages to fetch (default from config: 10)")
	f.BoolVar(&downloadVideos, "videos", true, "download videos")
	f.BoolVar(&downloadImages, "images", true, "download images")
	f.StringVar(&quality, "quality", "", "video rendition: highest, medium or lowest")
	f.IntVar(&maxVideoSize, "max-video-size", 0, "skip videos larger than this many MB (0 disables the limit)")
	f.StringVarP(&outputDir, "output", "o", "", "base output directory")
	f.IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	f.StringVarP(&accountName, "account", "a", "", "use a stored account")
	f.BoolVar(&keepCache, "keep-cache", false, "do not clear cache files before the run")
	f.BoolVar(&dryRun, "dry-run", false, "list the media that would be downloaded and exit")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	f.BoolVar(&notify, "notify", false, "send a desktop notification when the run ends")
}

// downloadFlags returns the overrides for the flags the user actually set
func downloadFlags(cmd *cobra.Command) map[string]interface{} {
	flags := globalFlags()
	f := cmd.Flags()

	if f.Changed("max-pages") {
		flags["max-pages"] = maxPages
	}
	if f.Changed("videos") {
		flags["videos"] = downloadVideos
	}
	if f.Changed("images") {
		flags["images"] = downloadImages
	}
	if f.Changed("quality") {
		flags["quality"] = quality
	}
	if f.Changed("max-video-size") {
		flags["max-video-size"] = maxVideoSize
	}
	if f.Changed("output") {
		flags["output"] = outputDir
	}
	if f.Changed("concurrent") {
		flags["concurrent"] = concurrent
	}
	if f.Changed("keep-cache") {
		flags["keep-cache"] = keepCache
	}
	if f.Changed("metrics-addr") {
		flags["metrics-addr"] = metricsAddr
	}
	return flags
}

// credentialSource is the part of auth.Manager used to fill in cookies
type credentialSource interface {
	Retrieve(username string) (*auth.Account, error)
	RetrieveDefault() (*auth.Account, error)
}

// resolveCredentials applies a stored account to cfg when one is named or
// when cfg lacks the required cookies. It returns the account used, if any.
func resolveCredentials(cfg *config.Config, account string, src credentialSource) (string, error) {
	if account != "" {
		if src == nil {
			return "", igerrors.Configuration("credential store unavailable", nil)
		}
		acc, err := src.Retrieve(account)
		if err != nil {
			return "", igerrors.Configuration(fmt.Sprintf("account %q not found, see 'igmedia auth list'", account), err)
		}
		if err := acc.ApplyTo(cfg); err != nil {
			return "", err
		}
		return acc.Username, cfg.ValidateCredentials()
	}

	if cfg.ValidateCredentials() == nil {
		return "", nil
	}

	if src != nil {
		if acc, err := src.RetrieveDefault(); err == nil {
			if err := acc.ApplyTo(cfg); err != nil {
				return "", err
			}
			return acc.Username, cfg.ValidateCredentials()
		}
	}
	return "", cfg.ValidateCredentials()
}

func loadConfig(flags map[string]interface{}) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(configFile, cookiesFile, flags)
	if err != nil {
		return nil, nil, err
	}
	if noColor {
		cfg.Logging.NoColor = true
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, nil, igerrors.Configuration("failed to initialize logger", err)
	}
	return cfg, logger.GetLogger(), nil
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	username := args[0]

	cfg, log, err := loadConfig(downloadFlags(cmd))
	if err != nil {
		return err
	}

	var src credentialSource
	if manager, err := newCredentialManager(); err == nil {
		src = manager
	} else {
		log.WithError(err).Debug("Credential store unavailable")
	}

	account, err := resolveCredentials(cfg, accountName, src)
	if err != nil {
		ui.PrintWarning("No usable Instagram cookies found")
		auth.ShowQuickExtractGuide(ui.Output())
		ui.PrintInfo("Store cookies with", "igmedia auth add")
		ui.PrintInfo("Or create cookies.conf with", "igmedia config init --with-cookies")
		return err
	}
	if account != "" {
		ui.PrintInfo("Account", account)
	}

	m := metrics.New()
	if cfg.Metrics.Address != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Address, m, log); err != nil {
				log.WithError(err).Error("Metrics listener failed")
			}
		}()
	}

	s, err := scraper.New(cfg, m, log)
	if err != nil {
		return err
	}

	ui.PrintHighlight(instagram.GetUserProfileURL(instagram.SanitizeUsername(username)))
	if dryRun {
		return runDryRun(ctx, s, username)
	}

	var display *ui.ProgressDisplay
	if !ui.IsQuietMode() {
		display = ui.NewProgressDisplay(ui.Output(), username, 0)
		s.SetProgress(display)
	}

	var notifier *ui.Notifier
	if notify {
		notifier = ui.NewNotifier()
	}

	summary, err := s.Run(ctx, username)
	if err != nil {
		if notifier != nil {
			notifier.SendError("igmedia: download failed", fmt.Sprintf("@%s: %v", username, err))
		}
		return err
	}

	if display != nil {
		display.Complete(summary.Downloads)
	}
	printSummary(summary)

	if notifier != nil {
		notifier.SendSuccess("igmedia: download complete", fmt.Sprintf("@%s: %d images, %d videos",
			summary.Username, summary.Downloads.Images, summary.Downloads.Videos))
	}
	return nil
}

func runDryRun(ctx context.Context, s *scraper.Scraper, username string) error {
	manifest, pages, err := s.Extract(ctx, username)
	if err != nil {
		return err
	}
	if pages.Err != nil {
		ui.PrintWarning("Timeline walk stopped early", pages.Err)
	}

	printManifest(ui.Output(), manifest)
	ui.PrintSuccess(fmt.Sprintf("%d images and %d videos across %d posts (%d pages)",
		len(manifest.Images), len(manifest.Videos), len(pages.Posts), pages.Pages))
	return nil
}

// printManifest writes one line per item with the name it would be saved as
func printManifest(w io.Writer, manifest media.Manifest) {
	line := func(d media.Descriptor) {
		c := d.Base()
		fmt.Fprintf(w, "%-24s %s\n", storage.Filename(d.Kind(), c.PostIndex, c.MediaIndex), c.URL)
	}
	for _, img := range manifest.Images {
		line(img)
	}
	for _, vid := range manifest.Videos {
		line(vid)
	}
}

func printSummary(s *scraper.Summary) {
	ui.PrintInfo("Run", s.RunID)
	ui.PrintInfo("Directory", s.Directory)
	ui.PrintInfo("Timeline", fmt.Sprintf("%d posts from %d pages", s.Posts, s.Pages))
	ui.PrintInfo("Found", fmt.Sprintf("%d images, %d videos", len(s.Found.Images), len(s.Found.Videos)))
	ui.PrintInfo("On disk", fmt.Sprintf("%d images, %d videos", s.Files.Images, s.Files.Videos))
	if s.PaginationErr != nil {
		ui.PrintWarning("Timeline walk stopped early", s.PaginationErr)
	}
	if s.Downloads.Failed > 0 {
		ui.PrintWarning(fmt.Sprintf("%d downloads failed, see the log for details", s.Downloads.Failed))
	}
}
