package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	igerrors "igmedia/pkg/errors"
)

// EnvPrefix is prepended to every environment variable the loader reads
const EnvPrefix = "IGMEDIA_"

// Config holds all configuration options for igmedia
type Config struct {
	// Session cookies and request identity
	Instagram InstagramConfig `yaml:"instagram" json:"instagram"`

	// What to extract and how to pick renditions
	Media MediaConfig `yaml:"media" json:"media"`

	// Timeline paging limits and pacing
	Pagination PaginationConfig `yaml:"pagination" json:"pagination"`

	RateLimit RateLimitConfig `yaml:"rate_limit" json:"rate_limit"`
	Download  DownloadConfig  `yaml:"download" json:"download"`
	Output    OutputConfig    `yaml:"output" json:"output"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// InstagramConfig holds the session cookies and the GraphQL identity values
type InstagramConfig struct {
	SessionID      string        `yaml:"session_id" json:"session_id"`
	CSRFToken      string        `yaml:"csrf_token" json:"csrf_token"`
	DSUserID       string        `yaml:"ds_user_id" json:"ds_user_id"`
	MID            string        `yaml:"mid,omitempty" json:"mid,omitempty"`
	IGDID          string        `yaml:"ig_did,omitempty" json:"ig_did,omitempty"`
	RUR            string        `yaml:"rur,omitempty" json:"rur,omitempty"`
	UserAgent      string        `yaml:"user_agent" json:"user_agent" validate:"required"`
	AppID          string        `yaml:"app_id" json:"app_id" validate:"required,numeric"`
	DocID          string        `yaml:"doc_id" json:"doc_id" validate:"required,numeric"`
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

// MediaConfig holds the extraction settings
type MediaConfig struct {
	DownloadVideos bool   `yaml:"download_videos" json:"download_videos"`
	DownloadImages bool   `yaml:"download_images" json:"download_images"`
	VideoQuality   string `yaml:"video_quality" json:"video_quality" validate:"oneof=highest medium lowest"`
	MaxVideoSizeMB int    `yaml:"max_video_size_mb" json:"max_video_size_mb" validate:"gte=0"`
}

// PaginationConfig bounds the timeline walk
type PaginationConfig struct {
	MaxPages int           `yaml:"max_pages" json:"max_pages" validate:"gte=1"`
	PageSize int           `yaml:"page_size" json:"page_size" validate:"gte=1,lte=50"`
	MinDelay time.Duration `yaml:"min_delay" json:"min_delay"`
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute" validate:"gte=1"`
	BurstSize         int `yaml:"burst_size" json:"burst_size" validate:"gte=1"`
}

// DownloadConfig holds download-specific configuration
type DownloadConfig struct {
	ConcurrentDownloads int           `yaml:"concurrent_downloads" json:"concurrent_downloads" validate:"gte=1,lte=10"`
	DownloadTimeout     time.Duration `yaml:"download_timeout" json:"download_timeout"`
	RetryAttempts       int           `yaml:"retry_attempts" json:"retry_attempts" validate:"gte=0"`
	RetryDelay          time.Duration `yaml:"retry_delay" json:"retry_delay"`
	ImageDelayMin       time.Duration `yaml:"image_delay_min" json:"image_delay_min"`
	ImageDelayMax       time.Duration `yaml:"image_delay_max" json:"image_delay_max"`
	VideoDelayMin       time.Duration `yaml:"video_delay_min" json:"video_delay_min"`
	VideoDelayMax       time.Duration `yaml:"video_delay_max" json:"video_delay_max"`
}

// OutputConfig holds output directory configuration
type OutputConfig struct {
	BaseDirectory     string `yaml:"base_directory" json:"base_directory" validate:"required"`
	CreateUserFolders bool   `yaml:"create_user_folders" json:"create_user_folders"`
	ClearCache        bool   `yaml:"clear_cache" json:"clear_cache"`
	CacheDirectory    string `yaml:"cache_directory" json:"cache_directory"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level   string `yaml:"level" json:"level" validate:"oneof=debug info warn warning error fatal disabled"`
	File    string `yaml:"file,omitempty" json:"file,omitempty"`
	NoColor bool   `yaml:"no_color" json:"no_color"`
}

// MetricsConfig controls the optional prometheus listener
type MetricsConfig struct {
	Address string `yaml:"address,omitempty" json:"address,omitempty" validate:"omitempty,hostname_port"`
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Instagram: InstagramConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			AppID:          "936619743392459",
			DocID:          "30714410208142251",
			RequestTimeout: 30 * time.Second,
		},
		Media: MediaConfig{
			DownloadVideos: true,
			DownloadImages: true,
			VideoQuality:   "highest",
			MaxVideoSizeMB: 50,
		},
		Pagination: PaginationConfig{
			MaxPages: 10,
			PageSize: 12,
			MinDelay: 2 * time.Second,
			MaxDelay: 4 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 20,
			BurstSize:         1,
		},
		Download: DownloadConfig{
			ConcurrentDownloads: 1,
			DownloadTimeout:     60 * time.Second,
			RetryAttempts:       3,
			RetryDelay:          2 * time.Second,
			ImageDelayMin:       500 * time.Millisecond,
			ImageDelayMax:       time.Second,
			VideoDelayMin:       time.Second,
			VideoDelayMax:       2 * time.Second,
		},
		Output: OutputConfig{
			BaseDirectory:     "./downloads",
			CreateUserFolders: true,
			ClearCache:        true,
			CacheDirectory:    ".",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFromEnv loads configuration from environment variables
func (c *Config) LoadFromEnv() error {
	str := func(name string, dst *string) {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	str("SESSION_ID", &c.Instagram.SessionID)
	str("CSRF_TOKEN", &c.Instagram.CSRFToken)
	str("DS_USER_ID", &c.Instagram.DSUserID)
	str("MID", &c.Instagram.MID)
	str("IG_DID", &c.Instagram.IGDID)
	str("RUR", &c.Instagram.RUR)
	str("USER_AGENT", &c.Instagram.UserAgent)
	str("VIDEO_QUALITY", &c.Media.VideoQuality)
	str("OUTPUT_DIR", &c.Output.BaseDirectory)
	str("LOG_LEVEL", &c.Logging.Level)
	str("METRICS_ADDR", &c.Metrics.Address)

	var errs []error
	integer := func(name string, dst *int) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = n
	}
	integer("MAX_PAGES", &c.Pagination.MaxPages)
	integer("MAX_VIDEO_SIZE_MB", &c.Media.MaxVideoSizeMB)
	integer("REQUESTS_PER_MINUTE", &c.RateLimit.RequestsPerMinute)
	integer("CONCURRENT_DOWNLOADS", &c.Download.ConcurrentDownloads)

	boolean := func(name string, dst *bool) {
		v := os.Getenv(EnvPrefix + name)
		if v == "" {
			return
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
			return
		}
		*dst = b
	}
	boolean("DOWNLOAD_VIDEOS", &c.Media.DownloadVideos)
	boolean("DOWNLOAD_IMAGES", &c.Media.DownloadImages)

	return errors.Join(errs...)
}

// LoadFromFile loads configuration from a YAML file
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches for config file in standard locations
func (c *Config) findConfigFile() string {
	home, _ := os.UserHomeDir()
	locations := []string{
		".igmedia.yaml",
		".igmedia.yml",
		filepath.Join(home, ".config", "igmedia", "config.yaml"),
		filepath.Join(home, ".config", "igmedia", "config.yml"),
		filepath.Join(home, ".igmedia.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks if the configuration is valid. Session cookies are checked
// separately by ValidateCredentials because they may come from a stored account.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q check (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if c.Pagination.MinDelay < 0 || c.Pagination.MaxDelay < c.Pagination.MinDelay {
		errs = append(errs, errors.New("pagination delays must satisfy 0 <= min_delay <= max_delay"))
	}
	if c.Download.ImageDelayMax < c.Download.ImageDelayMin || c.Download.VideoDelayMax < c.Download.VideoDelayMin {
		errs = append(errs, errors.New("download delay ranges must have max >= min"))
	}
	if c.Download.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Instagram.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if !c.Media.DownloadImages && !c.Media.DownloadVideos {
		errs = append(errs, errors.New("at least one of download_images and download_videos must be enabled"))
	}

	if len(errs) > 0 {
		return igerrors.Configuration("invalid configuration", errors.Join(errs...))
	}
	return nil
}

// ValidateCredentials checks that the cookies required to query the timeline are present
func (c *Config) ValidateCredentials() error {
	var missing []string
	for _, key := range RequiredCookies {
		if c.cookieValue(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return igerrors.Configuration(
			fmt.Sprintf("missing required cookies: %s", strings.Join(missing, ", ")), nil)
	}
	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MergeCommandLineFlags merges command line flags into the configuration.
// Only keys present in the map are applied.
func (c *Config) MergeCommandLineFlags(flags map[string]interface{}) {
	if v, ok := flags["max-pages"].(int); ok && v > 0 {
		c.Pagination.MaxPages = v
	}
	if v, ok := flags["quality"].(string); ok && v != "" {
		c.Media.VideoQuality = strings.ToLower(v)
	}
	if v, ok := flags["videos"].(bool); ok {
		c.Media.DownloadVideos = v
	}
	if v, ok := flags["images"].(bool); ok {
		c.Media.DownloadImages = v
	}
	if v, ok := flags["max-video-size"].(int); ok && v >= 0 {
		c.Media.MaxVideoSizeMB = v
	}
	if v, ok := flags["output"].(string); ok && v != "" {
		c.Output.BaseDirectory = v
	}
	if v, ok := flags["concurrent"].(int); ok && v > 0 {
		c.Download.ConcurrentDownloads = v
	}
	if v, ok := flags["keep-cache"].(bool); ok && v {
		c.Output.ClearCache = false
	}
	if v, ok := flags["log-level"].(string); ok && v != "" {
		c.Logging.Level = v
	}
	if v, ok := flags["metrics-addr"].(string); ok && v != "" {
		c.Metrics.Address = v
	}
}

// Load loads configuration from all sources with proper precedence.
// Precedence order: flags > environment (.env included) > cookies file > config file > defaults
func Load(configPath, cookiesPath string, flags map[string]interface{}) (*Config, error) {
	home, _ := os.UserHomeDir()
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join(home, ".igmedia.env"))

	config := DefaultConfig()

	if err := config.LoadFromFile(configPath); err != nil {
		return nil, igerrors.Configuration("failed to load config file", err)
	}

	if cookiesPath == "" {
		if _, err := os.Stat(DefaultCookiesFile); err == nil {
			cookiesPath = DefaultCookiesFile
		}
	}
	if cookiesPath != "" {
		if err := config.LoadCookiesFile(cookiesPath); err != nil {
			return nil, igerrors.Configuration("failed to load cookies file", err)
		}
	}

	if err := config.LoadFromEnv(); err != nil {
		return nil, igerrors.Configuration("failed to load environment variables", err)
	}

	config.MergeCommandLineFlags(flags)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}
