package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// DefaultCookiesFile is read from the working directory when no path is given
const DefaultCookiesFile = "cookies.conf"

// Cookie names understood in a cookies file
var (
	CookieKeys      = []string{"sessionid", "csrftoken", "ds_user_id", "mid", "ig_did", "rur"}
	RequiredCookies = []string{"sessionid", "csrftoken", "ds_user_id"}
)

// LoadCookiesFile reads a key=value cookies file into the configuration
func (c *Config) LoadCookiesFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open cookies file: %w", err)
	}
	defer f.Close()

	values, err := ParseCookies(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return c.ApplyCookies(values)
}

// ParseCookies parses the cookies file format: one key=value per line, '#'
// comments and blank lines ignored. Placeholder values of the form
// your_<key>_value are dropped.
func ParseCookies(r io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: expected key=value", lineNo)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if value == "" || value == fmt.Sprintf("your_%s_value", key) {
			continue
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

// ApplyCookies copies parsed cookie and setting values into the configuration.
// Unknown keys are ignored.
func (c *Config) ApplyCookies(values map[string]string) error {
	for _, key := range CookieKeys {
		if v, ok := values[key]; ok {
			c.setCookie(key, v)
		}
	}

	if v, ok := values["download_videos"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("download_videos: %w", err)
		}
		c.Media.DownloadVideos = b
	}
	if v, ok := values["download_images"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("download_images: %w", err)
		}
		c.Media.DownloadImages = b
	}
	if v, ok := values["video_quality"]; ok {
		c.Media.VideoQuality = strings.ToLower(v)
	}
	if v, ok := values["max_video_size_mb"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("max_video_size_mb: %w", err)
		}
		c.Media.MaxVideoSizeMB = n
	}
	return nil
}

// Cookies returns the non-empty session cookies keyed by cookie name
func (c *Config) Cookies() map[string]string {
	out := make(map[string]string, len(CookieKeys))
	for _, key := range CookieKeys {
		if v := c.cookieValue(key); v != "" {
			out[key] = v
		}
	}
	return out
}

func (c *Config) cookieValue(key string) string {
	switch key {
	case "sessionid":
		return c.Instagram.SessionID
	case "csrftoken":
		return c.Instagram.CSRFToken
	case "ds_user_id":
		return c.Instagram.DSUserID
	case "mid":
		return c.Instagram.MID
	case "ig_did":
		return c.Instagram.IGDID
	case "rur":
		return c.Instagram.RUR
	}
	return ""
}

func (c *Config) setCookie(key, value string) {
	switch key {
	case "sessionid":
		c.Instagram.SessionID = value
	case "csrftoken":
		c.Instagram.CSRFToken = value
	case "ds_user_id":
		c.Instagram.DSUserID = value
	case "mid":
		c.Instagram.MID = value
	case "ig_did":
		c.Instagram.IGDID = value
	case "rur":
		c.Instagram.RUR = value
	}
}

// CookiesTemplate is written by `config init --with-cookies`
const CookiesTemplate = `# Instagram session cookies, copied from the browser's developer tools.
sessionid=your_sessionid_value
csrftoken=your_csrftoken_value
ds_user_id=your_ds_user_id_value
mid=your_mid_value
ig_did=your_ig_did_value
rur=your_rur_value

# Settings
download_videos=true
download_images=true
video_quality=highest
max_video_size_mb=50
`
