package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"igmedia/pkg/auth"
	"igmedia/pkg/config"
	igerrors "igmedia/pkg/errors"
	"igmedia/pkg/media"
	"igmedia/pkg/ui"
)

// chdir switches into dir for the rest of the test
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

// execute runs the root command with args and fresh global flag values
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	configFile, cookiesFile, logLevel = "", "", ""
	quiet, noColor = false, false
	forceInit, writeCookies = false, false
	importFile, forceAdd = "", false

	var out bytes.Buffer
	prevOut := ui.Output()
	ui.SetOutput(&out)
	t.Cleanup(func() {
		ui.SetOutput(prevOut)
		ui.SetQuietMode(false)
	})

	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// useMockCredentials swaps the credential manager for an in-memory one
func useMockCredentials(t *testing.T) *auth.MockStore {
	t.Helper()
	manager, store := auth.NewMockManager()
	prev := newCredentialManager
	newCredentialManager = func() (*auth.Manager, error) { return manager, nil }
	t.Cleanup(func() { newCredentialManager = prev })
	return store
}

func TestConfigInitAndShow(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	out, err := execute(t, "", "config", "init", "--with-cookies")
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration file created: .igmedia.yaml")
	assert.FileExists(t, filepath.Join(dir, ".igmedia.yaml"))
	assert.FileExists(t, filepath.Join(dir, config.DefaultCookiesFile))

	_, err = execute(t, "", "config", "init")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "", "config", "init", "--force")
	assert.NoError(t, err)

	cookies := "sessionid=1234567890abcdef\ncsrftoken=csrf1234567890\nds_user_id=42\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mine.conf"), []byte(cookies), 0600))

	out, err = execute(t, "", "config", "show", "--cookies", "mine.conf")
	require.NoError(t, err)
	assert.Contains(t, out, "session_id: 1234...cdef")
	assert.Contains(t, out, "ds_user_id: \"42\"")
	assert.NotContains(t, out, "1234567890abcdef")
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	out, err := execute(t, "", "config", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "missing required cookies")
	assert.Contains(t, out, "Configuration is valid")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("media:\n  video_quality: ultra\n"), 0600))
	_, err = execute(t, "", "config", "validate", "--config", "bad.yaml")
	assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeConfiguration))
}

func TestAuthAddFromFileListRemove(t *testing.T) {
	store := useMockCredentials(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "cookies.conf")
	require.NoError(t, os.WriteFile(path, []byte("sessionid=session_value_123456\ncsrftoken=csrf_value_123456\nds_user_id=42\nrur=abc\n"), 0600))

	out, err := execute(t, "", "auth", "add", "main", "--from-file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Account saved: main")

	stored, err := store.Retrieve("main")
	require.NoError(t, err)
	assert.Equal(t, "session_value_123456", stored.SessionID)
	assert.Equal(t, "abc", stored.RUR)

	out, err = execute(t, "", "auth", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "main")
	assert.Contains(t, out, "sess...3456")
	assert.NotContains(t, out, "session_value_123456")

	// declining the replace prompt keeps the stored account
	_, err = execute(t, "n\n", "auth", "add", "main", "--from-file", path)
	require.NoError(t, err)

	out, err = execute(t, "", "auth", "remove", "main")
	require.NoError(t, err)
	assert.Contains(t, out, "Account removed: main")
	assert.Zero(t, store.Count())

	_, err = execute(t, "", "auth", "remove", "main")
	assert.ErrorIs(t, err, auth.ErrCredentialsNotFound)
}

func TestAuthAddInteractive(t *testing.T) {
	store := useMockCredentials(t)

	// name, sessionid (empty then set), csrftoken, ds_user_id, mid, ig_did, rur
	input := "second\n\nsess_interactive\ncsrf_interactive\n77\nmid_value\n\n\n"
	out, err := execute(t, input, "auth", "add")
	require.NoError(t, err)
	assert.Contains(t, out, "sessionid is required")

	stored, err := store.Retrieve("second")
	require.NoError(t, err)
	assert.Equal(t, "sess_interactive", stored.SessionID)
	assert.Equal(t, "77", stored.DSUserID)
	assert.Equal(t, "mid_value", stored.MID)
	assert.Empty(t, stored.IGDID)
}

func TestAuthAddRejectsIncompleteCookies(t *testing.T) {
	useMockCredentials(t)
	path := filepath.Join(t.TempDir(), "cookies.conf")
	require.NoError(t, os.WriteFile(path, []byte("sessionid=only\n"), 0600))

	_, err := execute(t, "", "auth", "add", "main", "--from-file", path)
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

type fakeCredentials struct {
	accounts map[string]*auth.Account
	fallback *auth.Account
}

func (f fakeCredentials) Retrieve(name string) (*auth.Account, error) {
	if a, ok := f.accounts[name]; ok {
		return a, nil
	}
	return nil, auth.ErrCredentialsNotFound
}

func (f fakeCredentials) RetrieveDefault() (*auth.Account, error) {
	if f.fallback == nil {
		return nil, auth.ErrCredentialsNotFound
	}
	return f.fallback, nil
}

func account(name, session string) *auth.Account {
	return &auth.Account{Username: name, SessionID: session, CSRFToken: "csrf", DSUserID: "1"}
}

func TestResolveCredentials(t *testing.T) {
	src := fakeCredentials{
		accounts: map[string]*auth.Account{"named": account("named", "named_session")},
		fallback: account("latest", "latest_session"),
	}

	t.Run("named account wins over config", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Instagram.SessionID, cfg.Instagram.CSRFToken, cfg.Instagram.DSUserID = "cfg", "cfg", "9"
		name, err := resolveCredentials(cfg, "named", src)
		require.NoError(t, err)
		assert.Equal(t, "named", name)
		assert.Equal(t, "named_session", cfg.Instagram.SessionID)
	})

	t.Run("complete config needs no account", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Instagram.SessionID, cfg.Instagram.CSRFToken, cfg.Instagram.DSUserID = "cfg", "cfg", "9"
		name, err := resolveCredentials(cfg, "", src)
		require.NoError(t, err)
		assert.Empty(t, name)
		assert.Equal(t, "cfg", cfg.Instagram.SessionID)
	})

	t.Run("falls back to latest stored account", func(t *testing.T) {
		cfg := config.DefaultConfig()
		name, err := resolveCredentials(cfg, "", src)
		require.NoError(t, err)
		assert.Equal(t, "latest", name)
		assert.Equal(t, "latest_session", cfg.Instagram.SessionID)
	})

	t.Run("unknown account", func(t *testing.T) {
		_, err := resolveCredentials(config.DefaultConfig(), "ghost", src)
		assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeConfiguration))
		assert.True(t, errors.Is(err, auth.ErrCredentialsNotFound))
	})

	t.Run("nothing anywhere", func(t *testing.T) {
		_, err := resolveCredentials(config.DefaultConfig(), "", nil)
		assert.True(t, igerrors.IsType(err, igerrors.ErrorTypeConfiguration))
	})
}

func TestDownloadFlagsOnlyIncludesChangedFlags(t *testing.T) {
	logLevel, quiet = "", false
	cmd := &cobra.Command{}
	cmd.Flags().AddFlagSet(downloadCmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--max-pages", "2", "--videos=false", "--quality", "lowest"}))

	flags := downloadFlags(cmd)
	assert.Equal(t, map[string]interface{}{
		"max-pages": 2,
		"videos":    false,
		"quality":   "lowest",
	}, flags)

	cfg := config.DefaultConfig()
	images := cfg.Media.DownloadImages
	cfg.MergeCommandLineFlags(flags)
	assert.Equal(t, 2, cfg.Pagination.MaxPages)
	assert.False(t, cfg.Media.DownloadVideos)
	assert.Equal(t, images, cfg.Media.DownloadImages)
}

func TestPrintManifest(t *testing.T) {
	var buf bytes.Buffer
	printManifest(&buf, media.Manifest{
		Images: []media.Image{{Common: media.Common{URL: "https://cdn/a.jpg", PostIndex: 3, MediaIndex: 2}}},
		Videos: []media.Video{{Common: media.Common{URL: "https://cdn/b.mp4", PostIndex: 4, MediaIndex: 1}}},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "post_003_img_02.jpg"))
	assert.True(t, strings.HasSuffix(lines[0], "https://cdn/a.jpg"))
	assert.True(t, strings.HasPrefix(lines[1], "post_004_video.mp4"))
}

func TestMaskedConfigLeavesOriginal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Instagram.SessionID = "abcdefghijklmnop"
	cfg.Instagram.DSUserID = "42"

	display := maskedConfig(cfg)
	assert.Equal(t, "abcd...mnop", display.Instagram.SessionID)
	assert.Equal(t, "42", display.Instagram.DSUserID)
	assert.Equal(t, "abcdefghijklmnop", cfg.Instagram.SessionID)
}
