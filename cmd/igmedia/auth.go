package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igmedia/pkg/auth"
	"igmedia/pkg/config"
	"igmedia/pkg/ui"
)

var (
	importFile string
	forceAdd   bool
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored Instagram cookies",
	Long: `Manage named sets of Instagram session cookies.

Accounts are stored in:
  - The system keychain (when available)
  - An encrypted file with PBKDF2 key derivation
Cookies in IGMEDIA_* environment variables are listed as the "env" account.

Never share your cookies or config files!`,
}

// addCmd represents the auth add command
var addCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Store session cookies under a name",
	Long: `Store Instagram session cookies under a name for use with --account.

You are prompted for sessionid, csrftoken and ds_user_id (hidden as you type)
and optionally mid, ig_did and rur. Use --from-file to import a cookies.conf
instead.`,
	Example: `  # Interactive
  igmedia auth add main

  # Import an existing cookies file
  igmedia auth add main --from-file cookies.conf`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthAdd,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored accounts",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored account",
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(addCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(removeCmd)

	addCmd.Flags().StringVar(&importFile, "from-file", "", "import cookies from a cookies.conf file")
	addCmd.Flags().BoolVarP(&forceAdd, "force", "f", false, "replace an existing account without asking")
}

// prompter reads answers from the command's input, hiding secrets on a terminal
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
	tty bool
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	p := &prompter{in: bufio.NewReader(in), out: out}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.fd, p.tty = int(f.Fd()), true
	}
	return p
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	input, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && input != "") {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

func (p *prompter) secret(label string) (string, error) {
	if !p.tty {
		return p.line(label)
	}
	fmt.Fprint(p.out, label)
	value, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(value)), nil
}

func (p *prompter) confirm(label string) bool {
	answer, err := p.line(label + " (y/N): ")
	return err == nil && strings.HasPrefix(strings.ToLower(answer), "y")
}

func isRequired(key string) bool {
	for _, k := range config.RequiredCookies {
		if k == key {
			return true
		}
	}
	return false
}

// promptCookies asks for every cookie; required ones are hidden and repeated until set
func promptCookies(p *prompter) (map[string]string, error) {
	cookies := make(map[string]string, len(config.CookieKeys))
	for _, key := range config.CookieKeys {
		if !isRequired(key) {
			value, err := p.line(fmt.Sprintf("%s (optional, Enter to skip): ", key))
			if err != nil {
				return nil, err
			}
			if value != "" {
				cookies[key] = value
			}
			continue
		}

		for {
			value, err := p.secret(key + ": ")
			if err != nil {
				return nil, err
			}
			if value != "" {
				cookies[key] = value
				break
			}
			fmt.Fprintf(p.out, "%s is required\n", key)
		}
	}
	return cookies, nil
}

func runAuthAdd(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	p := newPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	} else if name, err = p.line("Account name: "); err != nil {
		return err
	}
	if name == "" {
		return errors.New("account name is required")
	}

	if existing, _ := manager.Retrieve(name); existing != nil && !forceAdd {
		if !p.confirm(fmt.Sprintf("Account %q already exists. Replace it?", name)) {
			return nil
		}
	}

	var cookies map[string]string
	if importFile != "" {
		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("failed to open cookies file: %w", err)
		}
		defer f.Close()
		if cookies, err = config.ParseCookies(f); err != nil {
			return fmt.Errorf("%s: %w", importFile, err)
		}
	} else {
		auth.ShowCookieExtractionGuide(cmd.OutOrStdout())
		if cookies, err = promptCookies(p); err != nil {
			return err
		}
	}

	account := auth.AccountFromCookies(name, cookies)
	if err := manager.Store(account); err != nil {
		return err
	}

	ui.PrintSuccess("Account saved: " + name)
	ui.PrintInfo("Use it with", "igmedia download <username> --account "+name)
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	accounts, err := manager.List()
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(accounts) == 0 {
		fmt.Fprintln(out, "No stored accounts. Add one with 'igmedia auth add <name>'.")
		return nil
	}

	for _, account := range accounts {
		s := auth.SanitizeAccount(account)
		fmt.Fprintf(out, "%s\n", ui.Cyan(s.Username))
		fmt.Fprintf(out, "  ds_user_id: %s\n", s.DSUserID)
		fmt.Fprintf(out, "  sessionid:  %s\n", s.SessionID)
		fmt.Fprintf(out, "  csrftoken:  %s\n", s.CSRFToken)
		fmt.Fprintf(out, "  modified:   %s\n", s.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	manager, err := newCredentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Account removed: " + args[0])
	return nil
}
