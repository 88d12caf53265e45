package ui

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// ASCIILogo is printed at the top of interactive runs
const ASCIILogo = `
  ╔═══════════════════════════════════════════╗
  ║  ╦╔═╗  ╔╦╗╔═╗╔╦╗╦╔═╗                       ║
  ║  ║║ ╦  ║║║║╣  ║║║╠═╣   images + videos     ║
  ║  ╩╚═╝  ╩ ╩╚═╝═╩╝╩╩ ╩   from any profile    ║
  ╚═══════════════════════════════════════════╝
`

var (
	neonCyan    = lipgloss.Color("#00FFFF")
	neonMagenta = lipgloss.Color("#FF00FF")
	neonGreen   = lipgloss.Color("#39FF14")
	neonYellow  = lipgloss.Color("#FFFF00")
	neonRed     = lipgloss.Color("#FF3131")
	dimWhite    = lipgloss.Color("#B0B0B0")

	cyanStyle    = lipgloss.NewStyle().Foreground(neonCyan)
	yellowStyle  = lipgloss.NewStyle().Foreground(neonYellow)
	redStyle     = lipgloss.NewStyle().Foreground(neonRed)
	greenStyle   = lipgloss.NewStyle().Foreground(neonGreen)
	magentaStyle = lipgloss.NewStyle().Foreground(neonMagenta).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(dimWhite).Faint(true)
)

// Color functions for terminal output
var (
	Cyan    = cyanStyle.Render
	Yellow  = yellowStyle.Render
	Red     = redStyle.Render
	Green   = greenStyle.Render
	Magenta = magentaStyle.Render
	Dim     = dimStyle.Render
)

var (
	mu     sync.Mutex
	output io.Writer = os.Stdout
	quiet  bool
)

// SetOutput redirects all printing, e.g. to a buffer in tests
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

// Output returns the current output writer
func Output() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return output
}

// SetQuietMode suppresses everything except errors
func SetQuietMode(q bool) {
	mu.Lock()
	defer mu.Unlock()
	quiet = q
}

// IsQuietMode reports whether quiet mode is on
func IsQuietMode() bool {
	mu.Lock()
	defer mu.Unlock()
	return quiet
}

// IsTerminal reports whether w is an interactive terminal
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func printf(always bool, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if quiet && !always {
		return
	}
	fmt.Fprintf(output, format, args...)
}

// PrintLogo prints the ASCII logo with color
func PrintLogo() {
	printf(false, "%s\n", Cyan(ASCIILogo))
}

// PrintError prints an error message in red
func PrintError(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	printf(true, "%s\n", Red(msg))
}

// PrintSuccess prints a success message in green
func PrintSuccess(msg string) {
	printf(false, "%s\n", Green(msg))
}

// PrintInfo prints an info message in cyan
func PrintInfo(label string, value string) {
	printf(false, "%s: %s\n", Cyan(label), Yellow(value))
}

// PrintWarning prints a warning message in yellow
func PrintWarning(msg string, args ...interface{}) {
	if len(args) > 0 {
		msg = msg + ": " + fmt.Sprintf("%v", args[0])
	}
	printf(false, "%s\n", Yellow(msg))
}

// PrintHighlight prints a highlighted message in magenta
func PrintHighlight(msg string) {
	printf(false, "%s\n", Magenta(msg))
}

// FormatBytes formats bytes in a human-readable way
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
