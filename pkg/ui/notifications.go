package ui

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// NotificationSender delivers a desktop notification
type NotificationSender interface {
	Send(title, message string) error
}

// commandSender runs a platform notification command
type commandSender struct {
	build func(title, message string) *exec.Cmd
}

func (c commandSender) Send(title, message string) error {
	return c.build(title, message).Run()
}

// platformSender returns the sender for goos, or nil when unsupported
func platformSender(goos string) NotificationSender {
	switch goos {
	case "linux":
		return commandSender{build: func(title, message string) *exec.Cmd {
			return exec.Command("notify-send", "--app-name=igmedia", title, message)
		}}
	case "darwin":
		return commandSender{build: func(title, message string) *exec.Cmd {
			script := fmt.Sprintf(`display notification %q with title %q`, message, title)
			return exec.Command("osascript", "-e", script)
		}}
	case "windows":
		return commandSender{build: func(title, message string) *exec.Cmd {
			script := fmt.Sprintf(`[reflection.assembly]::loadwithpartialname('System.Windows.Forms') | Out-Null;
$n = New-Object System.Windows.Forms.NotifyIcon; $n.Icon = [System.Drawing.SystemIcons]::Information;
$n.Visible = $true; $n.ShowBalloonTip(5000, '%s', '%s', 'Info')`,
				strings.ReplaceAll(title, "'", "''"), strings.ReplaceAll(message, "'", "''"))
			return exec.Command("powershell", "-NoProfile", "-NonInteractive", "-Command", script)
		}}
	default:
		return nil
	}
}

// Notifier reports run completion on the console and, when supported, the desktop
type Notifier struct {
	sender NotificationSender
}

// NewNotifier creates a Notifier for the current platform
func NewNotifier() *Notifier {
	return &Notifier{sender: platformSender(runtime.GOOS)}
}

// NewNotifierWithSender creates a Notifier with a custom sender. sender may be nil.
func NewNotifierWithSender(sender NotificationSender) *Notifier {
	return &Notifier{sender: sender}
}

// SendSuccess reports a finished run
func (n *Notifier) SendSuccess(title, message string) {
	printf(false, "\n%s: %s\n", Green(title), Green(message))
	n.send(title, message)
}

// SendError reports a failed run
func (n *Notifier) SendError(title, message string) {
	printf(true, "\n%s: %s\n", Red(title), Red(message))
	n.send(title, message)
}

func (n *Notifier) send(title, message string) {
	if n.sender == nil {
		return
	}
	// desktop notifications are best effort
	_ = n.sender.Send(title, message)
}
