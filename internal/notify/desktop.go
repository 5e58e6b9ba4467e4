package notify

import (
	"os/exec"
	"runtime"
	"strconv"
)

// DesktopNotifier sends desktop notifications
type DesktopNotifier struct {
	enabled bool
}

// NewDesktopNotifier creates a new desktop notifier
func NewDesktopNotifier(enabled bool) *DesktopNotifier {
	return &DesktopNotifier{enabled: enabled}
}

// Send sends a desktop notification
func (d *DesktopNotifier) Send(n Notification) error {
	if !d.enabled {
		return nil
	}

	switch runtime.GOOS {
	case "darwin":
		return exec.Command("osascript", "-e", appleScript(n)).Run()
	case "linux":
		return exec.Command("notify-send", "--icon", IconForType(n.Type), n.Title, n.Message).Run()
	default:
		return nil // Unsupported
	}
}

// appleScript quotes title and message as AppleScript string literals
func appleScript(n Notification) string {
	return "display notification " + strconv.Quote(n.Message) + " with title " + strconv.Quote(n.Title)
}

// IconForType returns an icon name for the notification type
func IconForType(t NotificationType) string {
	switch t {
	case NotifySuccess:
		return "dialog-positive"
	case NotifyWarning:
		return "dialog-warning"
	case NotifyError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}
