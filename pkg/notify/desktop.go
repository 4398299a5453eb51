package notify

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"runtime"
	"strings"
	"sync"
	"time"

	"tweetwatch/pkg/logger"
	"tweetwatch/pkg/ui"
)

// AppName identifies notifications from this program.
const AppName = "tweetwatch"

// ErrUnsupportedPlatform is returned where no desktop backend exists.
var ErrUnsupportedPlatform = errors.New("desktop notifications are not supported on this platform")

// DefaultActionWait bounds how long a Linux notification waits for its
// "Open post" action to be chosen.
const DefaultActionWait = 2 * time.Minute

const openAction = "open"

// DesktopNotifier shows native notifications: notify-send on Linux,
// osascript on macOS and a PowerShell toast on Windows. Notifications with
// a link carry an "Open post" action on Linux and Windows.
type DesktopNotifier struct {
	// ActionWait overrides DefaultActionWait.
	ActionWait time.Duration

	goos string
	run  runner
	log  logger.Logger

	once    sync.Once
	base    context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
}

func NewDesktopNotifier(log logger.Logger) *DesktopNotifier {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DesktopNotifier{goos: runtime.GOOS, run: execRunner, log: log}
}

func (d *DesktopNotifier) Notify(ctx context.Context, msg Message) error {
	switch d.goos {
	case "linux", "freebsd", "openbsd":
		if msg.Link == "" {
			_, err := d.run(ctx, "notify-send", "--app-name="+AppName, msg.Title, msg.Body)
			return err
		}
		d.init()
		if d.base.Err() != nil {
			return errNotifierClosed
		}
		// --wait blocks until the notification is dismissed
		d.pending.Add(1)
		go d.awaitAction(msg)
		return nil
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s subtitle %s",
			appleQuote(msg.Body), appleQuote(msg.Title), appleQuote(msg.Link))
		_, err := d.run(ctx, "osascript", "-e", script)
		return err
	case "windows":
		_, err := d.run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", windowsToastScript(msg))
		return err
	default:
		return ErrUnsupportedPlatform
	}
}

var errNotifierClosed = errors.New("desktop notifier is closed")

func (d *DesktopNotifier) init() {
	d.once.Do(func() {
		d.base, d.cancel = context.WithCancel(context.Background())
	})
}

// awaitAction shows msg with an "Open post" action and opens the link if
// the user picks it. notify-send builds without --action get a plain
// notification instead.
func (d *DesktopNotifier) awaitAction(msg Message) {
	defer d.pending.Done()

	log := d.log
	if log == nil {
		log = logger.GetLogger()
	}
	wait := d.ActionWait
	if wait <= 0 {
		wait = DefaultActionWait
	}
	ctx, cancel := context.WithTimeout(d.base, wait)
	defer cancel()

	body := msg.Body + "\n" + msg.Link
	out, err := d.run(ctx, "notify-send", "--app-name="+AppName,
		"--action="+openAction+"=Open post", "--wait", msg.Title, body)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		plainCtx, plainCancel := context.WithTimeout(d.base, 10*time.Second)
		defer plainCancel()
		if _, err := d.run(plainCtx, "notify-send", "--app-name="+AppName, msg.Title, body); err != nil {
			log.WithError(err).Warn("Desktop notification failed")
		}
		return
	}

	if strings.TrimSpace(string(out)) != openAction {
		return
	}
	if err := openLink(d.base, d.goos, d.run, msg.Link); err != nil {
		log.WithError(err).WarnWithFields("Could not open post", map[string]interface{}{"link": msg.Link})
	}
}

// Close abandons notifications still waiting for an action.
func (d *DesktopNotifier) Close() {
	d.init()
	d.cancel()
	d.pending.Wait()
}

func windowsToastScript(msg Message) string {
	var toast bytes.Buffer
	toast.WriteString(`<toast><visual><binding template="ToastGeneric"><text>`)
	xml.EscapeText(&toast, []byte(msg.Title))
	toast.WriteString(`</text><text>`)
	xml.EscapeText(&toast, []byte(msg.Body))
	toast.WriteString(`</text></binding></visual>`)
	if msg.Link != "" {
		toast.WriteString(`<actions><action content="Open post" activationType="protocol" arguments="`)
		xml.EscapeText(&toast, []byte(msg.Link))
		toast.WriteString(`"/></actions>`)
	}
	toast.WriteString(`</toast>`)

	return fmt.Sprintf(`[Windows.UI.Notifications.ToastNotificationManager, Windows.UI.Notifications, ContentType = WindowsRuntime] | Out-Null
[Windows.Data.Xml.Dom.XmlDocument, Windows.Data.Xml.Dom.XmlDocument, ContentType = WindowsRuntime] | Out-Null
$doc = [Windows.Data.Xml.Dom.XmlDocument]::new()
$doc.LoadXml(%s)
$toast = [Windows.UI.Notifications.ToastNotification]::new($doc)
[Windows.UI.Notifications.ToastNotificationManager]::CreateToastNotifier(%s).Show($toast)`,
		psQuote(toast.String()), psQuote(AppName))
}

// ConsoleNotifier prints notifications to a terminal.
type ConsoleNotifier struct {
	Out io.Writer
}

func (c ConsoleNotifier) Notify(ctx context.Context, msg Message) error {
	out := c.Out
	if out == nil {
		out = ui.Out
	}
	_, err := fmt.Fprintf(out, "\n%s\n%s\n", ui.Cyan(msg.Title), msg.Body)
	if err == nil && msg.Link != "" {
		_, err = fmt.Fprintln(out, ui.Dim(msg.Link))
	}
	return err
}

// NewNotifier picks a notifier for the configured notification type.
func NewNotifier(kind string) Notifier {
	switch kind {
	case "desktop":
		return NewDesktopNotifier(nil)
	case "console":
		return ConsoleNotifier{}
	default:
		return NopNotifier{}
	}
}

func openLink(ctx context.Context, goos string, run runner, link string) error {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("refusing to open %q: not an http(s) link", link)
	}

	switch goos {
	case "darwin":
		_, err = run(ctx, "open", u.String())
	case "windows":
		_, err = run(ctx, "rundll32", "url.dll,FileProtocolHandler", u.String())
	default:
		_, err = run(ctx, "xdg-open", u.String())
	}
	return err
}
