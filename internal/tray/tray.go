// Package tray shows the bridge in the Windows notification area with the
// game client's connection state, a shortcut to the status page and Exit.
package tray

import (
	_ "embed"
	"log"
	"os/exec"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"fyne.io/systray"
)

//go:embed icon.ico
var iconData []byte

const defaultStatusInterval = 2 * time.Second

type Options struct {
	// URL is opened by "Open Browser".
	URL string
	// Connected reports whether the game client is alive. Optional.
	Connected func() bool
	// StatusInterval is how often Connected is polled (default 2s).
	StatusInterval time.Duration
	// OnExit is called once when "Exit" is clicked.
	OnExit func()
}

type Tray struct {
	opts         Options
	once         sync.Once
	shuttingDown atomic.Bool
	done         chan struct{}

	menuStatus *systray.MenuItem
	menuOpen   *systray.MenuItem
	menuExit   *systray.MenuItem
}

func New(opts Options) *Tray {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = defaultStatusInterval
	}
	if opts.OnExit == nil {
		opts.OnExit = func() {}
	}
	return &Tray{opts: opts, done: make(chan struct{})}
}

// Run shows the tray icon and blocks until Exit is clicked or Quit is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the icon, e.g. when the bridge shuts down for another reason.
func (t *Tray) Quit() {
	if t.shuttingDown.CompareAndSwap(false, true) {
		systray.Quit()
	}
}

func (t *Tray) onReady() {
	systray.SetIcon(iconData)
	systray.SetTitle("JoyBridge")
	systray.SetTooltip("JoyBridge - " + t.opts.URL)

	t.menuStatus = systray.AddMenuItem(statusLabel(false), "Game client heartbeat state")
	t.menuStatus.Disable()
	if t.opts.Connected == nil {
		t.menuStatus.Hide()
	}
	systray.AddSeparator()
	t.menuOpen = systray.AddMenuItem("Open Browser", "Open the bridge status page")
	t.menuExit = systray.AddMenuItem("Exit", "Stop the bridge")

	go t.handleMenuClicks()
	if t.opts.Connected != nil {
		go t.watchStatus()
	}

	log.Println("System tray initialized")
}

func (t *Tray) handleMenuClicks() {
	for {
		select {
		case <-t.done:
			return
		case <-t.menuOpen.ClickedCh:
			t.openBrowser()
		case <-t.menuExit.ClickedCh:
			if t.shuttingDown.CompareAndSwap(false, true) {
				t.once.Do(t.opts.OnExit)
				systray.Quit()
				return
			}
		}
	}
}

// watchStatus keeps the status item in sync with the game client.
func (t *Tray) watchStatus() {
	ticker := time.NewTicker(t.opts.StatusInterval)
	defer ticker.Stop()

	var last *bool
	for {
		connected := t.opts.Connected()
		if last == nil || *last != connected {
			t.menuStatus.SetTitle(statusLabel(connected))
			last = &connected
		}
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
	}
}

func (t *Tray) onExit() {
	t.shuttingDown.Store(true)
	close(t.done)
	log.Println("System tray exiting")
}

func statusLabel(connected bool) string {
	if connected {
		return "Game client: connected"
	}
	return "Game client: waiting for heartbeat"
}

// browserCommand returns the command that opens url in the default browser.
func browserCommand(goos, url string) *exec.Cmd {
	switch goos {
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		return exec.Command("open", url)
	default:
		return exec.Command("xdg-open", url)
	}
}

func (t *Tray) openBrowser() {
	if t.shuttingDown.Load() {
		return
	}
	if err := browserCommand(runtime.GOOS, t.opts.URL).Start(); err != nil {
		log.Printf("Failed to open browser: %v", err)
	}
}
