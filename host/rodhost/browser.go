package rodhost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config controls the Chrome the host renders into.
type Config struct {
	// Remote is the WebSocket URL of an existing Chrome. Empty launches a
	// local one through the launcher.
	Remote string

	// Stealth is "headless" (default), "headful" or "off". Headless and
	// headful pages get the stealth evasions.
	Stealth string

	// URL is loaded before the first render. Default: about:blank.
	URL string

	// Timeout bounds every page call. Default: 30s.
	Timeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Stealth == "" {
		c.Stealth = "headless"
	}
	if c.URL == "" {
		c.URL = "about:blank"
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// connect launches Chrome (or attaches to cfg.Remote) and returns the
// browser. The launcher is nil for a remote browser.
func connect(cfg Config) (*launcher.Launcher, *rod.Browser, error) {
	log := cfg.Logger
	var (
		wsURL string
		lnch  *launcher.Launcher
	)
	if cfg.Remote != "" {
		wsURL = cfg.Remote
		log.Info("rodhost: connecting to remote", "url", wsURL)
	} else {
		lnch = launcher.New().
			Headless(cfg.Stealth != "headful").
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("rodhost: launch: %w", err)
		}
		wsURL = u
		log.Info("rodhost: launched local chrome", "url", wsURL, "stealth", cfg.Stealth)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, nil, fmt.Errorf("rodhost: connect: %w", err)
	}
	return lnch, b, nil
}

// openPage creates the render page and loads cfg.URL.
func openPage(ctx context.Context, b *rod.Browser, cfg Config) (*rod.Page, error) {
	var (
		page *rod.Page
		err  error
	)
	if cfg.Stealth == "off" {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	} else {
		page, err = stealth.Page(b)
	}
	if err != nil {
		return nil, fmt.Errorf("rodhost: create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(cfg.URL); err != nil {
		page.Close()
		return nil, fmt.Errorf("rodhost: navigate %s: %w", cfg.URL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("rodhost: wait load timeout", "url", cfg.URL, "error", err)
	}
	return page, nil
}
