package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/fibre/host"
	"github.com/hazyhaar/fibre/host/memdom"
	"github.com/hazyhaar/fibre/host/rodhost"
	"github.com/hazyhaar/fibre/internal/config"
	"github.com/hazyhaar/fibre/mutation"
)

// Host is a host adapter that logs the mutations it applies.
type Host interface {
	host.Adapter
	TakeRecords() []mutation.Record
}

// surface is the host a session renders into and its render container.
type surface struct {
	kind      string
	adapter   Host
	container host.Node
	innerHTML func() ([]byte, error)
	close     func() error
}

func memorySurface(d *memdom.DOM) *surface {
	return &surface{
		kind:      "memory",
		adapter:   d,
		container: d.Body(),
		innerHTML: func() ([]byte, error) { return d.InnerHTML(d.Body()) },
		close:     func() error { return nil },
	}
}

func openSurface(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*surface, error) {
	switch cfg.Host.Kind {
	case "memory":
		return memorySurface(memdom.New(memdom.WithLogger(logger))), nil
	case "chrome":
		c := cfg.Host.Chrome
		h, err := rodhost.Open(ctx, rodhost.Config{
			Remote:  c.Remote,
			Stealth: c.Stealth,
			URL:     c.URL,
			Timeout: c.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("session: open chrome host: %w", err)
		}
		return &surface{
			kind:      "chrome",
			adapter:   h,
			container: rodhost.Body,
			innerHTML: func() ([]byte, error) { return h.InnerHTML(rodhost.Body) },
			close:     h.Close,
		}, nil
	default:
		return nil, fmt.Errorf("session: unknown host kind %q", cfg.Host.Kind)
	}
}
