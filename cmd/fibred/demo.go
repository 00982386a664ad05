package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/fibre/element"
	"github.com/hazyhaar/fibre/session"
)

var (
	clock = element.Func("Clock", func(props element.Props, _ []*element.Element) *element.Element {
		now := props["now"].(time.Time)
		return element.New(element.Tag("p"), element.Props{"className": "clock"},
			now.Format("15:04:05"))
	})

	tickList = element.Func("TickList", func(props element.Props, _ []*element.Element) *element.Element {
		n := props["n"].(int)
		items := make([]*element.Element, 0, n%5+1)
		for i := range n%5 + 1 {
			items = append(items, element.New(element.Tag("li"), element.Props{"data-index": i},
				fmt.Sprintf("tick %d", n-i)))
		}
		return element.New(element.Tag("ul"), nil, items)
	})
)

func app(n int, now time.Time) *element.Element {
	return element.New(element.Tag("main"), nil,
		element.New(element.Tag("h1"), nil, "fibre demo"),
		element.New(clock, element.Props{"now": now}),
		element.New(tickList, element.Props{"n": n}),
	)
}

// runDemo re-renders the demo app every second until ctx is done.
func runDemo(ctx context.Context, s *session.Session, logger *slog.Logger) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	for n := 0; ; n++ {
		if err := s.Render(ctx, app(n, time.Now())); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("demo: render: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
		}
		if n%30 == 0 {
			if st, err := s.Stats(ctx); err == nil {
				logger.Info("fibred: demo", "renders", st.Renderer.Renders, "commits", st.Commits, "generation", st.LastGeneration)
			}
		}
	}
}
