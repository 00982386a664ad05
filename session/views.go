package session

import (
	"context"
	"fmt"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/hazyhaar/fibre/fiber"
	"github.com/hazyhaar/fibre/host"
	"github.com/hazyhaar/fibre/mutation"
	"github.com/hazyhaar/fibre/observability"
)

// TreeNode is a printable fiber of the current tree.
type TreeNode struct {
	Depth int               `json:"depth"`
	Kind  string            `json:"kind"`
	Name  string            `json:"name"`
	Props map[string]string `json:"props,omitempty"`
}

// Stats is a point-in-time view of the session.
type Stats struct {
	Host           string      `json:"host"`
	Renderer       fiber.Stats `json:"renderer"`
	Pending        bool        `json:"pending"`
	Commits        int         `json:"commits"`
	Snapshots      int         `json:"snapshots"`
	LastGeneration uint64      `json:"last_generation"`
	LastSnapshot   string      `json:"last_snapshot,omitempty"`
	LastError      string      `json:"last_error,omitempty"`
	GenerationGaps int         `json:"generation_gaps"`
}

var mdConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(),
	),
)

// Tree returns the committed fiber tree of the container, root first.
func (s *Session) Tree(ctx context.Context) ([]TreeNode, error) {
	var infos []fiber.FiberInfo
	if err := s.do(ctx, func() { infos = s.renderer.Current(s.surf.container) }); err != nil {
		return nil, err
	}
	out := make([]TreeNode, 0, len(infos))
	for _, fi := range infos {
		out = append(out, TreeNode{
			Depth: fi.Depth,
			Kind:  fi.Kind.String(),
			Name:  fi.Name(),
			Props: printable(fi),
		})
	}
	return out, nil
}

func printable(fi fiber.FiberInfo) map[string]string {
	if len(fi.Props) == 0 || fi.Kind == fiber.KindRoot {
		return nil
	}
	out := make(map[string]string, len(fi.Props))
	for k, v := range fi.Props {
		if host.IsListener(k) {
			out[k] = "listener"
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

// HTML returns the committed markup of the container.
func (s *Session) HTML(ctx context.Context) ([]byte, error) {
	var (
		html []byte
		err  error
	)
	if derr := s.do(ctx, func() { html, err = s.surf.innerHTML() }); derr != nil {
		return nil, derr
	}
	if err != nil {
		return nil, fmt.Errorf("session: html: %w", err)
	}
	return html, nil
}

// Markdown returns the committed content of the container as Markdown.
func (s *Session) Markdown(ctx context.Context) (string, error) {
	html, err := s.HTML(ctx)
	if err != nil {
		return "", err
	}
	md, err := mdConverter.ConvertString(string(html))
	if err != nil {
		return "", fmt.Errorf("session: markdown: %w", err)
	}
	return md, nil
}

// Stats returns the renderer and session counters.
func (s *Session) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.do(ctx, func() {
		st.Renderer = s.renderer.Stats()
		st.Pending = s.renderer.Pending()
	})
	if err != nil {
		return st, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st.Host = s.surf.kind
	st.Commits = s.commits
	st.Snapshots = s.snapshots
	st.LastSnapshot = s.lastSnap
	st.GenerationGaps = s.sinkR.Gaps()
	if s.last != nil {
		st.LastGeneration = s.last.Generation
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st, nil
}

// LastBatch returns the batch of the latest commit, or nil.
func (s *Session) LastBatch() *mutation.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Commits lists the persisted batches, newest first.
func (s *Session) Commits(ctx context.Context, limit int) ([]*mutation.Batch, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.ListBatches(ctx, Container, limit)
}

// LatestSnapshot returns the newest persisted snapshot, or nil.
func (s *Session) LatestSnapshot(ctx context.Context) (*mutation.Snapshot, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store.LatestSnapshot(ctx, Container)
}

// Metrics summarises the persisted per-commit metrics.
func (s *Session) Metrics(ctx context.Context) ([]observability.Summary, error) {
	if s.metrics == nil {
		return nil, ErrNoStore
	}
	s.metrics.Flush()
	names := []string{
		observability.MetricCommitMs,
		observability.MetricUnits,
		observability.MetricTicks,
		observability.MetricPlacements,
		observability.MetricUpdates,
		observability.MetricDeletions,
		observability.MetricRecords,
	}
	out := make([]observability.Summary, 0, len(names))
	for _, n := range names {
		sum, err := s.metrics.Summarise(ctx, n)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}
