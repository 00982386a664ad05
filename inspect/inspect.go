// Package inspect serves a read-only HTTP view of a running fibre session:
// the committed host tree (sanitised HTML, Markdown, fibers), the commit log
// and the session counters.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/fibre/kit"
	"github.com/hazyhaar/fibre/mutation"
	"github.com/hazyhaar/fibre/observability"
	"github.com/hazyhaar/fibre/session"
)

// Source is what the inspector reads. *session.Session implements it.
type Source interface {
	HTML(ctx context.Context) ([]byte, error)
	Markdown(ctx context.Context) (string, error)
	Tree(ctx context.Context) ([]session.TreeNode, error)
	Stats(ctx context.Context) (session.Stats, error)
	Commits(ctx context.Context, limit int) ([]*mutation.Batch, error)
	LatestSnapshot(ctx context.Context) (*mutation.Snapshot, error)
	Metrics(ctx context.Context) ([]observability.Summary, error)
}

type server struct {
	src    Source
	logger *slog.Logger
	policy *bluemonday.Policy
}

// Handler returns the inspector routes. A nil logger means slog.Default().
func Handler(src Source, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &server{src: src, logger: logger, policy: bluemonday.UGCPolicy()}

	r := chi.NewRouter()
	r.Use(headToGet, securityHeaders, requestID(logger))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/tree", s.endpoint("tree_html", s.treeHTML, writeHTML))
	r.Get("/tree.md", s.endpoint("tree_markdown", s.treeMarkdown, writeMarkdown))
	r.Get("/tree.json", s.endpoint("tree_fibers", s.treeFibers, writeJSONOK))
	r.Get("/commits", s.endpoint("commits", s.commits, writeJSONOK))
	r.Get("/snapshots/latest", s.endpoint("latest_snapshot", s.latestSnapshot, writeJSONOK))
	r.Get("/stats", s.endpoint("stats", s.stats, writeJSONOK))
	r.Get("/metrics", s.endpoint("metrics", s.metrics, writeJSONOK))
	return r
}

// endpoint adapts a kit.Endpoint taking the *http.Request to a handler.
func (s *server) endpoint(name string, ep kit.Endpoint, write func(http.ResponseWriter, any)) http.HandlerFunc {
	ep = kit.Chain(kit.Logging(s.logger, name))(ep)
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := ep(r.Context(), r)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		write(w, resp)
	}
}

var (
	errNotFound   = errors.New("not found")
	errBadRequest = errors.New("bad request")
)

func statusOf(err error) int {
	switch {
	case errors.Is(err, errNotFound), errors.Is(err, session.ErrNoStore):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotStarted):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *server) treeHTML(ctx context.Context, _ any) (any, error) {
	html, err := s.src.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return s.policy.SanitizeBytes(html), nil
}

func (s *server) treeMarkdown(ctx context.Context, _ any) (any, error) {
	return s.src.Markdown(ctx)
}

func (s *server) treeFibers(ctx context.Context, _ any) (any, error) {
	return s.src.Tree(ctx)
}

func (s *server) commits(ctx context.Context, req any) (any, error) {
	limit := 50
	if v := req.(*http.Request).URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("%w: limit must be a positive integer", errBadRequest)
		}
		limit = min(n, 1000)
	}
	batches, err := s.src.Commits(ctx, limit)
	if err != nil {
		return nil, err
	}
	if batches == nil {
		batches = []*mutation.Batch{}
	}
	return batches, nil
}

func (s *server) latestSnapshot(ctx context.Context, _ any) (any, error) {
	snap, err := s.src.LatestSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: no snapshot yet", errNotFound)
	}
	return snap, nil
}

func (s *server) stats(ctx context.Context, _ any) (any, error) {
	return s.src.Stats(ctx)
}

func (s *server) metrics(ctx context.Context, _ any) (any, error) {
	return s.src.Metrics(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONOK(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeHTML(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(v.([]byte))
}

func writeMarkdown(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(v.(string)))
}
