package session

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/hazyhaar/fibre/internal/config"
	"github.com/hazyhaar/fibre/internal/sink"
	"github.com/hazyhaar/fibre/mutation"
)

// Sink is the output interface for commit batches and snapshots.
type Sink = sink.Sink

// NewStdoutSink creates a stdout JSON-lines sink.
func NewStdoutSink(w io.Writer) Sink {
	return sink.NewStdout(w)
}

// NewWebhookSink creates a webhook POST sink with retry.
func NewWebhookSink(url string, logger *slog.Logger) Sink {
	return sink.NewWebhook(url, sink.WithWebhookLogger(logger))
}

// NewCallbackSink creates an in-process callback sink.
func NewCallbackSink(
	onBatch func(ctx context.Context, batch mutation.Batch) error,
	onSnapshot func(ctx context.Context, snap mutation.Snapshot) error,
) Sink {
	return sink.NewCallback(onBatch, onSnapshot)
}

func sinkFromConfig(sc config.SinkConfig, logger *slog.Logger) Sink {
	switch sc.Type {
	case "webhook":
		return sink.NewWebhook(sc.URL,
			sink.WithWebhookRetries(sc.Retries),
			sink.WithWebhookLogger(logger),
		)
	default:
		return sink.NewStdout(os.Stdout)
	}
}
