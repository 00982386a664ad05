// Package sink defines the output backends for commit batches.
package sink

import (
	"context"

	"github.com/hazyhaar/fibre/mutation"
)

// Sink receives one Batch per commit and the periodic snapshots of the host
// tree. Implementations deliver them to different backends (stdout, webhook,
// in-process callback).
type Sink interface {
	Send(ctx context.Context, batch mutation.Batch) error
	SendSnapshot(ctx context.Context, snap mutation.Snapshot) error
	Close() error
}

// envelope is the wire form shared by the stdout and webhook sinks. Container
// and Generation are lifted out of Data so consumers can route and order
// lines without decoding the payload.
type envelope struct {
	Type       string `json:"type"`
	Container  string `json:"container"`
	Generation uint64 `json:"generation"`
	Data       any    `json:"data"`
}

func batchEnvelope(b mutation.Batch) envelope {
	return envelope{Type: "batch", Container: b.Container, Generation: b.Generation, Data: b}
}

func snapshotEnvelope(s mutation.Snapshot) envelope {
	return envelope{Type: "snapshot", Container: s.Container, Generation: s.Generation, Data: s}
}
