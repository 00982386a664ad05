package mutation

import (
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrSnapshotCorrupt is returned when a snapshot's HTML no longer matches its
// hash.
var ErrSnapshotCorrupt = errors.New("mutation: snapshot hash mismatch")

// EncodeRecords serialises the record log of a batch. An empty log encodes
// as [] so stored batches always carry an array.
func EncodeRecords(recs []Record) ([]byte, error) {
	if len(recs) == 0 {
		return []byte("[]"), nil
	}
	data, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("mutation: encode records: %w", err)
	}
	return data, nil
}

// DecodeRecords parses a log written by EncodeRecords.
func DecodeRecords(data []byte) ([]Record, error) {
	var recs []Record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, fmt.Errorf("mutation: decode records: %w", err)
	}
	return recs, nil
}

// HashHTML returns the SHA-256 hex digest of serialised HTML.
func HashHTML(html []byte) string {
	h := sha256.Sum256(html)
	return fmt.Sprintf("%x", h)
}

// Verify checks that HTML still hashes to HTMLHash.
func (s *Snapshot) Verify() error {
	if got := HashHTML(s.HTML); got != s.HTMLHash {
		return fmt.Errorf("%w: generation %d: got %s, want %s", ErrSnapshotCorrupt, s.Generation, got, s.HTMLHash)
	}
	return nil
}
