package mutation

// Snapshot is the complete serialised host tree after a commit.
type Snapshot struct {
	ID         string `json:"id"` // UUIDv7
	Container  string `json:"container"`
	Generation uint64 `json:"generation"`
	HTML       []byte `json:"html"`
	HTMLHash   string `json:"html_hash"` // SHA-256 hex
	Timestamp  int64  `json:"timestamp"` // epoch milliseconds
}
