// Package mutation defines the commit log emitted by a fibre session.
//
// Every commit of the reconciler produces one Batch: the host mutations it
// applied, in order, located by XPath. Snapshots carry the full serialised
// host tree and anchor the incremental batches that follow them.
package mutation

// Op is the type of host mutation applied by a commit.
type Op string

const (
	OpInsert   Op = "insert"   // node attached (HTML holds the serialised subtree)
	OpRemove   Op = "remove"   // node detached
	OpText     Op = "text"     // text node value changed
	OpAttr     Op = "attr"     // attribute set
	OpAttrDel  Op = "attr_del" // attribute removed
	OpListen   Op = "listen"   // event listener (re)bound
	OpUnlisten Op = "unlisten" // event listener removed
)

// Record is a single host mutation.
type Record struct {
	Op       Op     `json:"op"`
	XPath    string `json:"xpath"`
	NodeType int    `json:"node_type,omitempty"` // 1=element, 3=text
	Tag      string `json:"tag,omitempty"`
	Name     string `json:"name,omitempty"` // attribute or event name
	Value    string `json:"value,omitempty"`
	OldValue string `json:"old_value,omitempty"`
	HTML     string `json:"html,omitempty"`
}

// Effects counts the effect tags a commit applied.
type Effects struct {
	Placements int `json:"placements"`
	Updates    int `json:"updates"`
	Deletions  int `json:"deletions"`
	PropSets   int `json:"prop_sets"`
}

// Batch is everything one commit did to one container.
type Batch struct {
	ID          string   `json:"id"` // UUIDv7
	Container   string   `json:"container"`
	Generation  uint64   `json:"generation"` // increases by one per commit (gap detection)
	Records     []Record `json:"records"`
	Effects     Effects  `json:"effects"`
	Units       int      `json:"units"`       // units of work performed by the pass
	Ticks       int      `json:"ticks"`       // scheduler slices the pass spanned
	DurationUS  int64    `json:"duration_us"` // from Render to the end of the commit
	Timestamp   int64    `json:"timestamp"`   // epoch milliseconds
	SnapshotRef string   `json:"snapshot_ref"`
}
