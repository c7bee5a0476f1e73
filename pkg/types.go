package pkg

import (
	"encoding/json"
	"fmt"
	"time"
)

// Graph data types shared by the store, snapshots and consumers

// Resource names one of the lists served by the backend
type Resource string

const (
	ResourceNodes  Resource = "nodes"
	ResourceEdges  Resource = "edges"
	ResourceQuotes Resource = "quotes"
)

// Resources lists every resource in fetch order
var Resources = []Resource{ResourceNodes, ResourceEdges, ResourceQuotes}

// ParseResource converts a name into a Resource
func ParseResource(name string) (Resource, error) {
	for _, r := range Resources {
		if string(r) == name {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown resource: %q", name)
}

// Record is one opaque JSON value from a list endpoint.
// The raw bytes are kept as received.
type Record = json.RawMessage

// ChangeKind tells a subscriber what moved
type ChangeKind string

const (
	ChangeList    ChangeKind = "list"    // a list was replaced
	ChangeLoading ChangeKind = "loading" // loading flag toggled
	ChangeFailed  ChangeKind = "failed"  // a fetch failed, list untouched
)

// Change is delivered to store subscribers after a mutation
type Change struct {
	Kind     ChangeKind `json:"kind"`
	Resource Resource   `json:"resource"`
	Count    int        `json:"count"`
	Loading  bool       `json:"loading"`
	At       time.Time  `json:"at"`
}

// ResourceStatus is the fetch bookkeeping of one list
type ResourceStatus struct {
	Resource  Resource  `json:"resource"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updated_at"`
	Fetches   int       `json:"fetches"`
	LastError error     `json:"-"`
}
