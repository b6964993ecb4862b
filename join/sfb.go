package join

import (
	"sync"

	"github.com/nrwahl2/crmjoind/cluster"
)

// Blocklist is the Sync-Failure Blocklist (SFB, spec §4.3): it remembers
// peers whose CIB sync failed in a prior round so a retry gets nacked
// instead of re-selected as best_cib_from.
type Blocklist struct {
	mu     sync.Mutex
	failed map[cluster.NodeName]uint32
}

func NewBlocklist() *Blocklist {
	return &Blocklist{failed: make(map[cluster.NodeName]uint32)}
}

// Record marks node as having failed a sync in joinID.
func (b *Blocklist) Record(node cluster.NodeName, joinID uint32) {
	b.mu.Lock()
	b.failed[node] = joinID
	b.mu.Unlock()
}

// Lookup returns the round a prior sync from node failed in, if any.
func (b *Blocklist) Lookup(node cluster.NodeName) (joinID uint32, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	joinID, ok = b.failed[node]
	return
}

// Remove clears node's record, e.g. after it successfully rejoins.
func (b *Blocklist) Remove(node cluster.NodeName) {
	b.mu.Lock()
	delete(b.failed, node)
	b.mu.Unlock()
}

// ClearAll drops every record.
func (b *Blocklist) ClearAll() {
	b.mu.Lock()
	b.failed = make(map[cluster.NodeName]uint32)
	b.mu.Unlock()
}
