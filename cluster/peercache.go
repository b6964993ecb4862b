package cluster

import (
	"sort"
	"sync"
)

// PeerCache is the iterable NodeName -> Peer map the join subsystem
// consumes (spec §6.3). Membership-change notifications carry a
// monotonic seq so check_state() can dedup against the highest one it
// has already reacted to.
type PeerCache struct {
	mu      sync.RWMutex
	peers   map[NodeName]*Peer
	seq     uint64
	onEvent []func(seq uint64)
}

func NewPeerCache() *PeerCache {
	return &PeerCache{peers: make(map[NodeName]*Peer)}
}

// Put inserts or replaces a peer record and bumps the membership seq.
func (c *PeerCache) Put(p *Peer) {
	c.mu.Lock()
	c.peers[p.Name] = p
	c.seq++
	seq := c.seq
	hooks := append([]func(uint64){}, c.onEvent...)
	c.mu.Unlock()
	for _, h := range hooks {
		h(seq)
	}
}

// Remove drops a peer and bumps the membership seq.
func (c *PeerCache) Remove(name NodeName) {
	c.mu.Lock()
	delete(c.peers, name)
	c.seq++
	seq := c.seq
	hooks := append([]func(uint64){}, c.onEvent...)
	c.mu.Unlock()
	for _, h := range hooks {
		h(seq)
	}
}

func (c *PeerCache) Get(name NodeName) (*Peer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.peers[name]
	return p, ok
}

// Seq returns the current membership sequence number.
func (c *PeerCache) Seq() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.seq
}

// Subscribe registers a callback invoked (with the new seq) on every
// membership change. Used by the join coordinator's check_state() to
// learn about node-join events without polling.
func (c *PeerCache) Subscribe(fn func(seq uint64)) {
	c.mu.Lock()
	c.onEvent = append(c.onEvent, fn)
	c.mu.Unlock()
}

// Each calls fn for every peer, in ascending NodeName order so that
// log output is stable regardless of map iteration order (spec §9).
func (c *PeerCache) Each(fn func(*Peer)) {
	c.mu.RLock()
	names := make([]NodeName, 0, len(c.peers))
	for n := range c.peers {
		names = append(names, n)
	}
	peers := make(map[NodeName]*Peer, len(c.peers))
	for k, v := range c.peers {
		peers[k] = v
	}
	c.mu.RUnlock()

	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	for _, n := range names {
		fn(peers[n])
	}
}
