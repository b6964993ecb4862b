package cluster

import "testing"

func TestPeerCachePutGet(t *testing.T) {
	c := NewPeerCache()
	p := &Peer{Name: "node1", IsActive: true}
	c.Put(p)

	got, ok := c.Get("node1")
	if !ok || got != p {
		t.Fatalf("Get after Put = (%v, %v), want the same pointer", got, ok)
	}
}

func TestPeerCacheSeqBumpsOnMutation(t *testing.T) {
	c := NewPeerCache()
	start := c.Seq()
	c.Put(&Peer{Name: "node1"})
	if c.Seq() == start {
		t.Error("Put should bump the membership sequence")
	}
	afterPut := c.Seq()
	c.Remove("node1")
	if c.Seq() == afterPut {
		t.Error("Remove should bump the membership sequence")
	}
}

func TestPeerCacheSubscribeFiresOnChange(t *testing.T) {
	c := NewPeerCache()
	var got uint64
	calls := 0
	c.Subscribe(func(seq uint64) {
		got = seq
		calls++
	})
	c.Put(&Peer{Name: "node1"})
	if calls != 1 {
		t.Fatalf("expected exactly one subscriber call, got %d", calls)
	}
	if got != c.Seq() {
		t.Fatalf("subscriber saw seq %d, want %d", got, c.Seq())
	}
}

func TestPeerCacheEachIsSortedByName(t *testing.T) {
	c := NewPeerCache()
	c.Put(&Peer{Name: "charlie"})
	c.Put(&Peer{Name: "alpha"})
	c.Put(&Peer{Name: "bravo"})

	var order []NodeName
	c.Each(func(p *Peer) { order = append(order, p.Name) })

	want := []NodeName{"alpha", "bravo", "charlie"}
	if len(order) != len(want) {
		t.Fatalf("Each visited %d peers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("Each order = %v, want %v", order, want)
		}
	}
}
