package join

import (
	"testing"

	"github.com/nrwahl2/crmjoind/cluster"
)

func newTestCache(names ...cluster.NodeName) (*cluster.PeerCache, *Registry) {
	cache := cluster.NewPeerCache()
	for _, n := range names {
		cache.Put(&cluster.Peer{Name: n, IsActive: true})
	}
	return cache, NewRegistry(cache)
}

func TestSetPhaseLegalChain(t *testing.T) {
	cache, reg := newTestCache("a")
	peer, _ := cache.Get("a")

	chain := []Phase{PhaseWelcomed, PhaseIntegrated, PhaseFinalized, PhaseConfirmed}
	for _, p := range chain {
		changed, err := reg.SetPhase(peer, p, "test")
		if err != nil {
			t.Fatalf("unexpected error advancing to %s: %v", p, err)
		}
		if !changed {
			t.Fatalf("expected changed=true advancing to %s", p)
		}
	}
}

func TestSetPhaseIllegalSkip(t *testing.T) {
	cache, reg := newTestCache("a")
	peer, _ := cache.Get("a")

	if _, err := reg.SetPhase(peer, PhaseIntegrated, "test"); err == nil {
		t.Fatal("expected an error skipping Welcomed -> Integrated directly from None")
	}
}

func TestSetPhaseUnchangedIsOkNotError(t *testing.T) {
	cache, reg := newTestCache("a")
	peer, _ := cache.Get("a")

	changed, err := reg.SetPhase(peer, PhaseNone, "test")
	if err != nil {
		t.Fatalf("setting the same phase should not error: %v", err)
	}
	if changed {
		t.Fatal("setting the same phase should report changed=false")
	}
}

func TestSetPhaseTerminalRejectAlwaysLegal(t *testing.T) {
	cache, reg := newTestCache("a")
	peer, _ := cache.Get("a")

	if _, err := reg.SetPhase(peer, PhaseWelcomed, "test"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.SetPhase(peer, PhaseNackQuiet, "test"); err != nil {
		t.Fatalf("a terminal reject must be reachable from any ordered phase: %v", err)
	}
}

func TestSetPhaseRemotePeerIsNoop(t *testing.T) {
	cache, reg := newTestCache()
	remote := &cluster.Peer{Name: "r1", IsRemote: true, IsActive: true}
	cache.Put(remote)

	changed, err := reg.SetPhase(remote, PhaseWelcomed, "test")
	if err != nil || changed {
		t.Fatalf("remote peers must never have their phase mutated: changed=%v err=%v", changed, err)
	}
	if phaseOf(remote) != PhaseNone {
		t.Fatal("remote peer's phase field must remain untouched")
	}
}

func TestCensusExcludesRemote(t *testing.T) {
	cache, reg := newTestCache("a", "b")
	a, _ := cache.Get("a")
	remote := &cluster.Peer{Name: "r1", IsRemote: true, IsActive: true}
	cache.Put(remote)

	reg.SetPhase(a, PhaseWelcomed, "test")
	// remote's phase can't legally change via SetPhase, but Census must
	// also never count it even if something else set p.Phase directly.
	remote.Phase = PhaseWelcomed

	if got := reg.Census(PhaseWelcomed); got != 1 {
		t.Errorf("Census(Welcomed) = %d, want 1 (remote peers must be excluded per I3)", got)
	}
}

func TestResetAllClearsPhases(t *testing.T) {
	cache, reg := newTestCache("a", "b")
	a, _ := cache.Get("a")
	b, _ := cache.Get("b")
	reg.SetPhase(a, PhaseWelcomed, "test")
	reg.SetPhase(b, PhaseWelcomed, "test")

	reg.ResetAll()

	if phaseOf(a) != PhaseNone || phaseOf(b) != PhaseNone {
		t.Error("ResetAll must return every peer to PhaseNone")
	}
}
