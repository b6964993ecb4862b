package join

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nrwahl2/crmjoind/cib"
	"github.com/nrwahl2/crmjoind/cluster"
	"github.com/nrwahl2/crmjoind/fsm"
	"github.com/nrwahl2/crmjoind/transport"
)

type fakeMessenger struct {
	mu        sync.Mutex
	offers    []transport.JoinOffer
	acknaks   []transport.JoinAckNak
	onRequest func(transport.JoinRequest)
	onConfirm func(transport.JoinConfirm)
}

func (f *fakeMessenger) SendOffer(to cluster.NodeName, msg transport.JoinOffer) error {
	f.mu.Lock()
	f.offers = append(f.offers, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeMessenger) SendAckNak(to cluster.NodeName, msg transport.JoinAckNak) error {
	f.mu.Lock()
	f.acknaks = append(f.acknaks, msg)
	f.mu.Unlock()
	return nil
}

func (f *fakeMessenger) OnRequest(fn func(transport.JoinRequest)) { f.onRequest = fn }
func (f *fakeMessenger) OnConfirm(fn func(transport.JoinConfirm)) { f.onConfirm = fn }

func (f *fakeMessenger) acknakFor(node cluster.NodeName) (transport.JoinAckNak, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.acknaks {
		if m.HostTo == node {
			return m, true
		}
	}
	return transport.JoinAckNak{}, false
}

type fakeQuorum struct {
	mu         sync.Mutex
	calls      int
	haveQuorum bool
	dc         cluster.NodeName
}

func (q *fakeQuorum) PublishQuorum(haveQuorum bool, dc cluster.NodeName) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls++
	q.haveQuorum = haveQuorum
	q.dc = dc
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func knownGenAttrs(admin, epoch, num int64) map[string]string {
	return map[string]string{
		"admin_epoch":            strconv.FormatInt(admin, 10),
		"epoch":                  strconv.FormatInt(epoch, 10),
		"num_updates":            strconv.FormatInt(num, 10),
		"crm_feature_set_schema": "pacemaker-3.9",
	}
}

func newTestCoordinator(t *testing.T, local cluster.NodeName, peers ...cluster.NodeName) (*Coordinator, *cluster.PeerCache, *fakeMessenger, *fakeQuorum) {
	t.Helper()
	cache := cluster.NewPeerCache()
	cache.Put(&cluster.Peer{Name: local, IsActive: true, Expected: cluster.ExpectedMember})
	for _, p := range peers {
		cache.Put(&cluster.Peer{Name: p, IsActive: true, Expected: cluster.ExpectedMember})
	}
	msgr := &fakeMessenger{}
	quorum := &fakeQuorum{}
	coord := NewCoordinator(Config{
		LocalName: local,
		Cache:     cache,
		CibClient: cib.NewMemClient(),
		Messenger: msgr,
		Hosting:   fsm.NewMemFSM(fsm.SIntegration),
		Quorum:    quorum,
	})
	return coord, cache, msgr, quorum
}

// TestHappyPathSingleVoter covers spec §8's baseline scenario: one peer
// requests, integrates, gets acked, and confirms.
func TestHappyPathSingleVoter(t *testing.T) {
	coord, _, msgr, quorum := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	joinID := coord.JoinID()

	// dc1 admits its own generation in process (admitSelfLocked) the
	// moment StartRound runs; only node2's request is sent over the wire.
	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "node2", HostTo: "dc1", JoinID: joinID, FeatureSet: ourFeatureSet()},
		GenAttrs: knownGenAttrs(1, 1, 1),
	})

	waitFor(t, func() bool {
		_, ok := msgr.acknakFor("node2")
		return ok
	})
	ack, _ := msgr.acknakFor("node2")
	if !ack.Ack {
		t.Fatal("node2 should have been acked, not nacked")
	}

	// dc1's own confirm never round-trips over the wire either; the
	// round's own checkStateLocked dispatch finalizes and confirms it.
	msgr.onConfirm(transport.JoinConfirm{Envelope: transport.Envelope{HostFrom: "node2", HostTo: "dc1", JoinID: joinID}})

	waitFor(t, func() bool {
		return coord.pjr.Census(PhaseConfirmed) == 2
	})
	waitFor(t, func() bool {
		return quorum.calls == 1
	})
	if !quorum.haveQuorum {
		t.Fatalf("expected PublishQuorum(true, ...), got haveQuorum=%v", quorum.haveQuorum)
	}
}

// TestFilterOfferRejectsInactivePeer covers spec §4.4.3 step 4.
func TestFilterOfferRejectsInactivePeer(t *testing.T) {
	coord, cache, msgr, _ := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	joinID := coord.JoinID()

	peer, _ := cache.Get("node2")
	peer.IsActive = false

	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "node2", HostTo: "dc1", JoinID: joinID, FeatureSet: ourFeatureSet()},
		GenAttrs: knownGenAttrs(1, 1, 1),
	})

	if phaseOf(peer) != PhaseNack && phaseOf(peer) != PhaseNackQuiet {
		t.Fatalf("an inactive peer's request must be rejected, got phase %s", phaseOf(peer))
	}
}

// TestFilterOfferRejectsIncompatibleFeatureSet covers spec §4.4.3 step 6.
func TestFilterOfferRejectsIncompatibleFeatureSet(t *testing.T) {
	coord, cache, msgr, _ := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	joinID := coord.JoinID()

	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "node2", HostTo: "dc1", JoinID: joinID, FeatureSet: "9.0.0"},
		GenAttrs: knownGenAttrs(1, 1, 1),
	})

	peer, _ := cache.Get("node2")
	if phaseOf(peer) != PhaseNack && phaseOf(peer) != PhaseNackQuiet {
		t.Fatalf("an incompatible feature-set must be rejected, got phase %s", phaseOf(peer))
	}
}

// TestFilterOfferNackKindGatedByVersion covers spec §4.4.3's vocal-vs-quiet
// nack split (the Join.MinVocalNackVersion config gate).
func TestFilterOfferNackKindGatedByVersion(t *testing.T) {
	coord, cache, msgr, _ := newTestCoordinator(t, "dc1", "oldpeer", "newpeer")
	coord.StartRound()
	joinID := coord.JoinID()

	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "oldpeer", HostTo: "dc1", JoinID: joinID, FeatureSet: "3.10.0"},
	})
	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "newpeer", HostTo: "dc1", JoinID: joinID, FeatureSet: "3.18.0"},
	})

	oldpeer, _ := cache.Get("oldpeer")
	newpeer, _ := cache.Get("newpeer")
	if phaseOf(oldpeer) != PhaseNackQuiet {
		t.Errorf("a peer below MinVocalNackVersion should get a quiet nack, got %s", phaseOf(oldpeer))
	}
	if phaseOf(newpeer) != PhaseNack {
		t.Errorf("a peer at/above MinVocalNackVersion should get a visible nack, got %s", phaseOf(newpeer))
	}
}

// TestFilterOfferMissingFeatureSetIsVisibleNack resolves the Open Question
// recorded in DESIGN.md.
func TestFilterOfferMissingFeatureSetIsVisibleNack(t *testing.T) {
	coord, cache, msgr, _ := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	joinID := coord.JoinID()

	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "node2", HostTo: "dc1", JoinID: joinID, FeatureSet: ""},
		GenAttrs: knownGenAttrs(1, 1, 1),
	})

	peer, _ := cache.Get("node2")
	if phaseOf(peer) != PhaseNack {
		t.Fatalf("a missing feature_set must get a visible nack, got %s", phaseOf(peer))
	}
}

// TestStartRoundResetsPriorPhases covers I1/I2: a new round clears every
// peer back to None before offering again.
func TestStartRoundResetsPriorPhases(t *testing.T) {
	coord, cache, _, _ := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	peer, _ := cache.Get("node2")
	if phaseOf(peer) != PhaseWelcomed {
		t.Fatalf("expected node2 welcomed after first round, got %s", phaseOf(peer))
	}
	if _, err := coord.pjr.SetPhase(peer, PhaseIntegrated, "test"); err != nil {
		t.Fatal(err)
	}

	coord.StartRound()
	if phaseOf(peer) != PhaseWelcomed {
		t.Fatalf("a new round must reset and re-offer, got %s", phaseOf(peer))
	}
	if coord.JoinID() != 2 {
		t.Fatalf("JoinID should increment monotonically, got %d", coord.JoinID())
	}
}

// TestStaleRoundRequestDropped covers I1: a request tagged with an old
// join id must not affect the current round.
func TestStaleRoundRequestDropped(t *testing.T) {
	coord, cache, msgr, _ := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	coord.StartRound() // join id is now 2

	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "node2", HostTo: "dc1", JoinID: 1, FeatureSet: ourFeatureSet()},
		GenAttrs: knownGenAttrs(1, 1, 1),
	})

	peer, _ := cache.Get("node2")
	if phaseOf(peer) != PhaseWelcomed {
		t.Fatalf("a stale-round request must be dropped, peer phase should remain Welcomed, got %s", phaseOf(peer))
	}
}

// TestSyncFailureBlocklistsAndReelects covers spec §4.4.5/§4.3/§7: a CIB
// sync failure other than OldData blocklists the source and forces
// re-election rather than retrying in place.
func TestSyncFailureBlocklistsAndReelects(t *testing.T) {
	coord, _, msgr, _ := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	joinID := coord.JoinID()

	msgr.onRequest(transport.JoinRequest{
		Envelope: transport.Envelope{HostFrom: "node2", HostTo: "dc1", JoinID: joinID, FeatureSet: ourFeatureSet()},
		GenAttrs: knownGenAttrs(5, 5, 5), // strictly better than local's zero-value generation
	})

	coord.SyncCallback(joinID, "node2", cib.ErrDiffFailed)

	if _, ok := coord.sfb.Lookup("node2"); !ok {
		t.Fatal("a non-OldData sync failure must blocklist its source")
	}
	mem, ok := coord.hosting.(*fsm.MemFSM)
	if !ok {
		t.Fatal("test harness expects a *fsm.MemFSM")
	}
	inputs := mem.Inputs()
	if len(inputs) == 0 || inputs[len(inputs)-1] != fsm.IElectionDC {
		t.Fatalf("a sync failure must deliver I_ELECTION_DC to the hosting FSM, got %v", inputs)
	}
}

// TestSyncOldDataRestartsWithoutBlocklisting covers spec §4.4.5: OldData
// is transient and must never reach the SFB.
func TestSyncOldDataRestartsWithoutBlocklisting(t *testing.T) {
	coord, _, _, _ := newTestCoordinator(t, "dc1", "node2")
	coord.StartRound()
	joinID := coord.JoinID()

	coord.SyncCallback(joinID, "node2", cib.ErrOldData)

	if _, ok := coord.sfb.Lookup("node2"); ok {
		t.Fatal("ErrOldData must never blocklist its source")
	}
}
