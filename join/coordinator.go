package join

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/nrwahl2/crmjoind/alerts"
	"github.com/nrwahl2/crmjoind/cib"
	"github.com/nrwahl2/crmjoind/cluster"
	"github.com/nrwahl2/crmjoind/cmn"
	"github.com/nrwahl2/crmjoind/fsm"
	"github.com/nrwahl2/crmjoind/transport"
	"github.com/nrwahl2/crmjoind/xmlcodec"
)

// lrmStateXPath, formatted with the local node's name, selects the local
// executor-state snapshot out of the local CIB, used by ProcessAck when
// the confirming peer is the DC itself (spec §4.4.6).
const lrmStateXPath = "//node_state[@uname='%s']/lrm"

// QuorumPublisher is the scheduler-facing collaborator join_final talks
// to (spec §4.4.8). The scheduler itself is out of scope (spec §1).
type QuorumPublisher interface {
	PublishQuorum(haveQuorum bool, dc cluster.NodeName)
}

// Coordinator is the Join Coordinator FSM (JC, spec §4.4): it is
// externally driven (cluster events, incoming messages, CIB callbacks)
// and owns the active JoinRound. One Coordinator value per hosting
// controller (spec §9: no file-scope globals); tests construct isolated
// instances.
type Coordinator struct {
	mu sync.Mutex

	localName cluster.NodeName
	cache     *cluster.PeerCache
	pjr       *Registry
	gc        *Comparator
	sfb       *Blocklist
	codec     *xmlcodec.Codec

	cibClient cib.Client
	messenger transport.Messenger
	hosting   fsm.HostingFSM
	quorum    QuorumPublisher
	alertSink alerts.Sink

	history *History
	round   *Round

	highestSeqHandled uint64
	refSeq            uint64
}

// Config bundles the collaborators a Coordinator needs; all are
// external per spec §6.
type Config struct {
	LocalName cluster.NodeName
	Cache     *cluster.PeerCache
	CibClient cib.Client
	Messenger transport.Messenger
	Hosting   fsm.HostingFSM
	Quorum    QuorumPublisher
	AlertSink alerts.Sink
}

func NewCoordinator(cfg Config) *Coordinator {
	if cfg.AlertSink == nil {
		cfg.AlertSink = alerts.GlogSink{}
	}
	c := &Coordinator{
		localName: cfg.LocalName,
		cache:     cfg.Cache,
		pjr:       NewRegistry(cfg.Cache),
		gc:        &Comparator{},
		sfb:       NewBlocklist(),
		codec:     xmlcodec.New(),
		cibClient: cfg.CibClient,
		messenger: cfg.Messenger,
		hosting:   cfg.Hosting,
		quorum:    cfg.Quorum,
		alertSink: cfg.AlertSink,
		history:   NewHistory(cmn.GCO.Get().Join.RoundHistorySize),
		round:     &Round{},
	}
	if cfg.Messenger != nil {
		cfg.Messenger.OnRequest(c.HandleRequest)
		cfg.Messenger.OnConfirm(c.HandleConfirm)
	}
	if cfg.Cache != nil {
		cfg.Cache.Subscribe(func(uint64) { c.CheckState() })
	}
	return c
}

func (c *Coordinator) nextRefID(kind string) string {
	seq := atomic.AddUint64(&c.refSeq, 1)
	return transport.NewRefID(c.round.JoinID, c.localName, kind, seq)
}

func ourFeatureSet() string { return cmn.GCO.Get().Join.FeatureSet }

// nackKind applies the feature-set gate from spec §4.4.3: peers older
// than Join.MinVocalNackVersion get the silent variant so they don't
// respawn in a nack loop. A peer that sent no feature_set at all is
// assumed current (visible Nack) rather than silently dropped, since we
// have no evidence it is an old build.
func nackKind(peerFeatureSet string) Phase {
	if peerFeatureSet == "" {
		return PhaseNack
	}
	theirs := ParseFeatureSet(peerFeatureSet)
	min := ParseFeatureSet(cmn.GCO.Get().Join.MinVocalNackVersion)
	if theirs.Less(min) {
		return PhaseNackQuiet
	}
	return PhaseNack
}

// StartRound is offer_all (spec §4.4.1): a new round begins, every
// active non-remote peer other than the local node gets a JoinOffer (the
// local node is admitted in process instead), and scheduling is withheld
// until the round finishes.
func (c *Coordinator) StartRound() {
	c.mu.Lock()
	defer c.mu.Unlock()

	nextID := c.round.JoinID + 1
	c.round = &Round{
		JoinID:       nextID,
		MembershipID: c.cache.Seq(),
		startedAt:    time.Now(),
	}
	c.highestSeqHandled = c.round.MembershipID
	c.gc.Reset()
	c.pjr.ResetAll()
	c.hosting.SetFlag(fsm.RHaveCib, false)
	c.hosting.SetFlag(fsm.RCibAsked, false)
	c.hosting.SetState(fsm.SIntegration)

	dcLeaving := c.hosting.Flag(fsm.RShutdown)
	fs := ourFeatureSet()

	c.cache.Each(func(p *cluster.Peer) {
		if p.IsRemote || p.Name == c.localName {
			return // I3; the local node is admitted in-process below
		}
		if !p.IsActive {
			if p.WasLost && p.Expected == cluster.ExpectedUnknown {
				p.Expected = cluster.ExpectedDown
			}
			return
		}
		c.sendOffer(p, fs, dcLeaving)
		if _, err := c.pjr.SetPhase(p, PhaseWelcomed, "start-round"); err != nil {
			glog.Errorf("join: start-round could not welcome %s: %v", p.Name, err)
		}
	})
	c.admitSelfLocked("start-round")
	glog.Infof("join: round %d started (membership=%d)", c.round.JoinID, c.round.MembershipID)
	c.checkStateLocked()
}

// admitSelfLocked folds the local node's own current CIB generation into
// the round without a wire round trip (spec §4.4.2's local-offer case):
// nothing answers a JoinOffer the DC would send to its own control-plane
// address, so StartRound and OfferOne call this directly instead of
// routing the local node through sendOffer/filterOfferLocked. A no-op
// once the local node has already been admitted this round.
func (c *Coordinator) admitSelfLocked(source string) {
	local, ok := c.cache.Get(c.localName)
	if !ok || local.IsRemote {
		return
	}
	if phaseOf(local) != PhaseNone {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmn.GCO.Get().Timeout.CplaneOperation)
	defer cancel()
	gen, err := c.cibClient.LocalGeneration(ctx)
	if err != nil {
		glog.Errorf("join: could not read local generation, err: %v", err)
		return
	}

	decision := c.gc.Offer(gen, c.localName, c.localName)
	if decision == DecisionReject {
		glog.Errorf("join: local generation carries unknown schema %q, self-nacking", gen.ValidationSchema)
		if _, err := c.pjr.SetPhase(local, PhaseNack, source); err != nil {
			glog.Errorf("join: could not self-nack: %v", err)
		}
		return
	}

	best, from, _ := c.gc.Best()
	c.round.BestCibGen = best
	c.round.BestCibFrom = from
	c.round.HaveBestGen = true

	if _, err := c.pjr.SetPhase(local, PhaseWelcomed, source); err != nil {
		glog.Errorf("join: could not welcome self: %v", err)
		return
	}
	if _, err := c.pjr.SetPhase(local, PhaseIntegrated, source); err != nil {
		glog.Errorf("join: could not integrate self: %v", err)
		return
	}
	local.Expected = cluster.ExpectedMember
}

func (c *Coordinator) sendOffer(p *cluster.Peer, featureSet string, dcLeaving bool) {
	msg := transport.JoinOffer{
		Envelope: transport.Envelope{
			HostFrom:   c.localName,
			HostTo:     p.Name,
			JoinID:     c.round.JoinID,
			FeatureSet: featureSet,
			RefID:      c.nextRefID("offer"),
		},
		DCLeaving: dcLeaving,
	}
	if err := c.messenger.SendOffer(p.Name, msg); err != nil {
		glog.Warningf("join: failed to send offer to %s, err: %v", p.Name, err)
	}
}

// OfferOne is the "a new unknown node appears" path (spec §4.4.2).
func (c *Coordinator) OfferOne(node cluster.NodeName) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.hosting.Abort("Node join")

	peer, ok := c.cache.Get(node)
	if !ok {
		glog.Errorf("join: offer-one for unknown node %s", node)
		return
	}
	if peer.IsRemote {
		return
	}

	if node == c.localName {
		c.admitSelfLocked("offer-one")
	} else {
		fs := ourFeatureSet()
		dcLeaving := c.hosting.Flag(fsm.RShutdown)
		c.sendOffer(peer, fs, dcLeaving)
		if _, err := c.pjr.SetPhase(peer, PhaseWelcomed, "offer-one"); err != nil {
			glog.Errorf("join: offer-one could not welcome %s: %v", peer.Name, err)
		}
		c.admitSelfLocked("offer-one-self")
	}
	c.checkStateLocked()
}

// HandleRequest adapts a raw transport.JoinRequest to FilterOffer; it is
// what gets wired as the messenger's OnRequest callback.
func (c *Coordinator) HandleRequest(req transport.JoinRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterOfferLocked(req)
}

// FilterOffer is exported for tests and for callers that already hold no
// lock of their own; it is equivalent to HandleRequest.
func (c *Coordinator) FilterOffer(req transport.JoinRequest) {
	c.HandleRequest(req)
}

func (c *Coordinator) filterOfferLocked(req transport.JoinRequest) {
	if req.HostFrom == "" {
		glog.Errorf("join: dropping join request with no join_from")
		return
	}
	if req.JoinID != c.round.JoinID {
		glog.V(3).Infof("join: dropping request from %s for stale round %d (current %d)",
			req.HostFrom, req.JoinID, c.round.JoinID)
		c.checkStateLocked()
		return
	}

	peer, known := c.cache.Get(req.HostFrom)

	if joinID, hit := c.sfb.Lookup(req.HostFrom); hit {
		glog.Warningf("join: %s blocklisted since round %d, nacking", req.HostFrom, joinID)
		if known {
			c.reject(peer, req.FeatureSet, cluster.ExpectedNack, "sfb")
		}
		c.checkStateLocked()
		return
	}

	if !known || !peer.IsActive {
		if known && peer.WasLost {
			glog.V(2).Infof("join: %s not active (previously observed leaving), nacking", req.HostFrom)
		} else {
			glog.Errorf("join: %s not active in membership, nacking", req.HostFrom)
		}
		if known {
			c.reject(peer, req.FeatureSet, peer.Expected, "inactive")
		}
		c.checkStateLocked()
		return
	}

	if req.GenAttrs == nil {
		c.reject(peer, req.FeatureSet, peer.Expected, "missing-generation")
		c.checkStateLocked()
		return
	}

	theirFS := ParseFeatureSet(req.FeatureSet)
	ourFS := ParseFeatureSet(ourFeatureSet())
	if req.FeatureSet == "" || !Compatible(ourFS, theirFS) {
		c.reject(peer, req.FeatureSet, peer.Expected, "incompatible-feature-set")
		c.checkStateLocked()
		return
	}

	gen := c.codec.DecodeGeneration(req.GenAttrs, req.Payload)
	decision := c.gc.Offer(gen, req.HostFrom, c.localName)
	if decision == DecisionReject {
		c.reject(peer, req.FeatureSet, peer.Expected, "unknown-schema")
		c.checkStateLocked()
		return
	}

	best, from, _ := c.gc.Best()
	c.round.BestCibGen = best
	c.round.BestCibFrom = from
	c.round.HaveBestGen = true

	if _, err := c.pjr.SetPhase(peer, PhaseIntegrated, "filter-offer"); err != nil {
		glog.Errorf("join: could not integrate %s: %v", peer.Name, err)
	} else {
		peer.Expected = cluster.ExpectedMember
	}
	c.checkStateLocked()
}

// reject applies the feature-set-gated nack phase to peer, leaving the
// expected-state override to the caller (only the SFB path sets
// ExpectedNack explicitly, per spec §4.4.3 step 3).
func (c *Coordinator) reject(peer *cluster.Peer, peerFeatureSet string, expected cluster.ExpectedState, reason string) {
	kind := nackKind(peerFeatureSet)
	if _, err := c.pjr.SetPhase(peer, kind, reason); err != nil {
		glog.Errorf("join: could not %s-reject %s: %v", reason, peer.Name, err)
		return
	}
	peer.Expected = expected
}

// Finalize drives §4.4.4: once every peer has either integrated or been
// rejected, agree on whether a CIB sync is needed and kick it off.
func (c *Coordinator) Finalize() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pjr.Census(PhaseWelcomed) > 0 {
		return // still waiting on offers
	}
	if c.pjr.CensusAny(PhaseIntegrated, PhaseNack, PhaseNackQuiet) == 0 {
		c.checkStateLocked()
		return
	}
	if c.hosting.Flag(fsm.RInTransition) {
		glog.V(2).Info("join: finalize stalled, hosting FSM in transition")
		return
	}
	if c.round.Aborted || c.round.Finalizing {
		return
	}
	c.round.Finalizing = true

	best, from, haveBest := c.gc.Best()
	if !haveBest || from == "" || from == c.localName {
		c.round.BestCibGen = best
		c.round.BestCibFrom = from
		c.completeCibAcquisitionLocked()
		return
	}

	c.round.CibAsked = true
	c.hosting.SetFlag(fsm.RCibAsked, true)
	joinID := c.round.JoinID
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cmn.GCO.Get().Timeout.CplaneOperation*2)
		defer cancel()
		err := c.cibClient.SyncFrom(ctx, from, cib.SyncOptions{QuorumOverride: true})
		c.SyncCallback(joinID, from, err)
	}()
}

// SyncCallback is §4.4.5, invoked once cib.sync_from's future resolves.
// joinID/from pin the callback to the round/source it was issued for, so
// a callback from an aborted round can't corrupt a newer one.
func (c *Coordinator) SyncCallback(joinID uint32, from cluster.NodeName, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if joinID != c.round.JoinID {
		glog.V(3).Infof("join: dropping stale sync callback for round %d (current %d)", joinID, c.round.JoinID)
		return
	}
	if c.round.Aborted {
		glog.V(3).Infof("join: dropping sync callback for already-aborted round %d", joinID)
		return
	}
	c.round.CibAsked = false
	c.hosting.SetFlag(fsm.RCibAsked, false)

	switch {
	case err == nil:
		if c.hosting.State() != fsm.SFinalizeJoin {
			glog.V(2).Infof("join: sync from %s completed after leaving S_FINALIZE_JOIN, dropping", from)
			return
		}
		c.completeCibAcquisitionLocked()

	case err == cib.ErrOldData:
		glog.Warningf("join: sync from %s reported stale data, restarting round (no blocklist)", from)
		c.restartRoundLocked("sync old data from " + string(from))

	default:
		glog.Errorf("join: sync from %s failed, err: %v", from, err)
		c.sfb.Record(from, joinID)
		c.alertSink.Notify(alerts.SeverityCritical, "cib sync failed from "+string(from)+": "+err.Error())
		c.hosting.RegisterError(fsm.CFsaInternal, fsm.IFail, "cib sync failed from "+string(from))
		c.restartRoundLocked("sync failure from " + string(from))
	}
}

// completeCibAcquisitionLocked implements the tail of both Finalize's
// no-sync-needed branch and SyncCallback's success branch: mark have_cib,
// then ack every Integrated peer and nack every Nack peer (I5, §4.4.5).
// NackQuiet peers are sent nothing, and the local node is finalized and
// confirmed in process rather than sent a message.
func (c *Coordinator) completeCibAcquisitionLocked() {
	c.round.HaveCib = true
	c.hosting.SetFlag(fsm.RHaveCib, true)
	fs := ourFeatureSet()
	joinID := c.round.JoinID
	shutdownLock := c.hosting.Flag(fsm.RShutdown)

	c.cache.Each(func(p *cluster.Peer) {
		phase := phaseOf(p)
		switch phase {
		case PhaseIntegrated, PhaseNack:
			if p.Name == c.localName {
				// The DC never round-trips an ack/nak to itself - nothing
				// answers its own control-plane address - so it finalizes
				// and confirms itself in process instead.
				if phase == PhaseIntegrated {
					if _, err := c.pjr.SetPhase(p, PhaseFinalized, "finalize"); err != nil {
						glog.Errorf("join: could not finalize self: %v", err)
						return
					}
					p.Expected = cluster.ExpectedMember
					go c.applyConfirm(joinID, p.Name, true, nil, shutdownLock)
				}
				return
			}
			msg := transport.JoinAckNak{
				Envelope: transport.Envelope{
					HostFrom:   c.localName,
					HostTo:     p.Name,
					JoinID:     c.round.JoinID,
					FeatureSet: fs,
					RefID:      c.nextRefID("acknak"),
				},
				Ack: phase == PhaseIntegrated,
			}
			if err := c.messenger.SendAckNak(p.Name, msg); err != nil {
				glog.Warningf("join: failed to send ack/nak to %s, err: %v", p.Name, err)
			}
			if phase == PhaseIntegrated {
				if _, err := c.pjr.SetPhase(p, PhaseFinalized, "finalize"); err != nil {
					glog.Errorf("join: could not finalize %s: %v", p.Name, err)
				} else {
					p.Expected = cluster.ExpectedMember
				}
			}
		case PhaseNackQuiet:
			// spec §4.4.5: NackQuiet peers are not sent a message at all.
		}
	})
	c.checkStateLocked()
}

func (c *Coordinator) restartRoundLocked(reason string) {
	if c.round.Aborted {
		return
	}
	c.round.Aborted = true
	glog.Warningf("join: restarting round via election, reason=%s", reason)
	c.hosting.Deliver(fsm.IElectionDC)
}

// HandleConfirm adapts a raw transport.JoinConfirm to ProcessAck; wired
// as the messenger's OnConfirm callback.
func (c *Coordinator) HandleConfirm(confirm transport.JoinConfirm) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.processAckLocked(confirm)
}

// ProcessAck is exported for tests/direct callers; equivalent to
// HandleConfirm.
func (c *Coordinator) ProcessAck(confirm transport.JoinConfirm) {
	c.HandleConfirm(confirm)
}

func (c *Coordinator) processAckLocked(confirm transport.JoinConfirm) {
	if confirm.HostFrom == "" {
		glog.Errorf("join: dropping confirm with no join_from")
		return
	}
	if confirm.JoinID != c.round.JoinID {
		glog.V(3).Infof("join: dropping confirm from %s for stale round %d (current %d)",
			confirm.HostFrom, confirm.JoinID, c.round.JoinID)
		c.checkStateLocked()
		return
	}
	peer, known := c.cache.Get(confirm.HostFrom)
	if !known {
		glog.Errorf("join: confirm from unknown node %s", confirm.HostFrom)
		return
	}
	if phaseOf(peer) != PhaseFinalized {
		glog.Warningf("join: dropping confirm from %s not in Finalized (phase=%s)", peer.Name, phaseOf(peer))
		return
	}

	shutdownLock := c.hosting.Flag(fsm.RShutdown)
	joinID := c.round.JoinID
	local := peer.Name == c.localName
	go c.applyConfirm(joinID, peer.Name, local, confirm.ExecutorState, shutdownLock)
}

func (c *Coordinator) applyConfirm(joinID uint32, node cluster.NodeName, local bool, confirmedState cib.XmlDoc, shutdownLock bool) {
	ctx, cancel := context.WithTimeout(context.Background(), cmn.GCO.Get().Timeout.CplaneOperation)
	defer cancel()

	_ = shutdownLock // TODO: thread through to cibClient.Update once LRM-history deletion gains a locked-entry filter parameter
	if err := c.cibClient.Update(ctx, cib.SectionStatus, nil, cib.SyncOptions{ScopeLocal: true}); err != nil {
		glog.Errorf("join: failed to clear prior LRM history for %s, err: %v", node, err)
		c.hosting.RegisterError(fsm.CFsaInternal, fsm.IError, "clear lrm history for "+string(node))
	}

	var err error
	if local {
		var state string
		state, err = c.cibClient.QueryXPath(ctx, fmt.Sprintf(lrmStateXPath, node))
		if err == nil {
			err = c.cibClient.Update(ctx, cib.SectionStatus, cib.XmlDoc(state), cib.SyncOptions{ScopeLocal: true, CanCreate: true})
		}
	} else {
		err = c.cibClient.Update(ctx, cib.SectionStatus, confirmedState, cib.SyncOptions{CanCreate: true})
	}
	if err != nil {
		glog.Errorf("join: failed to update CIB status for %s, err: %v", node, err)
		c.hosting.RegisterError(fsm.CFsaInternal, fsm.IError, "update cib status for "+string(node))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if joinID != c.round.JoinID {
		glog.V(3).Infof("join: dropping stale confirm completion for round %d (current %d)", joinID, c.round.JoinID)
		return
	}
	peer, known := c.cache.Get(node)
	if !known {
		return
	}
	if _, err := c.pjr.SetPhase(peer, PhaseConfirmed, "process-ack"); err != nil {
		glog.Errorf("join: could not confirm %s: %v", node, err)
	} else {
		c.sfb.Remove(node)
	}
	c.checkStateLocked()
}

// checkStateLocked is §4.4.7, the liveness oracle. Idempotent and safe
// to call from any handler while holding c.mu.
func (c *Coordinator) checkStateLocked() {
	curSeq := c.cache.Seq()
	if curSeq != c.round.MembershipID && curSeq > c.highestSeqHandled {
		c.highestSeqHandled = curSeq
		c.hosting.Deliver(fsm.INodeJoin)
	}

	switch c.hosting.State() {
	case fsm.SIntegration:
		if c.pjr.Census(PhaseWelcomed) == 0 {
			c.hosting.Deliver(fsm.IIntegrated)
			// I_INTEGRATED -> S_FINALIZE_JOIN is the join round's own
			// transition (spec §4.4's state diagram), so the coordinator
			// drives it and its own Finalize directly rather than waiting
			// on a hosting controller that owns the rest of the lifecycle.
			c.hosting.SetState(fsm.SFinalizeJoin)
			go c.Finalize()
		}
	case fsm.SFinalizeJoin:
		if !c.round.HaveCib {
			return
		}
		if c.pjr.CensusAny(PhaseWelcomed, PhaseIntegrated, PhaseFinalized) == 0 {
			c.hosting.Deliver(fsm.IFinalized)
			c.hosting.SetState(fsm.SElected)
			go c.JoinFinal()
		}
	}
}

// CheckState is the externally-callable form of checkStateLocked (spec
// §4.4.7: "may be called from any handler").
func (c *Coordinator) CheckState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkStateLocked()
}

// JoinFinal is the final hook (spec §4.4.8): after finalization, re-
// publish quorum and DC identity for the scheduler, and record the
// round's outcome in history.
func (c *Coordinator) JoinFinal() {
	c.mu.Lock()
	defer c.mu.Unlock()

	confirmed := c.pjr.Census(PhaseConfirmed)
	nacked := c.pjr.CensusAny(PhaseNack, PhaseNackQuiet)
	c.history.Push(RoundOutcome{
		JoinID:      c.round.JoinID,
		BestCibFrom: c.round.BestCibFrom,
		Confirmed:   confirmed,
		Nacked:      nacked,
		Duration:    time.Since(c.round.startedAt),
	})
	if c.quorum != nil {
		c.quorum.PublishQuorum(confirmed > 0, c.localName)
	}
	glog.Infof("join: round %d final: confirmed=%d nacked=%d", c.round.JoinID, confirmed, nacked)
}

// History returns a snapshot of recent round outcomes for diagnostics.
func (c *Coordinator) History() []RoundOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Recent()
}

// LogPhases dumps every peer's phase at the given verbosity (spec
// §4.1's log_phases, exposed at the coordinator level for convenience).
func (c *Coordinator) LogPhases(level glog.Level) {
	c.pjr.LogPhases(level)
}

// JoinID returns the active round's id, mainly for tests.
func (c *Coordinator) JoinID() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round.JoinID
}
