package join

import (
	"github.com/golang/glog"

	"github.com/nrwahl2/crmjoind/cluster"
)

// Registry is the Peer Join Registry (PJR, spec §4.1): it owns the
// Peer -> Phase mapping and enforces I2 (phase monotonicity) from a
// single call site, so the many call sites that advance phases can't
// silently skip the rule.
type Registry struct {
	cache *cluster.PeerCache
}

func NewRegistry(cache *cluster.PeerCache) *Registry {
	return &Registry{cache: cache}
}

func phaseOf(p *cluster.Peer) Phase {
	if p.Phase == nil {
		return PhaseNone
	}
	return p.Phase.(Phase)
}

// SetPhase applies new to peer per I2. Remote peers are always a no-op
// (I3). Returns changed=true iff the stored phase actually moved.
func (r *Registry) SetPhase(peer *cluster.Peer, new Phase, source string) (changed bool, err error) {
	if peer.IsRemote {
		return false, nil
	}
	old := phaseOf(peer)
	if new == old {
		glog.V(3).Infof("pjr: %s phase unchanged at %s (source=%s)", peer.Name, old, source)
		return false, nil
	}

	legal := new == PhaseNone || new.isTerminalReject()
	if !legal {
		if succ, ok := old.successor(); ok && succ == new {
			legal = true
		}
	}
	if !legal {
		glog.Warningf("pjr: rejecting illegal transition for %s: %s -> %s (source=%s)", peer.Name, old, new, source)
		return false, &IllegalTransition{Peer: peer.Name, Old: old, New: new}
	}

	peer.Phase = new
	glog.V(3).Infof("pjr: %s phase %s -> %s (source=%s)", peer.Name, old, new, source)
	return true, nil
}

// Census counts non-remote peers currently in phase (I3).
func (r *Registry) Census(phase Phase) int {
	count := 0
	r.cache.Each(func(p *cluster.Peer) {
		if p.IsRemote {
			return
		}
		if phaseOf(p) == phase {
			count++
		}
	})
	return count
}

// CensusAny counts non-remote peers currently in any of phases.
func (r *Registry) CensusAny(phases ...Phase) int {
	set := make(map[Phase]bool, len(phases))
	for _, p := range phases {
		set[p] = true
	}
	count := 0
	r.cache.Each(func(p *cluster.Peer) {
		if p.IsRemote {
			return
		}
		if set[phaseOf(p)] {
			count++
		}
	})
	return count
}

// ResetAll sets every non-remote peer's phase back to None (step 2 of
// StartRound).
func (r *Registry) ResetAll() {
	r.cache.Each(func(p *cluster.Peer) {
		if p.IsRemote {
			return
		}
		if _, err := r.SetPhase(p, PhaseNone, "reset_all"); err != nil {
			// PhaseNone is always a legal target; an error here is an
			// internal bug, not a peer-scoped condition.
			glog.Errorf("pjr: reset_all could not clear %s: %v", p.Name, err)
		}
	})
}

// LogPhases emits one line per non-remote peer, sorted by name (spec §9:
// hash-table iteration order must not affect log output).
func (r *Registry) LogPhases(level glog.Level) {
	r.cache.Each(func(p *cluster.Peer) {
		if p.IsRemote {
			return
		}
		if bool(glog.V(level)) {
			glog.Infof("pjr: %s phase=%s expected=%s", p.Name, phaseOf(p), p.Expected)
		}
	})
}
