package join

import (
	"github.com/nrwahl2/crmjoind/cib"
	"github.com/nrwahl2/crmjoind/cluster"
)

// Decision is the outcome of offering a candidate generation to the
// comparator (spec §4.2).
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionReplace
	DecisionReject
)

func (d Decision) String() string {
	switch d {
	case DecisionAccept:
		return "accept"
	case DecisionReplace:
		return "replace"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Comparator is the Generation Comparator (GC, spec §4.2): it totally
// orders CIB generations and retains the "best" one advertised in the
// current round.
type Comparator struct {
	hasBest  bool
	best     cib.Generation
	bestFrom cluster.NodeName
}

// Compare implements the lexicographic order over
// (admin_epoch, epoch, num_updates) (I4: transitive-total).
func Compare(a, b cib.Generation) int {
	if a.AdminEpoch != b.AdminEpoch {
		return cmpInt64(a.AdminEpoch, b.AdminEpoch)
	}
	if a.Epoch != b.Epoch {
		return cmpInt64(a.Epoch, b.Epoch)
	}
	return cmpInt64(a.NumUpdates, b.NumUpdates)
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Reset clears the current best, e.g. at StartRound.
func (c *Comparator) Reset() {
	c.hasBest = false
	c.best = cib.Generation{}
	c.bestFrom = ""
}

// Best returns the current best generation and its source, if any.
func (c *Comparator) Best() (gen cib.Generation, from cluster.NodeName, ok bool) {
	return c.best, c.bestFrom, c.hasBest
}

// Offer submits candidateGen from candidateFrom and returns the decision
// (spec §4.2). Ties are broken in favor of localName (I4's tie-break, so
// the DC need not copy the CIB from itself, §4.2 edge case).
func (c *Comparator) Offer(candidateGen cib.Generation, candidateFrom, localName cluster.NodeName) Decision {
	known := candidateGen.ValidationSchema.Known()

	if !c.hasBest {
		if !known {
			return DecisionReject
		}
		c.install(candidateGen, candidateFrom)
		return DecisionAccept
	}

	cmp := Compare(candidateGen, c.best)
	tieToLocal := cmp == 0 && candidateFrom == localName
	if cmp > 0 || tieToLocal {
		if !known {
			return DecisionReject
		}
		c.install(candidateGen, candidateFrom)
		return DecisionReplace
	}
	if !known {
		return DecisionReject
	}
	return DecisionAccept
}

func (c *Comparator) install(gen cib.Generation, from cluster.NodeName) {
	c.hasBest = true
	c.best = gen
	c.bestFrom = from
}
