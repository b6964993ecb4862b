package join

import (
	"time"

	"github.com/nrwahl2/crmjoind/cib"
	"github.com/nrwahl2/crmjoind/cluster"
)

// Round is the JoinRound entity (spec §3): created on StartRound,
// replaced wholesale by the next StartRound, never mutated by two tasks
// concurrently (spec §5's single-threaded cooperative model).
type Round struct {
	JoinID       uint32
	MembershipID uint64

	BestCibFrom cluster.NodeName
	BestCibGen  cib.Generation
	HaveBestGen bool // true once some peer's generation has been offered to GC

	HaveCib  bool
	CibAsked bool

	// Finalizing guards Finalize against kicking off a second CIB sync
	// for the same round once the first has already started.
	Finalizing bool
	// Aborted is set once the round has been abandoned via re-election
	// (a CIB sync failure or stale-data report); any Finalize/SyncCallback
	// activity still in flight for this round must no-op once set.
	Aborted bool

	startedAt time.Time
}

// RoundOutcome summarizes a finished round for diagnostics (SPEC_FULL §3
// round history), grounded in the teacher's periodic stats-dump pattern.
type RoundOutcome struct {
	JoinID      uint32
	BestCibFrom cluster.NodeName
	Confirmed   int
	Nacked      int
	Duration    time.Duration
	Note        string
}

// History is a bounded ring of recent round outcomes for support-bundle
// style dumps; it has no bearing on any invariant.
type History struct {
	entries []RoundOutcome
	cap     int
}

func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = 1
	}
	return &History{cap: capacity}
}

func (h *History) Push(o RoundOutcome) {
	h.entries = append(h.entries, o)
	if len(h.entries) > h.cap {
		h.entries = h.entries[len(h.entries)-h.cap:]
	}
}

func (h *History) Recent() []RoundOutcome {
	out := make([]RoundOutcome, len(h.entries))
	copy(out, h.entries)
	return out
}
