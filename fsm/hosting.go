// Package fsm specifies the hosting controller FSM contract the join
// coordinator drives (spec §6.4). The hosting FSM's full state chart
// (election, transition, scheduler states) is out of scope: package fsm
// only pins down the states and inputs relevant to the join round, and
// the interface the join coordinator calls into.
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package fsm

// State is one of the hosting FSM's DC-role states relevant to the join
// round (spec §4.4's state diagram). Other hosting-FSM states exist but
// are opaque to package join.
type State int

const (
	SElected State = iota
	SIntegration
	SFinalizeJoin
	SAckNack
	SIdle
)

func (s State) String() string {
	switch s {
	case SElected:
		return "S_ELECTED"
	case SIntegration:
		return "S_INTEGRATION"
	case SFinalizeJoin:
		return "S_FINALIZE_JOIN"
	case SAckNack:
		return "S_ACKNACK"
	case SIdle:
		return "S_IDLE"
	default:
		return "S_UNKNOWN"
	}
}

// Input is one of the inputs the join coordinator emits into the hosting
// FSM (spec §6.4).
type Input int

const (
	INodeJoin Input = iota
	IIntegrated
	IFinalized
	IElectionDC
	IFail
	IError
)

func (i Input) String() string {
	switch i {
	case INodeJoin:
		return "I_NODE_JOIN"
	case IIntegrated:
		return "I_INTEGRATED"
	case IFinalized:
		return "I_FINALIZED"
	case IElectionDC:
		return "I_ELECTION_DC"
	case IFail:
		return "I_FAIL"
	case IError:
		return "I_ERROR"
	default:
		return "I_UNKNOWN"
	}
}

// ErrorClass tags register_fsa_error calls (spec §7).
type ErrorClass int

const (
	CFsaInternal ErrorClass = iota
)

// Flag names the two boolean flags the hosting FSM exposes for the join
// coordinator to read (R_SHUTDOWN, R_IN_TRANSITION) in addition to the
// two it maintains on the FSM's behalf (R_HAVE_CIB, R_CIB_ASKED).
type Flag int

const (
	RShutdown Flag = iota
	RInTransition
	RHaveCib
	RCibAsked
)

// HostingFSM is the narrow contract package join depends on. Re-election
// and the full lifecycle beyond the join round belong to the hosting
// controller, not to this package.
type HostingFSM interface {
	// State returns the FSM's current DC-role state.
	State() State

	// SetState forces the FSM into s. The join coordinator calls this
	// only for the transitions spec §4.4's own state diagram assigns to
	// the join round itself: into S_INTEGRATION when StartRound begins a
	// round, S_INTEGRATION -> S_FINALIZE_JOIN on I_INTEGRATED, and out of
	// S_FINALIZE_JOIN on I_FINALIZED, the last two so that
	// Finalize/JoinFinal have a real production trigger; every other
	// transition remains the hosting controller's to drive.
	SetState(s State)

	// Deliver enqueues input for the hosting FSM to process. Idempotent
	// calls (e.g. repeated I_INTEGRATED) are the hosting FSM's concern;
	// package join only guarantees it won't call Deliver twice for the
	// same census transition.
	Deliver(input Input)

	// Flag reads a boolean flag the hosting FSM owns or the join
	// coordinator maintains on its behalf.
	Flag(f Flag) bool

	// SetFlag lets the join coordinator maintain R_HAVE_CIB/R_CIB_ASKED
	// on the hosting FSM's behalf (spec §6.4).
	SetFlag(f Flag, v bool)

	// RegisterError surfaces an internal FSA error (spec §7).
	RegisterError(class ErrorClass, input Input, reason string)

	// Abort cancels any transition currently in progress, for the reason
	// given (spec §4.4.2: a node-join offer aborts the current
	// transition with reason "Node join" before offers go out).
	Abort(reason string)
}
