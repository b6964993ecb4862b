// Package cluster models the external peer-cache collaborator (spec
// §6.3): the cluster-membership layer that the join subsystem reads from
// and partially owns (the per-peer join phase).
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package cluster

import "fmt"

// NodeName and NodeUuid are the typed wire identifiers the design notes
// (spec §9) ask for instead of raw strings threaded everywhere.
type (
	NodeName string
	NodeUuid string
)

func (n NodeName) String() string { return string(n) }

// ExpectedState is the membership-intent flag the join coordinator
// writes on a peer: what the cluster expects of this node's role once
// the round settles.
type ExpectedState int

const (
	ExpectedUnknown ExpectedState = iota
	ExpectedMember
	ExpectedDown
	ExpectedNack
)

func (e ExpectedState) String() string {
	switch e {
	case ExpectedMember:
		return "member"
	case ExpectedDown:
		return "down"
	case ExpectedNack:
		return "nack"
	default:
		return "unknown"
	}
}

// JoinPhaseHolder is implemented by whatever type package join uses to
// tag a peer's join-round progress; cluster.Peer embeds one so the join
// subsystem can own that sub-field without owning the rest of Peer.
type JoinPhaseHolder interface {
	fmt.Stringer
}

// Peer is the subset of per-node state the join subsystem reads or
// writes. IsRemote/IsActive/Name/Uuid are read-only to package join
// (owned by the cluster/membership layer); Phase and Expected are
// written by join (I3, I5).
type Peer struct {
	Name     NodeName
	Uuid     NodeUuid
	IsRemote bool
	IsActive bool
	// WasLost records whether this node was previously observed leaving
	// membership ("down" event), used to pick the log level for inactive
	// rejects in FilterOffer (spec §4.4.3 step 4).
	WasLost bool

	Expected ExpectedState
	Phase    JoinPhaseHolder
}

func (p *Peer) String() string {
	return fmt.Sprintf("%s(%s)", p.Name, p.Uuid)
}
