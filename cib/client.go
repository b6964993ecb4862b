// Package cib specifies the CIB (Cluster Information Base) client
// contract the join coordinator consumes (spec §6.2). The CIB storage
// engine and wire format are out of scope; this package only pins down
// the boundary the join subsystem calls through.
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package cib

import (
	"context"
	"errors"

	"github.com/nrwahl2/crmjoind/cluster"
)

// Sentinel sync errors (spec §6.2, §7). OldData is transient/recoverable
// and must never reach the Sync-Failure Blocklist; any other error is
// DC-scoped fatal-for-round.
var (
	ErrOldData    = errors.New("cib: sync target reports stale generation")
	ErrDiffFailed = errors.New("cib: diff application failed")
	ErrDiffResync = errors.New("cib: diff resync required")
	ErrTransport  = errors.New("cib: transport failure")
)

// XmlDoc is the opaque CIB payload. The core never parses it; only the
// xmlcodec boundary collaborator and the CIB client itself touch its
// bytes.
type XmlDoc []byte

// SyncOptions mirrors the options bag the teacher's control-plane calls
// take (network, quorum override, etc.), trimmed to what sync_from/update
// need per spec §6.2.
type SyncOptions struct {
	QuorumOverride bool
	ScopeLocal     bool
	CanCreate      bool
}

// Section names the CIB subtree that Update/Query target.
type Section string

const (
	SectionStatus Section = "status"
	SectionAll    Section = "all"
)

// Client is the narrow CIB IPC contract the join coordinator drives.
// Every method blocks until its call completes and returns the result
// directly; the coordinator runs the long calls (SyncFrom, the status
// Updates) on goroutines of its own and re-takes its lock when they
// return, which is how it models the "suspension points" of spec §5.
type Client interface {
	// Query fetches the CIB (or the local node's copy if scopeLocal).
	Query(ctx context.Context, scopeLocal bool) (XmlDoc, error)

	// SyncFrom pulls the authoritative CIB from node and installs it
	// locally. Errors are exactly the taxonomy above.
	SyncFrom(ctx context.Context, node cluster.NodeName, opts SyncOptions) error

	// Update applies xml to section, scoped by opts.
	Update(ctx context.Context, section Section, xml XmlDoc, opts SyncOptions) error

	// SubscribeDiff registers a callback invoked on every CIB diff,
	// independent of join-round activity (e.g. scheduler consumption).
	SubscribeDiff(cb func(XmlDoc))

	// QueryXPath evaluates an XPath expression against the local CIB,
	// used by ProcessAck to fetch the local executor-state snapshot.
	QueryXPath(ctx context.Context, xpath string) (string, error)

	// LocalGeneration returns this node's own current generation tuple.
	// The DC already holds its own CIB, so admitting itself into a round
	// never goes through Query/a wire round trip the way a peer's
	// generation does (spec §4.4.2's local-offer case).
	LocalGeneration(ctx context.Context) (Generation, error)
}
