// Package transport specifies the cluster-messaging contract the join
// coordinator consumes to send and receive join-round traffic (spec
// §6.1, §6.3). The wire-level protocol itself is out of scope; this
// package pins down the message shapes and the send-side interface.
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package transport

import (
	"github.com/nrwahl2/crmjoind/cib"
	"github.com/nrwahl2/crmjoind/cluster"
)

// Envelope carries the fields every join message shares (spec §6.1):
// sender, recipient (or broadcast), a correlation id for log
// correlation, and the sender's feature-set advertisement.
type Envelope struct {
	HostFrom   cluster.NodeName
	HostTo     cluster.NodeName // empty means broadcast
	RefID      string
	FeatureSet string
	JoinID     uint32
}

// Broadcast is the zero value of HostTo, spelled out for readability at
// call sites.
const Broadcast = cluster.NodeName("")

// JoinOffer: DC -> peer (spec §6.1).
type JoinOffer struct {
	Envelope
	DCLeaving bool
}

// JoinRequest: peer -> DC. The generation tuple travels as the raw
// string-keyed attribute bag pacemaker itself puts on the cib element
// (admin_epoch/epoch/num_updates/schema); xmlcodec converts it to a
// typed cib.Generation at the package join boundary (spec §9's
// XmlCodec design note). GenAttrs is nil when the peer sent no
// generation at all (spec §4.4.3 step 5).
type JoinRequest struct {
	Envelope
	GenAttrs map[string]string
	Payload  cib.XmlDoc
}

// JoinAckNak: DC -> peer.
type JoinAckNak struct {
	Envelope
	Ack bool
}

// JoinConfirm: peer -> DC.
type JoinConfirm struct {
	Envelope
	ExecutorState cib.XmlDoc
}
