// Package xmlcodec is the boundary collaborator spec §9 calls for: the
// core traffics in typed Generation/NodeName/JoinPhase/FeatureSet values,
// and this package is the only place that touches the string-keyed XML
// attribute bags those values arrive as on the wire.
/*
 * Copyright (c) 2026, crmjoind contributors. All rights reserved.
 */
package xmlcodec

import (
	"strconv"

	"github.com/nrwahl2/crmjoind/cib"
	"github.com/nrwahl2/crmjoind/cluster"
)

// Attribute keys used on the generation-tuple wire payload.
const (
	AttrAdminEpoch = "admin_epoch"
	AttrEpoch      = "epoch"
	AttrNumUpdates = "num_updates"
	AttrSchema     = "crm_feature_set_schema"
)

// Codec converts between the typed domain values the join core operates
// on and the flat string-keyed attribute maps carried on the wire.
type Codec struct{}

func New() *Codec { return &Codec{} }

// DecodeGeneration reads a generation tuple out of a wire attribute bag.
// Missing or malformed fields become -1, per spec §4.2.
func (Codec) DecodeGeneration(attrs map[string]string, payload cib.XmlDoc) cib.Generation {
	adminRaw, adminOK := attrs[AttrAdminEpoch]
	epochRaw, epochOK := attrs[AttrEpoch]
	updRaw, updOK := attrs[AttrNumUpdates]
	return cib.Generation{
		AdminEpoch:       cib.ParseEpochField(adminRaw, adminOK),
		Epoch:            cib.ParseEpochField(epochRaw, epochOK),
		NumUpdates:       cib.ParseEpochField(updRaw, updOK),
		ValidationSchema: cib.SchemaName(attrs[AttrSchema]),
		Payload:          payload,
	}
}

// EncodeGeneration is the inverse of DecodeGeneration: it builds the
// attribute bag a JoinRequest carries. The DC itself never encodes its
// own generation; it admits itself in process (join's admitSelfLocked).
func (Codec) EncodeGeneration(g cib.Generation) map[string]string {
	return map[string]string{
		AttrAdminEpoch: strconv.FormatInt(g.AdminEpoch, 10),
		AttrEpoch:      strconv.FormatInt(g.Epoch, 10),
		AttrNumUpdates: strconv.FormatInt(g.NumUpdates, 10),
		AttrSchema:     string(g.ValidationSchema),
	}
}

// DecodeNodeName/DecodeNodeUuid exist for symmetry with the rest of the
// codec surface: on the wire these are plain strings, the typed wrapper
// only matters once inside the core.
func (Codec) DecodeNodeName(s string) cluster.NodeName { return cluster.NodeName(s) }
func (Codec) DecodeNodeUuid(s string) cluster.NodeUuid { return cluster.NodeUuid(s) }
