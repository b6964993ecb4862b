package cib

import "strconv"

// SchemaName identifies a CIB validation schema version. The zero value
// denotes "unknown schema" per spec §4.2's offer() rule.
type SchemaName string

// KnownSchemas enumerates validation schemas this daemon understands.
// A schema absent from this set is treated as unknown (GC rejects it).
var KnownSchemas = map[SchemaName]bool{
	"pacemaker-3.9": true,
	"pacemaker-3.8": true,
	"pacemaker-3.7": true,
}

func (s SchemaName) Known() bool {
	return s != "" && KnownSchemas[s]
}

// Generation is the versioning tuple that totally orders CIB snapshots
// (spec §3, §4.2), plus the opaque payload a peer submits with its join
// request.
type Generation struct {
	AdminEpoch       int64
	Epoch            int64
	NumUpdates       int64
	ValidationSchema SchemaName
	Payload          XmlDoc
}

// ParseEpochField converts a wire-format epoch/updates field to int64,
// treating a missing or malformed value as -1 per spec §4.2's compare().
func ParseEpochField(raw string, ok bool) int64 {
	if !ok {
		return -1
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}
	return v
}
