package join

import (
	"strconv"
	"strings"
)

// FeatureSet is a semantic-version string advertising protocol
// capability (spec §6.5): "M.m.p". Compatibility requires equal major
// and theirs <= ours within minor/patch.
type FeatureSet struct {
	Major, Minor, Patch int64
	raw                 string
}

// ParseFeatureSet parses an "M.m.p" version string. An unparseable
// component is treated as 0, which naturally sorts below any real
// release - callers that need to distinguish "absent" from "0.0.0"
// should check the wire field's presence themselves (spec §4.4.3 step 6
// treats a missing feature_set as incompatible regardless).
func ParseFeatureSet(s string) FeatureSet {
	parts := strings.SplitN(s, ".", 3)
	get := func(i int) int64 {
		if i >= len(parts) {
			return 0
		}
		v, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil {
			return 0
		}
		return v
	}
	return FeatureSet{Major: get(0), Minor: get(1), Patch: get(2), raw: s}
}

func (f FeatureSet) String() string {
	if f.raw != "" {
		return f.raw
	}
	return strconv.FormatInt(f.Major, 10) + "." + strconv.FormatInt(f.Minor, 10) + "." + strconv.FormatInt(f.Patch, 10)
}

// Less reports whether f predates o (major.minor.patch lexicographic).
func (f FeatureSet) Less(o FeatureSet) bool {
	if f.Major != o.Major {
		return f.Major < o.Major
	}
	if f.Minor != o.Minor {
		return f.Minor < o.Minor
	}
	return f.Patch < o.Patch
}

// Compatible reports whether theirs may join a DC advertising ours:
// same major version and theirs <= ours (spec §6.5).
func Compatible(ours, theirs FeatureSet) bool {
	return ours.Major == theirs.Major && !ours.Less(theirs)
}
