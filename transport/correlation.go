package transport

import (
	"strconv"

	"github.com/OneOfOne/xxhash"

	"github.com/nrwahl2/crmjoind/cluster"
)

// refIDSeed is an arbitrary fixed seed, matching the teacher's use of a
// fixed seed (cluster.MLCG32) for its xxhash-based daemon id derivation.
const refIDSeed uint32 = 0x5bd1e995

// NewRefID computes the per-message "reference id for log correlation"
// required by spec §6.1, hashed from the fields that make a message
// unique within a round: join id, sender, message kind, and a
// caller-supplied sequence so that two messages of the same kind from
// the same sender in the same round still get distinct ids.
func NewRefID(joinID uint32, from cluster.NodeName, kind string, seq uint64) string {
	key := strconv.FormatUint(uint64(joinID), 10) + "|" + string(from) + "|" + kind + "|" + strconv.FormatUint(seq, 10)
	sum := xxhash.ChecksumString64S(key, refIDSeed)
	return strconv.FormatUint(sum, 16)
}
