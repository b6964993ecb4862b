package join

import (
	"fmt"

	"github.com/nrwahl2/crmjoind/cluster"
)

// IllegalTransition is returned by PJR.SetPhase when a requested phase
// change would violate I2. The stored phase is left unchanged.
type IllegalTransition struct {
	Peer cluster.NodeName
	Old  Phase
	New  Phase
}

func (e *IllegalTransition) Error() string {
	return fmt.Sprintf("illegal phase transition for %s: %s -> %s", e.Peer, e.Old, e.New)
}
