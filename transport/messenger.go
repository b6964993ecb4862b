package transport

import "github.com/nrwahl2/crmjoind/cluster"

// Messenger is the cluster-messaging client the join coordinator sends
// through (spec §6.1). Delivery ordering per sender (spec §5) is the
// messenger's contract to uphold; package join relies on it but does not
// implement it here - see transport/http for a concrete HTTP/2 transport.
type Messenger interface {
	SendOffer(to cluster.NodeName, msg JoinOffer) error
	SendAckNak(to cluster.NodeName, msg JoinAckNak) error

	// OnRequest/OnConfirm register the receive-side callbacks the DC
	// role uses; a non-DC role would register OnOffer/OnAckNak instead,
	// out of scope here since package join only plays the DC role.
	OnRequest(fn func(JoinRequest))
	OnConfirm(fn func(JoinConfirm))
}
