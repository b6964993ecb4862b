package join

import (
	"github.com/golang/glog"

	"github.com/nrwahl2/crmjoind/cmn"
)

// Service hosts a Coordinator as a cmn.Runner so cmd/crmjoind can start
// it alongside the transport listener in one RunGroup. The coordinator
// itself is purely callback/call driven (spec §5); Service only owns the
// "run until told to stop" lifecycle and triggers the first round.
type Service struct {
	cmn.Named

	Coordinator *Coordinator
	done        chan struct{}
}

func NewService(c *Coordinator) *Service {
	return &Service{Coordinator: c, done: make(chan struct{})}
}

func (s *Service) Run() error {
	glog.Infof("join: starting round on election")
	s.Coordinator.StartRound()
	<-s.done
	return nil
}

func (s *Service) Stop(err error) {
	glog.Infof("join: stopping, err: %v", err)
	close(s.done)
}
