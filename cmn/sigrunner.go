package cmn

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
)

// SigRunner turns SIGINT/SIGTERM into a clean RunGroup shutdown, the
// same role ais/daemon.go's sigrunner plays.
type SigRunner struct {
	Named
	ch chan os.Signal
}

func NewSigRunner() *SigRunner {
	return &SigRunner{ch: make(chan os.Signal, 1)}
}

func (s *SigRunner) Run() error {
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-s.ch
	glog.Infof("Signal: %v", sig)
	return nil
}

func (s *SigRunner) Stop(err error) {
	signal.Stop(s.ch)
}
