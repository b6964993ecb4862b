package cmn

import "github.com/golang/glog"

// RunGroup hosts a set of Runners side by side and terminates all of them
// as soon as any one exits, the same pattern ais/daemon.go's rungroup
// uses to tie a proxy's or target's long-lived components together.
type RunGroup struct {
	runarr []Runner
	runmap map[string]Runner
	errCh  chan error
}

func NewRunGroup() *RunGroup {
	return &RunGroup{
		runarr: make([]Runner, 0, 8),
		runmap: make(map[string]Runner, 8),
	}
}

func (g *RunGroup) Add(r Runner, name string) {
	r.Setname(name)
	g.runarr = append(g.runarr, r)
	g.runmap[name] = r
}

func (g *RunGroup) Get(name string) Runner {
	return g.runmap[name]
}

// Run starts every runner and blocks until the first one exits, then
// stops the rest with that runner's error.
func (g *RunGroup) Run() error {
	if len(g.runarr) == 0 {
		return nil
	}
	g.errCh = make(chan error, len(g.runarr))
	for _, r := range g.runarr {
		go func(r Runner) {
			err := r.Run()
			glog.Warningf("Runner [%s] exited with err [%v].", r.Getname(), err)
			g.errCh <- err
		}(r)
	}

	err := <-g.errCh
	for _, r := range g.runarr {
		r.Stop(err)
	}
	for i := 0; i < cap(g.errCh)-1; i++ {
		<-g.errCh
	}
	glog.Flush()
	return err
}
