package fsm

import (
	"sync"

	"github.com/golang/glog"
)

// MemFSM is a minimal, in-process HostingFSM suitable for the join
// coordinator's own tests and for cmd/crmjoind until a real controller
// FSM (out of scope) is wired in. Inputs are recorded and logged rather
// than driving further transitions - that logic belongs to the hosting
// controller.
type MemFSM struct {
	mu     sync.Mutex
	state  State
	flags  map[Flag]bool
	inputs []Input
	aborts []string
}

func NewMemFSM(initial State) *MemFSM {
	return &MemFSM{state: initial, flags: make(map[Flag]bool)}
}

func (m *MemFSM) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetState lets the test harness (or the hosting controller, in a real
// deployment) drive the FSM across the diagram in spec §4.4.
func (m *MemFSM) SetState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *MemFSM) Deliver(input Input) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	glog.Infof("fsm: input %s delivered", input)
}

// Inputs returns a copy of every input delivered so far, oldest first.
func (m *MemFSM) Inputs() []Input {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Input, len(m.inputs))
	copy(out, m.inputs)
	return out
}

func (m *MemFSM) Flag(f Flag) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flags[f]
}

func (m *MemFSM) SetFlag(f Flag, v bool) {
	m.mu.Lock()
	m.flags[f] = v
	m.mu.Unlock()
}

func (m *MemFSM) RegisterError(class ErrorClass, input Input, reason string) {
	glog.Errorf("fsm: error class=%d input=%s reason=%s", class, input, reason)
	m.Deliver(input)
}

func (m *MemFSM) Abort(reason string) {
	m.mu.Lock()
	m.aborts = append(m.aborts, reason)
	m.mu.Unlock()
	glog.Infof("fsm: transition aborted, reason=%s", reason)
}

// Aborts returns a copy of every abort reason recorded so far.
func (m *MemFSM) Aborts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.aborts))
	copy(out, m.aborts)
	return out
}
