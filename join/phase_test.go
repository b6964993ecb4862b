package join

import "testing"

func TestPhaseSuccessor(t *testing.T) {
	cases := []struct {
		p      Phase
		want   Phase
		wantOk bool
	}{
		{PhaseNone, PhaseWelcomed, true},
		{PhaseWelcomed, PhaseIntegrated, true},
		{PhaseIntegrated, PhaseFinalized, true},
		{PhaseFinalized, PhaseConfirmed, true},
		{PhaseConfirmed, PhaseNone, false},
		{PhaseNack, PhaseNone, false},
		{PhaseNackQuiet, PhaseNone, false},
	}
	for _, c := range cases {
		got, ok := c.p.successor()
		if ok != c.wantOk {
			t.Errorf("%s.successor() ok = %v, want %v", c.p, ok, c.wantOk)
			continue
		}
		if ok && got != c.want {
			t.Errorf("%s.successor() = %s, want %s", c.p, got, c.want)
		}
	}
}

func TestPhaseIsTerminalReject(t *testing.T) {
	if !PhaseNack.isTerminalReject() {
		t.Error("PhaseNack should be a terminal reject")
	}
	if !PhaseNackQuiet.isTerminalReject() {
		t.Error("PhaseNackQuiet should be a terminal reject")
	}
	if PhaseConfirmed.isTerminalReject() {
		t.Error("PhaseConfirmed should not be a terminal reject")
	}
}

func TestPhaseString(t *testing.T) {
	if PhaseWelcomed.String() != "Welcomed" {
		t.Errorf("unexpected String() for PhaseWelcomed: %s", PhaseWelcomed.String())
	}
	if Phase(99).String() != "Unknown" {
		t.Errorf("unexpected String() for out-of-range phase: %s", Phase(99).String())
	}
}
