package join

import "testing"

func TestParseFeatureSet(t *testing.T) {
	fs := ParseFeatureSet("3.19.2")
	if fs.Major != 3 || fs.Minor != 19 || fs.Patch != 2 {
		t.Fatalf("unexpected parse: %+v", fs)
	}
	if fs.String() != "3.19.2" {
		t.Errorf("String() = %q, want %q", fs.String(), "3.19.2")
	}
}

func TestParseFeatureSetMalformed(t *testing.T) {
	fs := ParseFeatureSet("3.x.0")
	if fs.Minor != 0 {
		t.Errorf("unparseable component should default to 0, got %d", fs.Minor)
	}
}

func TestFeatureSetLess(t *testing.T) {
	old := ParseFeatureSet("3.17.0")
	newer := ParseFeatureSet("3.19.0")
	if !old.Less(newer) {
		t.Error("3.17.0 should be less than 3.19.0")
	}
	if newer.Less(old) {
		t.Error("3.19.0 should not be less than 3.17.0")
	}
	if old.Less(old) {
		t.Error("a version should not be less than itself")
	}
}

func TestCompatible(t *testing.T) {
	ours := ParseFeatureSet("3.19.0")
	cases := []struct {
		theirs string
		want   bool
	}{
		{"3.19.0", true},
		{"3.17.0", true},
		{"3.20.0", false}, // newer minor than ours: we can't promise to understand it
		{"4.0.0", false},  // different major
		{"2.9.0", false},  // different major
	}
	for _, c := range cases {
		got := Compatible(ours, ParseFeatureSet(c.theirs))
		if got != c.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", ours, c.theirs, got, c.want)
		}
	}
}
