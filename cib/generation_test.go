package cib

import "testing"

func TestParseEpochFieldMissing(t *testing.T) {
	if got := ParseEpochField("", false); got != -1 {
		t.Errorf("a missing field should parse to -1, got %d", got)
	}
}

func TestParseEpochFieldMalformed(t *testing.T) {
	if got := ParseEpochField("not-a-number", true); got != -1 {
		t.Errorf("a malformed field should parse to -1, got %d", got)
	}
}

func TestParseEpochFieldValid(t *testing.T) {
	if got := ParseEpochField("42", true); got != 42 {
		t.Errorf("ParseEpochField(\"42\", true) = %d, want 42", got)
	}
}

func TestSchemaKnown(t *testing.T) {
	if !SchemaName("pacemaker-3.9").Known() {
		t.Error("pacemaker-3.9 should be a known schema")
	}
	if SchemaName("pacemaker-0.1").Known() {
		t.Error("pacemaker-0.1 should not be a known schema")
	}
	if SchemaName("").Known() {
		t.Error("the empty schema name must never be known")
	}
}
