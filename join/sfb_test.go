package join

import "testing"

func TestBlocklistRecordAndLookup(t *testing.T) {
	b := NewBlocklist()
	if _, ok := b.Lookup("nodeA"); ok {
		t.Fatal("a fresh blocklist should have no entries")
	}
	b.Record("nodeA", 7)
	joinID, ok := b.Lookup("nodeA")
	if !ok || joinID != 7 {
		t.Fatalf("Lookup after Record = (%d, %v), want (7, true)", joinID, ok)
	}
}

func TestBlocklistRemove(t *testing.T) {
	b := NewBlocklist()
	b.Record("nodeA", 1)
	b.Remove("nodeA")
	if _, ok := b.Lookup("nodeA"); ok {
		t.Fatal("Remove should clear the entry")
	}
}

func TestBlocklistClearAll(t *testing.T) {
	b := NewBlocklist()
	b.Record("nodeA", 1)
	b.Record("nodeB", 2)
	b.ClearAll()
	if _, ok := b.Lookup("nodeA"); ok {
		t.Fatal("ClearAll should drop nodeA")
	}
	if _, ok := b.Lookup("nodeB"); ok {
		t.Fatal("ClearAll should drop nodeB")
	}
}
