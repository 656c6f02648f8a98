package moderation

import "testing"

func TestRosterNamesAndConns(t *testing.T) {
	r := NewRoster()
	r.Connect("c1", now)
	r.Connect("c2", now)
	r.Connect("c3", now)

	if names := r.Names(); len(names) != 0 {
		t.Fatalf("unidentified connections must not be listed, got %v", names)
	}
	r.Bind("c1", "u1", "zoe")
	r.Bind("c2", "u1", "zoe")
	r.Bind("c3", "u2", "adam")

	names := r.Names()
	if len(names) != 2 || names[0] != "adam" || names[1] != "zoe" {
		t.Fatalf("unexpected names %v", names)
	}
	if conns := r.ConnsFor("u1"); len(conns) != 2 {
		t.Fatalf("expected 2 conns for u1, got %v", conns)
	}

	if !r.Rename("c3", "bea") {
		t.Fatal("rename failed")
	}
	if _, ok := r.Unbind("c1"); !ok {
		t.Fatal("unbind failed")
	}
	if _, ok := r.Unbind("c1"); ok {
		t.Fatal("second unbind must report false")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 connections, got %d", r.Len())
	}
	if r.Bind("missing", "u9", "x") {
		t.Fatal("bind on unknown connection must fail")
	}
}
