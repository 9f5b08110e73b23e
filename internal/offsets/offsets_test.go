package offsets

import "testing"

func TestAppendIsMonotone(t *testing.T) {
	var d DB
	d.AppendHeader(10)
	d.AppendHeader(20)
	d.AppendHeader(20)
	if len(d.Headers) != 3 {
		t.Fatalf("got %d headers, want 3", len(d.Headers))
	}
	for i := 1; i < len(d.Headers); i++ {
		if d.Headers[i] < d.Headers[i-1] {
			t.Fatalf("headers not non-decreasing: %v", d.Headers)
		}
	}
}

func TestFirstFooterAfter(t *testing.T) {
	var d DB
	d.Footers = []int64{5, 10, 10, 20}

	idx, off, ok := d.FirstFooterAfter(0, 3)
	if !ok || off != 5 || idx != 0 {
		t.Fatalf("got idx=%d off=%d ok=%v, want idx=0 off=5 ok=true", idx, off, ok)
	}

	idx, off, ok = d.FirstFooterAfter(idx, 5)
	if !ok || off != 10 {
		t.Fatalf("got off=%d ok=%v, want off=10 ok=true", off, ok)
	}

	idx, off, ok = d.FirstFooterAfter(idx, 20)
	if ok {
		t.Fatalf("expected no footer after 20, got off=%d idx=%d", off, idx)
	}
}

func TestLastFooterWithin(t *testing.T) {
	var d DB
	d.Footers = []int64{2, 5, 9, 14, 30}

	// H at 0, max distance 15: candidates > 0 and <= 15 are 2,5,9,14 -> farthest is 14.
	_, off, ok := d.LastFooterWithin(0, 0, 15)
	if !ok || off != 14 {
		t.Fatalf("got off=%d ok=%v, want off=14 ok=true", off, ok)
	}
}

func TestLastFooterWithinNone(t *testing.T) {
	var d DB
	d.Footers = []int64{100}
	_, _, ok := d.LastFooterWithin(0, 0, 10)
	if ok {
		t.Fatal("expected no footer within range")
	}
}

func TestSetResetClearsAllRules(t *testing.T) {
	s := NewSet(2)
	s.For(0).AppendHeader(1)
	s.For(1).AppendFooter(2)
	s.Reset()
	if len(s.For(0).Headers) != 0 || len(s.For(1).Footers) != 0 {
		t.Fatal("Reset did not clear offset databases")
	}
}
