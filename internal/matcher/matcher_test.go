package matcher

import "testing"

func TestFindBasic(t *testing.T) {
	tests := []struct {
		name     string
		needle   string
		haystack string
		start    int
		wantPos  int
		wantOK   bool
	}{
		{"simple hit", "FFD8", "00FFD800", 0, 2, true},
		{"no match", "XYZ", "ABC", 0, 0, false},
		{"needle longer than haystack", "ABCDEF", "AB", 0, 0, false},
		{"match at start", "ABC", "ABCDEF", 0, 0, true},
		{"start skips early match", "AB", "ABAB", 1, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			needle := []byte(tt.needle)
			haystack := []byte(tt.haystack)
			table := BuildTable(needle, DefaultWildcard, true)
			pos, ok := Find(needle, haystack, tt.start, table, DefaultWildcard, true)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && pos != tt.wantPos {
				t.Errorf("pos = %d, want %d", pos, tt.wantPos)
			}
		})
	}
}

func TestFindCaseInsensitive(t *testing.T) {
	needle := []byte("jFiF")
	haystack := []byte("....JFIF....")
	table := BuildTable(needle, DefaultWildcard, false)
	pos, ok := Find(needle, haystack, 0, table, DefaultWildcard, false)
	if !ok || pos != 4 {
		t.Fatalf("got pos=%d ok=%v, want pos=4 ok=true", pos, ok)
	}
}

func TestFindWildcard(t *testing.T) {
	needle := []byte{0xFF, '?', 0xFF, 0xE0}
	haystack := []byte{0x00, 0xFF, 0xD8, 0xFF, 0xE0, 0x00}
	table := BuildTable(needle, '?', true)
	pos, ok := Find(needle, haystack, 0, table, '?', true)
	if !ok || pos != 1 {
		t.Fatalf("got pos=%d ok=%v, want pos=1 ok=true", pos, ok)
	}
}

// A haystack byte that happens to equal the wildcard character is an
// ordinary byte: only the needle side of a comparison may wildcard.
func TestFindWildcardIsNeedleSideOnly(t *testing.T) {
	needle := []byte("AB")
	haystack := []byte("A?")
	table := BuildTable(needle, '?', true)
	if _, ok := Find(needle, haystack, 0, table, '?', true); ok {
		t.Fatalf("needle %q should not match haystack %q: wildcard only applies to needle positions", needle, haystack)
	}
}

func TestFindAllOverlap(t *testing.T) {
	needle := []byte("AB")
	haystack := []byte("ABABABAB")
	table := BuildTable(needle, DefaultWildcard, true)

	overlapping := FindAll(nil, needle, haystack, 0, table, DefaultWildcard, true, Overlapping)
	want := []int{0, 2, 4, 6}
	if !equalInts(overlapping, want) {
		t.Errorf("overlapping = %v, want %v", overlapping, want)
	}

	nonOverlapping := FindAll(nil, needle, haystack, 0, table, DefaultWildcard, true, NonOverlapping)
	if !equalInts(nonOverlapping, want) {
		t.Errorf("non-overlapping = %v, want %v", nonOverlapping, want)
	}
}

func TestFindAllOverlapTrueOverlap(t *testing.T) {
	// "ABAB" contains "ABA" at 0 only once non-overlapping, but
	// overlapping matches of "AB" inside "ABABABAB" happen to coincide
	// with non-overlapping ones above (needle divides haystack evenly).
	// Use a needle/haystack pair where overlap actually changes the count.
	needle := []byte("AA")
	haystack := []byte("AAAA")
	table := BuildTable(needle, DefaultWildcard, true)

	overlapping := FindAll(nil, needle, haystack, 0, table, DefaultWildcard, true, Overlapping)
	if want := []int{0, 1, 2}; !equalInts(overlapping, want) {
		t.Errorf("overlapping = %v, want %v", overlapping, want)
	}

	nonOverlapping := FindAll(nil, needle, haystack, 0, table, DefaultWildcard, true, NonOverlapping)
	if want := []int{0, 2}; !equalInts(nonOverlapping, want) {
		t.Errorf("non-overlapping = %v, want %v", nonOverlapping, want)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
