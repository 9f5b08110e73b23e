package catalog

import (
	"bytes"
	"strings"
	"testing"
)

func TestLoadBasic(t *testing.T) {
	cfg := "jpg y 1024 \\xff\\xd8\\xff\\xe0 \\xff\\xd9 FORWARD\n"
	cat, err := Load(strings.NewReader(cfg))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(cat.Rules))
	}
	r := cat.Rules[0]
	if r.Suffix != "jpg" || !r.CaseSensitive || r.MaxLength != 1024 {
		t.Errorf("unexpected rule: %+v", r)
	}
	if !bytes.Equal(r.Header, []byte{0xff, 0xd8, 0xff, 0xe0}) {
		t.Errorf("header = % x, want ff d8 ff e0", r.Header)
	}
	if !bytes.Equal(r.Footer, []byte{0xff, 0xd9}) {
		t.Errorf("footer = % x, want ff d9", r.Footer)
	}
	if r.SearchMode != Forward {
		t.Errorf("mode = %v, want FORWARD", r.SearchMode)
	}
}

func TestLoadNoneExtension(t *testing.T) {
	cfg := "NONE y 1024 \\x41\\x42\n"
	cat, err := Load(strings.NewReader(cfg))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cat.Rules[0].NoExtension {
		t.Errorf("expected NoExtension rule")
	}
}

func TestLoadCommentsAndBlankLines(t *testing.T) {
	cfg := "\n# a comment\njpg y 1024 \\x41  # trailing comment\n\n"
	cat, err := Load(strings.NewReader(cfg))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cat.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(cat.Rules))
	}
}

func TestLoadWildcardDirective(t *testing.T) {
	cfg := "wildcard *\njpg y 1024 \\x41*\\x42\n"
	cat, err := Load(strings.NewReader(cfg))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cat.Wildcard != '*' {
		t.Errorf("wildcard = %q, want '*'", cat.Wildcard)
	}
	if !bytes.Equal(cat.Rules[0].Header, []byte{0x41, '*', 0x42}) {
		t.Errorf("header = % x", cat.Rules[0].Header)
	}
}

func TestLoadEmptyIsError(t *testing.T) {
	_, err := Load(strings.NewReader("# only comments\n"))
	if err != ErrNoSearchSpec {
		t.Fatalf("err = %v, want ErrNoSearchSpec", err)
	}
}

func TestLoadTooManyTypes(t *testing.T) {
	var b strings.Builder
	for i := 0; i < MaxRules+1; i++ {
		b.WriteString("jpg y 1024 \\x41\n")
	}
	_, err := Load(strings.NewReader(b.String()))
	if err == nil {
		t.Fatal("expected TooManyTypesError")
	}
	if _, ok := err.(*TooManyTypesError); !ok {
		t.Errorf("err = %v (%T), want *TooManyTypesError", err, err)
	}
}

func TestLoadEmptyHeaderRejected(t *testing.T) {
	_, err := Load(strings.NewReader("jpg y 1024 \n"))
	if err == nil {
		t.Fatal("expected error for empty header")
	}
}

func TestTranslateEscapes(t *testing.T) {
	got, err := translate(`\x41\r\n\t\s\\B`)
	if err != nil {
		t.Fatalf("translate failed: %v", err)
	}
	want := []byte{0x41, '\r', '\n', '\t', ' ', '\\', 'B'}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog failed: %v", err)
	}
	if len(cat.Rules) == 0 {
		t.Fatal("expected at least one default rule")
	}
	names := map[string]bool{}
	for _, r := range cat.Rules {
		names[r.Suffix] = true
	}
	for _, want := range []string{"jpg", "png", "pdf"} {
		if !names[want] {
			t.Errorf("missing default rule for %q", want)
		}
	}
}

func TestLongestPattern(t *testing.T) {
	cat, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog failed: %v", err)
	}
	if got := cat.LongestPattern(); got < 8 {
		t.Errorf("LongestPattern() = %d, want >= 8 (png header)", got)
	}
}
