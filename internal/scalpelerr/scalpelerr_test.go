package scalpelerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(FileRead, "dig", nil) != nil {
		t.Fatal("Wrap(nil) should return nil")
	}
}

func TestCodeOfUnwraps(t *testing.T) {
	base := Wrap(FatalRead, "dig.read", errors.New("disk gone"))
	wrapped := fmt.Errorf("pass1: %w", base)
	if CodeOf(wrapped) != FatalRead {
		t.Fatalf("CodeOf = %v, want FatalRead", CodeOf(wrapped))
	}
}

func TestCodeOfUnknownForPlainError(t *testing.T) {
	if CodeOf(errors.New("plain")) != Unknown {
		t.Fatal("expected Unknown code for a plain error")
	}
}

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{NoSearchSpec, 2},
		{GeneralAbort, 2},
		{TooManyTypes, 2},
		{FileOpen, 1},
		{FatalRead, 1},
		{Canceled, 130},
	}
	for _, c := range cases {
		if got := ExitCode(c.code); got != c.want {
			t.Errorf("ExitCode(%v) = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestErrorStringIncludesOpAndCause(t *testing.T) {
	err := Wrap(FileWrite, "carve.write", errors.New("disk full"))
	msg := err.Error()
	if !strings.Contains(msg, "carve.write") || !strings.Contains(msg, "disk full") {
		t.Fatalf("error message %q does not include op and cause", msg)
	}
}
