package prompt

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dthkhang/adbrv/utils/tests"
	"github.com/pkg/errors"
)

func TestChooseRetriesInvalidInput(t *testing.T) {
	var out bytes.Buffer
	term := New(strings.NewReader("0\nfoo\n3\n2\n"), &out)

	idx, err := term.Choose("Select ABI folder to scan", []string{"arm64-v8a", "x86_64"})
	if err != nil {
		tests.Failed(t, "Should have returned a selection: %s.", err)
	}

	if idx != 1 {
		tests.Failed(t, "Should have selected the second option, got %d.", idx)
	}
	tests.Passed("Should have selected the second option.")

	if n := strings.Count(out.String(), "Invalid selection. Please enter a valid number."); n != 3 {
		tests.Failed(t, "Should have rejected three answers, got %d:\n%s", n, out.String())
	}
	tests.Passed("Should have rejected invalid answers.")

	if !strings.Contains(out.String(), "  [1] arm64-v8a\n  [2] x86_64\n") {
		tests.Failed(t, "Should have listed the options, got %q.", out.String())
	}

	if !strings.Contains(out.String(), "Select ABI folder to scan [1-2]: ") {
		tests.Failed(t, "Should have shown the range, got %q.", out.String())
	}
	tests.Passed("Should have listed the options with their range.")
}

func TestChooseEndOfInput(t *testing.T) {
	term := New(strings.NewReader("9\n"), &bytes.Buffer{})

	if _, err := term.Choose("Select which frida-server to start", []string{"a", "b"}); err == nil {
		tests.Failed(t, "Should have failed once input ran out.")
	}
	tests.Passed("Should have failed once input ran out.")
}

func TestChooseWithoutTrailingNewline(t *testing.T) {
	term := New(strings.NewReader("1"), &bytes.Buffer{})

	if idx, err := term.Choose("Pick", []string{"a"}); err != nil || idx != 0 {
		tests.Failed(t, "Should have accepted a final unterminated line, got %d (%v).", idx, err)
	}
	tests.Passed("Should have accepted a final unterminated line.")
}

func TestConfirm(t *testing.T) {
	for _, tc := range []struct {
		input    string
		expected bool
	}{
		{"y\n", true},
		{"Y\n", true},
		{"yes\n", false},
		{"n\n", false},
		{"\n", false},
	} {
		var out bytes.Buffer
		ok, err := New(strings.NewReader(tc.input), &out).Confirm("Do you want to kill all frida-server processes?")
		if err != nil {
			tests.Failed(t, "Should have read an answer for %q: %s.", tc.input, err)
		}

		if ok != tc.expected {
			tests.Failed(t, "Should have answered %t for %q.", tc.expected, tc.input)
		}

		if out.String() != "Do you want to kill all frida-server processes? (y/n): " {
			tests.Failed(t, "Should have asked the question, got %q.", out.String())
		}
	}
	tests.Passed("Should have confirmed only on y.")
}

func TestNonInteractive(t *testing.T) {
	var c Chooser = NonInteractive{}

	if _, err := c.Choose("Pick", []string{"a", "b"}); !errors.Is(err, ErrNotInteractive) {
		tests.Failed(t, "Should have refused to choose, got %v.", err)
	}

	if _, err := c.Confirm("Sure?"); !errors.Is(err, ErrNotInteractive) {
		tests.Failed(t, "Should have refused to confirm, got %v.", err)
	}
	tests.Passed("Should have refused to block without a terminal.")
}
