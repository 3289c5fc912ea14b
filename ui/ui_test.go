package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dthkhang/adbrv/utils/tests"
)

func init() {
	SetColor(false)
}

func TestPrefixes(t *testing.T) {
	var buf bytes.Buffer

	Success(&buf, "Reversing tcp:%d -> tcp:%d", 8083, 8080)
	Error(&buf, "No devices connected.")
	Info(&buf, "Please wait...")
	Warning(&buf, "Frida Server Is Running")

	expected := "[+] Reversing tcp:8083 -> tcp:8080\n" +
		"[!] No devices connected.\n" +
		"[i] Please wait...\n" +
		"[!] Frida Server Is Running\n"

	if buf.String() != expected {
		tests.Failed(t, "Should have written prefixed lines, got %q.", buf.String())
	}
	tests.Passed("Should have written prefixed lines.")
}

func TestTree(t *testing.T) {
	var buf bytes.Buffer

	Tree(&buf, "Device emulator-5554", []Field{
		{"Model", "sdk_gphone64"},
		{"Root Access", "Yes"},
		{"Reverse", "(none)"},
	})

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	expected := []string{
		"Device emulator-5554",
		"├── Model       : sdk_gphone64",
		"├── Root Access : Yes",
		"└── Reverse     : (none)",
	}

	if len(lines) != len(expected) {
		tests.Failed(t, "Should have written %d lines, got %q.", len(expected), lines)
	}

	for i := range expected {
		if lines[i] != expected[i] {
			tests.Failed(t, "Should have matched line %d: %q != %q.", i, lines[i], expected[i])
		}
	}
	tests.Passed("Should have aligned the tree labels.")
}

func TestSeparator(t *testing.T) {
	var buf bytes.Buffer
	Separator(&buf)

	if buf.String() != strings.Repeat("-", 60)+"\n" {
		tests.Failed(t, "Should have written 60 dashes.")
	}
	tests.Passed("Should have written 60 dashes.")
}
