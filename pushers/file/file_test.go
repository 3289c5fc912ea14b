package file

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dthkhang/adbrv/event"
	"github.com/dthkhang/adbrv/utils/tests"
)

func TestRotate(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "audit.log")

	channel, err := New(WithPath(p), WithMaxSize(1024))
	if err != nil {
		tests.Failed(t, "Error creating new file channel: %s", err)
	}

	for i := 0; i < 100; i++ {
		channel.Send(event.New(event.FridaCategory, event.FridaKilled, event.Custom("pid", i)))
	}

	if err := channel.(*FileBackend).Close(); err != nil {
		tests.Failed(t, "Should have closed the file: %s.", err)
	}

	matches, _ := filepath.Glob(p + "*")
	if len(matches) < 2 {
		tests.Failed(t, "Should have rotated the file, got %v.", matches)
	}
	tests.Passed("Should have rotated the file.")

	lines := 0
	for _, m := range matches {
		data, err := os.ReadFile(m)
		if err != nil {
			tests.Failed(t, "Should have read %s: %s.", m, err)
		}

		for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
			if line == "" {
				continue
			}

			if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
				tests.Failed(t, "Should have kept lines whole, got %q in %s.", line, m)
			}

			lines++
		}
	}

	if lines != 100 {
		tests.Failed(t, "Should have kept every event across rotations, got %d.", lines)
	}
	tests.Passed("Should have kept lines whole across rotation.")
}

func TestLongLineGetsOwnFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "audit.log")

	lf, err := openLineFile(p, 0600, 16)
	if err != nil {
		tests.Failed(t, "Should have opened the file: %s.", err)
	}

	for _, line := range []string{"short", strings.Repeat("x", 40), "tail"} {
		if err := lf.WriteLine([]byte(line)); err != nil {
			tests.Failed(t, "Should have written %q: %s.", line, err)
		}
	}

	if err := lf.Close(); err != nil {
		tests.Failed(t, "Should have closed the file: %s.", err)
	}

	matches, _ := filepath.Glob(p + "*")
	if len(matches) != 3 {
		tests.Failed(t, "Should have written three files, got %v.", matches)
	}

	data, _ := os.ReadFile(p)
	if string(data) != "tail\n" {
		tests.Failed(t, "Should have started a fresh file for the last line, got %q.", data)
	}
	tests.Passed("Should have given a long line its own file.")
}

func TestNewRequiresFilename(t *testing.T) {
	if _, err := New(); err == nil {
		tests.Failed(t, "Should have required a filename.")
	}
	tests.Passed("Should have required a filename.")
}
