package process_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dthkhang/adbrv/process"
	"github.com/dthkhang/adbrv/process/processtest"
	"github.com/dthkhang/adbrv/utils/tests"
	"github.com/pkg/errors"
)

// TestCommandRun validates the behaviours of the process.Command structure.
func TestCommandRun(t *testing.T) {
	cmd := process.New("echo", "New Login")

	var errBu, outBu bytes.Buffer
	if err := cmd.Run(context.Background(), &outBu, &errBu); err != nil {
		tests.Failed(t, "Should have successfully executed command: %+q.", err)
	}
	tests.Passed("Should have successfully executed command.")

	if outBu.String() != "New Login\n" {
		tests.Failed(t, "Should have successfully matched output data with expected value: %+q.", outBu.String())
	}
	tests.Passed("Should have successfully matched output data with expected value.")
}

func TestCommandExitCode(t *testing.T) {
	cmd := process.New("sh", "-c", "echo broken >&2; exit 3")

	_, stderr, err := process.Capture(context.Background(), process.Local, cmd)
	if code := process.ExitCode(err); code != 3 {
		tests.Failed(t, "Should have returned exit code 3, got %d (%v).", code, err)
	}
	tests.Passed("Should have returned exit code 3.")

	if strings.TrimSpace(stderr) != "broken" {
		tests.Failed(t, "Should have captured stderr, got %q.", stderr)
	}
	tests.Passed("Should have captured stderr.")
}

func TestCommandNotFound(t *testing.T) {
	cmd := process.New("adbrv-does-not-exist-anywhere")

	err := cmd.Run(context.Background(), &bytes.Buffer{}, &bytes.Buffer{})
	if !process.IsNotFound(err) {
		tests.Failed(t, "Should have classified a missing executable, got %v.", err)
	}
	tests.Passed("Should have classified a missing executable.")
}

func TestCommandAbsolutePathNotFound(t *testing.T) {
	cmd := process.New("/nonexistent/bin/nm", "-a")

	if _, err := process.Output(context.Background(), process.Local, cmd); !process.IsNotFound(err) {
		tests.Failed(t, "Should have classified a missing absolute path, got %v.", err)
	}
	tests.Passed("Should have classified a missing absolute path.")
}

// TestCommandWithCancel validates that a deadline kills the running command.
func TestCommandWithCancel(t *testing.T) {
	cmd := process.New("sleep", "10")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := cmd.Run(ctx, &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.Is(err, context.DeadlineExceeded) {
		tests.Failed(t, "Should have returned a deadline error, got %v.", err)
	}
	tests.Passed("Should have returned a deadline error.")

	if time.Since(start) > 5*time.Second {
		tests.Failed(t, "Should have killed the command on deadline.")
	}
	tests.Passed("Should have killed the command on deadline.")
}

func TestOutputAnnotatesStderr(t *testing.T) {
	r := processtest.New().On("adb devices", processtest.Fail(1, "* daemon not running\nerror: cannot connect\n"))

	_, err := process.Output(context.Background(), r, process.New("adb", "devices"))
	if err == nil || !strings.Contains(err.Error(), "error: cannot connect") {
		tests.Failed(t, "Should have annotated the error with stderr, got %v.", err)
	}
	tests.Passed("Should have annotated the error with stderr.")

	if process.ExitCode(err) != 1 {
		tests.Failed(t, "Should have kept the exit code through the annotation.")
	}
	tests.Passed("Should have kept the exit code through the annotation.")
}

func TestScriptedRunner(t *testing.T) {
	r := processtest.New().On("adb shell ps -A", processtest.Out("first"), processtest.Out("second"))

	for _, expected := range []string{"first", "second", "second"} {
		out, err := process.Output(context.Background(), r, process.New("adb", "shell", "ps", "-A"))
		if err != nil || out != expected {
			tests.Failed(t, "Should have returned %q, got %q (%v).", expected, out, err)
		}
	}
	tests.Passed("Should have consumed scripted responses in order.")

	if r.Count("adb shell ps -A") != 3 {
		tests.Failed(t, "Should have recorded three calls, got %v.", r.Calls())
	}
	tests.Passed("Should have recorded every call.")
}
