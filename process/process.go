// Copyright 2016-2019 DutchSec (https://dutchsec.com/)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package process runs the external tools adbrv drives (adb, nm, readelf, java, ...).
package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:process")

// CriticalLevel defines a int type which is used to signal the critical nature of a
// command to be executed. It decides at which level a failed execution is logged.
type CriticalLevel int

// Contains possible critical level values for commands execution
const (
	Normal CriticalLevel = iota + 1
	Warning
	RedAlert
)

const commandMessage = `

	Command: %q
	Arguments: %+q
	Status: %t (%q)
	Reason: %+q
`

// ErrNotFound is returned when the executable of a command cannot be located.
var ErrNotFound = errors.New("executable not found")

// IsNotFound returns true when err was caused by a missing executable.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ExitError is returned when a command ran but exited with a non-zero status.
type ExitError struct {
	Name string
	Args []string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit status %d", e.Name, e.Code)
}

// ExitCode returns the exit status carried by err, 0 for a nil error and -1 when
// the command never produced a status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}

	return -1
}

// Command defines the command to be executed and it's arguments
type Command struct {
	Name  string        `json:"name" toml:"name"`
	Level CriticalLevel `json:"level" toml:"level"`
	Args  []string      `json:"args" toml:"args"`
	Dir   string        `json:"dir" toml:"dir"`
	Stdin io.Reader     `json:"-" toml:"-"`
}

// New returns a Command for name with the given arguments.
func New(name string, args ...string) Command {
	return Command{
		Name:  name,
		Level: Normal,
		Args:  args,
	}
}

// String returns the command line as it would be typed in a shell.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Run executes the giving command, streaming its stdout into out and its
// stderr into werr. Cancelling ctx kills the process.
func (c Command) Run(ctx context.Context, out, werr io.Writer) error {
	proc := exec.CommandContext(ctx, c.Name, c.Args...)
	proc.Stdout = out
	proc.Stderr = werr
	proc.Stdin = c.Stdin
	proc.Dir = c.Dir

	log.Infof("Process : Command : Begin Execution : %q : %+q", c.Name, c.Args)

	if err := proc.Start(); err != nil {
		c.logf("Process : Error : Command : Begin Execution : %q : %q", c.Name, c.Args)
		log.Debugf("Process : Debug : Command : %s : %s", c.Name, fmt.Sprintf(commandMessage, c.Name, c.Args, false, "Failed", err.Error()))

		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return errors.Wrap(ErrNotFound, c.Name)
		}

		return errors.Wrapf(err, "could not start %s", c.Name)
	}

	err := proc.Wait()
	if err == nil {
		return nil
	}

	log.Debugf("Process : Debug : Command : %s : %s", c.Name, fmt.Sprintf(commandMessage, c.Name, c.Args, false, "Failed", err.Error()))

	if ctxErr := ctx.Err(); ctxErr != nil {
		c.logf("Process : Error : Command : Interrupted : %q : %s", c.Name, ctxErr)
		return errors.Wrap(ctxErr, c.Name)
	}

	if ee, ok := err.(*exec.ExitError); ok {
		c.logf("Process : Error : Command : Exit Status %d : %q : %q", ee.ExitCode(), c.Name, c.Args)
		return &ExitError{Name: c.Name, Args: c.Args, Code: ee.ExitCode()}
	}

	c.logf("Process : Error : Command : %q : %s", c.Name, err)
	return errors.Wrap(err, c.Name)
}

func (c Command) logf(format string, args ...interface{}) {
	switch {
	case c.Level >= RedAlert:
		log.Errorf(format, args...)
	case c.Level == Warning:
		log.Warningf(format, args...)
	default:
		log.Debugf(format, args...)
	}
}

// Runner defines the interface for executing commands. Local runs them on the
// host; tests substitute a scripted implementation.
type Runner interface {
	Run(ctx context.Context, c Command, out, werr io.Writer) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, c Command, out, werr io.Writer) error

// Run calls fn.
func (fn RunnerFunc) Run(ctx context.Context, c Command, out, werr io.Writer) error {
	return fn(ctx, c, out, werr)
}

// Local executes commands on the local host.
var Local Runner = RunnerFunc(func(ctx context.Context, c Command, out, werr io.Writer) error {
	return c.Run(ctx, out, werr)
})

// Capture runs c and returns what it wrote to stdout and stderr. The output is
// returned even when err is not nil.
func Capture(ctx context.Context, r Runner, c Command) (string, string, error) {
	var outBu, errBu bytes.Buffer
	err := r.Run(ctx, c, &outBu, &errBu)
	return outBu.String(), errBu.String(), err
}

// Output runs c and returns its trimmed stdout. A failure is annotated with the
// last stderr line of the command.
func Output(ctx context.Context, r Runner, c Command) (string, error) {
	stdout, stderr, err := Capture(ctx, r, c)
	if err != nil {
		if msg := lastLine(stderr); msg != "" {
			return strings.TrimSpace(stdout), errors.WithMessage(err, msg)
		}

		return strings.TrimSpace(stdout), err
	}

	return strings.TrimSpace(stdout), nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
