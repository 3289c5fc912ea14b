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

// Package processtest provides a scripted process.Runner for tests.
package processtest

import (
	"context"
	"io"
	"strings"
	"sync"

	"github.com/dthkhang/adbrv/process"
)

// Response is the scripted result of a single command invocation.
type Response struct {
	Stdout string
	Stderr string
	Err    error
}

// Runner answers commands by their full command line and records every call.
// Each registered command line consumes its responses in order; the last
// response is repeated once the others are used up. Unknown command lines
// receive Default.
type Runner struct {
	Default Response

	m         sync.Mutex
	responses map[string][]Response
	calls     []string
}

// New returns an empty Runner.
func New() *Runner {
	return &Runner{
		responses: map[string][]Response{},
	}
}

// On scripts the responses for the command line.
func (r *Runner) On(cmdline string, responses ...Response) *Runner {
	r.m.Lock()
	defer r.m.Unlock()

	r.responses[cmdline] = append(r.responses[cmdline], responses...)
	return r
}

// Out is a shorthand for a successful response with stdout.
func Out(stdout string) Response {
	return Response{Stdout: stdout}
}

// Fail is a shorthand for a response exiting with code.
func Fail(code int, stderr string) Response {
	return Response{
		Stderr: stderr,
		Err:    &process.ExitError{Code: code},
	}
}

// Run implements process.Runner.
func (r *Runner) Run(ctx context.Context, c process.Command, out, werr io.Writer) error {
	line := c.String()

	r.m.Lock()
	r.calls = append(r.calls, line)

	resp := r.Default
	if queue, ok := r.responses[line]; ok && len(queue) > 0 {
		resp = queue[0]
		if len(queue) > 1 {
			r.responses[line] = queue[1:]
		}
	}
	r.m.Unlock()

	if c.Stdin != nil {
		io.Copy(io.Discard, c.Stdin)
	}

	io.WriteString(out, resp.Stdout)
	io.WriteString(werr, resp.Stderr)

	if ee, ok := resp.Err.(*process.ExitError); ok {
		return &process.ExitError{Name: c.Name, Args: c.Args, Code: ee.Code}
	}

	return resp.Err
}

// Calls returns every command line run so far, in order.
func (r *Runner) Calls() []string {
	r.m.Lock()
	defer r.m.Unlock()

	return append([]string{}, r.calls...)
}

// Called returns true when the command line was run at least once.
func (r *Runner) Called(cmdline string) bool {
	return r.Count(cmdline) > 0
}

// Count returns how often the command line was run.
func (r *Runner) Count(cmdline string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == cmdline {
			n++
		}
	}
	return n
}

// CalledPrefix returns true when any command line starting with prefix was run.
func (r *Runner) CalledPrefix(prefix string) bool {
	for _, c := range r.Calls() {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}
