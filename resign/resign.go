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

// Package resign re-signs APKs with uber-apk-signer.
package resign

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/dthkhang/adbrv/event"
	"github.com/dthkhang/adbrv/process"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:resign")

// JarName is the signer release adbrv ships with.
const JarName = "uber-apk-signer-1.3.0.jar"

// DefaultJar returns the signer location next to the executable.
func DefaultJar(executable string) string {
	return filepath.Join(filepath.Dir(executable), "tools", JarName)
}

// Emitter receives audit events.
type Emitter interface {
	Emit(opts ...event.Option)
}

// Resigner runs the signer jar with java.
type Resigner struct {
	Runner process.Runner
	Java   string
	Jar    string

	In  io.Reader
	Out io.Writer
	Err io.Writer

	Events Emitter
}

// Run forwards args verbatim to the signer and returns its exit status.
// The error is only set when the signer could not be run at all.
func (r *Resigner) Run(ctx context.Context, args []string) (int, error) {
	if fi, err := os.Stat(r.Jar); err != nil || fi.IsDir() {
		return 1, errors.Errorf("uber-apk-signer jar not found at %s", r.Jar)
	}

	java := r.Java
	if java == "" {
		java = "java"
	}

	cmd := process.New(java, append([]string{"-jar", r.Jar}, args...)...)
	cmd.Stdin = r.In

	err := r.Runner.Run(ctx, cmd, r.Out, r.Err)
	if process.IsNotFound(err) {
		return 1, errors.Errorf("Error running uber-apk-signer: %s not found", java)
	}

	code := process.ExitCode(err)
	if code < 0 {
		return 1, errors.Wrap(err, "Error running uber-apk-signer")
	}

	log.Debugf("uber-apk-signer exited with %d", code)

	if r.Events != nil {
		r.Events.Emit(event.APKCategory, event.APKResigned, event.Custom("args", args), event.Custom("exit-code", code))
	}

	return code, nil
}
