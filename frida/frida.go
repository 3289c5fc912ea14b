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

package frida

import (
	"context"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dthkhang/adbrv/adb"
	"github.com/dthkhang/adbrv/event"
	"github.com/dthkhang/adbrv/prompt"
	"github.com/dthkhang/adbrv/ui"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:frida")

// StartResult is the outcome of Start.
type StartResult int

// Start outcomes.
const (
	NotFound StartResult = iota
	AlreadyRunning
	Started
	StartFailed
)

func (r StartResult) String() string {
	switch r {
	case NotFound:
		return "not found"
	case AlreadyRunning:
		return "already running"
	case Started:
		return "started"
	default:
		return "start failed"
	}
}

// KillResult is the outcome of Kill.
type KillResult struct {
	Found   []Process
	Killed  []Process
	Failed  []Process
	Aborted bool
}

// Emitter receives audit events.
type Emitter interface {
	Emit(opts ...event.Option)
}

type nopEmitter struct{}

func (nopEmitter) Emit(...event.Option) {}

// Controller manages frida-server on a device.
type Controller struct {
	Client  *adb.Client
	Chooser prompt.Chooser
	Out     io.Writer
	Events  Emitter

	Dir          string
	Prefix       string
	StartTimeout time.Duration
	Settle       time.Duration
}

// New returns a Controller with the default location and timings.
func New(c *adb.Client, chooser prompt.Chooser, out io.Writer) *Controller {
	return &Controller{
		Client:       c,
		Chooser:      chooser,
		Out:          out,
		Events:       nopEmitter{},
		Dir:          "/data/local/tmp",
		Prefix:       "frida-server",
		StartTimeout: 10 * time.Second,
		Settle:       2 * time.Second,
	}
}

func (fc *Controller) emit(opts ...event.Option) {
	if fc.Events == nil {
		return
	}

	fc.Events.Emit(append([]event.Option{event.FridaCategory}, opts...)...)
}

// Status returns Off, On or On (user - PID: pid) for the device.
func (fc *Controller) Status(ctx context.Context, serial string) (string, error) {
	out, err := processList(ctx, fc.Client, serial)
	if err != nil {
		return "", err
	}

	return Status(out, fc.Prefix), nil
}

// Processes returns the running frida-server processes of the device.
func (fc *Controller) Processes(ctx context.Context, serial string) ([]Process, error) {
	out, err := processList(ctx, fc.Client, serial)
	if err != nil {
		return nil, err
	}

	return ParseProcesses(out, fc.Prefix), nil
}

func (fc *Controller) running(ctx context.Context, serial string) (bool, error) {
	out, err := processList(ctx, fc.Client, serial)
	if err != nil {
		return false, err
	}

	return Running(out, fc.Prefix), nil
}

func (fc *Controller) candidates(ctx context.Context, serial string) []string {
	out, err := fc.Client.Shell(ctx, serial, "ls", path.Join(fc.Dir, fc.Prefix)+"*")
	if err != nil {
		log.Debugf("No frida-server candidates on %s: %s", serial, err)
		return nil
	}

	var files []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}

	return files
}

// Start launches frida-server as root in the background and checks that it
// came up.
func (fc *Controller) Start(ctx context.Context, serial string) (StartResult, error) {
	files := fc.candidates(ctx, serial)
	if len(files) == 0 {
		ui.Error(fc.Out, "Frida Server Not Found!!")
		ui.Warning(fc.Out, "Please check the frida-server filename in %s. It must start with '%s'.", fc.Dir, fc.Prefix)
		return NotFound, nil
	}

	bin := files[0]
	if len(files) == 1 {
		ui.Info(fc.Out, "Found Frida Server: %s", bin)
	} else {
		ui.Info(fc.Out, "Found %d Frida Server files:", len(files))

		idx, err := fc.Chooser.Choose("Select which frida-server to start", files)
		if err != nil {
			return StartFailed, errors.Wrap(err, "could not select frida-server")
		}

		bin = files[idx]
		ui.Info(fc.Out, "Selected Frida Server: %s", bin)
	}

	running, err := fc.running(ctx, serial)
	if err != nil {
		return StartFailed, err
	}

	if running {
		ui.Warning(fc.Out, "Frida Server Is Running")
		return AlreadyRunning, nil
	}

	if _, err := fc.Client.Exec(ctx, serial, "chmod", "+x", bin); err != nil {
		return StartFailed, errors.Wrapf(err, "could not make %s executable", bin)
	}

	ui.Info(fc.Out, "Start Frida Server...")
	ui.Info(fc.Out, "Please wait...")

	if err := fc.launch(ctx, serial, bin); err != nil {
		ui.Error(fc.Out, "Frida Server Start Failed!! Check & Try Again")
		return StartFailed, err
	}

	select {
	case <-time.After(fc.Settle):
	case <-ctx.Done():
		return StartFailed, ctx.Err()
	}

	running, err = fc.running(ctx, serial)
	if err != nil || !running {
		ui.Error(fc.Out, "Frida Server Start Failed!! Check & Try Again")
		return StartFailed, err
	}

	ui.Success(fc.Out, "Frida Server Start Success!!")

	fc.emit(event.FridaStarted, event.Serial(serial), event.Custom("binary", bin))
	return Started, nil
}

// launch detaches the server. The launching shell may stay attached to the
// server output, so hitting the deadline is expected.
func (fc *Controller) launch(ctx context.Context, serial, bin string) error {
	lctx, cancel := context.WithTimeout(ctx, fc.StartTimeout)
	defer cancel()

	_, err := fc.Client.Shell(lctx, serial, "su", "-c", adb.Quote(bin+" &"))
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		log.Debugf("Launch of %s on %s still attached after %s, continuing", bin, serial, fc.StartTimeout)
		return nil
	}

	return err
}

// Kill terminates every frida-server process of the device. With more than
// one process it asks for confirmation first.
func (fc *Controller) Kill(ctx context.Context, serial string) (KillResult, error) {
	procs, err := fc.Processes(ctx, serial)
	if err != nil {
		return KillResult{}, err
	}

	result := KillResult{Found: procs}

	if len(procs) == 0 {
		ui.Info(fc.Out, "No frida-server process running.")
		return result, nil
	}

	if len(procs) > 1 {
		ui.Warning(fc.Out, "Multiple frida-server processes found:")

		for _, p := range procs {
			io.WriteString(fc.Out, "  PID "+p.PID+": "+p.Line+"\n")
		}

		ok, err := fc.Chooser.Confirm("Do you want to kill all frida-server processes?")
		if err != nil {
			return result, errors.Wrap(err, "could not confirm kill")
		}

		if !ok {
			ui.Info(fc.Out, "Abort killing frida-server processes.")
			result.Aborted = true
			return result, nil
		}
	}

	for _, p := range procs {
		if _, err := fc.Client.Exec(ctx, serial, "su", "-c", adb.Quote("kill -9 "+p.PID)); err != nil {
			ui.Error(fc.Out, "Failed to kill frida-server process PID %s on device %s: %s", p.PID, serial, err)
			result.Failed = append(result.Failed, p)
			continue
		}

		ui.Success(fc.Out, "Killed frida-server process PID %s on device %s.", p.PID, serial)
		result.Killed = append(result.Killed, p)

		fc.emit(event.FridaKilled, event.Serial(serial), event.Custom("pid", p.PID))
	}

	if len(result.Failed) > 0 {
		return result, errors.Errorf("could not kill %d frida-server process(es)", len(result.Failed))
	}

	return result, nil
}
