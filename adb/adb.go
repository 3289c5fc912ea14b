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

// Package adb drives the Android Debug Bridge command line tool.
package adb

import (
	"context"
	"fmt"
	"strings"

	"github.com/dthkhang/adbrv/process"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:adb")

// Error is returned when a bridge call fails, either because adb itself could
// not be run or because the device went away during the call.
type Error struct {
	Op     string
	Serial string
	Err    error
}

func (e *Error) Error() string {
	if e.Serial == "" {
		return fmt.Sprintf("adb %s: %s", e.Op, e.Err)
	}

	return fmt.Sprintf("adb %s (%s): %s", e.Op, e.Serial, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsUnavailable returns true when err means the adb executable is missing.
func IsUnavailable(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && process.IsNotFound(ae.Err)
}

// ReverseItem is a single reverse port mapping of a device.
type ReverseItem struct {
	Remote string `json:"remote"`
	Local  string `json:"local"`
}

func (r ReverseItem) String() string {
	return r.Remote + " " + r.Local
}

// Client runs adb commands through a process.Runner.
type Client struct {
	Path   string
	Runner process.Runner
}

// New returns a Client for the adb executable at path.
func New(path string, r process.Runner) *Client {
	if path == "" {
		path = "adb"
	}

	if r == nil {
		r = process.Local
	}

	return &Client{
		Path:   path,
		Runner: r,
	}
}

// command builds an adb invocation. Queries run at process.Normal so an
// expected failure, such as which su on a device without root, only logs at
// debug. Calls that change device state run at process.Warning.
func (c *Client) command(level process.CriticalLevel, serial string, args ...string) process.Command {
	if serial != "" {
		args = append([]string{"-s", serial}, args...)
	}

	cmd := process.New(c.Path, args...)
	cmd.Level = level
	return cmd
}

func (c *Client) output(ctx context.Context, level process.CriticalLevel, op, serial string, args ...string) (string, error) {
	out, err := process.Output(ctx, c.Runner, c.command(level, serial, args...))
	if err != nil {
		return out, &Error{Op: op, Serial: serial, Err: err}
	}

	return out, nil
}

// Devices returns the serials of every attached device in the "device"
// state, in the order adb lists them.
func (c *Client) Devices(ctx context.Context) ([]string, error) {
	stdout, _, err := process.Capture(ctx, c.Runner, c.command(process.Normal, "", "devices"))
	if err != nil && (process.IsNotFound(err) || strings.TrimSpace(stdout) == "") {
		return nil, &Error{Op: "devices", Err: err}
	} else if err != nil {
		log.Debugf("adb devices exited with %s, using its output", err)
	}

	return ParseDevices(stdout), nil
}

// ParseDevices extracts the serials from adb devices output. The header line
// is skipped and only devices in the ready state are kept.
func ParseDevices(out string) []string {
	lines := strings.Split(strings.ReplaceAll(out, "\r\n", "\n"), "\n")
	if len(lines) > 0 {
		lines = lines[1:]
	}

	serials := []string{}
	for _, line := range lines {
		parts := strings.Fields(line)
		if len(parts) < 2 || parts[1] != "device" {
			continue
		}

		serials = append(serials, parts[0])
	}

	return serials
}

// Reverse maps the device port remote onto the host port local.
func (c *Client) Reverse(ctx context.Context, serial, remote, local string) error {
	_, err := c.output(ctx, process.Warning, "reverse", serial, "reverse", remote, local)
	return err
}

// ReverseList returns the reverse mappings of the device.
func (c *Client) ReverseList(ctx context.Context, serial string) ([]ReverseItem, error) {
	out, err := c.output(ctx, process.Normal, "reverse --list", serial, "reverse", "--list")
	if err != nil {
		return nil, err
	}

	return ParseReverseList(out), nil
}

// ParseReverseList parses adb reverse --list output. The last two fields of
// every line are the remote and local ends.
func ParseReverseList(out string) []ReverseItem {
	items := []ReverseItem{}

	for _, line := range strings.Split(out, "\n") {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		items = append(items, ReverseItem{
			Remote: parts[len(parts)-2],
			Local:  parts[len(parts)-1],
		})
	}

	return items
}

// ReverseRemoveAll removes every reverse mapping of the device.
func (c *Client) ReverseRemoveAll(ctx context.Context, serial string) error {
	_, err := c.output(ctx, process.Warning, "reverse --remove-all", serial, "reverse", "--remove-all")
	return err
}

// GlobalSetting reads a key of the global settings namespace.
func (c *Client) GlobalSetting(ctx context.Context, serial, key string) (string, error) {
	return c.output(ctx, process.Normal, "settings get", serial, "shell", "settings", "get", "global", key)
}

// PutGlobalSetting writes a key of the global settings namespace.
func (c *Client) PutGlobalSetting(ctx context.Context, serial, key, value string) error {
	_, err := c.output(ctx, process.Warning, "settings put", serial, "shell", "settings", "put", "global", key, value)
	return err
}

// Shell runs a query in the device shell and returns its trimmed output.
func (c *Client) Shell(ctx context.Context, serial string, args ...string) (string, error) {
	return c.output(ctx, process.Normal, "shell", serial, append([]string{"shell"}, args...)...)
}

// Exec runs a command line in the device shell that changes device state.
// Failures are logged as warnings.
func (c *Client) Exec(ctx context.Context, serial string, args ...string) (string, error) {
	return c.output(ctx, process.Warning, "shell", serial, append([]string{"shell"}, args...)...)
}

// Prop returns a system property of the device.
func (c *Client) Prop(ctx context.Context, serial, name string) (string, error) {
	return c.Shell(ctx, serial, "getprop", name)
}

// Quote returns s quoted for the device shell.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
