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

// Package frida starts, stops and inspects frida-server on a device.
package frida

import (
	"context"
	"fmt"
	"strings"

	"github.com/dthkhang/adbrv/adb"
)

// Process is a running frida-server process.
type Process struct {
	PID  string `json:"pid"`
	User string `json:"user"`
	Line string `json:"line"`
}

// Status values.
const (
	Off = "Off"
	On  = "On"
)

func isDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// Running returns true when any line of the process listing mentions name.
func Running(out, name string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, name) {
			return true
		}
	}

	return false
}

// ParseProcesses returns the processes of a ps listing whose line mentions
// name. The pid is the first all-digit field after the user column. Lines
// without a pid are skipped.
func ParseProcesses(out, name string) []Process {
	var procs []Process

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.Contains(line, name) {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		for _, part := range parts[1:] {
			if !isDigits(part) {
				continue
			}

			procs = append(procs, Process{
				PID:  part,
				User: parts[0],
				Line: line,
			})
			break
		}
	}

	return procs
}

// Status renders the status of the first process of a listing.
func Status(out, name string) string {
	if !Running(out, name) {
		return Off
	}

	procs := ParseProcesses(out, name)
	if len(procs) == 0 {
		return On
	}

	return fmt.Sprintf("On (%s - PID: %s)", procs[0].User, procs[0].PID)
}

// hasRows returns true when a ps listing holds at least one process row
// besides the header.
func hasRows(out string) bool {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}

	return n > 1
}

// processList returns the device process listing. Android before 8 ignores
// -A, so an empty listing is retried with plain ps.
func processList(ctx context.Context, c *adb.Client, serial string) (string, error) {
	out, err := c.Shell(ctx, serial, "ps", "-A")
	if err == nil && hasRows(out) {
		return out, nil
	}

	log.Debugf("ps -A gave no process rows on %s (%v), retrying with ps", serial, err)
	return c.Shell(ctx, serial, "ps")
}
