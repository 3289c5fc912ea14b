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

package cmd

import (
	"strconv"
	"strings"
)

// legacy maps the flag style commands of earlier releases onto commands.
var legacy = map[string]string{
	"--set":      "set",
	"--unset":    "unset",
	"--status":   "status",
	"--frida":    "frida",
	"--resign":   "resign",
	"--checksym": "checksym",
	"--findso":   "findso",
	"--libsec":   "libsec",
	"--update":   "update",
}

// globalValueFlags take a separate value argument.
var globalValueFlags = map[string]bool{
	"--config":    true,
	"-c":          true,
	"--log-level": true,
}

// valueFlags are the command flags taking a separate value argument.
var valueFlags = map[string]bool{
	"--device": true,
	"-d":       true,
	"--listen": true,
	"-l":       true,
}

// Normalize rewrites args so both command line styles parse the same way:
// the first argument after the global flags may be a legacy --command, and
// command flags may follow the positional arguments.
func Normalize(args []string) []string {
	if len(args) < 2 {
		return args
	}

	out := append([]string{}, args[0])

	i := 1
	for ; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			break
		}

		if _, ok := legacy[arg]; ok {
			break
		}

		out = append(out, arg)

		if globalValueFlags[arg] && i+1 < len(args) {
			i++
			out = append(out, args[i])
		}
	}

	if i >= len(args) {
		return out
	}

	name := args[i]
	if cmd, ok := legacy[name]; ok {
		name = cmd
	}

	out = append(out, name)

	rest := args[i+1:]
	if name == "resign" {
		return append(out, rest...)
	}

	return append(out, reorder(rest)...)
}

// reorder moves flags in front of the positional arguments. Everything after
// "--" stays positional. Negative numbers are shielded from the flag parser
// with a single "--" separator.
func reorder(args []string) []string {
	var flags, positional []string

	separate := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			separate = true
			positional = append(positional, args[i+1:]...)
			break
		}

		if !strings.HasPrefix(arg, "-") || arg == "-" {
			positional = append(positional, arg)
			continue
		}

		if isNumber(arg) {
			separate = true
			positional = append(positional, arg)
			continue
		}

		flags = append(flags, arg)

		if valueFlags[arg] && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}

	if separate {
		flags = append(flags, "--")
	}

	return append(flags, positional...)
}

// isNumber returns true for decimal integers.
func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}
