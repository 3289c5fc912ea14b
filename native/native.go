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

// Package native inspects the native libraries (.so) shipped inside Android
// applications with the host binutils.
package native

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/dthkhang/adbrv/config"
	"github.com/dthkhang/adbrv/process"
	"github.com/dthkhang/adbrv/prompt"
	"github.com/dthkhang/adbrv/ui"
	"github.com/fatih/color"
	logging "github.com/op/go-logging"
)

var log = logging.MustGetLogger("adbrv:native")

// Verdict classifies the outcome of a single check.
type Verdict int

// Verdicts.
const (
	Pass Verdict = iota
	Fail
	Warn
	Error
)

func (v Verdict) String() string {
	switch v {
	case Pass:
		return "PASS"
	case Fail:
		return "FAIL"
	case Warn:
		return "WARN"
	default:
		return "ERROR"
	}
}

func (v Verdict) color() *color.Color {
	switch v {
	case Pass:
		return ui.Green
	case Warn:
		return ui.Yellow
	default:
		return ui.Red
	}
}

// MarshalText encodes the verdict by name.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// Check is the result of one test against one file.
type Check struct {
	Test    string  `json:"test"`
	Verdict Verdict `json:"verdict"`
	Message string  `json:"message"`
}

func (c Check) String() string {
	return "[" + c.Verdict.String() + "] - " + c.Test + ": " + c.Message
}

// Colored renders the check with its verdict colored.
func (c Check) Colored() string {
	return "[" + c.Verdict.color().Sprint(c.Verdict.String()) + "] - " + c.Test + ": " + c.Message
}

// Inspector runs the native library checks.
type Inspector struct {
	Runner  process.Runner
	Tools   config.Tools
	Chooser prompt.Chooser
	Out     io.Writer
}

// New returns an Inspector using the configured tools.
func New(r process.Runner, tools config.Tools, chooser prompt.Chooser, out io.Writer) *Inspector {
	if r == nil {
		r = process.Local
	}

	return &Inspector{
		Runner:  r,
		Tools:   tools,
		Chooser: chooser,
		Out:     out,
	}
}

func (i *Inspector) capture(ctx context.Context, name string, args ...string) (string, string, error) {
	return process.Capture(ctx, i.Runner, process.New(name, args...))
}

// listDir returns the sorted names of the entries of dir for which keep
// returns true.
func listDir(dir string, keep func(os.DirEntry) bool) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if keep(entry) {
			names = append(names, entry.Name())
		}
	}

	sort.Strings(names)
	return names, nil
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func hasExt(ext string) func(os.DirEntry) bool {
	return func(entry os.DirEntry) bool {
		return !entry.IsDir() && filepath.Ext(entry.Name()) == ext
	}
}
