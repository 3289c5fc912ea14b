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

// Package ui formats the user-facing console lines. Every function writes to
// the writer it is given; nothing is kept between calls.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Colors used by the console output.
var (
	Green  = color.New(color.FgGreen)
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Blue   = color.New(color.FgBlue)
	Cyan   = color.New(color.FgCyan)
)

// SetColor enables or disables colored output.
func SetColor(enabled bool) {
	color.NoColor = !enabled
}

func prefixed(w io.Writer, c *color.Color, prefix, format string, a ...interface{}) {
	fmt.Fprintf(w, "%s %s\n", c.Sprint(prefix), fmt.Sprintf(format, a...))
}

// Success writes a [+] line.
func Success(w io.Writer, format string, a ...interface{}) {
	prefixed(w, Green, "[+]", format, a...)
}

// Error writes a [!] line in red.
func Error(w io.Writer, format string, a ...interface{}) {
	prefixed(w, Red, "[!]", format, a...)
}

// Info writes a [i] line.
func Info(w io.Writer, format string, a ...interface{}) {
	prefixed(w, Yellow, "[i]", format, a...)
}

// Warning writes a [!] line in yellow.
func Warning(w io.Writer, format string, a ...interface{}) {
	prefixed(w, Yellow, "[!]", format, a...)
}

// Colored writes a full line in c.
func Colored(w io.Writer, c *color.Color, format string, a ...interface{}) {
	fmt.Fprintln(w, c.Sprintf(format, a...))
}

// Separator writes a line of 60 dashes.
func Separator(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
}

// Field is a single label/value row of a Tree.
type Field struct {
	Label string
	Value string
}

// Tree writes a title followed by its fields as box-drawing branches with
// the labels padded to the same width.
func Tree(w io.Writer, title string, fields []Field) {
	fmt.Fprintln(w, Cyan.Sprint(title))

	width := 0
	for _, f := range fields {
		if len(f.Label) > width {
			width = len(f.Label)
		}
	}

	for i, f := range fields {
		branch := "├──"
		if i == len(fields)-1 {
			branch = "└──"
		}

		fmt.Fprintf(w, "%s %-*s : %s\n", branch, width, f.Label, f.Value)
	}
}
