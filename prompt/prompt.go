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

// Package prompt asks the user to pick between options or confirm an action.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
)

// ErrNotInteractive is returned when a choice is required but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("input required but stdin is not a terminal")

// Chooser asks the user to decide. Choose returns the zero-based index of the
// selected option.
type Chooser interface {
	Choose(title string, options []string) (int, error)
	Confirm(question string) (bool, error)
}

// Terminal is a line based Chooser.
type Terminal struct {
	r *bufio.Reader
	w io.Writer
}

// New returns a Terminal reading answers from in and writing prompts to out.
func New(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		r: bufio.NewReader(in),
		w: out,
	}
}

// Stdin returns a Terminal on os.Stdin, or a chooser that refuses to block
// when stdin is not a terminal.
func Stdin(out io.Writer) Chooser {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return NonInteractive{}
	}

	return New(os.Stdin, out)
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.r.ReadString('\n')
	if err == io.EOF && line != "" {
		return strings.TrimSpace(line), nil
	} else if err == io.EOF {
		return "", errors.New("no answer given")
	} else if err != nil {
		return "", err
	}

	return strings.TrimSpace(line), nil
}

// Choose lists the options numbered from 1 and asks until a valid number is
// entered.
func (t *Terminal) Choose(title string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errors.New("nothing to choose from")
	}

	for i, option := range options {
		fmt.Fprintf(t.w, "  [%d] %s\n", i+1, option)
	}

	for {
		fmt.Fprintf(t.w, "%s [1-%d]: ", title, len(options))

		answer, err := t.readLine()
		if err != nil {
			return 0, err
		}

		n, err := strconv.Atoi(answer)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}

		fmt.Fprintln(t.w, "Invalid selection. Please enter a valid number.")
	}
}

// Confirm asks a yes/no question. Only y or Y confirms.
func (t *Terminal) Confirm(question string) (bool, error) {
	fmt.Fprintf(t.w, "%s (y/n): ", question)

	answer, err := t.readLine()
	if err != nil {
		return false, err
	}

	return strings.EqualFold(answer, "y"), nil
}

// NonInteractive fails every question with ErrNotInteractive.
type NonInteractive struct{}

// Choose implements Chooser.
func (NonInteractive) Choose(title string, options []string) (int, error) {
	return 0, errors.Wrap(ErrNotInteractive, title)
}

// Confirm implements Chooser.
func (NonInteractive) Confirm(question string) (bool, error) {
	return false, errors.Wrap(ErrNotInteractive, question)
}

