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

// Package cmd implements the adbrv command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dthkhang/adbrv/config"
	"github.com/dthkhang/adbrv/process"
	"github.com/dthkhang/adbrv/profiler"
	"github.com/dthkhang/adbrv/prompt"
	"github.com/dthkhang/adbrv/pushers"
	"github.com/dthkhang/adbrv/pushers/eventbus"
	"github.com/dthkhang/adbrv/ui"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	cli "gopkg.in/urfave/cli.v1"

	// Audit channel backends.
	_ "github.com/dthkhang/adbrv/pushers/console"
	_ "github.com/dthkhang/adbrv/pushers/file"
)

var log = logging.MustGetLogger("adbrv:cmd")

// Version of adbrv.
const Version = "1.2.0"

// versionMarker is matched by the self-updater in downloaded releases.
const versionMarker = `adbrv_version="` + Version + `"`

var helpTemplate = `NAME:
{{.Name}} - {{.Usage}}

USAGE:
{{.Name}} {{if .Flags}}[flags] {{end}}command [arguments...]

COMMANDS:
{{range .Commands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
{{end}}{{if .Flags}}
FLAGS:
{{range .Flags}}{{.}}
{{end}}{{end}}
EXAMPLES:
{{.Name}} set 8083 8083                   Set up reverse proxy
{{.Name}} set 8083 8083 --device <serial> Set up reverse proxy for a specific device
{{.Name}} unset                           Remove proxy/reverse from every device
{{.Name}} status --device <serial>        Show status for a specific device
{{.Name}} frida on                        Start frida-server on the device
{{.Name}} frida kill                      Kill all running frida-server processes
{{.Name}} resign --apk my.apk             Resign APK (all uber-apk-signer options supported)
{{.Name}} checksym base                   Check .so symbols of an apktool output folder
{{.Name}} findso                          List native libraries inside the APKs of this folder
{{.Name}} libsec                          Check PIE, stack canary and debug sections

The legacy forms (--set, --unset, --status, --frida, ...) are accepted as well.

NOTES:
- If no device is specified and multiple devices are connected, you must specify --device.
- When stopping frida-server, you must confirm (y/n) if multiple processes are found.
- For APK resigning, Java is required.

VERSION:
` + Version +
	`{{ "\n"}}`

func init() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print the version",
	}

	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "adbrv version %s\n", c.App.Version)
	}
}

// exitError carries the exit status of a command that already reported why
// it failed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func exit(code int) error {
	return &exitError{code: code}
}

// Cmd defines a struct for defining a command.
type Cmd struct {
	*cli.App

	ctx context.Context

	config     *config.Config
	runner     process.Runner
	chooser    prompt.Chooser
	in         io.Reader
	out        io.Writer
	errOut     io.Writer
	executable string

	bus      *eventbus.EventBus
	token    string
	profiler profiler.Profiler
	ready    bool
}

// OptionFn configures a Cmd.
type OptionFn func(*Cmd)

// WithRunner runs external tools through r.
func WithRunner(r process.Runner) OptionFn {
	return func(c *Cmd) {
		c.runner = r
	}
}

// WithOutput sets the console streams.
func WithOutput(out, errOut io.Writer) OptionFn {
	return func(c *Cmd) {
		c.out = out
		c.errOut = errOut
	}
}

// WithInput sets the stream forwarded to interactive external tools.
func WithInput(in io.Reader) OptionFn {
	return func(c *Cmd) {
		c.in = in
	}
}

// WithChooser answers prompts through ch instead of the terminal.
func WithChooser(ch prompt.Chooser) OptionFn {
	return func(c *Cmd) {
		c.chooser = ch
	}
}

// WithConfig uses conf instead of locating a configuration file.
func WithConfig(conf *config.Config) OptionFn {
	return func(c *Cmd) {
		c.config = conf
	}
}

// WithExecutable sets the path adbrv runs from.
func WithExecutable(path string) OptionFn {
	return func(c *Cmd) {
		c.executable = path
	}
}

// WithContext sets the context of every external call.
func WithContext(ctx context.Context) OptionFn {
	return func(c *Cmd) {
		c.ctx = ctx
	}
}

func executable() string {
	p, err := os.Executable()
	if err != nil {
		return os.Args[0]
	}

	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}

	return p
}

// New returns a new instance of the Cmd struct.
func New(options ...OptionFn) *Cmd {
	c := &Cmd{
		ctx:    context.Background(),
		runner: process.Local,
		in:     os.Stdin,
		out:    os.Stdout,
		errOut: os.Stderr,
	}

	for _, optionFn := range options {
		optionFn(c)
	}

	if c.executable == "" {
		c.executable = executable()
	}

	app := cli.NewApp()
	app.Name = "adbrv"
	app.Usage = "adb reverse proxy, frida-server and native library helper"
	app.Version = Version
	app.Writer = c.out
	app.ErrWriter = c.errOut
	app.CustomAppHelpTemplate = helpTemplate
	app.Metadata = map[string]interface{}{
		"marker": versionMarker,
	}

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Load configuration from `FILE`",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "WARNING",
			Usage: "diagnostic log `LEVEL`",
		},
		cli.BoolFlag{
			Name:  "no-color",
			Usage: "disable colored output",
		},
		cli.BoolFlag{
			Name:  "cpu-profile",
			Usage: "write a cpu profile to the working directory",
		},
		cli.BoolFlag{
			Name:  "mem-profile",
			Usage: "write a memory profile to the working directory",
		},
	}

	app.Commands = c.commands()

	app.Action = func(ctx *cli.Context) error {
		return c.invalid(ctx)
	}

	app.After = func(ctx *cli.Context) error {
		c.teardown()
		return nil
	}

	c.App = app
	return c
}

// Execute runs the command line args and returns the exit status.
func (c *Cmd) Execute(args []string) int {
	err := c.App.Run(Normalize(args))
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	ui.Error(c.errOut, "%s", err.Error())
	return 1
}

// fail reports err with the optional hints and returns exit status 1.
func (c *Cmd) fail(err error, hints ...string) error {
	ui.Error(c.errOut, "%s", err.Error())

	for _, hint := range hints {
		ui.Error(c.errOut, "%s", hint)
	}

	return exit(1)
}

func (c *Cmd) invalid(ctx *cli.Context) error {
	ui.Error(c.errOut, "Invalid arguments.")
	cli.ShowAppHelp(ctx)
	return exit(1)
}

// action wraps fn so configuration and audit channels are set up only for
// commands that do work.
func (c *Cmd) action(fn func(*cli.Context) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		if err := c.setup(ctx); err != nil {
			return c.fail(err)
		}

		return fn(ctx)
	}
}

func (c *Cmd) setup(ctx *cli.Context) error {
	if c.ready {
		return nil
	}

	if ctx.GlobalBool("no-color") {
		ui.SetColor(false)
	}

	if c.config == nil {
		conf := config.Default()

		if p := config.Locate(ctx.GlobalString("config")); p != "" {
			if err := conf.LoadFile(p); err != nil {
				return err
			}

			log.Debugf("Loaded configuration from %s", p)
		}

		c.config = conf
	}

	if err := c.config.SetupLogging(ctx.GlobalString("log-level")); err != nil {
		return err
	}

	switch {
	case ctx.GlobalBool("cpu-profile"):
		c.profiler = profiler.CPU(".")
	case ctx.GlobalBool("mem-profile"):
		c.profiler = profiler.Memory(".")
	default:
		c.profiler = profiler.Dummy()
	}

	c.profiler.Start()

	c.token = xid.New().String()
	c.bus = eventbus.New()

	if err := pushers.FromConfig(c.config, c.token, c.bus); err != nil {
		return err
	}

	log.Debugf("Run %s (%s)", c.token, versionMarker)

	c.ready = true
	return nil
}

func (c *Cmd) teardown() {
	if c.profiler != nil {
		c.profiler.Stop()
	}

	if c.bus != nil {
		if err := c.bus.Close(); err != nil {
			log.Errorf("Error closing audit channels: %s", err)
		}
	}
}

func (c *Cmd) prompt() prompt.Chooser {
	if c.chooser == nil {
		c.chooser = prompt.Stdin(c.out)
	}

	return c.chooser
}
