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
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dthkhang/adbrv/adb"
	"github.com/dthkhang/adbrv/device"
	"github.com/dthkhang/adbrv/frida"
	"github.com/dthkhang/adbrv/native"
	"github.com/dthkhang/adbrv/proxy"
	"github.com/dthkhang/adbrv/resign"
	"github.com/dthkhang/adbrv/ui"
	"github.com/dthkhang/adbrv/update"
	"github.com/dthkhang/adbrv/web"
	jsoniter "github.com/json-iterator/go"
	cli "gopkg.in/urfave/cli.v1"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var deviceFlag = cli.StringFlag{
	Name:   "device, d",
	Usage:  "target device `SERIAL`",
	EnvVar: "ANDROID_SERIAL",
}

func (c *Cmd) commands() []cli.Command {
	return []cli.Command{
		{
			Name:      "set",
			Usage:     "Set up reverse proxy",
			ArgsUsage: "<local_port> <device_port>",
			Flags:     []cli.Flag{deviceFlag},
			Action:    c.action(c.set),
		},
		{
			Name:   "unset",
			Usage:  "Remove proxy/reverse",
			Flags:  []cli.Flag{deviceFlag},
			Action: c.action(c.unset),
		},
		{
			Name:  "status",
			Usage: "Show device status",
			Flags: []cli.Flag{
				deviceFlag,
				cli.BoolFlag{
					Name:  "json",
					Usage: "print the reports as JSON",
				},
			},
			Action: c.action(c.status),
		},
		{
			Name:      "frida",
			Usage:     "Start (on) or kill frida-server",
			ArgsUsage: "on|kill",
			Flags:     []cli.Flag{deviceFlag},
			Action:    c.action(c.frida),
		},
		{
			Name:            "resign",
			Usage:           "Resign APK using the bundled uber-apk-signer",
			ArgsUsage:       "--apk <file.apk> [options]",
			SkipFlagParsing: true,
			Action:          c.action(c.resign),
		},
		{
			Name:      "checksym",
			Usage:     "Check for internal symbols in .so files",
			ArgsUsage: "<path/to/base>",
			Action:    c.action(c.checksym),
		},
		{
			Name:      "findso",
			Usage:     "List .so files inside the APKs of a directory",
			ArgsUsage: "[dir]",
			Action:    c.action(c.findso),
		},
		{
			Name:      "libsec",
			Usage:     "Check PIE, stack canary and debug sections of .so files",
			ArgsUsage: "[dir]",
			Action:    c.action(c.libsec),
		},
		{
			Name:   "update",
			Usage:  "Update adbrv",
			Action: c.action(c.update),
		},
		{
			Name:   "version",
			Usage:  "Show version",
			Action: c.version,
		},
		{
			Name:  "serve",
			Usage: "Serve the read-only device status API",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "listen, l",
					Usage: "listen on `ADDR` instead of the configured address",
				},
			},
			Action: c.action(c.serve),
		},
	}
}

func (c *Cmd) adb() *adb.Client {
	return adb.New(c.config.Tools.ADB, c.runner)
}

func (c *Cmd) fridaController() *frida.Controller {
	fc := frida.New(c.adb(), c.prompt(), c.out)
	fc.Events = c.bus
	fc.Dir = c.config.Frida.Dir
	fc.Prefix = c.config.Frida.Prefix
	fc.StartTimeout = c.config.Frida.StartTimeout.Duration()
	fc.Settle = c.config.Frida.Settle.Duration()
	return fc
}

func (c *Cmd) reporter() *device.Reporter {
	return &device.Reporter{
		Client: c.adb(),
		Frida:  c.fridaController(),
	}
}

func (c *Cmd) inspector() *native.Inspector {
	return native.New(c.runner, c.config.Tools, c.prompt(), c.out)
}

// devices lists the attached devices.
func (c *Cmd) devices() ([]string, error) {
	return c.adb().Devices(c.ctx)
}

// single resolves the one device an operation acts on.
func (c *Cmd) single(ctx *cli.Context) (string, error) {
	devices, err := c.devices()
	if err != nil {
		return "", err
	}

	return device.Select(devices, ctx.String("device"))
}

func (c *Cmd) set(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return c.invalid(ctx)
	}

	local, err := proxy.ParsePort(ctx.Args().Get(0))
	if err != nil {
		return c.fail(err)
	}

	remote, err := proxy.ParsePort(ctx.Args().Get(1))
	if err != nil {
		return c.fail(err)
	}

	serial, err := c.single(ctx)
	if err != nil {
		return c.fail(err)
	}

	pc := &proxy.Controller{Client: c.adb(), Out: c.out, Events: c.bus}
	if err := pc.Set(c.ctx, serial, local, remote); err != nil {
		return c.fail(err, proxy.Hint)
	}

	return nil
}

func (c *Cmd) unset(ctx *cli.Context) error {
	devices, err := c.devices()
	if err != nil {
		return c.fail(err)
	}

	if len(devices) == 0 {
		return c.fail(device.ErrNoDevices)
	}

	targets, err := device.Targets(devices, ctx.String("device"))
	if err != nil {
		return c.fail(err)
	}

	pc := &proxy.Controller{Client: c.adb(), Out: c.out, Events: c.bus}
	if err := pc.UnsetAll(c.ctx, targets); err != nil {
		return c.fail(err, proxy.Hint)
	}

	return nil
}

func (c *Cmd) status(ctx *cli.Context) error {
	devices, err := c.devices()
	if err != nil {
		return c.fail(err)
	}

	serial := ctx.String("device")
	if serial != "" && !device.Contains(devices, serial) {
		return c.fail(&device.NotFoundError{Serial: serial})
	}

	if len(devices) == 0 {
		ui.Error(c.out, "%s", device.ErrNoDevices.Error())
		return nil
	}

	targets, _ := device.Targets(devices, serial)

	reporter := c.reporter()

	reports := make([]device.Report, 0, len(targets))
	for _, s := range targets {
		reports = append(reports, reporter.Collect(c.ctx, s))
	}

	if ctx.Bool("json") {
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return c.fail(err)
		}

		fmt.Fprintln(c.out, string(data))
		return nil
	}

	for _, report := range reports {
		device.Print(c.out, report)
	}

	return nil
}

func (c *Cmd) frida(ctx *cli.Context) error {
	mode := ctx.Args().First()
	if mode != "on" && mode != "kill" {
		cli.ShowCommandHelp(ctx, "frida")
		return nil
	}

	serial, err := c.single(ctx)
	if err != nil {
		return c.fail(err)
	}

	fc := c.fridaController()

	if mode == "on" {
		result, err := fc.Start(c.ctx, serial)
		if err != nil {
			return c.fail(err)
		}

		log.Debugf("frida-server on %s: %s", serial, result)

		if result == frida.NotFound || result == frida.StartFailed {
			return exit(1)
		}

		return nil
	}

	result, err := fc.Kill(c.ctx, serial)

	if len(result.Killed) > 0 {
		ui.Info(c.out, "Checking frida-server status...")
		device.Print(c.out, c.reporter().Collect(c.ctx, serial))
	}

	if err != nil {
		return c.fail(err)
	}

	return nil
}

func (c *Cmd) resign(ctx *cli.Context) error {
	jar := c.config.Signer.Jar
	if jar == "" {
		jar = resign.DefaultJar(c.executable)
	}

	r := &resign.Resigner{
		Runner: c.runner,
		Java:   c.config.Tools.Java,
		Jar:    jar,
		In:     c.in,
		Out:    c.out,
		Err:    c.errOut,
		Events: c.bus,
	}

	code, err := r.Run(c.ctx, []string(ctx.Args()))
	if err != nil {
		return c.fail(err)
	}

	if code != 0 {
		return exit(code)
	}

	return nil
}

func (c *Cmd) checksym(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return c.invalid(ctx)
	}

	if _, err := c.inspector().CheckSymbols(c.ctx, ctx.Args().First()); err != nil {
		return c.fail(err)
	}

	return nil
}

func dirArg(ctx *cli.Context) string {
	if dir := ctx.Args().First(); dir != "" {
		return dir
	}

	return "."
}

func (c *Cmd) findso(ctx *cli.Context) error {
	if _, err := c.inspector().FindSO(c.ctx, dirArg(ctx)); err != nil {
		return c.fail(err)
	}

	return nil
}

func (c *Cmd) libsec(ctx *cli.Context) error {
	if _, err := c.inspector().LibSecurity(c.ctx, dirArg(ctx)); err != nil {
		return c.fail(err)
	}

	return nil
}

func (c *Cmd) update(ctx *cli.Context) error {
	u := &update.Updater{
		Runner:     c.runner,
		Go:         c.config.Tools.Go,
		Package:    c.config.Update.Package,
		URL:        c.config.Update.URL,
		Executable: c.executable,
		Version:    Version,
		Out:        c.out,
		Progress:   c.errOut,
		Events:     c.bus,
	}

	if err := u.Update(c.ctx); err != nil {
		if u.Installed() {
			// already reported with the manual hint
			return exit(1)
		}

		return c.fail(err)
	}

	return nil
}

func (c *Cmd) version(ctx *cli.Context) error {
	fmt.Fprintf(c.out, "adbrv version %s\n", Version)
	return nil
}

func (c *Cmd) serve(ctx *cli.Context) error {
	listen := ctx.String("listen")
	if listen == "" {
		listen = c.config.Web.Listen
	}

	client := c.adb()

	w, err := web.New(client, c.reporter(), web.WithListen(listen), web.WithVersion(Version))
	if err != nil {
		return c.fail(err)
	}

	sctx, stop := signal.NotifyContext(c.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	ui.Success(c.out, "Serving device status on http://%s/api/v1/devices", listen)

	if err := w.Serve(sctx); err != nil {
		return c.fail(err)
	}

	return nil
}
