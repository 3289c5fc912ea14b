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

// Package config holds the adbrv configuration. It is decoded from TOML and
// falls back to platform defaults for every key left out.
package config

import (
	"io"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:config")

var format = logging.MustStringFormatter(
	"%{color}%{time:15:04:05.000} %{module} ▶ %{level:.4s} %{message}%{color:reset}",
)

// EnvConfig names the environment variable consulted for a config file.
const EnvConfig = "ADBRV_CONFIG"

// Tools lists the external executables. Values are looked up in PATH unless
// they are absolute.
type Tools struct {
	ADB     string `toml:"adb"`
	NM      string `toml:"nm"`
	ReadElf string `toml:"readelf"`
	Strings string `toml:"strings"`
	Unzip   string `toml:"unzip"`
	Find    string `toml:"find"`
	Java    string `toml:"java"`
	Go      string `toml:"go"`
}

// Frida configures where frida-server binaries live on the device.
type Frida struct {
	Dir          string `toml:"dir"`
	Prefix       string `toml:"prefix"`
	StartTimeout Delay  `toml:"start_timeout"`
	Settle       Delay  `toml:"settle"`
}

// Signer configures the APK signer jar.
type Signer struct {
	Jar string `toml:"jar"`
}

// Update configures the self-updater.
type Update struct {
	URL     string `toml:"url"`
	Package string `toml:"package"`
}

// Web configures the status API.
type Web struct {
	Listen string `toml:"listen"`
}

// Logging defines a single logging backend.
type Logging struct {
	Output string `toml:"output"`
	Level  string `toml:"level"`
}

// Config defines the central type where all configuration is umarhsalled to.
type Config struct {
	toml.MetaData

	Tools  Tools  `toml:"tools"`
	Frida  Frida  `toml:"frida"`
	Signer Signer `toml:"signer"`
	Update Update `toml:"update"`
	Web    Web    `toml:"web"`

	Channels map[string]toml.Primitive `toml:"channel"`

	Logging []Logging `toml:"logging"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	c := &Config{
		Tools: Tools{
			ADB:     "adb",
			NM:      "/usr/bin/nm",
			ReadElf: "readelf",
			Strings: "strings",
			Unzip:   "unzip",
			Find:    "find",
			Java:    "java",
			Go:      "go",
		},
		Frida: Frida{
			Dir:          "/data/local/tmp",
			Prefix:       "frida-server",
			StartTimeout: Delay(10 * time.Second),
			Settle:       Delay(2 * time.Second),
		},
		Update: Update{
			URL:     "https://raw.githubusercontent.com/dthkhang/adbrv/main/dist/adbrv-{os}-{arch}",
			Package: "github.com/dthkhang/adbrv/cmd/adbrv",
		},
		Web: Web{
			Listen: "127.0.0.1:8089",
		},
		Channels: map[string]toml.Primitive{},
	}

	if runtime.GOOS == "darwin" {
		c.Tools.NM = "/Library/Developer/CommandLineTools/usr/bin/nm"
		c.Tools.ReadElf = "greadelf"
	}

	return c
}

// Load decodes the giving toml configuration on top of the current values.
func (c *Config) Load(r io.Reader) error {
	md, err := toml.DecodeReader(r, c)
	if err != nil {
		return errors.Wrap(err, "could not parse configuration")
	}

	c.MetaData = md

	for _, key := range md.Undecoded() {
		if len(key) > 0 && key[0] == "channel" {
			continue
		}

		log.Warningf("Unknown configuration key: %s", key.String())
	}

	return nil
}

// LoadFile loads the configuration file at path.
func (c *Config) LoadFile(path string) error {
	p, err := Expand(path)
	if err != nil {
		return err
	}

	f, err := os.Open(p)
	if err != nil {
		return errors.Wrap(err, "could not open configuration")
	}

	defer f.Close()

	return c.Load(f)
}

// Locate returns the configuration file to load: the explicit path when set,
// then $ADBRV_CONFIG, then ~/.adbrv.toml when it exists. An empty result means
// the defaults apply.
func Locate(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if v := os.Getenv(EnvConfig); v != "" {
		return v
	}

	p, err := Expand("~/.adbrv.toml")
	if err != nil {
		return ""
	}

	if _, err := os.Stat(p); err != nil {
		return ""
	}

	return p
}

// SetupLogging installs the configured backends. Without any [[logging]]
// table a single stderr backend at level is used.
func (c *Config) SetupLogging(level string) error {
	outputs := c.Logging
	if len(outputs) == 0 {
		outputs = []Logging{{Output: "stderr", Level: level}}
	}

	var logBackends []logging.Backend
	for _, l := range outputs {
		var output io.Writer

		switch l.Output {
		case "stdout":
			output = os.Stdout
		case "stderr", "":
			output = os.Stderr
		default:
			p, err := Expand(os.ExpandEnv(l.Output))
			if err != nil {
				return err
			}

			f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0660)
			if err != nil {
				return errors.Wrapf(err, "could not open log output %s", l.Output)
			}

			output = f
		}

		lvl := l.Level
		if lvl == "" {
			lvl = level
		}

		parsed, err := logging.LogLevel(strings.ToUpper(lvl))
		if err != nil {
			return errors.Wrapf(err, "invalid log level %q", lvl)
		}

		backend := logging.NewLogBackend(output, "", 0)
		backendFormatter := logging.NewBackendFormatter(backend, format)
		backendLeveled := logging.AddModuleLevel(backendFormatter)
		backendLeveled.SetLevel(parsed, "")

		logBackends = append(logBackends, backendLeveled)
	}

	logging.SetBackend(logBackends...)
	return nil
}

// Expand replaces a leading ~ with the home directory of the current user.
func Expand(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}

	usr, err := user.Current()
	if err != nil {
		return "", err
	}

	return filepath.Join(usr.HomeDir, path[1:]), nil
}
