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

// Package update replaces the running adbrv with the latest release.
package update

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/cheggaaa/pb/v3"
	"github.com/dthkhang/adbrv/event"
	"github.com/dthkhang/adbrv/process"
	"github.com/dthkhang/adbrv/ui"
	logging "github.com/op/go-logging"
	"github.com/pkg/errors"
)

var log = logging.MustGetLogger("adbrv:update")

// Marker returns the version marker a release binary carries for version.
func Marker(version string) string {
	return fmt.Sprintf("adbrv_version=%q", version)
}

var markerRe = regexp.MustCompile(`adbrv_version="(v?[0-9][0-9A-Za-z.+-]*)"`)

// ErrNoVersion is returned when a downloaded release carries no marker.
var ErrNoVersion = errors.New("Could not determine version of the downloaded binary.")

// ExtractVersion returns the first version marker found in data.
func ExtractVersion(data []byte) (string, error) {
	m := markerRe.FindSubmatch(data)
	if m == nil {
		return "", ErrNoVersion
	}

	return string(m[1]), nil
}

// ReleaseURL substitutes {os} and {arch} in the url template.
func ReleaseURL(template string) string {
	return strings.NewReplacer("{os}", runtime.GOOS, "{arch}", runtime.GOARCH).Replace(template)
}

// Emitter receives audit events.
type Emitter interface {
	Emit(opts ...event.Option)
}

// Updater updates Executable either through the go tool or by downloading
// a release binary from URL.
type Updater struct {
	Runner process.Runner
	Client *http.Client

	Go      string
	Package string
	URL     string

	Executable string
	Version    string

	Out      io.Writer
	Progress io.Writer

	Events Emitter

	// Getenv defaults to os.Getenv.
	Getenv func(string) string
}

func (u *Updater) getenv(key string) string {
	if u.Getenv == nil {
		return os.Getenv(key)
	}
	return u.Getenv(key)
}

// binDirs returns the directories go install writes to.
func (u *Updater) binDirs() []string {
	if gobin := u.getenv("GOBIN"); gobin != "" {
		return []string{gobin}
	}

	gopath := u.getenv("GOPATH")
	if gopath == "" {
		home := u.getenv("HOME")
		if home == "" {
			return nil
		}

		gopath = filepath.Join(home, "go")
	}

	dirs := []string{}
	for _, p := range filepath.SplitList(gopath) {
		dirs = append(dirs, filepath.Join(p, "bin"))
	}
	return dirs
}

// Installed returns true when the executable was put in place by go install.
func (u *Updater) Installed() bool {
	dir := filepath.Clean(filepath.Dir(u.Executable))

	for _, bin := range u.binDirs() {
		if filepath.Clean(bin) == dir {
			return true
		}
	}

	return false
}

// Update runs the update matching the way adbrv was installed.
func (u *Updater) Update(ctx context.Context) error {
	ui.Success(u.Out, "Checking for updates from GitHub...")

	if u.Installed() {
		return u.install(ctx)
	}

	return u.download(ctx)
}

func (u *Updater) install(ctx context.Context) error {
	ui.Info(u.Out, "You are using the installed package version.")
	ui.Success(u.Out, "Auto-updating via go install...")

	goTool := u.Go
	if goTool == "" {
		goTool = "go"
	}

	target := u.Package + "@latest"

	if _, err := process.Output(ctx, u.Runner, process.New(goTool, "install", target)); err != nil {
		ui.Error(u.Out, "Update failed: %s", err.Error())
		ui.Info(u.Out, "You can try manually: go install %s", target)
		return errors.Wrap(err, "Update failed")
	}

	ui.Success(u.Out, "Update successful!")
	ui.Info(u.Out, "Please re-run the command to use the new version.")

	u.emit(event.Custom("method", "go-install"))
	return nil
}

func (u *Updater) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid update url %s", url)
	}

	client := u.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, errors.Wrap(err, "Error downloading update")
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("Error downloading update: %s returned %s", url, resp.Status)
	}

	var r io.Reader = resp.Body
	if u.Progress != nil {
		bar := pb.New64(resp.ContentLength).Set(pb.Bytes, true).SetWriter(u.Progress)
		bar.Start()
		defer bar.Finish()

		r = bar.NewProxyReader(resp.Body)
	}

	data, err := ioutil.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "Error downloading update")
	}

	return data, nil
}

func (u *Updater) download(ctx context.Context) error {
	url := ReleaseURL(u.URL)
	log.Debugf("Downloading release from %s", url)

	data, err := u.fetch(ctx, url)
	if err != nil {
		return err
	}

	version, err := ExtractVersion(data)
	if err != nil {
		return err
	}

	if version == u.Version {
		ui.Info(u.Out, "You are already using the latest version (%s).", u.Version)
		return nil
	}

	backup, err := u.backup()
	if err != nil {
		return err
	}

	if err := replace(u.Executable, data); err != nil {
		return err
	}

	ui.Success(u.Out, "Update successful! (Backup saved as %s)", backup)
	ui.Info(u.Out, "Updated %s -> %s (%s)", u.Version, version, bytefmt.ByteSize(uint64(len(data))))

	u.emit(event.Custom("method", "download"), event.Custom("version", version))
	return nil
}

func (u *Updater) backup() (string, error) {
	dir := filepath.Join(filepath.Dir(u.Executable), "backup")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "Error creating backup directory")
	}

	path := filepath.Join(dir, fmt.Sprintf("adbrv.bak.%s", u.Version))

	src, err := os.Open(u.Executable)
	if err != nil {
		return "", errors.Wrap(err, "Error reading current executable")
	}

	defer src.Close()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0755)
	if err != nil {
		return "", errors.Wrap(err, "Error creating backup")
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", errors.Wrap(err, "Error creating backup")
	}

	if err := dst.Close(); err != nil {
		return "", errors.Wrap(err, "Error creating backup")
	}

	return path, nil
}

// replace writes data next to path and renames it over path.
func replace(path string, data []byte) error {
	tmp, err := ioutil.TempFile(filepath.Dir(path), ".adbrv-update-")
	if err != nil {
		return errors.Wrap(err, "Error writing update")
	}

	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "Error writing update")
	}

	if err := tmp.Chmod(0755); err != nil {
		tmp.Close()
		return errors.Wrap(err, "Error writing update")
	}

	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "Error writing update")
	}

	return errors.Wrap(os.Rename(tmp.Name(), path), "Error replacing executable")
}

func (u *Updater) emit(opts ...event.Option) {
	if u.Events == nil {
		return
	}

	u.Events.Emit(append([]event.Option{event.UpdateCategory, event.SelfUpdated, event.Custom("from", u.Version)}, opts...)...)
}
