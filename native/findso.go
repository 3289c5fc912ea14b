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

package native

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"code.cloudfoundry.org/bytefmt"
	"github.com/dthkhang/adbrv/process"
	"github.com/dthkhang/adbrv/ui"
	"github.com/pkg/errors"
)

// APKReport lists the native libraries packaged in one APK.
type APKReport struct {
	APK     string   `json:"apk"`
	Entries []string `json:"entries"`
	Size    uint64   `json:"size"`
	Err     string   `json:"error,omitempty"`
}

// FilterSOEntries keeps the lines of an unzip -l listing naming a .so file.
func FilterSOEntries(out string) []string {
	var entries []string

	for _, line := range strings.Split(out, "\n") {
		if strings.HasSuffix(strings.TrimSpace(line), ".so") {
			entries = append(entries, strings.TrimRight(line, "\r"))
		}
	}

	return entries
}

// entrySize returns the uncompressed length column of an unzip -l line.
func entrySize(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return 0
	}

	n, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return 0
	}

	return n
}

// FindSO lists the .so entries of every APK in dir.
func (i *Inspector) FindSO(ctx context.Context, dir string) ([]APKReport, error) {
	apks, err := listDir(dir, hasExt(".apk"))
	if err != nil {
		return nil, errors.Wrapf(err, "could not read %s", dir)
	}

	if len(apks) == 0 {
		return nil, errors.New("No APK files found in current directory")
	}

	var total uint64
	var libs int

	reports := make([]APKReport, 0, len(apks))
	for _, apk := range apks {
		report := APKReport{APK: apk}

		stdout, stderr, err := i.capture(ctx, i.Tools.Unzip, "-l", filepath.Join(dir, apk))
		switch {
		case process.IsNotFound(err):
			report.Err = fmt.Sprintf("%s not found", i.Tools.Unzip)
		case err != nil:
			if msg := strings.TrimSpace(stderr); msg != "" {
				err = errors.WithMessage(err, msg)
			}

			report.Err = err.Error()
		default:
			report.Entries = FilterSOEntries(stdout)
			for _, entry := range report.Entries {
				report.Size += entrySize(entry)
			}
		}

		switch {
		case report.Err != "":
			ui.Colored(i.Out, ui.Red, "APK: %s", apk)
			ui.Error(i.Out, "Error reading APK: %s", report.Err)
		case len(report.Entries) == 0:
			ui.Colored(i.Out, ui.Red, "APK: %s", apk)
			fmt.Fprintln(i.Out, "  No .so files found")
		default:
			ui.Colored(i.Out, ui.Green, "APK: %s", apk)
			for _, entry := range report.Entries {
				fmt.Fprintf(i.Out, "  %s\n", entry)
			}
		}

		libs += len(report.Entries)
		total += report.Size

		reports = append(reports, report)
	}

	ui.Info(i.Out, "%d APK(s), %d native librar%s, %s uncompressed", len(apks), libs, plural(libs), bytefmt.ByteSize(total))
	return reports, nil
}

func plural(n int) string {
	if n == 1 {
		return "y"
	}

	return "ies"
}
